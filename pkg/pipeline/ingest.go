package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xhad/payrag/internal/models"
	"github.com/xhad/payrag/internal/types"
	"github.com/xhad/payrag/pkg/extractor"
	"github.com/xhad/payrag/pkg/processor"
)

// Ingestor runs one document through extract -> classify -> chunk -> embed
// -> upsert. Dependencies are injected once at process start; Ingestor
// itself holds no per-request state beyond the per-document locks.
type Ingestor struct {
	extractor  types.Extractor
	classifier types.Classifier
	processor  *processor.Processor
	embedder   types.Embedder
	kb         types.KnowledgeBase
	limiter    *rate.Limiter
	maxSize    int64
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIngestor(
	ext types.Extractor,
	cls types.Classifier,
	emb types.Embedder,
	kb types.KnowledgeBase,
	config types.IngestConfig,
	logger *slog.Logger,
) (*Ingestor, error) {
	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.ChunkSize,
		ChunkOverlap: config.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if config.EmbedRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.EmbedRateLimit), 1)
	}

	return &Ingestor{
		extractor:  ext,
		classifier: cls,
		processor:  proc,
		embedder:   emb,
		kb:         kb,
		limiter:    limiter,
		maxSize:    config.MaxFileSize,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// DocumentID derives a stable id from the filename, so re-uploading the
// same file hits the same chunk keys in the knowledge base.
func DocumentID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:6])
}

// Ingest processes one uploaded file end to end and reports a structured
// result. Format and size are rejected before any work; classification
// failure is non-fatal; the document is indexed if at least one chunk
// embeds, failed otherwise.
func (in *Ingestor) Ingest(ctx context.Context, data []byte, filename string) (*models.IngestResult, error) {
	if !extractor.Supported(filename) {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, filename)
	}
	if int64(len(data)) > in.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", types.ErrFileTooLarge, len(data), in.maxSize)
	}

	docID := DocumentID(filename)

	// Concurrent ingests of the same filename serialize so overwrites
	// never interleave; distinct documents proceed in parallel.
	lock := in.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	doc := &models.Document{
		ID:         docID,
		Filename:   filename,
		Size:       int64(len(data)),
		Format:     strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		IngestedAt: time.Now(),
		Status:     models.StatusProcessing,
	}

	text, err := in.extractor.Extract(ctx, data, filename)
	if err != nil {
		doc.Status = models.StatusFailed
		return nil, err
	}
	doc.Text = text

	docType, confidence, err := in.classifier.Classify(text, filename)
	if err != nil {
		// Non-fatal: retrieval is still useful without a label
		in.logger.Warn("Classification failed, indexing as unknown",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		docType, confidence = "unknown", 0
	}
	doc.DocType = docType
	doc.Confidence = confidence
	doc.Entities = in.classifier.ExtractEntities(text)

	chunks := in.processor.Process(doc)
	if len(chunks) == 0 {
		doc.Status = models.StatusFailed
		return nil, fmt.Errorf("%w: document produced no chunks", types.ErrExtractionFailed)
	}

	embedded := make([]models.Chunk, 0, len(chunks))
	failed := 0
	for _, chunk := range chunks {
		vector, err := in.embedChunk(ctx, chunk.Text)
		if err != nil {
			in.logger.Warn("Skipping chunk after failed embedding",
				slog.String("filename", filename),
				slog.Int("chunk_index", chunk.Index),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		chunk.Embedding = vector
		embedded = append(embedded, chunk)
	}

	if len(embedded) == 0 {
		doc.Status = models.StatusFailed
		return &models.IngestResult{
			Filename:     filename,
			DocType:      docType,
			Confidence:   confidence,
			ChunksFailed: failed,
			Entities:     doc.Entities,
			Status:       models.StatusFailed,
		}, fmt.Errorf("all %d chunks failed to embed", failed)
	}

	count, err := in.kb.Upsert(ctx, embedded)
	if err != nil {
		doc.Status = models.StatusFailed
		return nil, err
	}
	doc.Status = models.StatusIndexed

	in.logger.Info("Document indexed",
		slog.String("filename", filename),
		slog.String("doc_type", docType),
		slog.Int("chunks_indexed", count),
		slog.Int("chunks_failed", failed))

	return &models.IngestResult{
		Filename:      filename,
		DocType:       docType,
		Confidence:    confidence,
		ChunksIndexed: count,
		ChunksFailed:  failed,
		Entities:      doc.Entities,
		Status:        models.StatusIndexed,
	}, nil
}

// embedChunk embeds one chunk with a single retry. Calls are rate-limited
// so a large document cannot flood the model server.
func (in *Ingestor) embedChunk(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if in.limiter != nil {
			if err := in.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vector, err := in.embedder.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (in *Ingestor) docLock(docID string) *sync.Mutex {
	in.mu.Lock()
	defer in.mu.Unlock()
	lock, ok := in.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		in.locks[docID] = lock
	}
	return lock
}

// IsCallerError reports whether the ingest failure was the caller's fault
// (bad format, oversized file) as opposed to a processing fault.
func IsCallerError(err error) bool {
	return errors.Is(err, types.ErrUnsupportedFormat) || errors.Is(err, types.ErrFileTooLarge)
}
