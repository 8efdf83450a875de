package types

import (
	"context"
	"time"

	"github.com/xhad/payrag/internal/models"
)

// Core interfaces. The pipelines depend on these; concrete clients are
// constructed once at process start and injected.

// Embedder maps text to fixed-dimension vectors. Query and chunk embeddings
// must come from the same embedder instance or retrieval similarity is
// meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a fully constructed prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// KnowledgeBase owns the vector index and its metadata.
type KnowledgeBase interface {
	// Upsert stores chunks with their vectors, replacing any chunks
	// previously stored for the same documents. Returns the stored count.
	Upsert(ctx context.Context, chunks []models.Chunk) (int, error)

	// Search returns the topK nearest chunks by cosine similarity, ordered
	// by score descending, ties broken by lower chunk index. Read-only.
	Search(ctx context.Context, embedding []float32, topK int) ([]models.Retrieved, error)

	// Stats recomputes aggregate counters from the index.
	Stats(ctx context.Context) (*models.KnowledgeBaseStats, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close()
}

// Extractor converts raw file bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Classifier assigns a document-type label with a confidence score and
// extracts structured entities.
type Classifier interface {
	Classify(text, filename string) (docType string, confidence float64, err error)
	ExtractEntities(text string) map[string][]string
}

// IngestConfig carries the ingestion pipeline knobs.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxFileSize  int64
	// EmbedRateLimit is embedding calls per second against the model
	// server. Zero disables limiting.
	EmbedRateLimit float64
}

// RetrievalConfig carries the query pipeline knobs.
type RetrievalConfig struct {
	TopK              int
	MaxContextChars   int
	GenerationTimeout time.Duration
}
