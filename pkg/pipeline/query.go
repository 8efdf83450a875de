package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xhad/payrag/internal/models"
	"github.com/xhad/payrag/internal/types"
	"github.com/xhad/payrag/pkg/roles"
)

// Querier answers one question: resolve role -> embed -> retrieve ->
// build role prompt -> generate -> attach citations.
type Querier struct {
	embedder  types.Embedder
	kb        types.KnowledgeBase
	generator types.Generator
	config    types.RetrievalConfig
	logger    *slog.Logger
}

func NewQuerier(
	emb types.Embedder,
	kb types.KnowledgeBase,
	gen types.Generator,
	config types.RetrievalConfig,
	logger *slog.Logger,
) *Querier {
	if config.TopK == 0 {
		config.TopK = 3
	}
	if config.MaxContextChars == 0 {
		config.MaxContextChars = 4000
	}
	if config.GenerationTimeout == 0 {
		config.GenerationTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Querier{
		embedder:  emb,
		kb:        kb,
		generator: gen,
		config:    config,
		logger:    logger,
	}
}

// Query runs the full query pipeline. Every failure is a typed error; the
// generator is never invoked against an empty knowledge base.
func (q *Querier) Query(ctx context.Context, text string, role roles.Role, topK int) (*models.QueryResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyQuery
	}

	if topK <= 0 {
		topK = q.config.TopK
	}
	if topK > 10 {
		topK = 10
	}

	count, err := q.kb.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, types.ErrNoDocumentsIndexed
	}

	resolved := roles.Resolve(text, role)

	embedding, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	retrieved, err := q.kb.Search(ctx, embedding, topK)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		return nil, types.ErrNoDocumentsIndexed
	}

	q.logger.Debug("Retrieved chunks",
		slog.String("role", resolved.String()),
		slog.Int("count", len(retrieved)))

	kept := rerankByRole(retrieved, resolved)
	kept = q.fitContext(kept)

	systemPrompt := resolved.SystemPrompt()
	userPrompt := buildUserPrompt(kept, text)

	// The generator call is bounded here as well as inside the chat
	// engine, so any Generator implementation inherits the deadline.
	genCtx, cancel := context.WithTimeout(ctx, q.config.GenerationTimeout)
	defer cancel()

	answer, err := q.generator.Generate(genCtx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", types.ErrGenerationTimeout, q.config.GenerationTimeout)
		}
		return nil, err
	}

	result := &models.QueryResult{
		Answer:     strings.TrimSpace(answer),
		Sources:    make([]models.Citation, 0, len(kept)),
		Confidence: meanScore(kept),
		RoleUsed:   resolved.String(),
		Latency:    time.Since(start),
	}
	for _, r := range kept {
		result.Sources = append(result.Sources, models.Citation{
			Filename:   r.Chunk.Filename,
			ChunkIndex: r.Chunk.Index,
			Score:      r.Score,
		})
	}

	q.logger.Info("Query answered",
		slog.String("role", resolved.String()),
		slog.Int("sources", len(result.Sources)),
		slog.Float64("confidence", result.Confidence),
		slog.Duration("latency", result.Latency))

	return result, nil
}

// rerankByRole stably reorders retrieved chunks so the role's preferred
// document types come first. Similarity ordering is preserved within each
// priority band.
func rerankByRole(retrieved []models.Retrieved, role roles.Role) []models.Retrieved {
	priorities := role.PreferredDocTypes()
	priorityOf := func(docType string) int {
		for i, p := range priorities {
			if p == docType {
				return i
			}
		}
		return len(priorities)
	}

	out := make([]models.Retrieved, len(retrieved))
	copy(out, retrieved)
	sort.SliceStable(out, func(i, j int) bool {
		return priorityOf(out[i].Chunk.DocType) < priorityOf(out[j].Chunk.DocType)
	})
	return out
}

// fitContext drops the lowest-similarity chunks until the concatenated
// context fits under the prompt cap. At least one chunk is always kept.
func (q *Querier) fitContext(kept []models.Retrieved) []models.Retrieved {
	for len(kept) > 1 && contextChars(kept) > q.config.MaxContextChars {
		lowest := 0
		for i := 1; i < len(kept); i++ {
			if kept[i].Score < kept[lowest].Score {
				lowest = i
			}
		}
		kept = append(kept[:lowest], kept[lowest+1:]...)
	}
	return kept
}

func contextChars(kept []models.Retrieved) int {
	total := 0
	for _, r := range kept {
		total += len(r.Chunk.Filename) + len(r.Chunk.Text)
	}
	return total
}

// buildUserPrompt concatenates retrieved context, each chunk prefixed with
// its source filename, followed by the user's question.
func buildUserPrompt(kept []models.Retrieved, question string) string {
	var b strings.Builder
	b.WriteString("Context from documents:\n")
	for _, r := range kept {
		fmt.Fprintf(&b, "Source: %s\n%s\n\n", r.Chunk.Filename, r.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide a clear, natural answer based on the context.")
	return b.String()
}

func meanScore(kept []models.Retrieved) float64 {
	if len(kept) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range kept {
		sum += r.Score
	}
	return sum / float64(len(kept))
}
