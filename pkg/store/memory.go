package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xhad/payrag/internal/models"
)

// MemoryStore is an in-memory knowledge base using brute-force cosine
// similarity. It backs the test suite and single-binary runs without
// Postgres; ordering guarantees match the pgvector store.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]models.Chunk // chunk key -> chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[string]models.Chunk),
	}
}

// Upsert replaces each document's previously stored chunks with the new
// batch, mirroring the pgvector transaction semantics.
func (m *MemoryStore) Upsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docIDs := make(map[string]struct{})
	for _, chunk := range chunks {
		docIDs[chunk.DocumentID] = struct{}{}
	}
	for key, existing := range m.chunks {
		if _, ok := docIDs[existing.DocumentID]; ok {
			delete(m.chunks, key)
		}
	}

	for _, chunk := range chunks {
		m.chunks[chunk.Key()] = chunk
	}
	return len(chunks), nil
}

// Search returns the topK nearest chunks by cosine similarity, ordered by
// score descending with ties broken by lower chunk index.
func (m *MemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]models.Retrieved, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]models.Retrieved, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		results = append(results, models.Retrieved{
			Chunk: chunk,
			Score: cosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*models.KnowledgeBaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.KnowledgeBaseStats{ByType: make(map[string]int)}
	docs := make(map[string]string) // document id -> doc type
	for _, chunk := range m.chunks {
		stats.TotalChunks++
		docs[chunk.DocumentID] = chunk.DocType
	}
	stats.TotalDocuments = len(docs)
	for _, docType := range docs {
		stats.ByType[docType]++
	}
	return stats, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *MemoryStore) Close() {}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
