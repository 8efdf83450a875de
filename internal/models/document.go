package models

import (
	"fmt"
	"time"
)

// IngestStatus tracks a document through the ingestion pipeline.
type IngestStatus string

const (
	StatusPending    IngestStatus = "pending"
	StatusProcessing IngestStatus = "processing"
	StatusIndexed    IngestStatus = "indexed"
	StatusFailed     IngestStatus = "failed"
)

// Document is one uploaded file after extraction.
type Document struct {
	ID         string
	Filename   string
	Size       int64
	Format     string // pdf, json or csv
	Text       string
	DocType    string
	Confidence float64
	Entities   map[string][]string
	IngestedAt time.Time
	Status     IngestStatus
}

// Chunk is a contiguous slice of a document's text. Start and End are
// character offsets into the parent text. Consecutive chunks from the same
// document overlap by the configured overlap width; the final chunk may be
// shorter.
type Chunk struct {
	DocumentID string
	Filename   string
	DocType    string
	Index      int
	Start      int
	End        int
	Text       string
	Embedding  []float32
	Entities   map[string][]string
}

// Key is the chunk's identity in the knowledge base.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s_%d", c.DocumentID, c.Index)
}

// Retrieved is a chunk returned from a similarity search.
type Retrieved struct {
	Chunk Chunk
	Score float64
}

// IngestResult reports one document's end-to-end processing.
type IngestResult struct {
	Filename      string              `json:"filename"`
	DocType       string              `json:"doc_type"`
	Confidence    float64             `json:"confidence"`
	ChunksIndexed int                 `json:"chunks_indexed"`
	ChunksFailed  int                 `json:"chunks_failed"`
	Entities      map[string][]string `json:"entities"`
	Status        IngestStatus        `json:"status"`
}

// Citation points at one chunk used to answer a query.
type Citation struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// QueryResult is the answer to one chat query.
type QueryResult struct {
	Answer     string        `json:"answer"`
	Sources    []Citation    `json:"sources"`
	Confidence float64       `json:"confidence"`
	RoleUsed   string        `json:"role_used"`
	Latency    time.Duration `json:"-"`
}

// KnowledgeBaseStats are aggregate index counters, recomputed on demand.
type KnowledgeBaseStats struct {
	TotalDocuments int            `json:"total_documents"`
	TotalChunks    int            `json:"total_chunks"`
	ByType         map[string]int `json:"by_type"`
}
