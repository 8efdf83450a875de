package store

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/payrag/internal/models"
	"github.com/xhad/payrag/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore is the pgvector-backed knowledge base. It is the sole owner
// of the index: chunk content, embeddings and metadata all live here.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("%w: failed to create vector extension: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			doc_type TEXT,
			chunk_index INTEGER,
			start_offset INTEGER,
			end_offset INTEGER,
			content TEXT,
			embedding vector(%d),
			entities JSONB
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	docIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, docIndex)
	if err != nil {
		return fmt.Errorf("failed to create document index: %v", err)
	}

	return nil
}

// Upsert stores chunks keyed by documentID_chunkIndex. A document's prior
// rows are deleted in the same transaction, so re-ingesting a filename
// replaces its chunks instead of duplicating them.
func (vs *VectorStore) Upsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}
	defer tx.Rollback(ctx)

	docIDs := make(map[string]struct{})
	for _, chunk := range chunks {
		docIDs[chunk.DocumentID] = struct{}{}
	}
	ids := make([]string, 0, len(docIDs))
	for id := range docIDs {
		ids = append(ids, id)
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE document_id = ANY($1)`, vs.config.TableName)
	if _, err := tx.Exec(ctx, del, ids); err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, filename, doc_type, chunk_index,
			start_offset, end_offset, content, embedding, entities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			doc_type = EXCLUDED.doc_type,
			entities = EXCLUDED.entities`,
		vs.config.TableName)

	count := 0
	for _, chunk := range chunks {
		entities, err := json.Marshal(chunk.Entities)
		if err != nil {
			return 0, fmt.Errorf("failed to encode entities: %v", err)
		}

		_, err = tx.Exec(ctx, stmt,
			chunk.Key(),
			chunk.DocumentID,
			chunk.Filename,
			chunk.DocType,
			chunk.Index,
			chunk.Start,
			chunk.End,
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(chunk.Embedding),
			entities,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %s: %v", chunk.Key(), err)
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit failed: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	return count, nil
}

// Search returns the topK nearest chunks by cosine similarity. Read-only.
func (vs *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]models.Retrieved, error) {
	query := fmt.Sprintf(`
		SELECT document_id, filename, doc_type, chunk_index, start_offset,
			end_offset, content, entities, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, chunk_index
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}
	defer rows.Close()

	var results []models.Retrieved
	for rows.Next() {
		var r models.Retrieved
		var entities []byte
		err := rows.Scan(
			&r.Chunk.DocumentID,
			&r.Chunk.Filename,
			&r.Chunk.DocType,
			&r.Chunk.Index,
			&r.Chunk.Start,
			&r.Chunk.End,
			&r.Chunk.Text,
			&entities,
			&r.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if len(entities) > 0 {
			if err := json.Unmarshal(entities, &r.Chunk.Entities); err != nil {
				return nil, fmt.Errorf("failed to decode entities: %v", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	return results, nil
}

// Stats recomputes index counters by scanning metadata; nothing is cached.
func (vs *VectorStore) Stats(ctx context.Context) (*models.KnowledgeBaseStats, error) {
	stats := &models.KnowledgeBaseStats{ByType: make(map[string]int)}

	summary := fmt.Sprintf(
		`SELECT COUNT(*), COUNT(DISTINCT document_id) FROM %s`, vs.config.TableName)
	err := vs.pool.QueryRow(ctx, summary).Scan(&stats.TotalChunks, &stats.TotalDocuments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	byType := fmt.Sprintf(
		`SELECT doc_type, COUNT(DISTINCT document_id) FROM %s GROUP BY doc_type`, vs.config.TableName)
	rows, err := vs.pool.Query(ctx, byType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %v", err)
		}
		stats.ByType[docType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}

	return stats, nil
}

// Count reports the number of stored chunks.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrKnowledgeBaseUnavailable, err)
	}
	return count, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
