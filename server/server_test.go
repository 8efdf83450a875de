package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/payrag/internal/types"
	"github.com/xhad/payrag/pkg/classifier"
	"github.com/xhad/payrag/pkg/extractor"
	"github.com/xhad/payrag/pkg/pipeline"
	"github.com/xhad/payrag/pkg/store"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

type fakeGenerator struct {
	answer string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.answer, nil
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()

	kb := store.NewMemoryStore()
	emb := &fakeEmbedder{}

	ingestor, err := pipeline.NewIngestor(
		extractor.New(nil),
		classifier.New(nil),
		emb,
		kb,
		types.IngestConfig{ChunkSize: 200, ChunkOverlap: 20},
		nil,
	)
	require.NoError(t, err)

	querier := pipeline.NewQuerier(emb, kb,
		&fakeGenerator{answer: "Transactions succeeded."},
		types.RetrievalConfig{}, nil)

	srv, err := New(Config{
		Addr:      ":0",
		UploadDir: t.TempDir(),
	}, ingestor, querier, kb, nil)
	require.NoError(t, err)

	return srv, kb
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

const upiJSON = `{
	"description": "UPI transaction log for merchant payments",
	"transactions": ["TXN0000000001 success", "TXN0000000002 failed"],
	"customer": "amount transferred via vpa"
}`

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/documents/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "healthy")
	}
}

func TestUploadDocument(t *testing.T) {
	srv, kb := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string]string{"upi_log.json": upiJSON})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "upi_log.json", resp.Filename)
	assert.Equal(t, "upi_transaction", resp.DocType)
	assert.Greater(t, resp.ChunksIndexed, 0)

	count, err := kb.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.ChunksIndexed, count)

	// Raw upload retained on disk
	saved, err := os.ReadFile(filepath.Join(srv.config.UploadDir, "upi_log.json"))
	require.NoError(t, err)
	assert.Equal(t, upiJSON, string(saved))
}

func TestUploadUnsupportedFormat(t *testing.T) {
	srv, kb := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string]string{"notes.txt": "plain notes"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_format")

	count, err := kb.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUploadMissingFileField(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartBody(t, "wrong_field", map[string]string{"a.json": "{}"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadBatchPartialFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartBody(t, "files", map[string]string{
		"upi_log.json": upiJSON,
		"notes.txt":    "not ingestible",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload-batch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Total      int         `json:"total"`
		Successful int         `json:"successful"`
		Failed     int         `json:"failed"`
		Results    []batchItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)

	for _, item := range resp.Results {
		if item.Filename == "upi_log.json" {
			assert.True(t, item.Success)
			assert.Equal(t, "upi_transaction", item.DocType)
		} else {
			assert.False(t, item.Success)
			assert.Equal(t, "unsupported_format", item.ErrorKind)
		}
	}
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string]string{"upi_log.json": upiJSON})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalDocuments int            `json:"total_documents"`
			TotalChunks    int            `json:"total_chunks"`
			ByType         map[string]int `json:"by_type"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Stats.TotalDocuments)
	assert.Greater(t, resp.Stats.TotalChunks, 0)
	assert.Equal(t, 1, resp.Stats.ByType["upi_transaction"])
}

func TestChatQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string]string{"upi_log.json": upiJSON})
	upload := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	upload.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(httptest.NewRecorder(), upload)

	payload := `{"query": "did the merchant payments succeed?", "role": "product_lead"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		RoleUsed   string  `json:"role_used"`
		Sources    []struct {
			Filename   string  `json:"filename"`
			ChunkIndex int     `json:"chunk_index"`
			Score      float64 `json:"score"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "Transactions succeeded.", resp.Answer)
	assert.Equal(t, "product_lead", resp.RoleUsed)
	assert.Greater(t, resp.Confidence, 0.0)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "upi_log.json", resp.Sources[0].Filename)
}

func TestChatQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		payload string
		status  int
	}{
		{"invalid json", "{broken", http.StatusBadRequest},
		{"empty query", `{"query": ""}`, http.StatusBadRequest},
		{"unknown role", `{"query": "hi", "role": "ceo"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/query", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestChatQueryEmptyKnowledgeBase(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{"query": "anything indexed yet?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_documents_indexed")
}

func TestWebSocketChat(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, contentType := multipartBody(t, "file", map[string]string{"upi_log.json": upiJSON})
	upload := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	upload.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(httptest.NewRecorder(), upload)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "did the merchant payments succeed?"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "response", resp.Type)
	assert.Equal(t, "Transactions succeeded.", resp.Content)
	assert.NotNil(t, resp.Data)
}

func TestWebSocketEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: ""}))

	// The failure surfaces as a caller-fault kind, not "internal"
	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "empty_query", resp.Content)
}

func TestUploadFilenameSanitized(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string]string{"../../evil.json": upiJSON})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Saved inside the upload dir, traversal stripped
	_, err := os.Stat(filepath.Join(srv.config.UploadDir, "evil.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(srv.config.UploadDir, "..", "..", "evil.json"))
	assert.True(t, os.IsNotExist(err))
}
