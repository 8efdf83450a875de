package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/xhad/payrag/internal/models"
	"github.com/xhad/payrag/internal/types"
	"github.com/xhad/payrag/pkg/pipeline"
	"github.com/xhad/payrag/pkg/roles"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Addr      string
	UploadDir string
	MaxUpload int64
}

// Server is the thin HTTP boundary over the ingestion and query pipelines.
type Server struct {
	config   Config
	ingestor *pipeline.Ingestor
	querier  *pipeline.Querier
	kb       types.KnowledgeBase
	logger   *slog.Logger
}

func New(config Config, ingestor *pipeline.Ingestor, querier *pipeline.Querier, kb types.KnowledgeBase, logger *slog.Logger) (*Server, error) {
	if config.UploadDir == "" {
		config.UploadDir = "uploads"
	}
	if config.MaxUpload == 0 {
		config.MaxUpload = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %v", err)
	}

	return &Server{
		config:   config,
		ingestor: ingestor,
		querier:  querier,
		kb:       kb,
		logger:   logger,
	}, nil
}

// Router wires the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/documents/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/documents/upload-batch", s.handleUploadBatch).Methods("POST")
	api.HandleFunc("/documents/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/documents/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/chat/query", s.handleChatQuery).Methods("POST")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket)

	return r
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	s.logger.Info("Starting HTTP server", slog.String("addr", s.config.Addr))
	return srv.ListenAndServe()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.logger.Info("Request handled",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}

type uploadResponse struct {
	Success       bool                `json:"success"`
	Filename      string              `json:"filename"`
	DocType       string              `json:"doc_type"`
	Confidence    float64             `json:"confidence"`
	ChunksIndexed int                 `json:"chunks_indexed"`
	Entities      map[string][]string `json:"entities"`
}

// batchItem is the discriminated per-file result for batch uploads: either
// the ingest fields are populated (success) or detail/error_kind are.
type batchItem struct {
	Filename      string              `json:"filename"`
	Success       bool                `json:"success"`
	DocType       string              `json:"doc_type,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
	ChunksIndexed int                 `json:"chunks_indexed,omitempty"`
	Entities      map[string][]string `json:"entities,omitempty"`
	Detail        string              `json:"detail,omitempty"`
	ErrorKind     string              `json:"error_kind,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to parse multipart form", "bad_request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field", "bad_request")
		return
	}
	defer file.Close()

	result, err := s.ingestUpload(r, file, header)
	if err != nil {
		status := http.StatusInternalServerError
		if pipeline.IsCallerError(err) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error(), types.ErrorKind(err))
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success:       true,
		Filename:      result.Filename,
		DocType:       result.DocType,
		Confidence:    result.Confidence,
		ChunksIndexed: result.ChunksIndexed,
		Entities:      result.Entities,
	})
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to parse multipart form", "bad_request")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		s.writeError(w, http.StatusBadRequest, "missing files field", "bad_request")
		return
	}

	headers := r.MultipartForm.File["files"]
	results := make([]batchItem, 0, len(headers))
	successful := 0

	// One file's failure never aborts the rest of the batch.
	for _, header := range headers {
		item := s.ingestBatchFile(r, header)
		if item.Success {
			successful++
		}
		results = append(results, item)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      len(headers),
		"successful": successful,
		"failed":     len(headers) - successful,
		"results":    results,
	})
}

func (s *Server) ingestBatchFile(r *http.Request, header *multipart.FileHeader) batchItem {
	file, err := header.Open()
	if err != nil {
		return batchItem{Filename: header.Filename, Detail: "failed to open file", ErrorKind: "bad_request"}
	}
	defer file.Close()

	result, err := s.ingestUpload(r, file, header)
	if err != nil {
		return batchItem{
			Filename:  header.Filename,
			Detail:    err.Error(),
			ErrorKind: types.ErrorKind(err),
		}
	}

	return batchItem{
		Filename:      result.Filename,
		Success:       true,
		DocType:       result.DocType,
		Confidence:    result.Confidence,
		ChunksIndexed: result.ChunksIndexed,
		Entities:      result.Entities,
	}
}

// ingestUpload reads the upload, retains the raw file under the uploads
// directory (overwriting any previous upload of the same name) and runs the
// ingestion pipeline.
func (s *Server) ingestUpload(r *http.Request, file multipart.File, header *multipart.FileHeader) (*models.IngestResult, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %v", err)
	}

	filename := filepath.Base(header.Filename)

	result, err := s.ingestor.Ingest(r.Context(), data, filename)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(s.config.UploadDir, filename)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		s.logger.Warn("Failed to retain uploaded file",
			slog.String("path", dest),
			slog.String("error", err.Error()))
	}

	return result, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.kb.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), types.ErrorKind(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "payrag",
	})
}

type chatRequest struct {
	Query string `json:"query"`
	Role  string `json:"role"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", "bad_request")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required", "bad_request")
		return
	}

	role, err := roles.Parse(req.Role)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	result, err := s.querier.Query(r.Context(), req.Query, role, req.TopK)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrNoDocumentsIndexed) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error(), types.ErrorKind(err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":     result.Answer,
		"sources":    result.Sources,
		"confidence": result.Confidence,
		"role_used":  result.RoleUsed,
	})
}

// Message is one websocket chat frame.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Role    string      `json:"role,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: "invalid message"})
			continue
		}

		role, err := roles.Parse(msg.Role)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
			continue
		}

		result, err := s.querier.Query(r.Context(), msg.Content, role, 0)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: types.ErrorKind(err)})
			continue
		}

		s.sendMessage(conn, Message{
			Type:    "response",
			Content: result.Answer,
			Data:    result,
		})
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Error("Error sending message", slog.String("error", err.Error()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail, kind string) {
	s.writeJSON(w, status, map[string]string{
		"detail":     detail,
		"error_kind": kind,
	})
}
