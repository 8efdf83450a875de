package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xhad/payrag/internal/types"
)

// SupportedExtensions are the file formats the ingestion pipeline accepts.
var SupportedExtensions = []string{".pdf", ".json", ".csv"}

// Extractor converts uploaded PDF, JSON and CSV files into plain text
// suitable for chunking and embedding.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Supported reports whether the filename has an ingestible extension.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract dispatches on file extension and returns the extracted text.
// Unknown extensions fail with ErrUnsupportedFormat; parse failures wrap
// ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var err error

	switch ext {
	case ".pdf":
		text, err = e.extractPDF(data)
	case ".json":
		text, err = e.extractJSON(data)
	case ".csv":
		text, err = e.extractCSV(data)
	default:
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, ext)
	}

	if err != nil {
		e.logger.Error("Text extraction failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text content in %s", types.ErrExtractionFailed, filename)
	}

	e.logger.Info("Extracted text",
		slog.String("filename", filename),
		slog.Int("chars", len(text)))

	return text, nil
}
