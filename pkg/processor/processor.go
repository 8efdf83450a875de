package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xhad/payrag/internal/models"
	"github.com/xhad/payrag/internal/types"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor splits extracted text into fixed-size overlapping chunks.
// Offsets are character (rune) positions into the cleaned parent text, and
// consecutive chunk starts differ by exactly ChunkSize-ChunkOverlap.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	// Zero overlap with an explicit chunk size is a valid configuration;
	// defaults apply only when no size was given at all.
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 50
		}
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap %d must be less than chunk_size %d",
			types.ErrInvalidConfig, config.ChunkOverlap, config.ChunkSize)
	}

	return &Processor{config: config}, nil
}

// Process chunks a document's text. Chunk metadata (doc type, filename,
// entities) is copied from the parent so each chunk is self-describing in
// the index.
func (p *Processor) Process(doc *models.Document) []models.Chunk {
	text := cleanText(doc.Text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	stride := p.config.ChunkSize - p.config.ChunkOverlap

	var chunks []models.Chunk
	for start, index := 0, 0; start < len(runes); start, index = start+stride, index+1 {
		end := start + p.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, models.Chunk{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			DocType:    doc.DocType,
			Index:      index,
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
			Entities:   doc.Entities,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// cleanText collapses runs of whitespace and strips invalid UTF-8 so the
// text is stable for offset bookkeeping and safe for storage.
func cleanText(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}
