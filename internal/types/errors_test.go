package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{ErrUnsupportedFormat, "unsupported_format"},
		{ErrFileTooLarge, "file_too_large"},
		{ErrExtractionFailed, "extraction_error"},
		{ErrInvalidConfig, "invalid_config"},
		{ErrKnowledgeBaseUnavailable, "knowledge_base_unavailable"},
		{ErrGenerationTimeout, "generation_timeout"},
		{ErrNoDocumentsIndexed, "no_documents_indexed"},
		{ErrClassificationFailed, "classification_failed"},
		{ErrEmptyQuery, "empty_query"},
		{fmt.Errorf("wrapped: %w", ErrFileTooLarge), "file_too_large"},
		{fmt.Errorf("anything else"), "internal"},
		{nil, "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, ErrorKind(tt.err))
	}
}
