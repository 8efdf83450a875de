package types

import "errors"

// Pipeline error taxonomy. Format, size and config errors are caller
// mistakes rejected before any side effect; knowledge-base and generation
// errors are infrastructure faults. Classification failure is non-fatal and
// only ever logged.
var (
	ErrUnsupportedFormat        = errors.New("unsupported file format")
	ErrFileTooLarge             = errors.New("file exceeds maximum size")
	ErrExtractionFailed         = errors.New("text extraction failed")
	ErrInvalidConfig            = errors.New("invalid pipeline configuration")
	ErrKnowledgeBaseUnavailable = errors.New("knowledge base unavailable")
	ErrGenerationTimeout        = errors.New("generation timed out")
	ErrNoDocumentsIndexed       = errors.New("no documents indexed")
	ErrClassificationFailed     = errors.New("classification failed")
	ErrEmptyQuery               = errors.New("query cannot be empty")
)

// ErrorKind maps an error to its stable wire identifier. Unrecognized
// errors map to "internal" so the boundary never leaks internals.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_error"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrKnowledgeBaseUnavailable):
		return "knowledge_base_unavailable"
	case errors.Is(err, ErrGenerationTimeout):
		return "generation_timeout"
	case errors.Is(err, ErrNoDocumentsIndexed):
		return "no_documents_indexed"
	case errors.Is(err, ErrClassificationFailed):
		return "classification_failed"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	default:
		return "internal"
	}
}
