package classifier

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xhad/payrag/internal/types"
)

// DocTypeUnknown is assigned when classification fails or finds nothing.
const DocTypeUnknown = "unknown"

// Known payment document types.
const (
	DocTypeUPITransaction  = "upi_transaction"
	DocTypeBankAPIResponse = "bank_api_response"
	DocTypeComplianceRep   = "compliance_report"
	DocTypePartnershipSLA  = "partnership_sla"
)

// DocTypes lists every label the classifier can assign, unknown excluded.
var DocTypes = []string{
	DocTypeUPITransaction,
	DocTypeBankAPIResponse,
	DocTypeComplianceRep,
	DocTypePartnershipSLA,
}

// patterns are the keywords that identify each document type.
var patterns = map[string][]string{
	DocTypeUPITransaction: {
		"upi", "transaction", "payment", "transfer", "vpa", "merchant",
		"customer", "amount", "success", "failed",
	},
	DocTypeBankAPIResponse: {
		"api", "endpoint", "response", "status code", "latency",
		"integration", "webhook", "callback",
	},
	DocTypeComplianceRep: {
		"compliance", "audit", "kyc", "aml", "regulatory", "risk",
		"suspicious activity", "report",
	},
	DocTypePartnershipSLA: {
		"sla", "service level", "agreement", "uptime", "partnership",
		"contract", "penalty", "availability",
	},
}

// Classifier assigns document-type labels by keyword scoring and extracts
// structured entities with regular expressions.
type Classifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger}
}

// Classify scores the text against each document type's keyword set. The
// type with the most matches wins; a filename match adds to the score.
// Confidence scales with match strength, capped at 0.95.
func (c *Classifier) Classify(text, filename string) (string, float64, error) {
	if strings.TrimSpace(text) == "" {
		return DocTypeUnknown, 0, fmt.Errorf("%w: empty text", types.ErrClassificationFailed)
	}

	textLower := strings.ToLower(text)
	filenameLower := strings.ToLower(filename)

	scores := make(map[string]int, len(patterns))
	for docType, keywords := range patterns {
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(textLower, keyword) {
				score++
			}
			if strings.Contains(filenameLower, keyword) {
				score += 2
			}
		}
		scores[docType] = score
	}

	best := DocTypeUnknown
	bestScore := 0
	for _, docType := range DocTypes {
		if scores[docType] > bestScore {
			best = docType
			bestScore = scores[docType]
		}
	}

	if bestScore == 0 {
		return DocTypeUnknown, 0, fmt.Errorf("%w: no keyword matches", types.ErrClassificationFailed)
	}

	// 3+ keyword hits is a strong pattern match
	confidence := 0.5 + 0.15*float64(bestScore)
	if confidence > 0.95 {
		confidence = 0.95
	}

	c.logger.Debug("Classified document",
		slog.String("filename", filename),
		slog.String("doc_type", best),
		slog.Int("score", bestScore))

	return best, confidence, nil
}
