package classifier

import (
	"regexp"
	"sort"
	"strings"
)

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`₹\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)INR\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)Rs\.?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`\$\s*([0-9,]+(?:\.[0-9]{2})?)`),
	}

	transactionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:TXN|TRANS|TRANSACTION)[_\s]*(?:ID|NUMBER)?[:\s]*([A-Z0-9]{8,20})`),
		regexp.MustCompile(`(?i)(?:REF|REFERENCE)[_\s]*(?:ID|NUMBER)?[:\s]*([A-Z0-9]{8,20})`),
		regexp.MustCompile(`\b[A-Z]{3}[0-9]{10,}\b`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}`),
	}

	endpointPattern = regexp.MustCompile(`/api/v?\d*/[\w/\-]+`)
	errorPattern    = regexp.MustCompile(`(?i)(?:error|err)[_\s]*(?:code)?[:\s]*([A-Z0-9_]{3,12})`)

	// Uppercase word runs next to bank/payments vocabulary, e.g. "HDFC Bank"
	orgPattern = regexp.MustCompile(`\b([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:Bank|Payments?|Ltd|Pvt|Corporation))\b`)
)

// ExtractEntities pulls organizations, dates, monetary amounts, transaction
// ids, API endpoints and error codes out of the text. Every list is
// deduplicated and sorted for deterministic output.
func (c *Classifier) ExtractEntities(text string) map[string][]string {
	entities := map[string][]string{
		"organizations":   collect(orgPattern, text, 1),
		"dates":           collectAll(datePatterns, text, 0),
		"amounts":         collectAll(amountPatterns, text, 1),
		"transaction_ids": collectAll(transactionPatterns, text, 1),
		"api_endpoints":   collect(endpointPattern, text, 0),
		"error_codes":     collect(errorPattern, text, 1),
	}

	for key, values := range entities {
		entities[key] = dedupe(values)
	}

	return entities
}

func collect(pattern *regexp.Regexp, text string, group int) []string {
	var out []string
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		if group < len(match) && match[group] != "" {
			out = append(out, strings.TrimSpace(match[group]))
		}
	}
	return out
}

func collectAll(patterns []*regexp.Regexp, text string, group int) []string {
	var out []string
	for _, pattern := range patterns {
		out = append(out, collect(pattern, text, group)...)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
