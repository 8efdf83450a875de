package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// extractCSV renders a CSV file as a textual summary: header, per-column
// cardinality, then the first rows as "column: value" lines so row content
// stays searchable after chunking.
func (e *Extractor) extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("unparsable CSV: %v", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("empty CSV")
	}

	header := records[0]
	rows := records[1:]

	var parts []string
	parts = append(parts, "CSV Data Summary:")
	parts = append(parts, fmt.Sprintf("Total Rows: %d", len(rows)))
	parts = append(parts, fmt.Sprintf("Total Columns: %d", len(header)))
	parts = append(parts, fmt.Sprintf("Columns: %s", strings.Join(header, ", ")))
	parts = append(parts, "")

	parts = append(parts, "Column Information:")
	for col, name := range header {
		unique := make(map[string]struct{})
		empty := 0
		for _, row := range rows {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				empty++
				continue
			}
			unique[row[col]] = struct{}{}
		}
		parts = append(parts, fmt.Sprintf("  - %s: %d unique values, %d empty", name, len(unique), empty))
	}
	parts = append(parts, "")

	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	parts = append(parts, fmt.Sprintf("Sample Data (first %d rows):", limit))
	for i := 0; i < limit; i++ {
		fields := make([]string, 0, len(header))
		for col, name := range header {
			if col < len(rows[i]) && strings.TrimSpace(rows[i][col]) != "" {
				fields = append(fields, fmt.Sprintf("%s: %s", name, rows[i][col]))
			}
		}
		parts = append(parts, fmt.Sprintf("Row %d: %s", i+1, strings.Join(fields, " | ")))
	}

	return strings.Join(parts, "\n"), nil
}
