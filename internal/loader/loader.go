// Package loader reads the auxiliary batch inputs — dilution factors,
// calibration targets and reference-material values — into lookup tables
// keyed by normalized names.
package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// SchemaError reports an auxiliary file missing a required column. It is
// fatal and aborts the run.
type SchemaError struct {
	File   string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s file: missing required column %q", e.File, e.Column)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// findHeader returns the index of the first header cell containing any of
// the keywords after lowercasing, or -1.
func findHeader(header []string, keywords ...string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, kw := range keywords {
			if h == kw || strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
