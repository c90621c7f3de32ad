package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// LoadDigest reads the DIGEST file (per-sample dilution factors) from CSV or
// a spreadsheet, keyed by normalized sample id. Rows with an unusable factor
// are skipped with a warning; a missing required column is a SchemaError.
func LoadDigest(path string) (model.DilutionTable, []model.Warning, error) {
	var (
		rows [][]string
		err  error
	)
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") {
		rows, err = readSheet(path)
	} else {
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, &SchemaError{File: "DIGEST", Column: "sample_id"}
	}

	header := rows[0]
	sampleIdx := findHeader(header, "sample")
	if sampleIdx < 0 {
		return nil, nil, &SchemaError{File: "DIGEST", Column: "sample_id"}
	}
	dfIdx := dilutionColumn(header, sampleIdx)
	if dfIdx < 0 {
		return nil, nil, &SchemaError{File: "DIGEST", Column: "df"}
	}

	table := model.DilutionTable{}
	var warns []model.Warning
	for _, row := range rows[1:] {
		id := normalize.SampleID(cell(row, sampleIdx))
		if id == "" {
			continue
		}
		raw := cell(row, dfIdx)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			warns = append(warns, model.Warning{
				Kind:    model.WarnFormatAnomaly,
				Subject: id,
				Detail:  fmt.Sprintf("DIGEST: unusable dilution factor %q; entry skipped", raw),
			})
			continue
		}
		table[id] = v
	}
	return table, warns, nil
}

// dilutionColumn matches the factor column: "df" exactly, or any header
// mentioning dilution, ignoring the sample column.
func dilutionColumn(header []string, sampleIdx int) int {
	for i, h := range header {
		if i == sampleIdx {
			continue
		}
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "df" || strings.Contains(h, "dilution") {
			return i
		}
	}
	return -1
}

// readSheet loads the first sheet of an Excel workbook as string rows.
func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
