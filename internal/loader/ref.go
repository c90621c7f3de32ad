package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// refLayout tags the detected shape of the reference-values file. It is
// resolved once at load time and never re-detected mid-pipeline.
type refLayout int

const (
	layoutLong refLayout = iota
	layoutWide
)

// Wide-form values are certificates in mg/kg; the pipeline's canonical
// concentration unit is µg/kg (ppb).
const wideUnitFactor = 1000

// wideLayoutMinCols is the column-shape heuristic: certificate exports carry
// one column per element and easily exceed this; hand-written long files
// have exactly three.
const wideLayoutMinCols = 11

// LoadReference reads the optional reference-material values file in either
// wide form (header row of element symbols, one row per material) or long
// form (explicit ref_name/element/target_value columns). Targets are
// returned in ppb regardless of the source layout.
func LoadReference(path string) (model.ReferenceTable, []model.Warning, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, &SchemaError{File: "reference values", Column: "ref_name"}
	}
	layout := layoutLong
	if len(rows[0]) >= wideLayoutMinCols {
		layout = layoutWide
	}
	if layout == layoutWide {
		return loadRefWide(rows)
	}
	return loadRefLong(rows)
}

// loadRefWide handles the certificate layout: row 1 holds element symbols
// from the third column on, rows 2 and 3 hold names and units and are
// discarded, and each following row is one material with its name in the
// second column.
func loadRefWide(rows [][]string) (model.ReferenceTable, []model.Warning, error) {
	symbols := make([]string, 0, len(rows[0]))
	for _, s := range rows[0][2:] {
		symbols = append(symbols, strings.TrimSpace(s))
	}
	if len(rows) <= 3 {
		return model.ReferenceTable{}, nil, nil
	}

	table := model.ReferenceTable{}
	var warns []model.Warning
	for _, row := range rows[3:] {
		name := normalize.SampleID(cell(row, 1))
		if name == "" {
			continue
		}
		for i, sym := range symbols {
			if sym == "" {
				continue
			}
			raw := cell(row, 2+i)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				warns = append(warns, model.Warning{
					Kind:    model.WarnFormatAnomaly,
					Subject: name,
					Detail:  fmt.Sprintf("reference values: unusable %s target %q; skipped", sym, raw),
				})
				continue
			}
			if table[name] == nil {
				table[name] = map[string]float64{}
			}
			table[name][sym] = v * wideUnitFactor
		}
	}
	return table, warns, nil
}

func loadRefLong(rows [][]string) (model.ReferenceTable, []model.Warning, error) {
	header := rows[0]
	nameIdx := exactHeader(header, "ref_name")
	if nameIdx < 0 {
		return nil, nil, &SchemaError{File: "reference values", Column: "ref_name"}
	}
	elemIdx := exactHeader(header, "element")
	if elemIdx < 0 {
		return nil, nil, &SchemaError{File: "reference values", Column: "element"}
	}
	valIdx := exactHeader(header, "target_value")
	if valIdx < 0 {
		return nil, nil, &SchemaError{File: "reference values", Column: "target_value"}
	}

	table := model.ReferenceTable{}
	var warns []model.Warning
	for _, row := range rows[1:] {
		name := normalize.SampleID(cell(row, nameIdx))
		elem := cell(row, elemIdx)
		if name == "" || elem == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell(row, valIdx), 64)
		if err != nil {
			warns = append(warns, model.Warning{
				Kind:    model.WarnFormatAnomaly,
				Subject: name,
				Detail:  fmt.Sprintf("reference values: unusable %s target %q; skipped", elem, cell(row, valIdx)),
			})
			continue
		}
		if table[name] == nil {
			table[name] = map[string]float64{}
		}
		table[name][elem] = v
	}
	return table, warns, nil
}
