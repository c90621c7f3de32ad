package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracemetals/icpbatch/internal/model"
)

// LoadCalibration reads the ICV file: one row per element with its ICV
// target and an optional generic reference-material target.
func LoadCalibration(path string) (model.CalibrationTable, []model.Warning, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, &SchemaError{File: "ICV", Column: "element"}
	}

	header := rows[0]
	elemIdx := exactHeader(header, "element")
	if elemIdx < 0 {
		return nil, nil, &SchemaError{File: "ICV", Column: "element"}
	}
	targetIdx := exactHeader(header, "icv_target")
	if targetIdx < 0 {
		return nil, nil, &SchemaError{File: "ICV", Column: "icv_target"}
	}
	srmIdx := exactHeader(header, "srm_target") // optional

	table := model.CalibrationTable{}
	var warns []model.Warning
	for _, row := range rows[1:] {
		elem := cell(row, elemIdx)
		if elem == "" {
			continue
		}
		target, err := strconv.ParseFloat(cell(row, targetIdx), 64)
		if err != nil {
			warns = append(warns, model.Warning{
				Kind:    model.WarnFormatAnomaly,
				Subject: elem,
				Detail:  fmt.Sprintf("ICV: unusable icv_target %q; entry skipped", cell(row, targetIdx)),
			})
			continue
		}
		ct := model.CalibrationTarget{Element: elem, ICVTarget: target}
		if srmIdx >= 0 {
			if v, err := strconv.ParseFloat(cell(row, srmIdx), 64); err == nil {
				ct.SRMTarget = model.Float(v)
			}
		}
		table[elem] = ct
	}
	return table, warns, nil
}

func exactHeader(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
