package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tracemetals/icpbatch/internal/utils"
)

// Workbook styling mirrors the bench convention: concentrations at three
// decimals, below-detection cells red, samples without a DIGEST entry
// yellow, failed QC recoveries red.
const (
	fillBDL     = "FFC7CE"
	fillMissing = "FFEB9C"
	fontFail    = "9C0006"
)

type styles struct {
	conc        int
	concBDL     int
	concMissing int
	pct         int
	pctFail     int
}

// sheetWriter wraps excelize with a sticky error so the sheet-building code
// stays linear.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) set(sheet, cell string, v any) {
	if w.err == nil {
		w.err = w.f.SetCellValue(sheet, cell, v)
	}
}

func (w *sheetWriter) style(sheet, from, to string, id int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(sheet, from, to, id)
	}
}

func (w *sheetWriter) row(sheet string, rowIdx int, values ...any) {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowIdx)
		if err != nil {
			if w.err == nil {
				w.err = err
			}
			return
		}
		w.set(sheet, cell, v)
	}
}

// WriteWorkbook renders the report into an .xlsx workbook at path. Sheets:
// the wide corrected table, the long per-channel table, the QC summary and
// the below-detection listing. The file is written atomically.
func WriteWorkbook(path string, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("workbook styles: %w", err)
	}

	wideName := fmt.Sprintf("Corrected %s (Wide)", rep.UnitLabel)
	longName := fmt.Sprintf("Corrected %s (Long)", rep.UnitLabel)
	if err := f.SetSheetName("Sheet1", wideName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{longName, "QC Summary", "Below Detection Limit"} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %q: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	writeWide(w, wideName, rep, st)
	writeLong(w, longName, rep)
	writeQC(w, "QC Summary", rep, st)
	writeBDL(w, "Below Detection Limit", rep)
	if w.err != nil {
		return fmt.Errorf("build workbook: %w", w.err)
	}

	_ = f.SetDocProps(&excelize.DocProperties{
		Creator:    "icpbatch",
		Identifier: rep.RunID,
		Title:      "ICP-MS batch results",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize workbook: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	concFmt := "0.000"
	pctFmt := `0"%"`
	var st styles
	var err error
	if st.conc, err = f.NewStyle(&excelize.Style{CustomNumFmt: &concFmt}); err != nil {
		return st, err
	}
	if st.concBDL, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &concFmt,
		Fill:         excelize.Fill{Type: "pattern", Color: []string{fillBDL}, Pattern: 1},
		Font:         &excelize.Font{Color: fontFail},
	}); err != nil {
		return st, err
	}
	if st.concMissing, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &concFmt,
		Fill:         excelize.Fill{Type: "pattern", Color: []string{fillMissing}, Pattern: 1},
		Font:         &excelize.Font{Color: fontFail, Bold: true},
	}); err != nil {
		return st, err
	}
	if st.pct, err = f.NewStyle(&excelize.Style{CustomNumFmt: &pctFmt}); err != nil {
		return st, err
	}
	if st.pctFail, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &pctFmt,
		Fill:         excelize.Fill{Type: "pattern", Color: []string{fillBDL}, Pattern: 1},
		Font:         &excelize.Font{Color: fontFail},
	}); err != nil {
		return st, err
	}
	return st, nil
}

func writeWide(w *sheetWriter, sheet string, rep *Report, st styles) {
	header := make([]any, 0, len(rep.Elements)+1)
	header = append(header, "sample_id")
	maxSample := len("sample_id")
	for _, e := range rep.Elements {
		header = append(header, e)
	}
	w.row(sheet, 1, header...)

	for i, row := range rep.Wide {
		rowIdx := i + 2
		w.row(sheet, rowIdx, row.SampleID)
		if len(row.SampleID) > maxSample {
			maxSample = len(row.SampleID)
		}
		for j, cell := range row.Cells {
			name, err := excelize.CoordinatesToCellName(j+2, rowIdx)
			if err != nil {
				w.err = err
				return
			}
			style := st.conc
			switch {
			case row.DFMissing || cell.DFMissing:
				style = st.concMissing
			case cell.BelowDetection:
				style = st.concBDL
			}
			w.style(sheet, name, name, style)
			if cell.Value != nil {
				w.set(sheet, name, *cell.Value)
			}
		}
	}

	if w.err == nil {
		width := float64(maxSample + 2)
		if width > 30 {
			width = 30
		}
		w.err = w.f.SetColWidth(sheet, "A", "A", width)
	}
	if w.err == nil && len(rep.Elements) > 0 {
		last, _ := excelize.ColumnNumberToName(len(rep.Elements) + 1)
		w.err = w.f.SetColWidth(sheet, "B", last, 10)
	}
}

func writeLong(w *sheetWriter, sheet string, rep *Report) {
	w.row(sheet, 1, "sample_id", "role", "element", "channel_id", "acq_time",
		"raw_conc", "df", "df_missing", "corrected", "below_detection")
	for i, c := range rep.Long {
		rowIdx := i + 2
		vals := []any{c.SampleID, c.Role.String(), c.Element, c.ChannelID, c.AcqTime,
			nil, c.DF, c.DFMissing, nil, c.BelowDetection}
		if c.Raw != nil {
			vals[5] = *c.Raw
		}
		if c.Corrected != nil {
			vals[8] = *c.Corrected
		}
		w.row(sheet, rowIdx, vals...)
	}
	autoWidth(w, sheet, []string{"sample_id", "role", "element", "channel_id", "acq_time",
		"raw_conc", "df", "df_missing", "corrected", "below_detection"})
}

func writeQC(w *sheetWriter, sheet string, rep *Report, st styles) {
	w.row(sheet, 1, "element", "selected_channel_id", "reason",
		"icv_recovery_pct", "icv_pass", "ref_recovery_pct", "ref_pass")
	for i, q := range rep.QC {
		rowIdx := i + 2
		vals := []any{q.Element, q.ChannelID, q.Reason.String(), nil, q.ICVPass, nil, q.RefPass}
		if q.ICVRecovery != nil {
			vals[3] = *q.ICVRecovery
		}
		if q.RefRecovery != nil {
			vals[5] = *q.RefRecovery
		}
		w.row(sheet, rowIdx, vals...)

		styleRecovery(w, sheet, 4, rowIdx, q.ICVRecovery, q.ICVPass, st)
		styleRecovery(w, sheet, 6, rowIdx, q.RefRecovery, q.RefPass, st)
	}
	autoWidth(w, sheet, []string{"element", "selected_channel_id", "reason",
		"icv_recovery_pct", "icv_pass", "ref_recovery_pct", "ref_pass"})
}

func styleRecovery(w *sheetWriter, sheet string, col, rowIdx int, recovery *float64, pass bool, st styles) {
	name, err := excelize.CoordinatesToCellName(col, rowIdx)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return
	}
	style := st.pct
	if recovery != nil && !pass {
		style = st.pctFail
	}
	w.style(sheet, name, name, style)
}

func writeBDL(w *sheetWriter, sheet string, rep *Report) {
	w.row(sheet, 1, "sample_id", "element", "channel_id", "raw_conc", "avg_blank", "mdl")
	for i, b := range rep.BDL {
		w.row(sheet, i+2, b.SampleID, b.Element, b.ChannelID, b.Raw, b.BlankMean, b.MDL)
	}
	autoWidth(w, sheet, []string{"sample_id", "element", "channel_id", "raw_conc", "avg_blank", "mdl"})
}

// autoWidth sizes columns off their header names; values in these sheets
// are short.
func autoWidth(w *sheetWriter, sheet string, headers []string) {
	if w.err != nil {
		return
	}
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			w.err = err
			return
		}
		width := float64(len(h) + 4)
		if width < 12 {
			width = 12
		}
		if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
			w.err = err
			return
		}
	}
}
