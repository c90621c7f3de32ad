// Package report pivots a finished batch result into the tables the output
// sink renders: the wide samples×elements view, the long per-channel view,
// the QC summary and the below-detection listing. It groups and annotates
// only — all numbers were computed upstream.
package report

import (
	"sort"

	"github.com/tracemetals/icpbatch/internal/model"
)

// Cell is one wide-table value with its rendering annotations. The sink must
// be able to style cells from these flags without recomputing anything.
type Cell struct {
	Value          *float64
	BelowDetection bool
	DFMissing      bool
}

// WideRow is one sample across the chosen channel of every element.
type WideRow struct {
	SampleID  string
	DFMissing bool
	Cells     []Cell // parallel to Report.Elements
}

// QCRow summarizes one element: the selected channel and its recoveries.
type QCRow struct {
	Element     string
	ChannelID   string
	Reason      model.ChoiceReason
	ICVRecovery *float64
	ICVPass     bool
	RefRecovery *float64
	RefPass     bool
}

// BDLRow is one below-detection reading.
type BDLRow struct {
	SampleID  string
	Element   string
	ChannelID string
	Raw       float64
	BlankMean float64
	MDL       float64
}

// Report is everything the output sink needs to render a workbook.
type Report struct {
	RunID      string
	UnitLabel  string
	Elements   []string
	Wide       []WideRow
	Long       []model.CorrectedMeasurement
	QC         []QCRow
	BDL        []BDLRow
	BlankStats []model.BlankStat
	Warnings   []model.Warning
	Summary    model.BatchSummary
}

// UnitLabel names the output concentration unit for a divisor setting.
func UnitLabel(divisor float64) string {
	if divisor == 1000 {
		return "ppm"
	}
	return "ppb"
}

// Assemble pivots the batch result. The wide view carries regular samples
// only, restricted to each element's chosen channel; the long view retains
// every corrected row on every channel.
func Assemble(res *model.BatchResult, divisor float64) *Report {
	rep := &Report{
		RunID:      res.RunID,
		UnitLabel:  UnitLabel(divisor),
		Long:       res.Corrected,
		BlankStats: res.BlankStats,
		Warnings:   res.Warnings,
		Summary:    res.Summary,
	}

	chosen := map[string]string{} // element → channel id
	for _, c := range res.Choices {
		chosen[c.Element] = c.ChannelID
		rep.Elements = append(rep.Elements, c.Element)
	}
	sort.Strings(rep.Elements)

	// Index corrected rows by (sample, channel) for the pivot, and collect
	// the wide view's sample set.
	type cellKey struct{ sample, channel string }
	byCell := map[cellKey]model.CorrectedMeasurement{}
	dfMissing := map[string]bool{}
	samples := map[string]bool{}
	for _, c := range res.Corrected {
		byCell[cellKey{c.SampleID, c.ChannelID}] = c
		if c.Role == model.RoleRegular {
			samples[c.SampleID] = true
			if c.DFMissing {
				dfMissing[c.SampleID] = true
			}
		}
	}
	sampleIDs := make([]string, 0, len(samples))
	for s := range samples {
		sampleIDs = append(sampleIDs, s)
	}
	sort.Strings(sampleIDs)

	for _, s := range sampleIDs {
		row := WideRow{SampleID: s, DFMissing: dfMissing[s]}
		for _, elem := range rep.Elements {
			var cell Cell
			if c, ok := byCell[cellKey{s, chosen[elem]}]; ok {
				cell = Cell{Value: c.Corrected, BelowDetection: c.BelowDetection, DFMissing: c.DFMissing}
			}
			row.Cells = append(row.Cells, cell)
		}
		rep.Wide = append(rep.Wide, row)
	}

	rep.QC = qcRows(res)
	rep.BDL = bdlRows(res)
	return rep
}

func qcRows(res *model.BatchResult) []QCRow {
	type recKey struct {
		elem, ch string
		kind     model.RecoveryKind
	}
	recs := map[recKey]model.RecoveryResult{}
	for _, r := range res.Recoveries {
		recs[recKey{r.Element, r.ChannelID, r.Kind}] = r
	}

	rows := make([]QCRow, 0, len(res.Choices))
	for _, c := range res.Choices {
		row := QCRow{Element: c.Element, ChannelID: c.ChannelID, Reason: c.Reason}
		if r, ok := recs[recKey{c.Element, c.ChannelID, model.RecoveryICV}]; ok {
			row.ICVRecovery = r.Recovery
			row.ICVPass = r.Pass
		}
		if r, ok := recs[recKey{c.Element, c.ChannelID, model.RecoveryReference}]; ok {
			row.RefRecovery = r.Recovery
			row.RefPass = r.Pass
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Element < rows[j].Element })
	return rows
}

func bdlRows(res *model.BatchResult) []BDLRow {
	stats := map[string]model.BlankStat{}
	for _, bs := range res.BlankStats {
		stats[bs.Element] = bs
	}
	var rows []BDLRow
	for _, c := range res.Corrected {
		if !c.BelowDetection || c.Raw == nil {
			continue
		}
		bs := stats[c.Element]
		rows = append(rows, BDLRow{
			SampleID:  c.SampleID,
			Element:   c.Element,
			ChannelID: c.ChannelID,
			Raw:       *c.Raw,
			BlankMean: bs.Mean,
			MDL:       bs.MDL,
		})
	}
	return rows
}
