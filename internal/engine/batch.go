package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// Inputs carries the already-loaded tables for one batch run. Reference may
// be nil when no reference-values file was provided. Warnings accumulated
// by the parser and loaders ride along into the result.
type Inputs struct {
	Measurements []model.Measurement
	Channels     []model.Channel
	Digest       model.DilutionTable
	Calibration  model.CalibrationTable
	Reference    model.ReferenceTable
	Warnings     []model.Warning
}

// ProcessBatch runs the full pipeline over one instrument export: blank
// statistics, correction, QC recovery and channel selection. It is a pure
// sequence of transformations — rerunning it on identical inputs yields
// identical corrected values, recoveries and channel choices (only the run
// id differs).
func ProcessBatch(in Inputs, opt Options) *model.BatchResult {
	res := &model.BatchResult{
		RunID:        uuid.NewString(),
		Measurements: in.Measurements,
		Channels:     in.Channels,
		Warnings:     append([]model.Warning(nil), in.Warnings...),
	}

	blanks, warns := BlankStats(in.Measurements)
	res.Warnings = append(res.Warnings, warns...)
	for _, elem := range sortedStatKeys(blanks) {
		res.BlankStats = append(res.BlankStats, blanks[elem])
	}

	res.Corrected, warns = Correct(in.Measurements, in.Digest, blanks, opt)
	res.Warnings = append(res.Warnings, warns...)

	res.Recoveries, warns = Recoveries(res.Corrected, in.Calibration, in.Reference, opt)
	res.Warnings = append(res.Warnings, warns...)

	res.Choices = SelectChannels(in.Channels, res.Recoveries, opt)
	res.Summary = summarize(res)
	return res
}

func summarize(res *model.BatchResult) model.BatchSummary {
	roles := map[model.Role]map[string]bool{}
	for _, m := range res.Measurements {
		role := normalize.Classify(m.SampleID)
		if roles[role] == nil {
			roles[role] = map[string]bool{}
		}
		roles[role][m.SampleID] = true
	}

	s := model.BatchSummary{
		Samples:    len(roles[model.RoleRegular]),
		Blanks:     len(roles[model.RoleBlank]),
		ICVSamples: len(roles[model.RoleICV]),
		RefSamples: len(roles[model.RoleReference]),
		Elements:   len(res.Choices),
	}

	recIdx := map[chanKey]map[model.RecoveryKind]model.RecoveryResult{}
	for _, r := range res.Recoveries {
		k := chanKey{r.Element, r.ChannelID}
		if recIdx[k] == nil {
			recIdx[k] = map[model.RecoveryKind]model.RecoveryResult{}
		}
		recIdx[k][r.Kind] = r
	}
	var icvPass, refPass int
	for _, c := range res.Choices {
		kinds := recIdx[chanKey{c.Element, c.ChannelID}]
		if r, ok := kinds[model.RecoveryICV]; ok && r.Pass {
			icvPass++
		}
		if r, ok := kinds[model.RecoveryReference]; ok && r.Pass {
			refPass++
		}
	}
	if len(res.Choices) > 0 {
		s.ICVPassRate = float64(icvPass) / float64(len(res.Choices)) * 100
		s.RefPassRate = float64(refPass) / float64(len(res.Choices)) * 100
	}
	return s
}

func sortedStatKeys(m map[string]model.BlankStat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
