package engine

import (
	"fmt"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// Correct applies blank subtraction, the dilution factor and unit scaling to
// every non-Blank measurement:
//
//	corrected = (raw − blank_mean[element]) × df ÷ divisor
//
// Blank-role rows are excluded from the output entirely. Samples absent from
// the DIGEST table fall back to the default factor; the df_was_missing flag
// and a warning are raised only for regular and duplicate samples, since QC
// standards are not expected in DIGEST.
func Correct(ms []model.Measurement, digest model.DilutionTable, blanks map[string]model.BlankStat, opt Options) ([]model.CorrectedMeasurement, []model.Warning) {
	out := make([]model.CorrectedMeasurement, 0, len(ms))
	var warns []model.Warning
	warned := map[string]bool{}

	for _, m := range ms {
		role := normalize.Classify(m.SampleID)
		if role == model.RoleBlank {
			continue
		}

		cm := model.CorrectedMeasurement{Measurement: m, Role: role, DF: opt.DefaultDF}
		if df, ok := digest[m.SampleID]; ok {
			cm.DF = df
		} else if role == model.RoleRegular || role == model.RoleDuplicate {
			cm.DFMissing = true
			if !warned[m.SampleID] {
				warned[m.SampleID] = true
				warns = append(warns, model.Warning{
					Kind:    model.WarnMissingDigest,
					Subject: m.SampleID,
					Detail:  fmt.Sprintf("sample not found in DIGEST; dilution factor defaults to %g", opt.DefaultDF),
				})
			}
		}

		if m.Raw != nil {
			bs := blanks[m.Element]
			sub := *m.Raw - bs.Mean
			cm.BelowDetection = sub < bs.MDL
			v := sub * cm.DF / opt.Divisor
			if opt.ClampNegative && v < 0 {
				v = 0
				cm.Clamped = true
			}
			cm.Corrected = model.Float(v)
		}
		out = append(out, cm)
	}
	return out, warns
}
