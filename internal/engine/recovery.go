package engine

import (
	"fmt"
	"sort"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

type chanKey struct {
	elem string
	ch   string
}

// Recoveries computes ICV and reference-material recovery percentages, one
// RecoveryResult per (element, channel, kind). Several QC readings on the
// same channel are aggregated by mean. Reference targets resolve from the
// reference-values table for the material named in the sample id, falling
// back to the calibration file's generic srm_target; when neither resolves
// the recovery stays undefined and the result fails with NoTarget set.
func Recoveries(corr []model.CorrectedMeasurement, calib model.CalibrationTable, refs model.ReferenceTable, opt Options) ([]model.RecoveryResult, []model.Warning) {
	type icvAgg struct {
		sum float64
		n   int
	}
	type refAgg struct {
		recoveries []float64
		rows       int
	}
	icvs := map[chanKey]*icvAgg{}
	refAggs := map[chanKey]*refAgg{}

	var warns []model.Warning
	warned := map[string]bool{}
	warnOnce := func(kind model.WarningKind, subject, detail string) {
		k := string(kind) + "|" + subject + "|" + detail
		if !warned[k] {
			warned[k] = true
			warns = append(warns, model.Warning{Kind: kind, Subject: subject, Detail: detail})
		}
	}

	for _, c := range corr {
		if c.Corrected == nil {
			continue
		}
		k := chanKey{c.Element, c.ChannelID}
		switch c.Role {
		case model.RoleICV:
			a := icvs[k]
			if a == nil {
				a = &icvAgg{}
				icvs[k] = a
			}
			a.sum += *c.Corrected
			a.n++
		case model.RoleReference:
			a := refAggs[k]
			if a == nil {
				a = &refAgg{}
				refAggs[k] = a
			}
			a.rows++
			name, ok := normalize.RefName(c.SampleID)
			if !ok {
				warnOnce(model.WarnUnmatchedReference, c.SampleID,
					"reference sample id does not follow SRM_<NAME>_<n>; no target resolved")
				continue
			}
			target, ok := refTarget(refs, calib, name, c.Element)
			if !ok {
				warnOnce(model.WarnNoTarget, c.Element,
					fmt.Sprintf("no reference target for material %s", name))
				continue
			}
			a.recoveries = append(a.recoveries, *c.Corrected/target*100)
		}
	}

	var out []model.RecoveryResult
	for _, k := range sortedChanKeys(icvs) {
		a := icvs[k]
		r := model.RecoveryResult{Element: k.elem, ChannelID: k.ch, Kind: model.RecoveryICV}
		ct, ok := calib[k.elem]
		if !ok || ct.ICVTarget <= 0 {
			r.NoTarget = true
			warnOnce(model.WarnNoTarget, k.elem, "no icv_target in the calibration file")
		} else {
			rec := a.sum / float64(a.n) / ct.ICVTarget * 100
			r.Recovery = model.Float(rec)
			r.Pass = rec >= opt.ICVLow && rec <= opt.ICVHigh
		}
		out = append(out, r)
	}
	for _, k := range sortedChanKeys(refAggs) {
		a := refAggs[k]
		r := model.RecoveryResult{Element: k.elem, ChannelID: k.ch, Kind: model.RecoveryReference}
		if len(a.recoveries) == 0 {
			r.NoTarget = true
		} else {
			var sum float64
			for _, v := range a.recoveries {
				sum += v
			}
			rec := sum / float64(len(a.recoveries))
			r.Recovery = model.Float(rec)
			r.Pass = rec >= opt.RefLow && rec <= opt.RefHigh
		}
		out = append(out, r)
	}
	return out, warns
}

// refTarget resolves the target value for (material, element). The optional
// reference-values file wins over the calibration file's generic srm_target.
func refTarget(refs model.ReferenceTable, calib model.CalibrationTable, name, elem string) (float64, bool) {
	if byElem, ok := refs[name]; ok {
		if v, ok := byElem[elem]; ok && v > 0 {
			return v, true
		}
	}
	if ct, ok := calib[elem]; ok && ct.SRMTarget != nil && *ct.SRMTarget > 0 {
		return *ct.SRMTarget, true
	}
	return 0, false
}

func sortedChanKeys[V any](m map[chanKey]V) []chanKey {
	keys := make([]chanKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].elem != keys[j].elem {
			return keys[i].elem < keys[j].elem
		}
		return keys[i].ch < keys[j].ch
	})
	return keys
}
