package engine

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// BlankStats computes per-element mean, sample SD and detection limit
// (MDL = 3×SD) from the Blank-role measurements. Every element present in
// the input gets an entry; elements with no usable blank readings get a
// zero-valued entry flagged NoData plus a warning, so the report can surface
// the gap instead of silently treating everything as detected.
func BlankStats(ms []model.Measurement) (map[string]model.BlankStat, []model.Warning) {
	vals := map[string][]float64{}
	elements := map[string]bool{}
	for _, m := range ms {
		elements[m.Element] = true
		if normalize.Classify(m.SampleID) != model.RoleBlank || m.Raw == nil {
			continue
		}
		vals[m.Element] = append(vals[m.Element], *m.Raw)
	}

	stats := make(map[string]model.BlankStat, len(elements))
	var warns []model.Warning
	for _, elem := range sortedKeys(elements) {
		v := vals[elem]
		bs := model.BlankStat{Element: elem, N: len(v)}
		switch {
		case len(v) == 0:
			bs.NoData = true
			warns = append(warns, model.Warning{
				Kind:    model.WarnNoBlankData,
				Subject: elem,
				Detail:  "no blank observations; blank mean and detection limit default to 0",
			})
		case len(v) == 1:
			// SD is undefined for a single observation; it stays 0.
			bs.Mean = v[0]
		default:
			bs.Mean = stat.Mean(v, nil)
			bs.SD = stat.StdDev(v, nil)
		}
		bs.MDL = 3 * bs.SD
		stats[elem] = bs
	}
	return stats, warns
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
