package engine

import (
	"math"
	"sort"

	"github.com/tracemetals/icpbatch/internal/model"
)

// SelectChannels picks one channel per element. Policy, in order:
//
//  1. exactly one channel passes both the ICV and the reference check;
//  2. otherwise the channel whose reference recovery is numerically closest
//     to 100% (falling back to ICV recovery when no reference recovery is
//     defined), ties broken by lowest channel id;
//  3. a single-channel element is chosen trivially.
func SelectChannels(channels []model.Channel, recs []model.RecoveryResult, opt Options) []model.ChannelChoice {
	byElem := map[string][]string{}
	seen := map[chanKey]bool{}
	for _, c := range channels {
		k := chanKey{c.Element, c.ID}
		if seen[k] {
			continue
		}
		seen[k] = true
		byElem[c.Element] = append(byElem[c.Element], c.ID)
	}

	recIdx := map[chanKey]map[model.RecoveryKind]model.RecoveryResult{}
	for _, r := range recs {
		k := chanKey{r.Element, r.ChannelID}
		if recIdx[k] == nil {
			recIdx[k] = map[model.RecoveryKind]model.RecoveryResult{}
		}
		recIdx[k][r.Kind] = r
	}

	elements := make([]string, 0, len(byElem))
	for e := range byElem {
		elements = append(elements, e)
	}
	sort.Strings(elements)

	var out []model.ChannelChoice
	for _, elem := range elements {
		ids := byElem[elem]
		sort.Strings(ids)
		if len(ids) == 1 {
			out = append(out, model.ChannelChoice{Element: elem, ChannelID: ids[0], Reason: model.ReasonOnlyChannel})
			continue
		}

		var bothPass []string
		for _, id := range ids {
			kinds := recIdx[chanKey{elem, id}]
			icv, icvOK := kinds[model.RecoveryICV]
			ref, refOK := kinds[model.RecoveryReference]
			if icvOK && icv.Pass && refOK && ref.Pass {
				bothPass = append(bothPass, id)
			}
		}
		if len(bothPass) == 1 {
			out = append(out, model.ChannelChoice{Element: elem, ChannelID: bothPass[0], Reason: model.ReasonBothPass})
			continue
		}

		chosen := closestTo100(ids, elem, recIdx, model.RecoveryReference)
		if chosen == "" {
			chosen = closestTo100(ids, elem, recIdx, model.RecoveryICV)
		}
		if chosen == "" {
			chosen = ids[0]
		}
		out = append(out, model.ChannelChoice{Element: elem, ChannelID: chosen, Reason: model.ReasonClosestTo100})
	}
	return out
}

// closestTo100 returns the channel whose recovery of the given kind is
// nearest 100%, or "" when none of the channels has a defined recovery.
// Inputs are sorted, so strict comparison keeps the lowest id on ties.
func closestTo100(ids []string, elem string, recIdx map[chanKey]map[model.RecoveryKind]model.RecoveryResult, kind model.RecoveryKind) string {
	best := ""
	bestDist := math.Inf(1)
	for _, id := range ids {
		r, ok := recIdx[chanKey{elem, id}][kind]
		if !ok || r.Recovery == nil {
			continue
		}
		d := math.Abs(*r.Recovery - 100)
		if d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best
}
