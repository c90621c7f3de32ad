// Package normalize canonicalizes sample identifiers so that the instrument
// export, the DIGEST file and the reference-values file can be matched
// against each other, and derives the QC role of a sample from its name.
package normalize

import (
	"strconv"
	"strings"

	"github.com/tracemetals/icpbatch/internal/model"
)

// SampleID canonicalizes a raw sample name: trimmed, uppercased, runs of
// whitespace collapsed to a single underscore. Total; never fails.
func SampleID(raw string) string {
	fields := strings.Fields(strings.ToUpper(raw))
	return strings.Join(fields, "_")
}

// roleRules is the classification decision table, evaluated in order.
// Duplicate is checked first so a duplicated QC sample is excluded from QC
// statistics too.
var roleRules = []struct {
	match func(string) bool
	role  model.Role
}{
	{containsWord("DUP"), model.RoleDuplicate},
	{containsWord("BLANK"), model.RoleBlank},
	{containsWord("ICV"), model.RoleICV},
	{containsAny("SRM", "NIST", "CRM", "USGS"), model.RoleReference},
}

func containsWord(w string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, w) }
}

func containsAny(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}
}

// Classify maps a normalized sample id to its role. First matching rule
// wins; anything unmatched is a regular sample.
func Classify(id string) model.Role {
	for _, r := range roleRules {
		if r.match(id) {
			return r.role
		}
	}
	return model.RoleRegular
}

// RefName extracts the reference-material name embedded in a normalized
// reference sample id of the form SRM_<NAME>_<n>. Interior underscores are
// part of the name (SRM_NIST_2710_1 → NIST_2710). Returns false when the id
// does not follow the pattern.
func RefName(id string) (string, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 || parts[0] != "SRM" {
		return "", false
	}
	if _, err := strconv.Atoi(parts[len(parts)-1]); err != nil {
		return "", false
	}
	return strings.Join(parts[1:len(parts)-1], "_"), true
}
