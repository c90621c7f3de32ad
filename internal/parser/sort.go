// Package parser turns a raw MassHunter instrument export (the SORT file)
// into a normalized long-format measurement set. The export is a wide CSV:
// one row per instrument run, one column per acquisition channel, with an
// occasionally shifted header row and an optional units row.
package parser

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
)

// FormatError reports an instrument export whose headers could not be
// understood. It is fatal and aborts the run.
type FormatError struct {
	Missing string // the required column role that could not be located
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("instrument export: no %s column detected", e.Missing)
}

// Result is the long-format output of parsing one instrument export.
type Result struct {
	Measurements []model.Measurement
	Channels     []model.Channel
	Warnings     []model.Warning
}

// Channel headers come in two shapes:
//
//	"63  Cu  [ He ]"            plain mass
//	"75 -> 91  As  [ O2 ]"      mass shift
//
// The gas mode is optional in both.
var (
	plainHeaderRe = regexp.MustCompile(`^(\d+)\s+([A-Z][a-z]?)\s*(?:\[\s*([^\]]+?)\s*\])?$`)
	shiftHeaderRe = regexp.MustCompile(`^(\d+)\s*->\s*(\d+)\s+([A-Z][a-z]?)\s*(?:\[\s*([^\]]+?)\s*\])?$`)
)

// headerScanCols bounds the search for the metadata columns; exports put the
// time and sample columns at the front.
const headerScanCols = 5

// Parse reads the export at path and produces one Measurement per
// (row, element column). Non-numeric and empty cells yield a nil raw value;
// columns that do not match the channel grammar are skipped with a warning.
func Parse(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (*Result, error) {
	headerIdx := detectHeaderRow(rows)
	if headerIdx < 0 || headerIdx >= len(rows) {
		return nil, &FormatError{Missing: "sample name"}
	}
	header := rows[headerIdx]

	timeCol := findColumn(header, -1, "date", "time", "acq")
	if timeCol < 0 {
		return nil, &FormatError{Missing: "acquisition time"}
	}
	sampleCol := findColumn(header, timeCol, "sample", "name")
	if sampleCol < 0 {
		return nil, &FormatError{Missing: "sample name"}
	}

	res := &Result{}
	chanByCol := map[int]model.Channel{}
	for j, h := range header {
		if j == timeCol || j == sampleCol {
			continue
		}
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		ch, ok := parseChannelHeader(h)
		if !ok {
			res.Warnings = append(res.Warnings, model.Warning{
				Kind:    model.WarnFormatAnomaly,
				Subject: h,
				Detail:  "column does not match the element channel grammar; skipped",
			})
			continue
		}
		chanByCol[j] = ch
		res.Channels = append(res.Channels, ch)
	}
	if len(chanByCol) == 0 {
		return nil, &FormatError{Missing: "element"}
	}

	data := rows[headerIdx+1:]
	if len(data) > 0 && isUnitsRow(data[0], chanByCol) {
		data = data[1:]
	}

	// Column order keeps the output deterministic.
	cols := make([]int, 0, len(chanByCol))
	for j := range chanByCol {
		cols = append(cols, j)
	}
	sort.Ints(cols)

	for _, row := range data {
		sample := ""
		if sampleCol < len(row) {
			sample = normalize.SampleID(row[sampleCol])
		}
		if sample == "" {
			continue // trailing blank line or unnamed row
		}
		acq := ""
		if timeCol < len(row) {
			acq = strings.TrimSpace(row[timeCol])
		}
		for _, j := range cols {
			ch := chanByCol[j]
			m := model.Measurement{
				SampleID:  sample,
				ChannelID: ch.ID,
				Element:   ch.Element,
				AcqTime:   acq,
			}
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			if cell != "" {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					m.Raw = model.Float(v)
				} else {
					res.Warnings = append(res.Warnings, model.Warning{
						Kind:    model.WarnNonNumericCell,
						Subject: sample,
						Detail:  fmt.Sprintf("channel %s: cannot read %q as a number", ch.ID, cell),
					})
				}
			}
			res.Measurements = append(res.Measurements, m)
		}
	}
	return res, nil
}

// detectHeaderRow returns the index of the true header row. Some exports put
// bare element symbols on the first row; it then shows up as mostly empty
// placeholder cells and the real header sits on row two.
func detectHeaderRow(rows [][]string) int {
	if len(rows) == 0 {
		return -1
	}
	first := rows[0]
	n := headerScanCols
	if len(first) < n {
		n = len(first)
	}
	empty := 0
	for i := 0; i < n; i++ {
		if strings.TrimSpace(first[i]) == "" {
			empty++
		}
	}
	if empty >= 3 && len(rows) > 1 {
		return 1
	}
	return 0
}

// findColumn scans the first few headers for one containing any of the
// keywords (case-insensitive), skipping the given column index.
func findColumn(header []string, skip int, keywords ...string) int {
	n := headerScanCols
	if len(header) < n {
		n = len(header)
	}
	for i := 0; i < n; i++ {
		if i == skip {
			continue
		}
		h := strings.ToLower(strings.TrimSpace(header[i]))
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// isUnitsRow reports whether the row right under the header is the repeated
// "Conc." units row some exports insert. It is discarded, never parsed.
func isUnitsRow(row []string, chans map[int]model.Channel) bool {
	seen := false
	for j := range chans {
		if j >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		if !strings.EqualFold(cell, "Conc.") {
			return false
		}
		seen = true
	}
	return seen
}

func parseChannelHeader(h string) (model.Channel, bool) {
	if m := shiftHeaderRe.FindStringSubmatch(h); m != nil {
		nominal, _ := strconv.Atoi(m[1])
		analyzed, _ := strconv.Atoi(m[2])
		ch := model.Channel{
			Element:      m[3],
			NominalMass:  nominal,
			AnalyzedMass: analyzed,
			GasMode:      m[4],
			MassShift:    true,
			Header:       h,
		}
		ch.ID = channelID(ch)
		return ch, true
	}
	if m := plainHeaderRe.FindStringSubmatch(h); m != nil {
		mass, _ := strconv.Atoi(m[1])
		ch := model.Channel{
			Element:      m[2],
			NominalMass:  mass,
			AnalyzedMass: mass,
			GasMode:      m[3],
			Header:       h,
		}
		ch.ID = channelID(ch)
		return ch, true
	}
	return model.Channel{}, false
}

// channelID builds the stable identifier distinguishing mode and mass-shift
// variants of the same element, e.g. Cu63_He and As75to91_O2.
func channelID(c model.Channel) string {
	var b strings.Builder
	b.WriteString(c.Element)
	if c.MassShift {
		fmt.Fprintf(&b, "%dto%d", c.NominalMass, c.AnalyzedMass)
	} else {
		fmt.Fprintf(&b, "%d", c.AnalyzedMass)
	}
	if gas := strings.ReplaceAll(c.GasMode, " ", ""); gas != "" {
		b.WriteString("_")
		b.WriteString(gas)
	}
	return b.String()
}
