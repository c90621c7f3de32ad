package engine_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tracemetals/icpbatch/internal/engine"
	"github.com/tracemetals/icpbatch/internal/model"
)

func meas(sample, channel, element string, raw float64) model.Measurement {
	return model.Measurement{SampleID: sample, ChannelID: channel, Element: element, Raw: model.Float(raw)}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func ppbOptions() engine.Options {
	opt := engine.DefaultOptions()
	opt.Divisor = 1
	return opt
}

func TestBlankStats(t *testing.T) {
	ms := []model.Measurement{
		meas("BLANK_1", "Cu63_He", "Cu", 0.1),
		meas("BLANK_2", "Cu63_He", "Cu", 0.3),
		meas("SAMPLE_001", "Cu63_He", "Cu", 5.0),
		meas("SAMPLE_001", "Zn66_He", "Zn", 6.0),
	}
	stats, warns := engine.BlankStats(ms)

	cu := stats["Cu"]
	if !approx(cu.Mean, 0.2) {
		t.Errorf("Cu mean = %v, want 0.2", cu.Mean)
	}
	if !approx(cu.SD, math.Sqrt(0.02)) {
		t.Errorf("Cu sd = %v, want %v", cu.SD, math.Sqrt(0.02))
	}
	if !approx(cu.MDL, 3*math.Sqrt(0.02)) {
		t.Errorf("Cu mdl = %v, want 3×sd", cu.MDL)
	}

	// Zero blank observations: zero-valued entry plus a warning, no error.
	zn := stats["Zn"]
	if zn.Mean != 0 || zn.SD != 0 || zn.MDL != 0 || !zn.NoData {
		t.Errorf("Zn stat = %+v, want zeroed NoData entry", zn)
	}
	found := false
	for _, w := range warns {
		if w.Kind == model.WarnNoBlankData && w.Subject == "Zn" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected no-blank-data warning for Zn, got %v", warns)
	}
}

func TestBlankStats_SingleObservation(t *testing.T) {
	stats, _ := engine.BlankStats([]model.Measurement{meas("BLANK_1", "Cu63_He", "Cu", 0.4)})
	cu := stats["Cu"]
	if cu.Mean != 0.4 || cu.SD != 0 || cu.MDL != 0 {
		t.Errorf("single-blank stat = %+v, want mean 0.4 and sd/mdl 0", cu)
	}
}

func TestCorrect_RoundTrip(t *testing.T) {
	// With df=1 everywhere and divisor=1, corrected == raw − blank mean.
	ms := []model.Measurement{
		meas("BLANK_1", "Cu63_He", "Cu", 0.1),
		meas("BLANK_2", "Cu63_He", "Cu", 0.3),
		meas("SAMPLE_001", "Cu63_He", "Cu", 5.0),
		meas("SAMPLE_002", "Cu63_He", "Cu", 7.0),
	}
	blanks, _ := engine.BlankStats(ms)
	digest := model.DilutionTable{"SAMPLE_001": 1.0, "SAMPLE_002": 1.0}
	corr, warns := engine.Correct(ms, digest, blanks, ppbOptions())
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(corr) != 2 {
		t.Fatalf("corrected rows = %d, want 2 (blanks excluded)", len(corr))
	}
	for _, c := range corr {
		want := *c.Raw - 0.2
		if c.Corrected == nil || !approx(*c.Corrected, want) {
			t.Errorf("%s corrected = %v, want %v", c.SampleID, c.Corrected, want)
		}
	}
}

func TestCorrect_MissingDigestEntry(t *testing.T) {
	ms := []model.Measurement{
		meas("SAMPLE_099", "Cu63_He", "Cu", 5.0),
		meas("ICV_1", "Cu63_He", "Cu", 10.0),
	}
	corr, warns := engine.Correct(ms, model.DilutionTable{}, map[string]model.BlankStat{}, ppbOptions())

	sample := corr[0]
	if sample.DF != 1.0 || !sample.DFMissing {
		t.Errorf("SAMPLE_099: df=%v missing=%v, want 1.0/true", sample.DF, sample.DFMissing)
	}
	var warnedSample bool
	for _, w := range warns {
		if w.Kind == model.WarnMissingDigest && w.Subject == "SAMPLE_099" {
			warnedSample = true
		}
		if w.Subject == "ICV_1" {
			t.Errorf("QC samples must not raise missing-DIGEST warnings: %v", w)
		}
	}
	if !warnedSample {
		t.Errorf("expected missing-digest warning naming SAMPLE_099, got %v", warns)
	}
	// QC roles default silently.
	icv := corr[1]
	if icv.DF != 1.0 || icv.DFMissing {
		t.Errorf("ICV_1: df=%v missing=%v, want 1.0/false", icv.DF, icv.DFMissing)
	}
}

func TestCorrect_BelowDetectionBoundary(t *testing.T) {
	blanks := map[string]model.BlankStat{
		"Cu": {Element: "Cu", Mean: 1.0, SD: 0.5 / 3, MDL: 0.5},
	}
	ms := []model.Measurement{
		meas("SAMPLE_001", "Cu63_He", "Cu", 1.5),    // raw − mean == mdl exactly
		meas("SAMPLE_002", "Cu63_He", "Cu", 1.4375), // just under
	}
	corr, _ := engine.Correct(ms, model.DilutionTable{"SAMPLE_001": 1, "SAMPLE_002": 1}, blanks, ppbOptions())
	if corr[0].BelowDetection {
		t.Errorf("raw − mean equal to mdl must NOT be below detection (strict <)")
	}
	if !corr[1].BelowDetection {
		t.Errorf("raw − mean under mdl must be below detection")
	}
}

func TestCorrect_NilRawPropagates(t *testing.T) {
	ms := []model.Measurement{{SampleID: "SAMPLE_001", ChannelID: "Cu63_He", Element: "Cu"}}
	corr, _ := engine.Correct(ms, model.DilutionTable{"SAMPLE_001": 1}, map[string]model.BlankStat{}, ppbOptions())
	if corr[0].Corrected != nil || corr[0].BelowDetection {
		t.Errorf("nil raw must stay nil and never count as below detection: %+v", corr[0])
	}
}

func TestCorrect_ClampNegative(t *testing.T) {
	blanks := map[string]model.BlankStat{"Cu": {Element: "Cu", Mean: 2.0}}
	ms := []model.Measurement{meas("SAMPLE_001", "Cu63_He", "Cu", 1.0)}
	opt := ppbOptions()
	opt.ClampNegative = true
	corr, _ := engine.Correct(ms, model.DilutionTable{"SAMPLE_001": 1}, blanks, opt)
	if *corr[0].Corrected != 0 || !corr[0].Clamped {
		t.Errorf("negative corrected value should clamp to 0: %+v", corr[0])
	}
}

func corrected(sample, channel, element string, role model.Role, value float64) model.CorrectedMeasurement {
	return model.CorrectedMeasurement{
		Measurement: model.Measurement{SampleID: sample, ChannelID: channel, Element: element},
		Role:        role,
		DF:          1,
		Corrected:   model.Float(value),
	}
}

func TestRecoveries_ReferenceFileWinsOverSRMTarget(t *testing.T) {
	calib := model.CalibrationTable{
		"Cu": {Element: "Cu", ICVTarget: 10, SRMTarget: model.Float(50)},
	}
	refs := model.ReferenceTable{"DOLT-5": {"Cu": 40}}
	corr := []model.CorrectedMeasurement{
		corrected("SRM_DOLT-5_1", "Cu63_He", "Cu", model.RoleReference, 40),
	}
	recs, _ := engine.Recoveries(corr, calib, refs, engine.DefaultOptions())
	if len(recs) != 1 {
		t.Fatalf("recoveries = %d, want 1", len(recs))
	}
	r := recs[0]
	// Against the override target (40) recovery is 100%; against the
	// generic srm_target (50) it would be 80%.
	if r.Recovery == nil || !approx(*r.Recovery, 100) {
		t.Errorf("recovery = %v, want 100 (reference file must win)", r.Recovery)
	}
	if !r.Pass {
		t.Errorf("recovery of 100%% must pass the 80–120 band")
	}
}

func TestRecoveries_NoTarget(t *testing.T) {
	corr := []model.CorrectedMeasurement{
		corrected("SRM_DOLT-5_1", "Cu63_He", "Cu", model.RoleReference, 40),
		corrected("ICV_1", "Zn66_He", "Zn", model.RoleICV, 10),
	}
	recs, warns := engine.Recoveries(corr, model.CalibrationTable{}, nil, engine.DefaultOptions())
	for _, r := range recs {
		if r.Recovery != nil || r.Pass || !r.NoTarget {
			t.Errorf("without targets recovery must be undefined and failing: %+v", r)
		}
	}
	if len(warns) == 0 {
		t.Errorf("expected no-target warnings")
	}
}

func recovery(element, channel string, kind model.RecoveryKind, pct float64, pass bool) model.RecoveryResult {
	return model.RecoveryResult{Element: element, ChannelID: channel, Kind: kind, Recovery: model.Float(pct), Pass: pass}
}

func TestSelectChannels_BothPass(t *testing.T) {
	channels := []model.Channel{
		{ID: "Cu63_He", Element: "Cu"},
		{ID: "Cu65_H2", Element: "Cu"},
	}
	recs := []model.RecoveryResult{
		recovery("Cu", "Cu63_He", model.RecoveryICV, 100, true),
		recovery("Cu", "Cu63_He", model.RecoveryReference, 100, true),
		recovery("Cu", "Cu65_H2", model.RecoveryICV, 100, true),
		recovery("Cu", "Cu65_H2", model.RecoveryReference, 50, false),
	}
	choices := engine.SelectChannels(channels, recs, engine.DefaultOptions())
	if len(choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(choices))
	}
	c := choices[0]
	if c.ChannelID != "Cu63_He" || c.Reason != model.ReasonBothPass {
		t.Errorf("choice = %+v, want Cu63_He via both-pass", c)
	}
}

func TestSelectChannels_ClosestTo100(t *testing.T) {
	channels := []model.Channel{
		{ID: "Cu63_He", Element: "Cu"},
		{ID: "Cu65_H2", Element: "Cu"},
	}
	// Neither channel passes both checks; A is at 95%, B at 110%.
	recs := []model.RecoveryResult{
		recovery("Cu", "Cu63_He", model.RecoveryICV, 130, false),
		recovery("Cu", "Cu63_He", model.RecoveryReference, 95, true),
		recovery("Cu", "Cu65_H2", model.RecoveryICV, 130, false),
		recovery("Cu", "Cu65_H2", model.RecoveryReference, 110, true),
	}
	choices := engine.SelectChannels(channels, recs, engine.DefaultOptions())
	c := choices[0]
	if c.ChannelID != "Cu63_He" || c.Reason != model.ReasonClosestTo100 {
		t.Errorf("choice = %+v, want Cu63_He via closest-to-100", c)
	}
}

func TestSelectChannels_ICVFallbackAndTies(t *testing.T) {
	channels := []model.Channel{
		{ID: "As75_O2", Element: "As"},
		{ID: "As75to91_O2", Element: "As"},
	}
	// No reference recovery defined anywhere; fall back to ICV. Both are
	// equally distant from 100, so the lowest channel id wins.
	recs := []model.RecoveryResult{
		recovery("As", "As75_O2", model.RecoveryICV, 95, true),
		recovery("As", "As75to91_O2", model.RecoveryICV, 105, true),
	}
	choices := engine.SelectChannels(channels, recs, engine.DefaultOptions())
	c := choices[0]
	if c.ChannelID != "As75_O2" || c.Reason != model.ReasonClosestTo100 {
		t.Errorf("choice = %+v, want As75_O2 via ICV fallback with tie-break", c)
	}
}

func TestSelectChannels_OnlyChannel(t *testing.T) {
	channels := []model.Channel{{ID: "Zn66_He", Element: "Zn"}}
	choices := engine.SelectChannels(channels, nil, engine.DefaultOptions())
	c := choices[0]
	if c.ChannelID != "Zn66_He" || c.Reason != model.ReasonOnlyChannel {
		t.Errorf("choice = %+v, want Zn66_He via only-channel", c)
	}
}

func batchInputs() engine.Inputs {
	channels := []model.Channel{
		{ID: "Cu63_He", Element: "Cu", NominalMass: 63, AnalyzedMass: 63, GasMode: "He"},
		{ID: "Zn66_He", Element: "Zn", NominalMass: 66, AnalyzedMass: 66, GasMode: "He"},
	}
	var ms []model.Measurement
	for _, ch := range channels {
		ms = append(ms,
			meas("BLANK_1", ch.ID, ch.Element, 0.1),
			meas("BLANK_2", ch.ID, ch.Element, 0.3),
			meas("ICV_1", ch.ID, ch.Element, 10.5),
			meas("SAMPLE_001", ch.ID, ch.Element, 5.0),
			meas("SAMPLE_099", ch.ID, ch.Element, 7.0),
		)
	}
	return engine.Inputs{
		Measurements: ms,
		Channels:     channels,
		Digest:       model.DilutionTable{"SAMPLE_001": 1.0},
		Calibration: model.CalibrationTable{
			"Cu": {Element: "Cu", ICVTarget: 10},
			"Zn": {Element: "Zn", ICVTarget: 10},
		},
	}
}

// End-to-end scenario: two blanks per element, one ICV at 10.5 against a
// target of 10, one sample missing from DIGEST.
func TestProcessBatch_EndToEnd(t *testing.T) {
	res := engine.ProcessBatch(batchInputs(), ppbOptions())

	for _, bs := range res.BlankStats {
		if !approx(bs.Mean, 0.2) || !approx(bs.MDL, 3*math.Sqrt(0.02)) {
			t.Errorf("%s blank stats = %+v", bs.Element, bs)
		}
	}

	var icvRecs int
	for _, r := range res.Recoveries {
		if r.Kind != model.RecoveryICV {
			continue
		}
		icvRecs++
		if r.Recovery == nil || !approx(*r.Recovery, 103) {
			t.Errorf("%s ICV recovery = %v, want 103", r.Element, r.Recovery)
		}
		if !r.Pass {
			t.Errorf("%s ICV recovery 103%% must pass", r.Element)
		}
	}
	if icvRecs != 2 {
		t.Errorf("ICV recoveries = %d, want 2", icvRecs)
	}

	var missWarn bool
	for _, w := range res.Warnings {
		if w.Kind == model.WarnMissingDigest && w.Subject == "SAMPLE_099" {
			missWarn = true
		}
	}
	if !missWarn {
		t.Errorf("expected missing-digest warning for SAMPLE_099")
	}

	for _, c := range res.Choices {
		if c.Reason != model.ReasonOnlyChannel {
			t.Errorf("single-channel elements must be chosen trivially: %+v", c)
		}
	}

	s := res.Summary
	if s.Samples != 2 || s.Blanks != 2 || s.ICVSamples != 1 || s.Elements != 2 {
		t.Errorf("summary = %+v", s)
	}
	if !approx(s.ICVPassRate, 100) {
		t.Errorf("ICV pass rate = %v, want 100", s.ICVPassRate)
	}
}

func TestProcessBatch_Idempotent(t *testing.T) {
	a := engine.ProcessBatch(batchInputs(), ppbOptions())
	b := engine.ProcessBatch(batchInputs(), ppbOptions())
	a.RunID, b.RunID = "", "" // the run id is the only nondeterministic field
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("rerun on identical inputs differs (-first +second):\n%s", diff)
	}
}
