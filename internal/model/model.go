package model

// Role classifies a sample by its normalized name. Exactly one role applies.
type Role int

const (
	RoleRegular Role = iota
	RoleBlank
	RoleICV
	RoleReference
	RoleDuplicate
)

func (r Role) String() string {
	switch r {
	case RoleBlank:
		return "blank"
	case RoleICV:
		return "icv"
	case RoleReference:
		return "reference"
	case RoleDuplicate:
		return "duplicate"
	default:
		return "regular"
	}
}

// Channel is one acquisition mode/mass combination detected in the export
// header. The same element may appear on several channels.
type Channel struct {
	ID           string
	Element      string
	NominalMass  int
	AnalyzedMass int
	GasMode      string
	MassShift    bool
	Header       string // original column header, kept for diagnostics
}

// Measurement is one raw reading: one export row crossed with one element
// column. Raw is nil when the cell was empty or non-numeric.
type Measurement struct {
	SampleID  string // normalized
	ChannelID string
	Element   string
	AcqTime   string
	Raw       *float64
}

// DilutionTable maps normalized sample ids to dilution factors.
type DilutionTable map[string]float64

// CalibrationTarget holds the QC targets for one element. SRMTarget is nil
// when the calibration file carries no generic reference target.
type CalibrationTarget struct {
	Element   string
	ICVTarget float64
	SRMTarget *float64
}

// CalibrationTable maps element symbols to their calibration targets.
type CalibrationTable map[string]CalibrationTarget

// ReferenceTable maps normalized reference-material names to per-element
// target values in µg/kg (ppb).
type ReferenceTable map[string]map[string]float64

// BlankStat summarizes the blank readings of one element. MDL is 3×SD.
// NoData marks elements with zero blank observations.
type BlankStat struct {
	Element string
	Mean    float64
	SD      float64
	MDL     float64
	N       int
	NoData  bool
}

// CorrectedMeasurement is a Measurement after blank subtraction, dilution
// correction and unit scaling. Corrected stays nil when Raw was nil.
type CorrectedMeasurement struct {
	Measurement
	Role           Role
	DF             float64
	DFMissing      bool
	Corrected      *float64
	BelowDetection bool
	Clamped        bool
}

// RecoveryKind distinguishes the two QC recovery checks.
type RecoveryKind int

const (
	RecoveryICV RecoveryKind = iota
	RecoveryReference
)

func (k RecoveryKind) String() string {
	if k == RecoveryReference {
		return "reference"
	}
	return "icv"
}

// RecoveryResult is the recovery of one QC kind on one channel. Recovery is
// nil when no target could be resolved; Pass is then always false.
type RecoveryResult struct {
	Element   string
	ChannelID string
	Kind      RecoveryKind
	Recovery  *float64
	Pass      bool
	NoTarget  bool
}

// ChoiceReason records why a channel was selected for an element.
type ChoiceReason int

const (
	ReasonOnlyChannel ChoiceReason = iota
	ReasonBothPass
	ReasonClosestTo100
)

func (r ChoiceReason) String() string {
	switch r {
	case ReasonBothPass:
		return "both-pass"
	case ReasonClosestTo100:
		return "closest-to-100"
	default:
		return "only-channel"
	}
}

// ChannelChoice is the selected channel for one element.
type ChannelChoice struct {
	Element   string
	ChannelID string
	Reason    ChoiceReason
}

// WarningKind labels a non-fatal anomaly recorded during a run.
type WarningKind string

const (
	WarnMissingDigest      WarningKind = "missing-digest"
	WarnNoBlankData        WarningKind = "no-blank-data"
	WarnNoTarget           WarningKind = "no-target"
	WarnUnmatchedReference WarningKind = "unmatched-reference"
	WarnFormatAnomaly      WarningKind = "format-anomaly"
	WarnNonNumericCell     WarningKind = "non-numeric-cell"
)

// Warning is a structured non-fatal anomaly. Fatal conditions are errors
// instead; warnings accumulate in the BatchResult for the caller to render.
type Warning struct {
	Kind    WarningKind
	Subject string
	Detail  string
}

// BatchSummary holds counts for the operator-facing run summary.
type BatchSummary struct {
	Samples     int
	Blanks      int
	ICVSamples  int
	RefSamples  int
	Elements    int
	ICVPassRate float64
	RefPassRate float64
}

// BatchResult is everything a single batch run produces.
type BatchResult struct {
	RunID        string
	Measurements []Measurement
	Channels     []Channel
	BlankStats   []BlankStat
	Corrected    []CorrectedMeasurement
	Recoveries   []RecoveryResult
	Choices      []ChannelChoice
	Warnings     []Warning
	Summary      BatchSummary
}

// Float returns a pointer to v; a small helper for optional values.
func Float(v float64) *float64 { return &v }
