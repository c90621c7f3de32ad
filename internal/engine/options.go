// Package engine implements the batch computation: blank statistics,
// blank/dilution correction, QC recovery and channel selection. It performs
// no I/O; inputs arrive as parsed tables and anomalies are returned as
// structured warnings on the BatchResult.
package engine

// Options controls the correction arithmetic and the QC pass bands.
type Options struct {
	// Divisor scales corrected values into the output unit: 1 keeps ppb,
	// 1000 converts to ppm.
	Divisor float64
	// ClampNegative rewrites negative corrected values to 0.
	ClampNegative bool
	// DefaultDF applies when a sample is missing from the DIGEST table.
	DefaultDF float64
	// ICV recovery pass band, percent, inclusive.
	ICVLow, ICVHigh float64
	// Reference recovery pass band, percent, inclusive.
	RefLow, RefHigh float64
}

// DefaultOptions returns the standard bench settings: ppm output, ICV band
// 90–110%, reference band 80–120%.
func DefaultOptions() Options {
	return Options{
		Divisor:   1000,
		DefaultDF: 1.0,
		ICVLow:    90,
		ICVHigh:   110,
		RefLow:    80,
		RefHigh:   120,
	}
}
