package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/tracemetals/icpbatch/internal/config"
	"github.com/tracemetals/icpbatch/internal/engine"
	"github.com/tracemetals/icpbatch/internal/loader"
	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/parser"
	"github.com/tracemetals/icpbatch/internal/report"
	"github.com/tracemetals/icpbatch/internal/utils"
)

var (
	procSortFile   string
	procDigestFile string
	procICVFile    string
	procRefFile    string
	procOutFile    string
	procUnits      string
	procClampNeg   bool
	procDefaultDF  float64
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a SORT export into a corrected, QC-checked workbook",
	Long: `Process parses the SORT export, loads the DIGEST dilution factors, the ICV
calibration targets and (optionally) certified reference values, runs blank
correction and recovery checks, and writes the results to an Excel workbook.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&procSortFile, "sort", "", "SORT instrument export (CSV, required)")
	processCmd.Flags().StringVar(&procDigestFile, "digest", "", "DIGEST dilution-factor file (CSV or XLSX, required)")
	processCmd.Flags().StringVar(&procICVFile, "icv", "", "ICV calibration-target file (CSV, required)")
	processCmd.Flags().StringVar(&procRefFile, "ref", "", "certified reference values file (CSV, optional)")
	processCmd.Flags().StringVarP(&procOutFile, "out", "o", "results.xlsx", "output workbook path")
	processCmd.Flags().StringVar(&procUnits, "units", "", "output units: ppm or ppb (overrides config)")
	processCmd.Flags().BoolVar(&procClampNeg, "clamp-negative", false, "clamp negative corrected values to 0 (overrides config)")
	processCmd.Flags().Float64Var(&procDefaultDF, "default-df", 0, "dilution factor for samples missing from DIGEST (overrides config)")
	_ = processCmd.MarkFlagRequired("sort")
	_ = processCmd.MarkFlagRequired("digest")
	_ = processCmd.MarkFlagRequired("icv")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	opt, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	parsed, err := parser.Parse(procSortFile)
	if err != nil {
		return fmt.Errorf("parse SORT file: %w", err)
	}

	digest, warns, err := loader.LoadDigest(procDigestFile)
	if err != nil {
		return fmt.Errorf("load DIGEST file: %w", err)
	}
	allWarns := append(parsed.Warnings, warns...)

	calib, warns, err := loader.LoadCalibration(procICVFile)
	if err != nil {
		return fmt.Errorf("load ICV file: %w", err)
	}
	allWarns = append(allWarns, warns...)

	var refs model.ReferenceTable
	if procRefFile != "" {
		refs, warns, err = loader.LoadReference(procRefFile)
		if err != nil {
			return fmt.Errorf("load reference file: %w", err)
		}
		allWarns = append(allWarns, warns...)
	}

	res := engine.ProcessBatch(engine.Inputs{
		Measurements: parsed.Measurements,
		Channels:     parsed.Channels,
		Digest:       digest,
		Calibration:  calib,
		Reference:    refs,
		Warnings:     allWarns,
	}, opt)

	rep := report.Assemble(res, opt.Divisor)
	if dir := filepath.Dir(procOutFile); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := report.WriteWorkbook(procOutFile, rep); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	printWarnings(res.Warnings)
	printSummary(rep)
	fmt.Printf("\nWrote %s (run %s)\n", procOutFile, res.RunID)
	return nil
}

// buildOptions layers flag overrides on top of the loaded config.
func buildOptions(cmd *cobra.Command) (engine.Options, error) {
	opt := engine.DefaultOptions()
	if cfg != nil {
		div, err := cfg.UnitDivisor()
		if err != nil {
			return opt, err
		}
		opt.Divisor = div
		opt.ClampNegative = cfg.ClampNegative
		if cfg.DefaultDF > 0 {
			opt.DefaultDF = cfg.DefaultDF
		}
		opt.ICVLow, opt.ICVHigh = cfg.ICVRecoveryLow, cfg.ICVRecoveryHigh
		opt.RefLow, opt.RefHigh = cfg.RefRecoveryLow, cfg.RefRecoveryHigh
	}

	f := cmd.Flags()
	if f.Changed("units") {
		u := cfgpkg.Global{OutputUnits: procUnits}
		div, err := u.UnitDivisor()
		if err != nil {
			return opt, err
		}
		opt.Divisor = div
	}
	if f.Changed("clamp-negative") {
		opt.ClampNegative = procClampNeg
	}
	if f.Changed("default-df") {
		if procDefaultDF <= 0 {
			return opt, fmt.Errorf("invalid --default-df %v: must be > 0", procDefaultDF)
		}
		opt.DefaultDF = procDefaultDF
	}
	return opt, nil
}

func printWarnings(warns []model.Warning) {
	for _, w := range warns {
		if w.Subject != "" {
			fmt.Fprintf(os.Stderr, "⚠ Warning [%s] %s: %s\n", w.Kind, w.Subject, w.Detail)
		} else {
			fmt.Fprintf(os.Stderr, "⚠ Warning [%s]: %s\n", w.Kind, w.Detail)
		}
	}
}

func printSummary(rep *report.Report) {
	s := rep.Summary
	fmt.Println(renderTable(
		[]string{"Samples", "Blanks", "ICV", "Reference", "Elements", "ICV pass", "Ref pass"},
		[][]string{{
			strconv.Itoa(s.Samples),
			strconv.Itoa(s.Blanks),
			strconv.Itoa(s.ICVSamples),
			strconv.Itoa(s.RefSamples),
			strconv.Itoa(s.Elements),
			fmt.Sprintf("%.0f%%", s.ICVPassRate),
			fmt.Sprintf("%.0f%%", s.RefPassRate),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if len(rep.QC) == 0 {
		return
	}
	colorize := shouldColorize(os.Stdout)
	rows := make([][]string, 0, len(rep.QC))
	for _, q := range rep.QC {
		rows = append(rows, []string{
			q.Element,
			q.ChannelID,
			q.Reason.String(),
			formatRecovery(q.ICVRecovery, q.ICVPass, colorize),
			formatRecovery(q.RefRecovery, q.RefPass, colorize),
		})
	}
	fmt.Println(renderTable(
		[]string{"Element", "Channel", "Selection", "ICV %", "Ref %"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
}

func formatRecovery(rec *float64, pass bool, colorize bool) string {
	if rec == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f %s", *rec, passMark(pass, colorize))
}
