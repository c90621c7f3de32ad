package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func writeInputs(t *testing.T, dir string) (sortPath, digestPath, icvPath string) {
	t.Helper()
	sortPath = filepath.Join(dir, "sort.csv")
	sortCSV := "Acq. Date-Time,Sample Name,63  Cu  [ He ]\n" +
		"2024-01-05 10:00,blank 1,0.10\n" +
		"2024-01-05 10:05,blank 2,0.30\n" +
		"2024-01-05 10:10,ICV 1,10.5\n" +
		"2024-01-05 10:15,Sample 001,5.2\n"
	if err := os.WriteFile(sortPath, []byte(sortCSV), 0o644); err != nil {
		t.Fatalf("write sort: %v", err)
	}

	digestPath = filepath.Join(dir, "digest.csv")
	digestCSV := "Sample,DF\nSAMPLE_001,1\n"
	if err := os.WriteFile(digestPath, []byte(digestCSV), 0o644); err != nil {
		t.Fatalf("write digest: %v", err)
	}

	icvPath = filepath.Join(dir, "icv.csv")
	icvCSV := "Element,ICV_Target\nCu,10\n"
	if err := os.WriteFile(icvPath, []byte(icvCSV), 0o644); err != nil {
		t.Fatalf("write icv: %v", err)
	}
	return sortPath, digestPath, icvPath
}

func TestCLI_ProcessWritesWorkbook(t *testing.T) {
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)
	os.Setenv("HOME", home)

	sortPath, digestPath, icvPath := writeInputs(t, home)
	outPath := filepath.Join(home, "out.xlsx")

	runCmd(t, "process",
		"--sort", sortPath,
		"--digest", digestPath,
		"--icv", icvPath,
		"--out", outPath,
		"--units", "ppb")

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) != 4 {
		t.Fatalf("sheets = %v, want 4 sheets", sheets)
	}
	if sheets[0] != "Corrected ppb (Wide)" {
		t.Errorf("first sheet = %q, want %q", sheets[0], "Corrected ppb (Wide)")
	}
}

func TestCLI_ProcessMissingSortFlag(t *testing.T) {
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)
	os.Setenv("HOME", home)

	_, digestPath, icvPath := writeInputs(t, home)
	rootCmd.SetArgs([]string{"process", "--sort", filepath.Join(home, "nope.csv"),
		"--digest", digestPath, "--icv", icvPath,
		"--out", filepath.Join(home, "out.xlsx")})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected error for missing SORT file, got nil")
	}
}

func TestCLI_Inspect(t *testing.T) {
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)
	os.Setenv("HOME", home)

	sortPath, _, _ := writeInputs(t, home)
	runCmd(t, "inspect", sortPath)
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)
	os.Setenv("HOME", home)

	runCmd(t, "config", "set", "output_units", "ppb")
	cfgPath := filepath.Join(home, ".icpbatch", "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	runCmd(t, "config", "show")
}
