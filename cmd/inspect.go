package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tracemetals/icpbatch/internal/model"
	"github.com/tracemetals/icpbatch/internal/normalize"
	"github.com/tracemetals/icpbatch/internal/parser"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <sort-file>",
	Short: "Parse a SORT export and show its channels and sample roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := parser.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse SORT file: %w", err)
		}
		printWarnings(parsed.Warnings)

		chanRows := make([][]string, 0, len(parsed.Channels))
		for _, ch := range parsed.Channels {
			gas := ch.GasMode
			if gas == "" {
				gas = "-"
			}
			mass := strconv.Itoa(ch.NominalMass)
			if ch.MassShift {
				mass = fmt.Sprintf("%d→%d", ch.NominalMass, ch.AnalyzedMass)
			}
			chanRows = append(chanRows, []string{ch.ID, ch.Element, mass, gas})
		}
		fmt.Println(renderTable(
			[]string{"Channel", "Element", "Mass", "Gas"},
			chanRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))

		roles := map[string]model.Role{}
		for _, m := range parsed.Measurements {
			roles[m.SampleID] = normalize.Classify(m.SampleID)
		}
		counts := map[model.Role]int{}
		for _, r := range roles {
			counts[r]++
		}
		fmt.Printf("\n%d samples: %d regular, %d blank, %d ICV, %d reference, %d duplicate\n",
			len(roles),
			counts[model.RoleRegular], counts[model.RoleBlank], counts[model.RoleICV],
			counts[model.RoleReference], counts[model.RoleDuplicate])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
