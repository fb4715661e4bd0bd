package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pit-store/internal/ingest"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status [symbols...]",
	Short: "Show snapshot coverage for symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, resolver, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		mat := ingest.New(store, resolver, ingest.Options{
			MinPeriodsRequired: cfg.PIT.MinPeriodsRequired,
		})
		reports, err := mat.CoverageReport(ctx, args)
		if err != nil {
			return err
		}

		if statusFormat == "yaml" {
			out, err := yaml.Marshal(reports)
			if err != nil {
				return eris.Wrap(err, "status: marshal yaml")
			}
			cmd.Print(string(out))
			return nil
		}

		cmd.Printf("%-12s %-6s %-12s %-12s %-12s %-12s\n",
			"SYMBOL", "COUNT", "EFF MIN", "EFF MAX", "PERIOD MIN", "PERIOD MAX")
		for _, m := range reports {
			if !m.HasData {
				cmd.Printf("%-12s %-6d (no snapshots)\n", m.Symbol, 0)
				continue
			}
			cmd.Printf("%-12s %-6d %-12s %-12s %-12s %-12s\n",
				m.Symbol, m.Count,
				m.MinEffectiveDate, m.MaxEffectiveDate,
				m.MinPeriodEnd, m.MaxPeriodEnd)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format: table or yaml")
	rootCmd.AddCommand(statusCmd)
}
