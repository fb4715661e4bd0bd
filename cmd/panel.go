package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
)

var (
	panelSymbols string
	panelStart   string
	panelEnd     string
	panelOut     string
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Build and validate a point-in-time panel",
	Long:  "Builds a date-indexed fundamentals panel from snapshot history, validates it for look-ahead leakage, and writes it to CSV or XLSX. A validation failure aborts the export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		symbols := splitSymbols(panelSymbols)
		if len(symbols) == 0 {
			return eris.New("panel: --symbols is required")
		}
		start, err := model.ParseDate(panelStart)
		if err != nil {
			return eris.Wrap(err, "panel: parse --start")
		}
		end, err := model.ParseDate(panelEnd)
		if err != nil {
			return eris.Wrap(err, "panel: parse --end")
		}

		store, _, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		builder := pit.NewPanelBuilder(store)
		panel, err := builder.BuildPanel(ctx, symbols, start, end)
		if err != nil {
			return err
		}

		// Leakage validation gates every export; a violation is fatal here,
		// exactly as it must be for any downstream consumer.
		if err := (pit.Validator{CollectAll: true}).Validate(panel); err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(panelOut)) {
		case ".xlsx":
			err = writePanelXLSX(panel, panelOut)
		default:
			err = writePanelCSV(panel, panelOut)
		}
		if err != nil {
			return err
		}

		cmd.Printf("wrote %d rows to %s\n", len(panel.Rows), panelOut)
		return nil
	},
}

func init() {
	panelCmd.Flags().StringVar(&panelSymbols, "symbols", "", "comma-separated symbols (required)")
	panelCmd.Flags().StringVar(&panelStart, "start", "", "panel start date YYYY-MM-DD (required)")
	panelCmd.Flags().StringVar(&panelEnd, "end", "", "panel end date YYYY-MM-DD (required)")
	panelCmd.Flags().StringVar(&panelOut, "out", "panel.csv", "output path (.csv or .xlsx)")
	panelCmd.MarkFlagRequired("symbols") //nolint:errcheck
	panelCmd.MarkFlagRequired("start")   //nolint:errcheck
	panelCmd.MarkFlagRequired("end")     //nolint:errcheck
	rootCmd.AddCommand(panelCmd)
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func panelHeader() []string {
	return append([]string{"date", "symbol", "effective_date", "statement_kind", "period_end", "pit_source"}, pit.PanelColumns()...)
}

func panelRecord(row model.PanelRow) []string {
	rec := []string{
		row.Date.Format("2006-01-02"),
		row.Symbol,
		row.EffectiveDate.Format("2006-01-02"),
		string(row.Kind),
		row.PeriodEnd.Format("2006-01-02"),
		string(row.Source),
	}
	for _, col := range pit.PanelColumns() {
		v, ok := row.Fields[col]
		if !ok || v == nil {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, fmt.Sprintf("%v", v))
	}
	return rec
}

func writePanelCSV(panel *model.Panel, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "panel: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(panelHeader()); err != nil {
		return eris.Wrap(err, "panel: write header")
	}
	for _, row := range panel.Rows {
		if err := w.Write(panelRecord(row)); err != nil {
			return eris.Wrap(err, "panel: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "panel: flush csv")
}

func writePanelXLSX(panel *model.Panel, path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("panel")
	if err != nil {
		return eris.Wrap(err, "panel: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range panelHeader() {
		header.AddCell().SetString(col)
	}
	for _, row := range panel.Rows {
		r := sheet.AddRow()
		for _, val := range panelRecord(row) {
			r.AddCell().SetString(val)
		}
	}

	return eris.Wrapf(file.Save(path), "panel: save %s", path)
}
