package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/ingest"
	"github.com/sells-group/pit-store/internal/model"
)

var (
	ingestPayloadDir   string
	ingestForceRefresh bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [symbols...]",
	Short: "Materialize snapshots from fetched payload files",
	Long:  "Reads fundamentals payload JSON files (one per symbol, named SYMBOL.json) produced by the fetch pipeline and materializes them into immutable point-in-time snapshots. Without arguments, every payload file in the directory is ingested.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, resolver, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		dir := ingestPayloadDir
		if dir == "" {
			dir = cfg.Ingest.PayloadDir
		}

		symbols := args
		if len(symbols) == 0 {
			symbols, err = discoverSymbols(dir)
			if err != nil {
				return err
			}
		}
		if len(symbols) == 0 {
			zap.L().Warn("no payload files found", zap.String("dir", dir))
			return nil
		}

		payloads := make(map[string]model.RawPayload, len(symbols))
		for _, symbol := range symbols {
			payload, err := loadPayload(dir, symbol)
			if err != nil {
				return err
			}
			payloads[symbol] = payload
		}

		mat := ingest.New(store, resolver, ingest.Options{
			MinPeriodsRequired:   cfg.PIT.MinPeriodsRequired,
			MaxConcurrentSymbols: cfg.Ingest.MaxConcurrentSymbols,
		})

		results, err := mat.EnsureBulk(ctx, payloads, ingestForceRefresh)
		if err != nil {
			return err
		}

		for symbol, created := range results {
			cmd.Printf("%s: %d snapshots created\n", symbol, created)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestPayloadDir, "payload-dir", "", "directory of payload JSON files (default from config)")
	ingestCmd.Flags().BoolVar(&ingestForceRefresh, "force-refresh", false, "wholesale replace existing snapshots before materializing")
	rootCmd.AddCommand(ingestCmd)
}

func discoverSymbols(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read payload dir %s", dir)
	}
	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".json"))
	}
	return symbols, nil
}

func loadPayload(dir, symbol string) (model.RawPayload, error) {
	path := filepath.Join(dir, symbol+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read payload %s", path)
	}
	var payload model.RawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse payload %s", path)
	}
	return payload, nil
}
