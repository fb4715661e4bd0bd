package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pit-store/internal/config"
	"github.com/sells-group/pit-store/internal/pit"
	"github.com/sells-group/pit-store/internal/snapstore"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pit-store",
	Short: "Point-in-time fundamentals snapshot store",
	Long:  "Materializes fetched fundamentals payloads into immutable point-in-time snapshots, builds leakage-safe panels from snapshot history, and validates them before downstream use.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore builds the resolver and snapshot store from configuration and
// runs migrations. The returned cleanup closes the backend.
func openStore(ctx context.Context) (*snapstore.Store, *pit.Resolver, func(), error) {
	resolver, err := pit.NewResolver(cfg.PIT.ResolverConfig())
	if err != nil {
		return nil, nil, nil, err
	}

	var backend snapstore.Backend
	switch cfg.Store.Driver {
	case "postgres":
		backend, err = snapstore.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		backend, err = snapstore.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	if err := backend.Migrate(ctx); err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := backend.Close(); err != nil {
			zap.L().Warn("closing store", zap.Error(err))
		}
	}
	return snapstore.New(backend, resolver), resolver, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
