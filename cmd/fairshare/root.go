package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/fairshare/internal/config"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/internal/storage/memstore"
	"github.com/mmynk/fairshare/internal/storage/sqlstore"
	"github.com/mmynk/fairshare/pkg/logging"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "fairshare",
		Short: "Settle group expenses",
		Long: `fairshare tracks shared expenses per group, reduces the group's balances to a
minimal set of transfers when an admin finalizes it, and follows each transfer
until the receiver confirms it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				os.Setenv("CONFIG_FILE", path)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Setup(cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(serveCommand(a))
	cmd.AddCommand(migrateCommand(a))
	cmd.AddCommand(previewCommand(a))
	cmd.AddCommand(tokenCommand(a))

	return cmd
}

// openStore opens the configured backend. SQL stores are migrated up.
func openStore(ctx context.Context, db config.DatabaseConfig) (storage.Store, error) {
	switch db.Type {
	case config.DatabaseMemory:
		return memstore.New(), nil
	case config.DatabaseSQLite:
		return sqlstore.New(ctx, sqlstore.DriverSQLite, db.URL)
	case config.DatabasePostgres:
		return sqlstore.New(ctx, sqlstore.DriverPostgres, db.URL)
	default:
		return nil, fmt.Errorf("unknown database type %q", db.Type)
	}
}
