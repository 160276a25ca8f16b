package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mmynk/fairshare/internal/config"
	"github.com/mmynk/fairshare/internal/storage/sqlstore"
)

func migrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset]",
		Short: "Run database migrations",
		Long: `Runs the embedded goose migrations against the configured SQL database.
The command defaults to "up". "serve" also migrates up on start.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version", "redo", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			driver := sqlstore.DriverSQLite
			switch a.cfg.Database.Type {
			case config.DatabasePostgres:
				driver = sqlstore.DriverPostgres
			case config.DatabaseMemory:
				return errors.New("the memory store has no schema to migrate")
			}

			db, err := sqlstore.Open(cmd.Context(), driver, a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			return sqlstore.Migrate(cmd.Context(), db, command)
		},
	}
	return cmd
}
