package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/galois26/tender-sync/internal/sink"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateDSN
		if dsn == "" {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			dsn = cfg.Sinks.Postgres.DSN
		}
		if dsn == "" {
			return errors.New("no postgres dsn: set sinks.postgres.dsn, POSTGRES_DSN or --dsn")
		}
		return sink.MigratePostgres(cmd.Context(), dsn)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "postgres DSN (overrides config)")
	rootCmd.AddCommand(migrateCmd)
}
