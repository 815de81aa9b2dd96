package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		pool, err := connectPostgres(cmd.Context(), log)
		if err != nil {
			return err
		}
		pool.Close()
		log.InfoContext(cmd.Context(), "migrations applied")
		return nil
	},
}
