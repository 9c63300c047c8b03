package main

import (
	"errors"

	"github.com/RestinGreen/stable-pricer/pkg/database"
	"github.com/spf13/cobra"
)

func migrateCmd(setup func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the pair snapshot tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			if !a.general.DatabaseEnabled() {
				return errors.New("PGSQL_USER and PGSQL_DBNAME must be set")
			}
			db, err := database.NewDB(cmd.Context(), a.general, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.log.Info("database migrated")
			return nil
		},
	}
}
