package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-admin-auth/repository"
)

func newMigrateCmd() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("database.path")
			if path == "" {
				return fmt.Errorf("database.path is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := repository.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()

			run := repository.Migrate
			verb := "applied"
			if rollback {
				run = repository.Rollback
				verb = "rolled back"
			}

			names, err := run(ctx, db)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
				return nil
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "Roll back the last migration group")

	return cmd
}
