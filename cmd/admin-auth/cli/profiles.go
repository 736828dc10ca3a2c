package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-admin-auth/repository"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List stored admin profiles",
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

			if _, err := repository.Migrate(ctx, db); err != nil {
				return err
			}

			profiles, err := repository.NewProfileRepository(db).List(ctx)
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no admin profiles")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s %-28s %-12s %-7s %-16s %s\n", "EMAIL", "ID", "ROLE", "ACTIVE", "PERMISSIONS", "LAST LOGIN")
			fmt.Fprintf(out, "%-30s %-28s %-12s %-7s %-16s %s\n", "-----", "--", "----", "------", "-----------", "----------")
			for _, p := range profiles {
				lastLogin := "-"
				if !p.LastLogin.IsZero() {
					lastLogin = p.LastLogin.UTC().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%-30s %-28s %-12s %-7t %-16s %s\n",
					p.Email, p.ID, p.Role, p.IsActive, strings.Join(p.Permissions, ","), lastLogin)
			}
			return nil
		},
	}
}
