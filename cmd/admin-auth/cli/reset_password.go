package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reset-password <email>",
		Short:   "Send a password reset email to an allow-listed admin",
		Args:    cobra.ExactArgs(1),
		Example: `  admin-auth reset-password ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.authorizer.SendPasswordReset(ctx, args[0]); err != nil {
				return fmt.Errorf("reset password for %s: %s", args[0], describeError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password reset sent to %s\n", args[0])
			return nil
		},
	}
}
