package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	adminauth "github.com/goliatone/go-admin-auth"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin-auth",
		Short: "Admin access gate for the back office",
		Long: `admin-auth signs administrators in through the identity provider, enforces the
admin allow-list and profile status, and throttles repeated failed logins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./admin-auth.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newConsoleCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newProfilesCmd())
	cmd.AddCommand(newResetPasswordCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("admin-auth")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.admin-auth")
	}

	setDefaults(viper.GetViper(), adminauth.DefaultConfig())

	viper.SetEnvPrefix("ADMIN_AUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

// every key needs a default so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper, def adminauth.Config) {
	v.SetDefault("allow_list", def.AllowList)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("database.debug", def.Database.Debug)
	v.SetDefault("identity_toolkit.api_key", def.IdentityToolkit.APIKey)
	v.SetDefault("identity_toolkit.project_id", def.IdentityToolkit.ProjectID)
	v.SetDefault("identity_toolkit.base_url", def.IdentityToolkit.BaseURL)
	v.SetDefault("identity_toolkit.jwks_url", def.IdentityToolkit.JWKSURL)
	v.SetDefault("identity_toolkit.timeout", def.IdentityToolkit.Timeout)
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("http.prefix", def.HTTP.Prefix)
	v.SetDefault("http.allow_remote", def.HTTP.AllowRemote)
}

func loadConfig(v *viper.Viper) (adminauth.Config, error) {
	cfg := adminauth.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
