package adminauth

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Config holds the gate's runtime options.
type Config struct {
	// AllowList holds the emails that may ever hold an admin profile.
	AllowList       []string              `mapstructure:"allow_list" json:"allow_list"`
	Database        DatabaseConfig        `mapstructure:"database" json:"database"`
	IdentityToolkit IdentityToolkitConfig `mapstructure:"identity_toolkit" json:"identity_toolkit"`
	HTTP            HTTPConfig            `mapstructure:"http" json:"http"`
	LogLevel        string                `mapstructure:"log_level" json:"log_level"`
}

// DatabaseConfig points at the sqlite file holding profiles and client settings.
type DatabaseConfig struct {
	Path  string `mapstructure:"path" json:"path"`
	Debug bool   `mapstructure:"debug" json:"debug"`
}

// IdentityToolkitConfig configures the REST identity provider.
type IdentityToolkitConfig struct {
	APIKey    string        `mapstructure:"api_key" json:"-"`
	ProjectID string        `mapstructure:"project_id" json:"project_id"`
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	JWKSURL   string        `mapstructure:"jwks_url" json:"jwks_url"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
}

// HTTPConfig configures the admin API listener.
//
// The API serves the one session held by this process to whoever calls it,
// so it must only be reachable by the local admin UI. Non-loopback addresses
// are rejected unless AllowRemote is set.
type HTTPConfig struct {
	Addr        string `mapstructure:"addr" json:"addr"`
	Prefix      string `mapstructure:"prefix" json:"prefix"`
	AllowRemote bool   `mapstructure:"allow_remote" json:"allow_remote"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "admin-auth.db",
		},
		IdentityToolkit: IdentityToolkitConfig{
			BaseURL: "https://identitytoolkit.googleapis.com/v1",
			Timeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:   "127.0.0.1:8088",
			Prefix: "/admin/auth",
		},
		LogLevel: "info",
	}
}

// Validate will validate the configuration
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.AllowList, validation.Required, validation.By(validateEmails)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)

	return errors.Join(
		err,
		prefixErr("database", c.Database.Validate()),
		prefixErr("identity_toolkit", c.IdentityToolkit.Validate()),
		prefixErr("http", c.HTTP.Validate()),
	)
}

// Validate will validate the database options
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate will validate the identity toolkit options
func (c IdentityToolkitConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.ProjectID, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.JWKSURL, is.URL),
	)
}

// Validate will validate the HTTP options
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required, validation.By(func(any) error {
			if c.AllowRemote || c.IsLoopback() {
				return nil
			}
			return errors.New("must be a loopback address unless allow_remote is set")
		})),
	)
}

// IsLoopback reports whether Addr only listens on the loopback interface.
// An empty host listens on every interface.
func (c HTTPConfig) IsLoopback() bool {
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// BuildAllowList returns the immutable allow-list for the configured emails.
func (c Config) BuildAllowList() AllowList {
	return NewAllowList(c.AllowList...)
}

func validateEmails(value any) error {
	emails, _ := value.([]string)
	for i, e := range emails {
		if err := validation.Validate(e, validation.Required, is.Email); err != nil {
			return fmt.Errorf("entry %d (%q): %w", i, e, err)
		}
	}
	return nil
}

func prefixErr(prefix string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
