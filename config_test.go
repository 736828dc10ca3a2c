package adminauth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adminauth "github.com/goliatone/go-admin-auth"
)

func validConfig() adminauth.Config {
	cfg := adminauth.DefaultConfig()
	cfg.AllowList = []string{"admin@example.com", "Ops@Example.com"}
	cfg.IdentityToolkit.APIKey = "key"
	cfg.IdentityToolkit.ProjectID = "demo"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*adminauth.Config)
		field  string
	}{
		{name: "empty allow list", mutate: func(c *adminauth.Config) { c.AllowList = nil }, field: "allow_list"},
		{name: "bad email", mutate: func(c *adminauth.Config) { c.AllowList = []string{"not-an-email"} }, field: "not-an-email"},
		{name: "log level", mutate: func(c *adminauth.Config) { c.LogLevel = "loud" }, field: "log_level"},
		{name: "database path", mutate: func(c *adminauth.Config) { c.Database.Path = "" }, field: "database"},
		{name: "api key", mutate: func(c *adminauth.Config) { c.IdentityToolkit.APIKey = "" }, field: "identity_toolkit"},
		{name: "jwks url", mutate: func(c *adminauth.Config) { c.IdentityToolkit.JWKSURL = "not a url" }, field: "identity_toolkit"},
		{name: "http addr", mutate: func(c *adminauth.Config) { c.HTTP.Addr = "" }, field: "http"},
		{name: "all interfaces", mutate: func(c *adminauth.Config) { c.HTTP.Addr = ":8088" }, field: "loopback"},
		{name: "public address", mutate: func(c *adminauth.Config) { c.HTTP.Addr = "0.0.0.0:8088" }, field: "loopback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfigBuildAllowList(t *testing.T) {
	list := validConfig().BuildAllowList()

	assert.Equal(t, 2, list.Len())
	assert.True(t, list.Contains("ops@example.com"))
}

func TestHTTPConfigLoopback(t *testing.T) {
	assert.True(t, adminauth.DefaultConfig().HTTP.IsLoopback())

	tests := []struct {
		addr     string
		loopback bool
	}{
		{"127.0.0.1:8088", true},
		{"localhost:8088", true},
		{"[::1]:8088", true},
		{":8088", false},
		{"0.0.0.0:8088", false},
		{"10.0.0.5:8088", false},
		{"admin.internal:8088", false},
		{"no-port", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.loopback, adminauth.HTTPConfig{Addr: tt.addr}.IsLoopback(), tt.addr)
	}

	cfg := validConfig()
	cfg.HTTP.Addr = "0.0.0.0:8088"
	cfg.HTTP.AllowRemote = true
	assert.NoError(t, cfg.Validate())
}
