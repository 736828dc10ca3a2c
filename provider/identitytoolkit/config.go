package identitytoolkit

import (
	"errors"
	"net/http"
	"strings"
	"time"

	adminauth "github.com/goliatone/go-admin-auth"
)

// DefaultBaseURL is the public Identity Toolkit v1 endpoint.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1"

// SecureTokenJWKSURL publishes the keys that sign Firebase ID tokens.
const SecureTokenJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// Config holds Identity Toolkit options.
type Config struct {
	// APIKey is the web API key sent as the key query parameter.
	APIKey string

	// ProjectID is used to derive the token issuer and audience.
	ProjectID string

	// BaseURL overrides DefaultBaseURL (emulators, tests).
	BaseURL string

	// JWKSURL enables signature verification of ID tokens. When empty the
	// token is decoded without verification; it came straight from the
	// sign-in response over TLS.
	JWKSURL string

	// Timeout bounds every HTTP call. Default: 10 seconds.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger adminauth.Logger
	Clock  func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(apiKey, projectID string) Config {
	return Config{
		APIKey:    apiKey,
		ProjectID: projectID,
		BaseURL:   DefaultBaseURL,
		Timeout:   10 * time.Second,
	}
}

// FromAdminConfig maps the shared configuration block.
func FromAdminConfig(c adminauth.IdentityToolkitConfig) Config {
	cfg := DefaultConfig(c.APIKey, c.ProjectID)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	cfg.JWKSURL = c.JWKSURL
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("identitytoolkit: api key is required")
	}
	if c.JWKSURL != "" && strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("identitytoolkit: project id is required to verify tokens")
	}
	return nil
}

func (c Config) baseURL() string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/")
}

func (c Config) issuer() string {
	return "https://securetoken.google.com/" + c.ProjectID
}
