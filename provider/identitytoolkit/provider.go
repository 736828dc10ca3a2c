package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	adminauth "github.com/goliatone/go-admin-auth"
)

// Provider implements adminauth.IdentityProvider.
type Provider struct {
	config  Config
	client  *http.Client
	logger  adminauth.Logger
	now     func() time.Time
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc

	mu        sync.Mutex
	current   *Identity
	listeners map[uint64]adminauth.IdentityListener
	nextID    uint64
	queue     []notification
	draining  bool
}

var _ adminauth.IdentityProvider = (*Provider)(nil)

type notification struct {
	identity adminauth.Identity
	// target is a listener id, zero means every listener
	target uint64
}

// New creates a Provider. When cfg.JWKSURL is set the key set is fetched
// before New returns and refreshed in the background until Close.
func New(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config:    cfg,
		client:    cfg.HTTPClient,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		listeners: map[uint64]adminauth.IdentityListener{},
	}

	if p.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		p.client = &http.Client{Timeout: timeout}
	}
	if p.logger == nil {
		p.logger = adminauth.NopLogger()
	}
	if p.now == nil {
		p.now = time.Now
	}

	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Client: p.client,
			RefreshErrorHandler: func(err error) {
				p.logger.Warn("failed to refresh identity toolkit JWKS", "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("identitytoolkit: failed to get JWKS: %w", err)
		}
		p.jwks = jwks
		p.keyFunc = jwks.Keyfunc
	}

	return p, nil
}

// Close stops the background JWKS refresh.
func (p *Provider) Close() {
	if p.jwks != nil {
		p.jwks.EndBackground()
	}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Registered   bool   `json:"registered"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		CreatedAt   string `json:"createdAt"`
		LastLoginAt string `json:"lastLoginAt"`
		Disabled    bool   `json:"disabled"`
	} `json:"users"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email"`
}

// VerifyPassword signs in with email and password and makes the resulting
// identity current.
func (p *Provider) VerifyPassword(ctx context.Context, email, password string) (adminauth.Identity, error) {
	var res signInResponse
	err := p.call(ctx, "accounts:signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &res)
	if err != nil {
		// an unknown email is a wrong credential on this path
		if errors.Is(err, adminauth.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", adminauth.ErrInvalidCredential, err)
		}
		return nil, err
	}

	claims, err := p.parseIDToken(res.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", adminauth.ErrInvalidCredential, err)
	}
	if claims.Subject != res.LocalID {
		return nil, fmt.Errorf("%w: token subject does not match account", adminauth.ErrInvalidCredential)
	}

	identity := &Identity{
		id:      res.LocalID,
		email:   firstNonEmpty(res.Email, claims.Email),
		idToken: res.IDToken,
	}
	if claims.IssuedAt != nil {
		identity.lastSignInAt = claims.IssuedAt.Time
	}
	if claims.AuthTime > 0 {
		identity.lastSignInAt = time.Unix(claims.AuthTime, 0).UTC()
	}
	if exp, err := strconv.Atoi(res.ExpiresIn); err == nil {
		identity.expiresAt = p.now().Add(time.Duration(exp) * time.Second)
	}

	p.enrich(ctx, identity)
	p.setCurrent(identity)

	p.logger.Debug("identity toolkit sign in", "uid", identity.id)
	return identity, nil
}

// enrich fills account metadata. Failures only cost metadata.
func (p *Provider) enrich(ctx context.Context, identity *Identity) {
	var res lookupResponse
	if err := p.call(ctx, "accounts:lookup", lookupRequest{IDToken: identity.idToken}, &res); err != nil {
		p.logger.Warn("identity toolkit account lookup failed", "uid", identity.id, "error", err)
		return
	}
	if len(res.Users) == 0 {
		return
	}

	user := res.Users[0]
	if t, ok := parseMillis(user.CreatedAt); ok {
		identity.createdAt = t
	}
	if t, ok := parseMillis(user.LastLoginAt); ok {
		identity.lastSignInAt = t
	}
}

// SignOut drops the current identity. Tokens are only held in memory, so
// there is nothing to revoke remotely.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return adminauth.NetworkError(err)
	}
	p.setCurrent(nil)
	return nil
}

// SendPasswordReset asks the backend to email a reset link.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	return p.call(ctx, "accounts:sendOobCode", oobRequest{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}, nil)
}

// CurrentIdentity returns the signed-in identity, or nil.
func (p *Provider) CurrentIdentity() adminauth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current
}

// OnIdentityChanged registers listener and delivers the current identity.
func (p *Provider) OnIdentityChanged(listener adminauth.IdentityListener) adminauth.Unsubscribe {
	if listener == nil {
		return func() {}
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = listener
	p.queue = append(p.queue, notification{identity: p.currentLocked(), target: id})
	p.mu.Unlock()

	p.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) setCurrent(identity *Identity) {
	p.mu.Lock()
	if p.current == nil && identity == nil {
		p.mu.Unlock()
		return
	}
	p.current = identity
	p.queue = append(p.queue, notification{identity: p.currentLocked()})
	p.mu.Unlock()

	p.drain()
}

func (p *Provider) currentLocked() adminauth.Identity {
	if p.current == nil {
		return nil
	}
	return p.current
}

// drain delivers queued notifications. Only one goroutine drains at a time;
// changes made by a listener are appended and picked up by the loop.
func (p *Provider) drain() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true

	for len(p.queue) > 0 {
		n := p.queue[0]
		p.queue = p.queue[1:]

		var targets []adminauth.IdentityListener
		if n.target != 0 {
			if l, ok := p.listeners[n.target]; ok {
				targets = append(targets, l)
			}
		} else {
			for _, l := range p.listeners {
				targets = append(targets, l)
			}
		}
		p.mu.Unlock()

		for _, l := range targets {
			l(n.identity)
		}

		p.mu.Lock()
	}

	p.draining = false
	p.mu.Unlock()
}

func (p *Provider) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", p.config.baseURL(), method, url.QueryEscape(p.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return adminauth.NetworkError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return adminauth.NetworkError(err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(res.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return adminauth.NetworkError(fmt.Errorf("identitytoolkit: decode %s response: %w", method, err))
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status, Code: http.StatusText(status)}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		apiErr.Code, apiErr.Message = parseErrorCode(env.Error.Message)
	}
	return apiErr
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	AuthTime int64  `json:"auth_time"`
}

func (p *Provider) parseIDToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}

	if p.keyFunc == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return nil, fmt.Errorf("identitytoolkit: decode id token: %w", err)
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(raw, claims, p.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(p.config.issuer()),
		jwt.WithAudience(p.config.ProjectID),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit: verify id token: %w", err)
	}
	return claims, nil
}

func parseMillis(raw string) (time.Time, bool) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
