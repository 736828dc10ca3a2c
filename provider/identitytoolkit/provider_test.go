package identitytoolkit_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adminauth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/provider/identitytoolkit"
)

const testProject = "admin-console"

type fakeBackend struct {
	t        *testing.T
	mu       sync.Mutex
	accounts map[string]string
	tokenFn  func(uid, email string) string
	calls    map[string]int
	failWith int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:        t,
		accounts: map[string]string{"ops@example.com": "hunter2"},
		calls:    map[string]int{},
		tokenFn: func(uid, email string) string {
			return signHS256(t, uid, email)
		},
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	method := strings.TrimPrefix(r.URL.Path, "/v1/")
	b.calls[method]++

	if r.URL.Query().Get("key") != "test-key" {
		writeAPIError(w, http.StatusBadRequest, "API_KEY_INVALID")
		return
	}
	if b.failWith != 0 {
		w.WriteHeader(b.failWith)
		return
	}

	var body map[string]any
	require.NoError(b.t, json.NewDecoder(r.Body).Decode(&body))

	switch method {
	case "accounts:signInWithPassword":
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)
		want, ok := b.accounts[email]
		if !ok {
			writeAPIError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
			return
		}
		if want != password {
			writeAPIError(w, http.StatusBadRequest, "INVALID_PASSWORD")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-" + strings.Split(email, "@")[0],
			"email":        email,
			"idToken":      b.tokenFn("uid-"+strings.Split(email, "@")[0], email),
			"refreshToken": "refresh",
			"expiresIn":    "3600",
			"registered":   true,
		})
	case "accounts:lookup":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"localId":     "uid-ops",
				"email":       "ops@example.com",
				"createdAt":   "1700000000000",
				"lastLoginAt": "1760000000000",
			}},
		})
	case "accounts:sendOobCode":
		email, _ := body["email"].(string)
		if _, ok := b.accounts[email]; !ok {
			writeAPIError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"email": email})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) count(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func signHS256(t *testing.T, uid, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       uid,
		"email":     email,
		"iss":       "https://securetoken.google.com/" + testProject,
		"aud":       testProject,
		"auth_time": time.Now().Unix(),
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("not-verified"))
	require.NoError(t, err)
	return signed
}

func newProvider(t *testing.T, backend http.Handler) (*identitytoolkit.Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := identitytoolkit.DefaultConfig("test-key", testProject)
	cfg.BaseURL = srv.URL + "/v1"

	p, err := identitytoolkit.New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, srv
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := identitytoolkit.New(identitytoolkit.Config{})
	assert.Error(t, err)
}

func TestVerifyPasswordSignsIn(t *testing.T) {
	p, _ := newProvider(t, newFakeBackend(t))

	identity, err := p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, "uid-ops", identity.ID())
	assert.Equal(t, "ops@example.com", identity.Email())
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), identity.CreatedAt())
	assert.Equal(t, time.UnixMilli(1760000000000).UTC(), identity.LastSignInAt())

	current := p.CurrentIdentity()
	require.NotNil(t, current)
	assert.Equal(t, "uid-ops", current.ID())
}

func TestVerifyPasswordErrors(t *testing.T) {
	p, _ := newProvider(t, newFakeBackend(t))
	ctx := context.Background()

	_, err := p.VerifyPassword(ctx, "ops@example.com", "wrong")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)

	_, err = p.VerifyPassword(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)

	assert.Nil(t, p.CurrentIdentity())
}

func TestVerifyPasswordServerErrorIsNetwork(t *testing.T) {
	backend := newFakeBackend(t)
	backend.failWith = http.StatusServiceUnavailable
	p, _ := newProvider(t, backend)

	_, err := p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
	assert.Equal(t, adminauth.FailureNetwork, adminauth.ClassifyFailure(err))
}

func TestVerifyPasswordTooManyAttemptsIsNetwork(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled")
	})
	p, _ := newProvider(t, handler)

	_, err := p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	assert.ErrorIs(t, err, adminauth.ErrNetwork)

	var apiErr *identitytoolkit.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "TOO_MANY_ATTEMPTS_TRY_LATER", apiErr.Code)
}

func TestVerifyPasswordUnreachableIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	cfg := identitytoolkit.DefaultConfig("test-key", testProject)
	cfg.BaseURL = srv.URL
	p, err := identitytoolkit.New(cfg)
	require.NoError(t, err)

	_, err = p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	assert.ErrorIs(t, err, adminauth.ErrNetwork)
}

func TestVerifyPasswordRejectsSubjectMismatch(t *testing.T) {
	backend := newFakeBackend(t)
	backend.tokenFn = func(_, email string) string {
		return signHS256(t, "someone-else", email)
	}
	p, _ := newProvider(t, backend)

	_, err := p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)
	assert.Nil(t, p.CurrentIdentity())
}

func TestSendPasswordReset(t *testing.T) {
	backend := newFakeBackend(t)
	p, _ := newProvider(t, backend)
	ctx := context.Background()

	require.NoError(t, p.SendPasswordReset(ctx, "ops@example.com"))
	assert.ErrorIs(t, p.SendPasswordReset(ctx, "ghost@example.com"), adminauth.ErrNotFound)
	assert.Equal(t, 2, backend.count("accounts:sendOobCode"))
}

func TestListenersSeeChangesInOrder(t *testing.T) {
	p, _ := newProvider(t, newFakeBackend(t))
	ctx := context.Background()

	var seen []string
	unsubscribe := p.OnIdentityChanged(func(identity adminauth.Identity) {
		if identity == nil {
			seen = append(seen, "nil")
			return
		}
		seen = append(seen, identity.ID())
	})

	_, err := p.VerifyPassword(ctx, "ops@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))

	unsubscribe()
	unsubscribe()
	_, err = p.VerifyPassword(ctx, "ops@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, []string{"nil", "uid-ops", "nil"}, seen)
}

func TestListenerMaySignOutReentrantly(t *testing.T) {
	p, _ := newProvider(t, newFakeBackend(t))
	ctx := context.Background()

	var seen []string
	p.OnIdentityChanged(func(identity adminauth.Identity) {
		if identity == nil {
			seen = append(seen, "nil")
			return
		}
		seen = append(seen, identity.ID())
		require.NoError(t, p.SignOut(ctx))
	})

	_, err := p.VerifyPassword(ctx, "ops@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, []string{"nil", "uid-ops", "nil"}, seen)
	assert.Nil(t, p.CurrentIdentity())
}

func TestVerifyPasswordWithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwksHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	jwksSrv := httptest.NewServer(jwksHandler)
	t.Cleanup(jwksSrv.Close)

	backend := newFakeBackend(t)
	backend.tokenFn = func(uid, email string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"sub":   uid,
			"email": email,
			"iss":   "https://securetoken.google.com/" + testProject,
			"aud":   testProject,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		token.Header["kid"] = "k1"
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := identitytoolkit.DefaultConfig("test-key", testProject)
	cfg.BaseURL = srv.URL + "/v1"
	cfg.JWKSURL = jwksSrv.URL

	p, err := identitytoolkit.New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	identity, err := p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "uid-ops", identity.ID())

	// an HS256 token cannot pass RS256 verification
	backend.mu.Lock()
	backend.tokenFn = func(uid, email string) string { return signHS256(t, uid, email) }
	backend.mu.Unlock()
	_, err = p.VerifyPassword(context.Background(), "ops@example.com", "hunter2")
	assert.ErrorIs(t, err, adminauth.ErrInvalidCredential)
}
