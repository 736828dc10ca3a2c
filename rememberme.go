package adminauth

import (
	"context"
	"strconv"
	"sync"
)

const (
	// RememberMeEmailKey holds the remembered login email.
	RememberMeEmailKey = "adminEmail"
	// RememberMeEnabledKey holds the opt-in flag as "true"/"false".
	RememberMeEnabledKey = "rememberAdmin"
)

// KeyValueStore is durable client-side scalar storage.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RememberMeHint pre-fills the login form. It is never used for authorization.
type RememberMeHint struct {
	Email   string `json:"email"`
	Enabled bool   `json:"enabled"`
}

// RememberMeStore persists the login form hint. No password is ever stored
// and entries never expire.
type RememberMeStore struct {
	kv KeyValueStore
}

// NewRememberMeStore returns a store backed by kv.
func NewRememberMeStore(kv KeyValueStore) *RememberMeStore {
	return &RememberMeStore{kv: kv}
}

// Get returns the hint when an email is stored and the flag is enabled.
func (r *RememberMeStore) Get(ctx context.Context) (RememberMeHint, bool, error) {
	email, ok, err := r.kv.Get(ctx, RememberMeEmailKey)
	if err != nil || !ok || email == "" {
		return RememberMeHint{}, false, err
	}

	raw, ok, err := r.kv.Get(ctx, RememberMeEnabledKey)
	if err != nil || !ok {
		return RememberMeHint{}, false, err
	}

	enabled, _ := strconv.ParseBool(raw)
	if !enabled {
		return RememberMeHint{}, false, nil
	}

	return RememberMeHint{Email: email, Enabled: true}, true, nil
}

// Set stores both entries.
func (r *RememberMeStore) Set(ctx context.Context, email string, enabled bool) error {
	if err := r.kv.Set(ctx, RememberMeEmailKey, email); err != nil {
		return err
	}
	return r.kv.Set(ctx, RememberMeEnabledKey, strconv.FormatBool(enabled))
}

// Clear removes both entries.
func (r *RememberMeStore) Clear(ctx context.Context) error {
	if err := r.kv.Delete(ctx, RememberMeEmailKey); err != nil {
		return err
	}
	return r.kv.Delete(ctx, RememberMeEnabledKey)
}

// MemoryKeyValueStore is a process-local KeyValueStore.
type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyValueStore returns an empty store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: map[string]string{}}
}

func (m *MemoryKeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKeyValueStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKeyValueStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ KeyValueStore = (*MemoryKeyValueStore)(nil)
