// Package adminauthtest provides in-memory doubles for adminauth collaborators.
package adminauthtest

import (
	"context"
	"sync"
	"time"

	adminauth "github.com/goliatone/go-admin-auth"
)

type account struct {
	id       string
	email    string
	password string
	created  time.Time
}

// FakeIdentityProvider is an in-memory adminauth.IdentityProvider that counts
// calls and lets tests inject failures and identity changes.
type FakeIdentityProvider struct {
	mu        sync.Mutex
	accounts  map[string]account
	current   adminauth.Identity
	listeners map[uint64]adminauth.IdentityListener
	nextID    uint64
	queue     []queued
	draining  bool
	now       func() time.Time

	verifyErr  error
	signOutErr error
	resetErr   error

	verifyCalls   int
	signOutCalls  int
	resetRequests []string
}

type queued struct {
	identity adminauth.Identity
	target   uint64
}

var _ adminauth.IdentityProvider = (*FakeIdentityProvider)(nil)

// NewFakeIdentityProvider returns a provider with no accounts.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		accounts:  map[string]account{},
		listeners: map[uint64]adminauth.IdentityListener{},
		now:       time.Now,
	}
}

// AddAccount registers a credential.
func (f *FakeIdentityProvider) AddAccount(id, email, password string) *FakeIdentityProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = account{id: id, email: email, password: password, created: f.now()}
	return f
}

// SetVerifyError makes every VerifyPassword call fail with err until reset with nil.
func (f *FakeIdentityProvider) SetVerifyError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyErr = err
}

// SetSignOutError makes SignOut fail with err. The identity is kept.
func (f *FakeIdentityProvider) SetSignOutError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutErr = err
}

// SetResetError makes SendPasswordReset fail with err.
func (f *FakeIdentityProvider) SetResetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetErr = err
}

func (f *FakeIdentityProvider) VerifyPassword(ctx context.Context, email, password string) (adminauth.Identity, error) {
	f.mu.Lock()
	f.verifyCalls++
	if f.verifyErr != nil {
		err := f.verifyErr
		f.mu.Unlock()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		f.mu.Unlock()
		return nil, adminauth.NetworkError(err)
	}
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		f.mu.Unlock()
		return nil, adminauth.ErrInvalidCredential
	}
	identity := adminauth.NewIdentity(acc.id, acc.email, acc.created, f.now())
	f.mu.Unlock()

	f.SetIdentity(identity)
	return identity, nil
}

func (f *FakeIdentityProvider) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	if f.signOutErr != nil {
		err := f.signOutErr
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	f.SetIdentity(nil)
	return nil
}

func (f *FakeIdentityProvider) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetRequests = append(f.resetRequests, email)
	if f.resetErr != nil {
		return f.resetErr
	}
	if _, ok := f.accounts[email]; !ok {
		return adminauth.ErrNotFound
	}
	return nil
}

func (f *FakeIdentityProvider) CurrentIdentity() adminauth.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FakeIdentityProvider) OnIdentityChanged(listener adminauth.IdentityListener) adminauth.Unsubscribe {
	if listener == nil {
		return func() {}
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = listener
	f.queue = append(f.queue, queued{identity: f.current, target: id})
	f.mu.Unlock()

	f.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// SetIdentity replaces the current identity and notifies listeners, as if
// the session changed outside the gate.
func (f *FakeIdentityProvider) SetIdentity(identity adminauth.Identity) {
	f.mu.Lock()
	if f.current == nil && identity == nil {
		f.mu.Unlock()
		return
	}
	f.current = identity
	f.queue = append(f.queue, queued{identity: identity})
	f.mu.Unlock()

	f.drain()
}

func (f *FakeIdentityProvider) drain() {
	f.mu.Lock()
	if f.draining {
		f.mu.Unlock()
		return
	}
	f.draining = true

	for len(f.queue) > 0 {
		n := f.queue[0]
		f.queue = f.queue[1:]

		var targets []adminauth.IdentityListener
		if n.target != 0 {
			if l, ok := f.listeners[n.target]; ok {
				targets = append(targets, l)
			}
		} else {
			for _, l := range f.listeners {
				targets = append(targets, l)
			}
		}
		f.mu.Unlock()

		for _, l := range targets {
			l(n.identity)
		}

		f.mu.Lock()
	}

	f.draining = false
	f.mu.Unlock()
}

// VerifyCalls returns how many times VerifyPassword ran.
func (f *FakeIdentityProvider) VerifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

// SignOutCalls returns how many times SignOut ran.
func (f *FakeIdentityProvider) SignOutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// ResetRequests returns the emails passed to SendPasswordReset.
func (f *FakeIdentityProvider) ResetRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resetRequests...)
}
