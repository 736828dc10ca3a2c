package identitytoolkit

import "time"

// Identity is the signed-in account. Tokens stay unexported so they never
// leak through the adminauth.Identity interface.
type Identity struct {
	id           string
	email        string
	createdAt    time.Time
	lastSignInAt time.Time
	expiresAt    time.Time
	idToken      string
}

func (i *Identity) ID() string              { return i.id }
func (i *Identity) Email() string           { return i.email }
func (i *Identity) CreatedAt() time.Time    { return i.createdAt }
func (i *Identity) LastSignInAt() time.Time { return i.lastSignInAt }

// ExpiresAt reports when the ID token stops being valid.
func (i *Identity) ExpiresAt() time.Time { return i.expiresAt }

// IDToken returns the raw ID token for calls to other backends.
func (i *Identity) IDToken() string { return i.idToken }
