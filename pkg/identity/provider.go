// Package identity supplies the session's user. Sign-in completes
// asynchronously from the caller's point of view: the identity-change
// listeners are the single source of truth for who the current user is.
package identity

import (
	"context"
)

// User is an identity reported by a Provider.
type User struct {
	UID       string                 `json:"uid"`
	Anonymous bool                   `json:"anonymous"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
}

// Listener receives the current user, or nil when nobody is signed in.
type Listener func(*User)

// Provider is the identity provider consumed by the catalog session.
type Provider interface {
	SignInAnonymous(ctx context.Context) (*User, error)
	SignInWithToken(ctx context.Context, token string) (*User, error)

	// OnIdentityChange registers fn. fn is called once with the current user
	// and again after every change, always from the provider's own goroutine.
	// The returned function removes the listener.
	OnIdentityChange(fn Listener) (unsubscribe func(), err error)
}
