package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/identity"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/sirupsen/logrus"
)

// IdentityBootstrap signs the session in and reports every identity the
// provider announces. When the provider reports nobody, a random id stands
// in so consumers always have a usable user id.
type IdentityBootstrap struct {
	provider identity.Provider
	token    string
	newID    func() string
	logger   *logrus.Entry

	mu          sync.Mutex
	unsubscribe func()
	cancel      context.CancelFunc
	signInErr   error
	wg          sync.WaitGroup
}

// NewIdentityBootstrap creates a bootstrap. An empty token signs in anonymously.
func NewIdentityBootstrap(provider identity.Provider, token string, logger *logrus.Entry) *IdentityBootstrap {
	return &IdentityBootstrap{
		provider: provider,
		token:    token,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Start registers the identity listener and begins sign-in in the background.
// The returned error is a provider failure; the session stays not-ready.
// Sign-in failures are logged and available from SignInErr.
func (b *IdentityBootstrap) Start(ctx context.Context, onChange func(models.Identity)) error {
	if b.provider == nil {
		return errors.ProviderFailed("initialize", fmt.Errorf("no identity provider configured"))
	}

	unsubscribe, err := b.provider.OnIdentityChange(func(u *identity.User) {
		uid := ""
		if u != nil {
			uid = u.UID
		} else {
			uid = b.newID()
		}
		b.logger.WithField("user_id", uid).Debug("Identity changed")
		onChange(models.Identity{UserID: uid, Ready: true})
	})
	if err != nil {
		return errors.ProviderFailed("subscribe", err)
	}

	signInCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.unsubscribe = unsubscribe
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		var err error
		if b.token != "" {
			_, err = b.provider.SignInWithToken(signInCtx, b.token)
		} else {
			_, err = b.provider.SignInAnonymous(signInCtx)
		}
		if err != nil {
			b.logger.WithError(err).Error("Sign-in failed")
			b.mu.Lock()
			b.signInErr = err
			b.mu.Unlock()
		}
	}()
	return nil
}

// SignInErr returns the sign-in failure, if any.
func (b *IdentityBootstrap) SignInErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signInErr
}

// Close releases the identity listener and waits for sign-in to finish.
func (b *IdentityBootstrap) Close() {
	b.mu.Lock()
	unsubscribe, cancel := b.unsubscribe, b.cancel
	b.unsubscribe, b.cancel = nil, nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}
