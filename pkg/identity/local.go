package identity

import (
	"context"
	"fmt"
	"sync"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/logging"
	"github.com/grovetools/appshelf/state"
	"github.com/sirupsen/logrus"
)

// anonymousKey is the state file key holding the persisted anonymous uid.
const anonymousKey = "anonymous_uid"

// uidClaims are checked in order for the user id of a token.
var uidClaims = []string{"sub", "uid", "user_id"}

// Options configures a LocalProvider.
type Options struct {
	// State persists the anonymous uid between runs. Nil disables persistence.
	State *state.File
	// TokenSecret verifies HS256/384/512 tokens. Empty decodes tokens unverified.
	TokenSecret string
}

type notification struct {
	listener int
	user     *User
}

// LocalProvider is an in-process identity provider. Anonymous users get a
// random uuid; token users are read from a JWT.
type LocalProvider struct {
	mu        sync.Mutex
	current   *User
	listeners map[int]Listener
	nextID    int
	pending   []notification
	closed    bool

	state  *state.File
	secret []byte
	logger *logrus.Entry

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewLocalProvider creates a provider and starts its dispatcher.
// A persisted anonymous user, if any, is the initial current user.
func NewLocalProvider(opts Options) *LocalProvider {
	p := &LocalProvider{
		listeners: make(map[int]Listener),
		state:     opts.State,
		logger:    logging.NewLogger("identity"),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if opts.TokenSecret != "" {
		p.secret = []byte(opts.TokenSecret)
	}
	if p.state != nil {
		if uid, err := p.state.GetString(anonymousKey); err != nil {
			p.logger.WithError(err).Warn("Failed to read persisted identity")
		} else if uid != "" {
			p.current = &User{UID: uid, Anonymous: true}
		}
	}

	p.wg.Add(1)
	go p.dispatch()
	return p
}

// CurrentUser returns the signed-in user or nil.
func (p *LocalProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SignInAnonymous signs in as the anonymous user, reusing the current or
// persisted one when available.
func (p *LocalProvider) SignInAnonymous(ctx context.Context) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ProviderFailed("anonymous sign-in", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.ProviderFailed("anonymous sign-in", fmt.Errorf("provider closed"))
	}
	if p.current != nil && p.current.Anonymous {
		return p.current, nil
	}

	user := &User{UID: uuid.NewString(), Anonymous: true}
	if p.state != nil {
		if err := p.state.Set(anonymousKey, user.UID); err != nil {
			// The session still works, it just won't survive a restart.
			p.logger.WithError(err).Warn("Failed to persist anonymous identity")
		}
	}
	p.logger.WithField("user_id", user.UID).Debug("Signed in anonymously")
	p.setLocked(user)
	return user, nil
}

// SignInWithToken signs in as the subject of a JWT.
func (p *LocalProvider) SignInWithToken(ctx context.Context, token string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ProviderFailed("token sign-in", err)
	}

	claims, err := p.parseToken(token)
	if err != nil {
		return nil, errors.ProviderFailed("token sign-in", err)
	}

	uid := ""
	for _, key := range uidClaims {
		if v, ok := claims[key].(string); ok && v != "" {
			uid = v
			break
		}
	}
	if uid == "" {
		return nil, errors.ProviderFailed("token sign-in", fmt.Errorf("token has no subject"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.ProviderFailed("token sign-in", fmt.Errorf("provider closed"))
	}
	user := &User{UID: uid, Claims: claims}
	p.logger.WithField("user_id", uid).Debug("Signed in with token")
	p.setLocked(user)
	return user, nil
}

func (p *LocalProvider) parseToken(token string) (gojwt.MapClaims, error) {
	claims := gojwt.MapClaims{}
	if p.secret == nil {
		if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}

	parser := gojwt.NewParser(gojwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if _, err := parser.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return p.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignOut clears the current user. The persisted anonymous uid is kept.
func (p *LocalProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(nil)
}

// setLocked must be called with p.mu held.
func (p *LocalProvider) setLocked(user *User) {
	prev := p.current
	p.current = user
	if sameUser(prev, user) {
		return
	}
	for id := range p.listeners {
		p.pending = append(p.pending, notification{listener: id, user: user})
	}
	p.signal()
}

// OnIdentityChange registers fn and schedules a call with the current user.
func (p *LocalProvider) OnIdentityChange(fn Listener) (func(), error) {
	if fn == nil {
		return nil, errors.ProviderFailed("identity listener", fmt.Errorf("nil listener"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.ProviderFailed("identity listener", fmt.Errorf("provider closed"))
	}

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.pending = append(p.pending, notification{listener: id, user: p.current})
	p.signal()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.listeners, id)
		})
	}, nil
}

// Listeners returns the number of registered listeners.
func (p *LocalProvider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *LocalProvider) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers notifications one at a time, in the order they were queued.
func (p *LocalProvider) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		p.mu.Lock()
		batch := p.pending
		p.pending = nil
		p.mu.Unlock()

		for _, n := range batch {
			if fn := p.listener(n.listener); fn != nil {
				fn(n.user)
			}
		}
	}
}

// listener returns the listener with id, or nil once it has been removed.
// Listeners removed after a notification was queued do not receive it.
func (p *LocalProvider) listener(id int) Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners[id]
}

// Close stops the dispatcher. Pending notifications are dropped.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.listeners = make(map[int]Listener)
	p.pending = nil
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	return nil
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID && a.Anonymous == b.Anonymous
}

var _ Provider = (*LocalProvider)(nil)
