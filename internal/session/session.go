// ABOUTME: Process-wide Session holding the resolved Identity
// ABOUTME: Defines init on resolve and teardown on logout, with sign-in and identity hooks

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/tutorchat/internal/credential"
	"github.com/2389/tutorchat/internal/model"
)

// ErrNoIdentity is returned by operations that need a resolved Identity
// before Init succeeded or after Logout.
var ErrNoIdentity = errors.New("no resolved identity")

// Session carries the Identity for the lifetime of a sign-in.
type Session struct {
	resolver *Resolver
	creds    credential.Store
	logger   *slog.Logger

	mu         sync.RWMutex
	identity   *model.Identity
	onSignIn   []func()
	onIdentity []func(*model.Identity)
}

// New creates a Session. Pass nil logger for default.
func New(resolver *Resolver, creds credential.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		resolver: resolver,
		creds:    creds,
		logger:   logger.With("component", "session"),
	}
}

// OnSignInRequired registers fn to run whenever the user must sign in again.
func (s *Session) OnSignInRequired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignIn = append(s.onSignIn, fn)
}

// OnIdentity registers fn to run when the Identity is published (non-nil)
// or cleared (nil).
func (s *Session) OnIdentity(fn func(*model.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdentity = append(s.onIdentity, fn)
}

// Init resolves the Identity and publishes it. It may be called again on
// every dashboard mount; an unchanged Identity is not re-published. A
// cancelled resolve returns its error without touching the session.
func (s *Session) Init(ctx context.Context) (model.Identity, error) {
	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			s.clear()
			s.signInRequired()
		}
		return model.Identity{}, err
	}

	s.mu.Lock()
	changed := s.identity == nil || *s.identity != *identity
	s.identity = identity
	hooks := append([]func(*model.Identity){}, s.onIdentity...)
	s.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn(identity)
		}
	}
	return *identity, nil
}

// Identity returns the published Identity.
func (s *Session) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// MustIdentity returns the published Identity or ErrNoIdentity.
func (s *Session) MustIdentity() (model.Identity, error) {
	identity, ok := s.Identity()
	if !ok {
		return model.Identity{}, ErrNoIdentity
	}
	return identity, nil
}

// Logout clears the credential and the Identity, then signals sign-in.
func (s *Session) Logout(ctx context.Context) error {
	err := s.creds.Clear(ctx)
	s.clear()
	s.signInRequired()
	if err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

func (s *Session) clear() {
	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	hooks := append([]func(*model.Identity){}, s.onIdentity...)
	s.mu.Unlock()

	if had {
		for _, fn := range hooks {
			fn(nil)
		}
	}
}

func (s *Session) signInRequired() {
	s.mu.RLock()
	hooks := append([]func(){}, s.onSignIn...)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}
