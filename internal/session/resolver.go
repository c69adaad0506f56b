// ABOUTME: Session Resolver: one identity request per mount using the stored credential
// ABOUTME: Any failure other than cancellation clears the credential and reports ErrAuthExpired

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/tutorchat/internal/credential"
	"github.com/2389/tutorchat/internal/model"
)

// ErrAuthExpired means the credential is missing, expired or rejected; the
// user must sign in again.
var ErrAuthExpired = errors.New("authentication expired")

// IdentityFetcher performs the "who am I" request.
type IdentityFetcher interface {
	Me(ctx context.Context) (*model.Identity, error)
}

// Resolver resolves the current Identity from the stored credential.
type Resolver struct {
	api    IdentityFetcher
	creds  credential.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. Pass nil logger for default.
func NewResolver(api IdentityFetcher, creds credential.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		api:    api,
		creds:  creds,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// Resolve returns the Identity for the stored credential. On any failure the
// credential is cleared and the returned error wraps ErrAuthExpired. A
// cancelled ctx leaves the credential alone and returns the cancellation.
func (r *Resolver) Resolve(ctx context.Context) (*model.Identity, error) {
	token, err := r.creds.Token(ctx)
	if cancelled(err) {
		return nil, fmt.Errorf("reading credential: %w", err)
	}
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			r.logger.Warn("reading credential failed", "error", err)
		}
		return nil, r.expire(ctx, "missing credential")
	}

	if credential.Expired(token, r.now()) {
		return nil, r.expire(ctx, "credential expired")
	}

	identity, err := r.api.Me(ctx)
	if cancelled(err) {
		r.logger.Debug("identity request cancelled")
		return nil, fmt.Errorf("resolving identity: %w", err)
	}
	if err != nil {
		r.logger.Info("identity request failed", "error", err)
		return nil, r.expire(ctx, err.Error())
	}
	if identity.ID == "" {
		return nil, r.expire(ctx, "identity without id")
	}

	r.logger.Debug("identity resolved", "identity_id", identity.ID)
	return identity, nil
}

func (r *Resolver) expire(ctx context.Context, reason string) error {
	if err := r.creds.Clear(ctx); err != nil {
		r.logger.Warn("clearing credential failed", "error", err)
	}
	return fmt.Errorf("%w: %s", ErrAuthExpired, reason)
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
