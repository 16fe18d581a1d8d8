// Package identity resolves the authenticated subject for each request.
//
// When enabled, bearer tokens are verified against the configured OIDC
// issuer. When disabled, every request is attributed to the configured
// development subject so the service remains usable without an identity
// provider.
package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mcutler/loom/pkg/lifecycle"
)

type contextKey struct{}

// Subject returns the authenticated subject stored on the context, or empty
// if none was resolved.
func Subject(ctx context.Context) string {
	if sub, ok := ctx.Value(contextKey{}).(string); ok {
		return sub
	}
	return ""
}

// WithSubject returns a context carrying the given subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKey{}, subject)
}

// System verifies request identity and exposes the resolved subject.
type System interface {
	Verify(ctx context.Context, rawToken string) (string, error)
	Enabled() bool
	DevSubject() string
	Start(lc *lifecycle.Coordinator) error
}

type system struct {
	config   *Config
	verifier *oidc.IDTokenVerifier
}

// NewSystem creates an identity System from the config. The OIDC provider is
// resolved during lifecycle startup, not construction.
func NewSystem(config *Config) System {
	return &system{config: config}
}

func (s *system) Enabled() bool {
	return s.config.Enabled
}

func (s *system) DevSubject() string {
	return s.config.DevSubject
}

// Start resolves the OIDC provider during coordinated startup. No-op when
// identity is disabled.
func (s *system) Start(lc *lifecycle.Coordinator) error {
	if !s.config.Enabled {
		return nil
	}

	ctx := lc.Context()
	provider, err := oidc.NewProvider(ctx, s.config.Issuer)
	if err != nil {
		return fmt.Errorf("failed to resolve OIDC provider %s: %w", s.config.Issuer, err)
	}

	s.verifier = provider.Verifier(&oidc.Config{
		ClientID: s.config.Audience,
	})

	return nil
}

// Verify validates the raw bearer token and returns its subject claim.
func (s *system) Verify(ctx context.Context, rawToken string) (string, error) {
	if s.verifier == nil {
		return "", fmt.Errorf("identity verifier not initialized")
	}

	token, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}

	if token.Subject == "" {
		return "", fmt.Errorf("token has no subject claim")
	}

	return token.Subject, nil
}
