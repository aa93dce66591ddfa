// Package auth resolves bearer credentials to tenant ids and carries the
// resolved tenant through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrUnauthorized means the Authorization header is missing or not a bearer value.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken means the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

const bearerPrefix = "Bearer "

// Verifier checks a raw token and returns the tenant it identifies.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Resolver turns an Authorization header into a tenant id.
type Resolver struct {
	verifier Verifier
	logger   *zap.Logger
}

func NewResolver(verifier Verifier, logger *zap.Logger) *Resolver {
	return &Resolver{verifier: verifier, logger: logger}
}

// Resolve validates header and returns the tenant id bound to its token.
func (r *Resolver) Resolve(ctx context.Context, header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrUnauthorized
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", ErrUnauthorized
	}

	tenantID, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.Debug("Token verification failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tenantID == "" {
		return "", fmt.Errorf("%w: token carries no tenant", ErrInvalidToken)
	}

	return tenantID, nil
}

type tenantKey struct{}

// WithTenant returns a copy of ctx carrying tenantID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantKey{}).(string)
	return tenantID, ok && tenantID != ""
}
