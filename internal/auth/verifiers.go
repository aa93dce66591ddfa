package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errUnknownToken = errors.New("unknown token")

// JWTVerifier accepts HS256 tokens whose subject is the tenant id.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parse jwt: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject: %w", err)
	}
	return subject, nil
}

// StaticVerifier maps fixed tokens to tenants. Intended for development and tests.
type StaticVerifier struct {
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, tenantID := range tokens {
		copied[token] = tenantID
	}
	return &StaticVerifier{tokens: copied}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	for known, tenantID := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(known)) == 1 {
			return tenantID, nil
		}
	}
	return "", errUnknownToken
}

// ChainVerifier returns the first successful verification of its members.
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, token string) (string, error) {
	var errs []error
	for _, v := range c {
		tenantID, err := v.Verify(ctx, token)
		if err == nil {
			return tenantID, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("no verifier configured")
	}
	return "", errors.Join(errs...)
}
