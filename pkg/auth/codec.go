// Package auth issues and verifies bearer tokens and guards HTTP requests.
//
// A [Codec] turns [Claims] into a signed HS256 JWT and back. A [Guard] sits in
// front of every protected handler: it extracts the bearer token, decodes it
// with the codec, and enforces the required role.
//
//	codec, err := auth.NewCodec([]byte(secret), 24*time.Hour)
//	guard := auth.NewGuard(codec)
//
//	claims, err := guard.RequireRole(r, models.RoleAdmin)
//	if err != nil {
//		// errs.Unauthorized or errs.Forbidden
//	}
//
// Claims are a snapshot taken at login. In particular TenantPlan can be stale
// after an upgrade; authorization decisions that depend on the plan must re-read
// it from the store.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/surrealdb/tenantnote/pkg/models"
)

// ErrInvalidToken is returned by [Codec.Decode] for any token that must not be
// trusted: malformed, badly signed, expired, or without an expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried by a token.
type Claims struct {
	UserID     models.UserID   `json:"userId"`
	Email      string          `json:"email"`
	Role       models.Role     `json:"role"`
	TenantID   models.TenantID `json:"tenantId"`
	TenantSlug string          `json:"tenantSlug"`
	TenantPlan models.Plan     `json:"tenantPlan"`
	jwt.RegisteredClaims
}

// ClaimsFor builds the claims for user. The user's Tenant must be loaded.
func ClaimsFor(user *models.User) (*Claims, error) {
	if user.Tenant == nil {
		return nil, fmt.Errorf("user %s has no tenant loaded", user.ID)
	}
	return &Claims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		TenantID:   user.TenantID,
		TenantSlug: user.Tenant.Slug,
		TenantPlan: user.Tenant.Plan,
	}, nil
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies tokens with a single server secret. It is safe for
// concurrent use and never mutated after construction.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec creates a codec. ttl is the lifetime given to tokens whose claims
// carry no expiry.
func NewCodec(secret []byte, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// TTL returns the lifetime given to freshly issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs claims. ExpiresAt defaults to now+TTL and IssuedAt to now.
// The claims value is not modified.
func (c *Codec) Issue(claims Claims) (string, error) {
	now := c.now()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.Subject == "" && !claims.UserID.IsZero() {
		claims.Subject = claims.UserID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns its claims. Every failure is reported as
// ErrInvalidToken with the cause attached.
func (c *Codec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("%w: expected three segments", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(c.now()) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return claims, nil
}
