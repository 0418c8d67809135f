package auth

import (
	"net/http"
	"strings"

	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/models"
)

const bearerPrefix = "Bearer "

// TokenDecoder verifies a raw token. [*Codec] implements it.
type TokenDecoder interface {
	Decode(token string) (*Claims, error)
}

// Guard authenticates requests from their Authorization header.
type Guard struct {
	decoder TokenDecoder
}

// NewGuard returns a Guard that decodes bearer tokens with decoder.
func NewGuard(decoder TokenDecoder) *Guard {
	return &Guard{decoder: decoder}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header,
// or "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// Authenticate returns the claims of the request's bearer token, or nil when
// there is no usable token.
func (g *Guard) Authenticate(r *http.Request) *Claims {
	token := BearerToken(r)
	if token == "" {
		return nil
	}
	claims, err := g.decoder.Decode(token)
	if err != nil {
		return nil
	}
	return claims
}

// RequireAuthentication fails with errs.Unauthorized unless the request
// carries a valid token.
func (g *Guard) RequireAuthentication(r *http.Request) (*Claims, error) {
	claims := g.Authenticate(r)
	if claims == nil {
		return nil, errs.E("auth.authenticate", errs.Unauthorized, "Unauthorized")
	}
	return claims, nil
}

// RequireRole authenticates the request and then fails with errs.Forbidden
// unless the caller has exactly role.
func (g *Guard) RequireRole(r *http.Request, role models.Role) (*Claims, error) {
	claims, err := g.RequireAuthentication(r)
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, errs.E("auth.require_role", errs.Forbidden, "Forbidden")
	}
	return claims, nil
}
