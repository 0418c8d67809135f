package service

import (
	"context"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// dummyHash is compared against when the email is unknown, so both failure
// paths cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOHi5BhEGGRUHcuW9hnuNqsOYn5rMNLLa"

// TokenIssuer signs claims. [*auth.Codec] implements it.
type TokenIssuer interface {
	Issue(claims auth.Claims) (string, error)
}

// LoginResult is the body returned to a client after a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SessionUser is the logged-in user as shown to the client.
type SessionUser struct {
	ID     models.UserID `json:"id"`
	Email  string        `json:"email"`
	Role   models.Role   `json:"role"`
	Tenant SessionTenant `json:"tenant"`
}

// SessionTenant is the user's tenant as shown to the client.
type SessionTenant struct {
	ID   models.TenantID `json:"id"`
	Slug string          `json:"slug"`
	Name string          `json:"name"`
	Plan models.Plan     `json:"plan"`
}

// SessionService verifies credentials and issues tokens.
type SessionService struct {
	store    store.Store
	issuer   TokenIssuer
	observer Observer
}

// NewSessionService returns a SessionService that signs tokens with issuer.
func NewSessionService(s store.Store, issuer TokenIssuer, opts ...Option) *SessionService {
	o := buildOptions(opts)
	return &SessionService{store: s, issuer: issuer, observer: o.observer}
}

// Login checks email and password and returns a token whose claims carry the
// tenant's current plan.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "auth.login"
	if email == "" || password == "" {
		s.observer.LoginAttempt(LoginBadRequest)
		return nil, errs.E(op, errs.Validation, "Email and password required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		s.observer.LoginAttempt(LoginServerError)
		return nil, storeError(op, err)
	}

	hash := dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !auth.CheckPassword(hash, password) || user == nil {
		s.observer.LoginAttempt(LoginInvalid)
		return nil, errs.E(op, errs.Unauthorized, "Invalid credentials")
	}

	result, err := s.issue(op, user)
	if err != nil {
		s.observer.LoginAttempt(LoginServerError)
		return nil, err
	}
	s.observer.LoginAttempt(LoginSuccess)
	return result, nil
}

// IssueFor returns a session for the user with email without checking a
// password. It backs operator tooling and must not be exposed over HTTP.
func (s *SessionService) IssueFor(ctx context.Context, email string) (*LoginResult, error) {
	const op = "auth.issue"
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError(op, err)
	}
	if user == nil {
		return nil, errs.E(op, errs.NotFound, "User not found")
	}
	return s.issue(op, user)
}

func (s *SessionService) issue(op string, user *models.User) (*LoginResult, error) {
	claims, err := auth.ClaimsFor(user)
	if err != nil {
		return nil, errs.Internalf(op, err)
	}
	token, err := s.issuer.Issue(*claims)
	if err != nil {
		return nil, errs.Internalf(op, err)
	}

	return &LoginResult{
		Token: token,
		User: SessionUser{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
			Tenant: SessionTenant{
				ID:   user.Tenant.ID,
				Slug: user.Tenant.Slug,
				Name: user.Tenant.Name,
				Plan: user.Tenant.Plan,
			},
		},
	}, nil
}
