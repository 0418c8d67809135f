package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/surrealdb/tenantnote/pkg/service"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the token and the signed-in user with their tenant.
type LoginResponse = service.LoginResult

// Login authenticates a user and keeps the token for later requests.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{
		Email:    email,
		Password: password,
	}

	var result LoginResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login", req, &result); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	c.SetAuthToken(result.Token)

	return &result, nil
}

// Logout forgets the stored token. Tokens are stateless, so the server is not
// contacted; the token stays valid until it expires.
func (c *Client) Logout() {
	c.SetAuthToken("")
}
