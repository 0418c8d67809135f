// Package client is a Go client for the tenantnote HTTP API.
//
//	c := client.NewClient("http://localhost:8080")
//	if _, err := c.Login(ctx, "admin@acme.test", "password"); err != nil {
//		return err
//	}
//	note, err := c.CreateNote(ctx, "Shopping", "milk, eggs")
//	if client.IsLimitReached(err) {
//		_, err = c.UpgradeTenant(ctx, "acme")
//	}
//
// Login stores the returned token and every later request carries it as a
// bearer token. A Client is safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/tenantnote/pkg/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode   int
	Message      string
	LimitReached bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.StatusCode, e.Message)
}

// IsLimitReached reports whether err is the free-plan note cap.
func IsLimitReached(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.LimitReached
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:8080". Requests time out after 30 seconds.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAuthToken sets the bearer token sent with every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into target, or returns an
// *APIError for a failed request.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed struct {
			Error        string `json:"error"`
			LimitReached bool   `json:"limitReached"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
			apiErr.LimitReached = parsed.LimitReached
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, target)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status   string    `json:"status"`
	Store    string    `json:"store"`
	ReadOnly bool      `json:"read_only"`
	Time     time.Time `json:"time"`
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var result HealthStatus
	if err := c.call(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type noteBody struct {
	Note *models.Note `json:"note"`
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListNotes returns the notes of the caller's tenant, newest first.
func (c *Client) ListNotes(ctx context.Context) ([]*models.Note, error) {
	var result struct {
		Notes []*models.Note `json:"notes"`
	}
	if err := c.call(ctx, http.MethodGet, "/notes", nil, &result); err != nil {
		return nil, err
	}
	return result.Notes, nil
}

// CreateNote creates a note. On a free tenant holding the maximum number of
// notes it fails with an error for which IsLimitReached is true.
func (c *Client) CreateNote(ctx context.Context, title, content string) (*models.Note, error) {
	var result noteBody
	err := c.call(ctx, http.MethodPost, "/notes", createNoteRequest{Title: title, Content: content}, &result)
	if err != nil {
		return nil, err
	}
	return result.Note, nil
}

func (c *Client) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	var result noteBody
	if err := c.call(ctx, http.MethodGet, notePath(id), nil, &result); err != nil {
		return nil, err
	}
	return result.Note, nil
}

// UpdateNote sends a partial update; nil fields in patch are left unchanged.
func (c *Client) UpdateNote(ctx context.Context, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	var result noteBody
	if err := c.call(ctx, http.MethodPut, notePath(id), patch, &result); err != nil {
		return nil, err
	}
	return result.Note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id models.NoteID) error {
	return c.call(ctx, http.MethodDelete, notePath(id), nil, nil)
}

// UpgradeTenant moves the tenant to the pro plan. The caller must be an
// admin of that tenant.
func (c *Client) UpgradeTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	var result struct {
		Message string         `json:"message"`
		Tenant  *models.Tenant `json:"tenant"`
	}
	path := fmt.Sprintf("/tenants/%s/upgrade", url.PathEscape(slug))
	if err := c.call(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Tenant, nil
}

func notePath(id models.NoteID) string {
	return "/notes/" + id.String()
}
