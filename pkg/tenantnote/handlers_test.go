package tenantnote_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
	"github.com/surrealdb/tenantnote/pkg/store/memory"
	"github.com/surrealdb/tenantnote/pkg/tenantnote"
)

const testSecret = "test-secret"

type testServer struct {
	t   *testing.T
	app *tenantnote.App
	srv *httptest.Server
}

type response struct {
	status int
	header http.Header
	body   map[string]any
	raw    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, seededStore(t), zerolog.Nop())
}

func seededStore(t *testing.T) *memory.MemoryStore {
	t.Helper()
	s := memory.New()
	_, err := store.Seed(context.Background(), s, store.DemoData)
	require.NoError(t, err)
	return s
}

func newTestServerWith(t *testing.T, s store.Store, log zerolog.Logger) *testServer {
	t.Helper()

	config := tenantnote.DefaultConfig()
	config.Auth.Secret = testSecret
	config.Store.Backend = tenantnote.BackendMemory

	app, err := tenantnote.NewWithStore(config, s, log)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return &testServer{t: t, app: app, srv: srv}
}

func (ts *testServer) do(method, path, token string, body any) response {
	ts.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(ts.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)

	out := response{status: resp.StatusCode, header: resp.Header, raw: string(raw)}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (ts *testServer) login(email string) string {
	ts.t.Helper()
	resp := ts.do("POST", "/auth/login", "", map[string]string{"email": email, "password": "password"})
	require.Equal(ts.t, http.StatusOK, resp.status, resp.raw)
	token, _ := resp.body["token"].(string)
	require.NotEmpty(ts.t, token)
	return token
}

func (ts *testServer) createNote(token, title, content string) response {
	ts.t.Helper()
	return ts.do("POST", "/notes", token, map[string]string{"title": title, "content": content})
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		require.Truef(t, ok, "%v is not an object at %q", cur, key)
		cur = obj[key]
	}
	return cur
}

func TestLoginThenFreePlanLimit(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do("POST", "/auth/login", "", map[string]string{"email": "admin@acme.test", "password": "password"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "admin", field(t, resp.body, "user", "role"))
	assert.Equal(t, "acme", field(t, resp.body, "user", "tenant", "slug"))
	assert.Equal(t, "free", field(t, resp.body, "user", "tenant", "plan"))
	token := resp.body["token"].(string)

	for _, title := range []string{"one", "two", "three"} {
		resp := ts.createNote(token, title, "")
		require.Equal(t, http.StatusCreated, resp.status, resp.raw)
	}

	resp = ts.createNote(token, "Shopping", "milk")
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, true, resp.body["limitReached"])
	assert.Equal(t, "Note limit reached. Upgrade to Pro plan for unlimited notes.", resp.body["error"])

	resp = ts.do("GET", "/notes", token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["notes"], 3)
}

func TestUpgradeLiftsLimitForExistingToken(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin@acme.test")
	member := ts.login("user@acme.test")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, ts.createNote(member, "note", "").status)
	}
	require.Equal(t, http.StatusForbidden, ts.createNote(member, "fourth", "").status)

	for i := 0; i < 2; i++ {
		resp := ts.do("POST", "/tenants/acme/upgrade", admin, nil)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)
		assert.Equal(t, "Tenant upgraded to Pro plan successfully", resp.body["message"])
		assert.Equal(t, "pro", field(t, resp.body, "tenant", "plan"))
	}

	// member still holds a token that says "free"
	resp := ts.createNote(member, "fourth", "")
	assert.Equal(t, http.StatusCreated, resp.status, resp.raw)
	resp = ts.createNote(member, "fifth", "")
	assert.Equal(t, http.StatusCreated, resp.status, resp.raw)
}

func TestUpgradeRequiresAdminOfSameTenant(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		slug   string
		status int
		errMsg string
	}{
		{"no token", "", "acme", http.StatusUnauthorized, "Unauthorized"},
		{"member", ts.login("user@acme.test"), "acme", http.StatusForbidden, "Forbidden"},
		{"admin of other tenant", ts.login("admin@globex.test"), "acme", http.StatusForbidden, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do("POST", "/tenants/"+tt.slug+"/upgrade", tt.token, nil)
			assert.Equal(t, tt.status, resp.status)
			assert.Equal(t, tt.errMsg, resp.body["error"])
		})
	}

	acme, err := ts.app.Store().GetTenantBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "free", string(acme.Plan))
}

func TestTenantIsolation(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.login("admin@acme.test")
	globex := ts.login("admin@globex.test")

	created := ts.createNote(acme, "secret plan", "world domination")
	require.Equal(t, http.StatusCreated, created.status)
	id := field(t, created.body, "note", "id").(string)

	for _, method := range []string{"GET", "DELETE"} {
		resp := ts.do(method, "/notes/"+id, globex, nil)
		assert.Equal(t, http.StatusNotFound, resp.status, method)
		assert.Equal(t, "Note not found", resp.body["error"])
	}
	resp := ts.do("PUT", "/notes/"+id, globex, map[string]string{"title": "mine now"})
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = ts.do("GET", "/notes", globex, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, resp.body["notes"])

	resp = ts.do("GET", "/notes/"+id, acme, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "secret plan", field(t, resp.body, "note", "title"))
	assert.Equal(t, "admin@acme.test", field(t, resp.body, "note", "author_email"))
}

func TestCreateGetAndPartialUpdate(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("user@acme.test")

	created := ts.createNote(token, "A", "B")
	require.Equal(t, http.StatusCreated, created.status)
	id := field(t, created.body, "note", "id").(string)

	resp := ts.do("GET", "/notes/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "A", field(t, resp.body, "note", "title"))
	assert.Equal(t, "B", field(t, resp.body, "note", "content"))
	createdAt := field(t, resp.body, "note", "created_at")
	assert.NotEmpty(t, createdAt)
	assert.NotEqual(t, "0001-01-01T00:00:00Z", createdAt)
	assert.Equal(t, createdAt, field(t, resp.body, "note", "updated_at"))

	resp = ts.do("PUT", "/notes/"+id, token, map[string]string{"content": "C"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "A", field(t, resp.body, "note", "title"))
	assert.Equal(t, "C", field(t, resp.body, "note", "content"))

	resp = ts.do("PUT", "/notes/"+id, token, map[string]string{"title": "D"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "D", field(t, resp.body, "note", "title"))
	assert.Equal(t, "C", field(t, resp.body, "note", "content"))

	resp = ts.do("PUT", "/notes/"+id, token, map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Title is required", resp.body["error"])

	resp = ts.createNote(token, "", "no title")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Title is required", resp.body["error"])
}

func TestDeleteNote(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("user@acme.test")

	created := ts.createNote(token, "temp", "")
	require.Equal(t, http.StatusCreated, created.status)
	id := field(t, created.body, "note", "id").(string)

	resp := ts.do("DELETE", "/notes/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Note deleted successfully", resp.body["message"])

	assert.Equal(t, http.StatusNotFound, ts.do("GET", "/notes/"+id, token, nil).status)
	assert.Equal(t, http.StatusNotFound, ts.do("DELETE", "/notes/"+id, token, nil).status)
	assert.Equal(t, http.StatusNotFound, ts.do("GET", "/notes/not-a-uuid", token, nil).status)
}

func TestRejectedTokens(t *testing.T) {
	ts := newTestServer(t)

	user, err := ts.app.Store().GetUserByEmail(context.Background(), "admin@acme.test")
	require.NoError(t, err)
	claims, err := auth.ClaimsFor(user)
	require.NoError(t, err)

	past, err := auth.NewCodec([]byte(testSecret), time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-time.Hour - time.Second)
	}))
	require.NoError(t, err)
	expired, err := past.Issue(*claims)
	require.NoError(t, err)

	other, err := auth.NewCodec([]byte("another-secret"), time.Hour)
	require.NoError(t, err)
	wrongSecret, err := other.Issue(*claims)
	require.NoError(t, err)

	valid := ts.login("admin@acme.test")
	parts := strings.Split(valid, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	payload = bytes.Replace(payload, []byte(`"tenantPlan":"free"`), []byte(`"tenantPlan":"pro"`), 1)
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)
	tampered := strings.Join(parts, ".")

	routes := []struct{ method, path string }{
		{"GET", "/notes"},
		{"POST", "/notes"},
		{"GET", "/notes/00000000-0000-0000-0000-000000000000"},
		{"PUT", "/notes/00000000-0000-0000-0000-000000000000"},
		{"DELETE", "/notes/00000000-0000-0000-0000-000000000000"},
		{"POST", "/tenants/acme/upgrade"},
	}
	tokens := map[string]string{
		"expired":      expired,
		"wrong secret": wrongSecret,
		"tampered":     tampered,
		"garbage":      "not.a.token",
	}
	for name, token := range tokens {
		for _, route := range routes {
			t.Run(name+" "+route.method+" "+route.path, func(t *testing.T) {
				resp := ts.do(route.method, route.path, token, `{"title":"x"}`)
				assert.Equal(t, http.StatusUnauthorized, resp.status)
				assert.Equal(t, "Unauthorized", resp.body["error"])
			})
		}
	}
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{"malformed body", "{", http.StatusBadRequest, "Invalid request payload"},
		{"missing password", map[string]string{"email": "admin@acme.test"}, http.StatusBadRequest, "Email and password required"},
		{"wrong password", map[string]string{"email": "admin@acme.test", "password": "nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown user", map[string]string{"email": "ghost@acme.test", "password": "password"}, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do("POST", "/auth/login", "", tt.body)
			assert.Equal(t, tt.status, resp.status)
			assert.Equal(t, tt.errMsg, resp.body["error"])
		})
	}
}

func TestCORSAndRouterErrors(t *testing.T) {
	ts := newTestServer(t)

	assertCORS := func(t *testing.T, h http.Header) {
		assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", h.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", h.Get("Access-Control-Allow-Headers"))
	}

	resp := ts.do("OPTIONS", "/notes/anything", "", nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, resp.raw)
	assertCORS(t, resp.header)

	resp = ts.do("GET", "/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "Not Found", resp.body["error"])
	assertCORS(t, resp.header)

	resp = ts.do("PATCH", "/notes", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.status)
	assertCORS(t, resp.header)

	resp = ts.do("GET", "/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assertCORS(t, resp.header)
	assert.NotEmpty(t, resp.header.Get("X-Request-Id"))
}

func TestAPIPrefix(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do("POST", "/api/auth/login", "", map[string]string{"email": "admin@globex.test", "password": "password"})
	require.Equal(t, http.StatusOK, resp.status)
	token := resp.body["token"].(string)

	resp = ts.do("POST", "/api/notes", token, map[string]string{"title": "via api"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = ts.do("GET", "/api/notes", token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["notes"], 1)

	assert.Equal(t, http.StatusOK, ts.do("GET", "/api/health", "", nil).status)
}

func TestReadOnlyMode(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("admin@acme.test")

	ts.app.SetReadOnly(true)
	resp := ts.createNote(token, "blocked", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	assert.Equal(t, "Service is in read-only mode", resp.body["error"])
	assert.Equal(t, http.StatusServiceUnavailable, ts.do("POST", "/tenants/acme/upgrade", token, nil).status)
	assert.Equal(t, http.StatusOK, ts.do("GET", "/notes", token, nil).status)
	assert.Equal(t, true, ts.do("GET", "/health", "", nil).body["read_only"])

	ts.app.SetReadOnly(false)
	assert.Equal(t, http.StatusCreated, ts.createNote(token, "allowed", "").status)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do("GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "healthy", resp.body["status"])
	assert.Equal(t, "memory", resp.body["store"])

	token := ts.login("admin@acme.test")
	require.Equal(t, http.StatusCreated, ts.createNote(token, "counted", "").status)

	resp = ts.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.raw, `tenantnote_notes_created_total{tenant="acme"} 1`)
	assert.Contains(t, resp.raw, `tenantnote_logins_total{result="success"} 1`)
	assert.Contains(t, resp.raw, `tenantnote_http_requests_total{code="201",method="POST",route="/notes"} 1`)
}

func TestUpdateWithEmptyBody(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.login("user@acme.test")
	globex := ts.login("user@globex.test")

	created := ts.createNote(acme, "A", "B")
	require.Equal(t, http.StatusCreated, created.status)
	id := field(t, created.body, "note", "id").(string)

	resp := ts.do("PUT", "/notes/not-a-uuid", acme, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "Note not found", resp.body["error"])

	resp = ts.do("PUT", "/notes/"+id, globex, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = ts.do("PUT", "/notes/"+id, acme, nil)
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "A", field(t, resp.body, "note", "title"))
	assert.Equal(t, "B", field(t, resp.body, "note", "content"))

	resp = ts.do("PUT", "/notes/"+id, acme, "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Invalid request payload", resp.body["error"])
}

// brokenStore fails or panics on note reads while the rest of the store works.
type brokenStore struct {
	store.Store
	listErr error
}

func (s *brokenStore) ListNotes(context.Context, models.TenantID) ([]*models.Note, error) {
	return nil, s.listErr
}

func (s *brokenStore) GetNote(context.Context, models.TenantID, models.NoteID) (*models.Note, error) {
	panic("note index corrupted")
}

// logBuffer is read by the test while the server goroutine writes.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInternalErrorsAreHidden(t *testing.T) {
	logs := &logBuffer{}
	s := &brokenStore{Store: seededStore(t), listErr: errors.New("db down")}
	ts := newTestServerWith(t, s, zerolog.New(logs))
	token := ts.login("admin@acme.test")

	resp := ts.do("GET", "/notes", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.JSONEq(t, `{"error":"Internal server error"}`, resp.raw)
	assert.NotContains(t, resp.raw, "db down")
	assert.Contains(t, logs.String(), `"op":"notes.list"`)
	assert.Contains(t, logs.String(), "db down")

	resp = ts.do("GET", "/notes/00000000-0000-0000-0000-000000000001", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.JSONEq(t, `{"error":"Internal server error"}`, resp.raw)
	assert.NotContains(t, resp.raw, "corrupted")
	assert.Equal(t, "*", resp.header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, logs.String(), "note index corrupted")
}
