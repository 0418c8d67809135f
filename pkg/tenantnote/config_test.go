package tenantnote_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/tenantnote/pkg/tenantnote"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultConfigNeedsSecret(t *testing.T) {
	config := tenantnote.DefaultConfig()
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, tenantnote.BackendPostgres, config.Store.Backend)
	assert.Equal(t, 3, config.Plans.FreeNoteLimit)
	assert.Equal(t, 24*time.Hour, config.Auth.TokenTTL)

	require.ErrorContains(t, config.Validate(), "auth.secret")

	config.Auth.Secret = "s3cret"
	require.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*tenantnote.Config)
		wantErr string
	}{
		{"unknown backend", func(c *tenantnote.Config) { c.Store.Backend = "mysql" }, "unknown store backend"},
		{"zero ttl", func(c *tenantnote.Config) { c.Auth.TokenTTL = 0 }, "token_ttl"},
		{"negative limit", func(c *tenantnote.Config) { c.Plans.FreeNoteLimit = -1 }, "free_note_limit"},
		{"pgx without dsn", func(c *tenantnote.Config) {
			c.Store.Backend = tenantnote.BackendPgx
			c.Store.PostgresDSN = ""
		}, "postgres_dsn"},
		{"surrealdb without url", func(c *tenantnote.Config) {
			c.Store.Backend = tenantnote.BackendSurrealDB
			c.Store.SurrealDB.URL = ""
		}, "surrealdb.url"},
		{"memory", func(c *tenantnote.Config) { c.Store.Backend = tenantnote.BackendMemory }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tenantnote.DefaultConfig()
			config.Auth.Secret = "s3cret"
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenantnote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
auth:
  secret: from-file
  token_ttl: 1h
store:
  backend: surrealdb
  surrealdb:
    namespace: prod
plans:
  free_note_limit: 5
`), 0o600))

	config, err := tenantnote.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", config.Server.Port)
	assert.Equal(t, 5*time.Second, config.Server.ShutdownTimeout)
	assert.Equal(t, "from-file", config.Auth.Secret)
	assert.Equal(t, time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, tenantnote.BackendSurrealDB, config.Store.Backend)
	assert.Equal(t, "prod", config.Store.SurrealDB.Namespace)
	assert.Equal(t, "tenantnote", config.Store.SurrealDB.Database)
	assert.Equal(t, 5, config.Plans.FreeNoteLimit)

	_, err = tenantnote.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	config := tenantnote.DefaultConfig()
	require.NoError(t, config.ApplyEnv(env(map[string]string{
		"JWT_SECRET":           "from-env",
		"TENANTNOTE_PORT":      "7070",
		"TENANTNOTE_STORE":     "pgx",
		"TENANTNOTE_READ_ONLY": "true",
		"POSTGRES_DSN":         "postgres://localhost/test",
		"SURREALDB_URL":        "",
		"SURREALDB_NS":         "ns",
	})))

	assert.Equal(t, "from-env", config.Auth.Secret)
	assert.Equal(t, "7070", config.Server.Port)
	assert.Equal(t, tenantnote.BackendPgx, config.Store.Backend)
	assert.True(t, config.ReadOnly)
	assert.Equal(t, "postgres://localhost/test", config.Store.PostgresDSN)
	assert.Equal(t, "ws://localhost:8000/rpc", config.Store.SurrealDB.URL, "empty values are ignored")
	assert.Equal(t, "ns", config.Store.SurrealDB.Namespace)

	err := config.ApplyEnv(env(map[string]string{"TENANTNOTE_READ_ONLY": "maybe"}))
	require.ErrorContains(t, err, "TENANTNOTE_READ_ONLY")
}
