package tenantnote

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/surrealdb/tenantnote/pkg/logger"
)

// Store backends accepted in StoreConfig.Backend.
const (
	BackendPostgres  = "postgres"
	BackendPgx       = "pgx"
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Auth     AuthConfig   `yaml:"auth"`
	Store    StoreConfig  `yaml:"store"`
	Log      LogConfig    `yaml:"log"`
	Plans    PlansConfig  `yaml:"plans"`
	ReadOnly bool         `yaml:"read_only"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type AuthConfig struct {
	// Secret signs and verifies session tokens.
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type StoreConfig struct {
	Backend     string          `yaml:"backend"`
	PostgresDSN string          `yaml:"postgres_dsn"`
	SurrealDB   SurrealDBConfig `yaml:"surrealdb"`
}

type SurrealDBConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Path, when set, sends logs to a file instead of stderr.
	Path string `yaml:"path"`
}

type PlansConfig struct {
	FreeNoteLimit int `yaml:"free_note_limit"`
}

// DefaultConfig returns a Config with every field except the token secret
// filled in.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ShutdownTimeout:   5 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:     BackendPostgres,
			PostgresDSN: "host=localhost user=postgres password=postgres dbname=tenantnote port=5432 sslmode=disable",
			SurrealDB: SurrealDBConfig{
				URL:       "ws://localhost:8000/rpc",
				Namespace: "tenantnote",
				Database:  "tenantnote",
				Username:  "root",
				Password:  "root",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: logger.FormatJSON,
		},
		Plans: PlansConfig{
			FreeNoteLimit: 3,
		},
	}
}

// LoadFromFile reads a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("JWT_SECRET"); ok {
		c.Auth.Secret = v
	}
	if v, ok := get("TENANTNOTE_PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := get("TENANTNOTE_STORE"); ok {
		c.Store.Backend = v
	}
	if v, ok := get("TENANTNOTE_READ_ONLY"); ok {
		readOnly, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TENANTNOTE_READ_ONLY: %w", err)
		}
		c.ReadOnly = readOnly
	}
	if v, ok := get("POSTGRES_DSN"); ok {
		c.Store.PostgresDSN = v
	}
	if v, ok := get("SURREALDB_URL"); ok {
		c.Store.SurrealDB.URL = v
	}
	if v, ok := get("SURREALDB_NS"); ok {
		c.Store.SurrealDB.Namespace = v
	}
	if v, ok := get("SURREALDB_DB"); ok {
		c.Store.SurrealDB.Database = v
	}
	if v, ok := get("SURREALDB_USER"); ok {
		c.Store.SurrealDB.Username = v
	}
	if v, ok := get("SURREALDB_PASS"); ok {
		c.Store.SurrealDB.Password = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (set JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	switch c.Store.Backend {
	case BackendPostgres, BackendPgx:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the %s backend", c.Store.Backend)
		}
	case BackendSurrealDB:
		if c.Store.SurrealDB.URL == "" {
			return fmt.Errorf("store.surrealdb.url is required for the surrealdb backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Plans.FreeNoteLimit < 0 {
		return fmt.Errorf("plans.free_note_limit must not be negative")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	return nil
}
