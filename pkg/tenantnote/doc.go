// Package tenantnote wires configuration, the store backends, the services,
// and the HTTP API into a runnable application.
//
// The command line entry point is [Main]:
//
//	tenantnote serve --store postgres --port 8080
//	tenantnote migrate
//	tenantnote seed
//	tenantnote token --email admin@acme.test
//
// # Configuration
//
// Settings are layered as defaults, then the YAML file given with --config,
// then environment variables, then flags:
//
//	JWT_SECRET           - token signing secret (required)
//	TENANTNOTE_PORT      - HTTP port (default: 8080)
//	TENANTNOTE_STORE     - postgres, pgx, surrealdb or memory (default: postgres)
//	TENANTNOTE_READ_ONLY - reject writes with 503
//	POSTGRES_DSN         - PostgreSQL connection string
//	SURREALDB_URL        - SurrealDB endpoint (default: ws://localhost:8000/rpc)
//	SURREALDB_NS         - SurrealDB namespace (default: tenantnote)
//	SURREALDB_DB         - SurrealDB database (default: tenantnote)
//	SURREALDB_USER       - SurrealDB username (default: root)
//	SURREALDB_PASS       - SurrealDB password (default: root)
//
// The memory backend starts with the demo tenants already loaded and keeps
// nothing across restarts.
package tenantnote
