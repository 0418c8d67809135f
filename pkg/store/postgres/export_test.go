package postgres

import "context"

// Truncate empties every table so each conformance test starts clean.
func Truncate(ctx context.Context, s *PostgresStore) error {
	return s.db.WithContext(ctx).Exec("TRUNCATE notes, users, tenants CASCADE").Error
}
