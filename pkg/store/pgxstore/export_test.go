package pgxstore

import "context"

// Truncate empties every table so each conformance test starts clean.
func Truncate(ctx context.Context, s *PgxStore) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE notes, users, tenants CASCADE")
	return err
}
