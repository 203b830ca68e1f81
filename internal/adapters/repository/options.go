package repository

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithMaxOpenConns caps the connection pool. In-memory databases need 1,
// since each connection would otherwise see its own database.
func WithMaxOpenConns(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithoutMigrations skips schema migration on open, for databases managed
// elsewhere.
func WithoutMigrations() SQLiteOption {
	return func(s *SQLiteStore) {
		s.migrate = false
	}
}
