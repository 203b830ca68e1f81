package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/ecoinvest/internal/domain/model"
	"github.com/okian/ecoinvest/internal/domain/scoring"
	"github.com/okian/ecoinvest/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const stateColumns = `name, normalized_esi, environmental, social, governance, combined_esi, predicted_esi, rank, updated_at`

// SQLiteStore persists states in SQLite so score updates survive restarts.
type SQLiteStore struct {
	db           *sql.DB
	maxOpenConns int
	migrate      bool
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// it to the latest schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{maxOpenConns: 1, migrate: true}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	s.db = db

	if s.migrate {
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies every pending migration to db.
func Migrate(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: driver: %w", ErrMigrate, err)
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("%w: source: %w", ErrMigrate, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "ecoinvest", driver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: up: %w", ErrMigrate, err)
	}
	return nil
}

// Replace implements Store.
func (s *SQLiteStore) Replace(ctx context.Context, states []model.ScoredState) error {
	defer observeUpdate(time.Now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM state_initiatives`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM states`); err != nil {
			return err
		}
		for i, st := range states {
			if err := validate(st); err != nil {
				return err
			}
			if err := upsert(ctx, tx, st, i); err != nil {
				return err
			}
		}
		return rerank(ctx, tx)
	})
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, st model.ScoredState) error {
	defer observeUpdate(time.Now())
	if err := validate(st); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM states`).Scan(&next); err != nil {
			return err
		}
		if err := upsert(ctx, tx, st, next); err != nil {
			return err
		}
		return rerank(ctx, tx)
	})
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, name string) (model.ScoredState, error) {
	defer observeQuery(time.Now())
	out, err := s.query(ctx, `SELECT `+stateColumns+` FROM states WHERE name = ?`, name)
	if err != nil {
		return model.ScoredState{}, err
	}
	if len(out) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.ScoredState{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out[0], nil
}

// All implements Store.
func (s *SQLiteStore) All(ctx context.Context) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	return s.query(ctx, `SELECT `+stateColumns+` FROM states ORDER BY rank, position`)
}

// BySector implements Store.
func (s *SQLiteStore) BySector(ctx context.Context, sector string) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	return s.query(ctx, `SELECT `+stateColumns+` FROM states s
		WHERE EXISTS (SELECT 1 FROM state_initiatives i WHERE i.state = s.name AND i.sector = ?)
		ORDER BY combined_esi DESC, position`, sector)
}

// TopN implements Store.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	return s.query(ctx, `SELECT `+stateColumns+` FROM states ORDER BY rank, position LIMIT ?`, n)
}

// Sectors implements Store.
func (s *SQLiteStore) Sectors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT sector FROM state_initiatives ORDER BY sector`)
	if err != nil {
		return nil, s.storeErr("sectors", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, s.storeErr("sectors", err)
		}
		out = append(out, sector)
	}
	return out, s.storeErr("sectors", rows.Err())
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		metrics.RecordStoreError()
		return 0
	}
	return n
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.storeErr("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStale) {
			return err
		}
		return s.storeErr("write", err)
	}
	if err := tx.Commit(); err != nil {
		return s.storeErr("commit", err)
	}
	metrics.UpdateStatesTotal(s.Count(ctx))
	return nil
}

func (s *SQLiteStore) storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	metrics.RecordStoreError()
	return fmt.Errorf("sqlite %s: %w", op, err)
}

// query loads states and attaches their initiatives in list order.
func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.ScoredState, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.storeErr("query", err)
	}
	var out []model.ScoredState
	index := make(map[string]int)
	for rows.Next() {
		var (
			st      model.ScoredState
			updated int64
		)
		if err := rows.Scan(&st.Name, &st.NormalizedESI, &st.Environmental, &st.Social,
			&st.Governance, &st.CombinedESI, &st.PredictedESI, &st.Rank, &updated); err != nil {
			_ = rows.Close()
			return nil, s.storeErr("scan", err)
		}
		st.UpdatedAt = fromUnixNano(updated)
		index[st.Name] = len(out)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, s.storeErr("query", err)
	}
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(out)), ",")
	names := make([]any, len(out))
	for i, st := range out {
		names[i] = st.Name
	}
	irows, err := s.db.QueryContext(ctx,
		`SELECT state, sector FROM state_initiatives WHERE state IN (`+placeholders+`) ORDER BY state, position`, names...)
	if err != nil {
		return nil, s.storeErr("initiatives", err)
	}
	defer func() { _ = irows.Close() }()
	for irows.Next() {
		var state, sector string
		if err := irows.Scan(&state, &sector); err != nil {
			return nil, s.storeErr("initiatives", err)
		}
		i := index[state]
		out[i].Initiatives = append(out[i].Initiatives, sector)
	}
	return out, s.storeErr("initiatives", irows.Err())
}

// upsert writes st unless the stored row carries a newer updated_at, in
// which case it returns ErrStale.
func upsert(ctx context.Context, tx *sql.Tx, st model.ScoredState, position int) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO states
		(name, position, normalized_esi, environmental, social, governance, combined_esi, predicted_esi, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			normalized_esi = excluded.normalized_esi,
			environmental = excluded.environmental,
			social = excluded.social,
			governance = excluded.governance,
			combined_esi = excluded.combined_esi,
			predicted_esi = excluded.predicted_esi,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= states.updated_at`,
		st.Name, position, st.NormalizedESI, st.Environmental, st.Social, st.Governance,
		st.CombinedESI, st.PredictedESI, toUnixNano(st.UpdatedAt))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		metrics.RecordErrorByComponent("repository", "stale")
		return fmt.Errorf("%w: %s", ErrStale, st.Name)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM state_initiatives WHERE state = ?`, st.Name); err != nil {
		return err
	}
	for i, sector := range st.Initiatives {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state_initiatives (state, position, sector) VALUES (?, ?, ?)`, st.Name, i, sector); err != nil {
			return err
		}
	}
	return nil
}

// toUnixNano stores the zero time as 0 so seed rows sort before any update.
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// rerank recomputes every rank from predicted_esi.
func rerank(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT name, predicted_esi FROM states ORDER BY position`)
	if err != nil {
		return err
	}
	var states []model.ScoredState
	for rows.Next() {
		var st model.ScoredState
		if err := rows.Scan(&st.Name, &st.PredictedESI); err != nil {
			_ = rows.Close()
			return err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, st := range scoring.Rank(states) {
		if _, err := tx.ExecContext(ctx, `UPDATE states SET rank = ? WHERE name = ?`, st.Rank, st.Name); err != nil {
			return err
		}
	}
	return nil
}
