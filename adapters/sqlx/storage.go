package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	_ "github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"highscore/core"
	"highscore/engine"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" env:"HIGHSCORE_STORAGE_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"HIGHSCORE_STORAGE_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"HIGHSCORE_STORAGE_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"HIGHSCORE_STORAGE_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"HIGHSCORE_STORAGE_SQL_CONN_MAX_LIFETIME"`

	// SeedSampleData loads core.SampleRecords when the table is created by this process.
	SeedSampleData bool `json:"seed_sample_data" env:"HIGHSCORE_STORAGE_SQL_SEED"`
}

// DefaultConfig returns defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
	switch driver {
	case DriverSQLite:
		cfg.DSN = "highscore.sqlite"
		// SQLite allows a single writer; keeping the one connection alive also
		// keeps ":memory:" databases alive.
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/highscore?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/highscore"
	}
	return cfg
}

// Validate validates SQL configuration.
func (c Config) Validate() error {
	if _, err := dialectFor(c.Driver); err != nil {
		return err
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return errors.New("connection limits cannot be negative")
	}
	return nil
}

// Store implements engine.Storage on a relational database through sqlx.
// Table: highscore(name, difficulty, score), primary key (name, difficulty).
type Store struct {
	db      *libsqlx.DB
	driver  Driver
	dialect dialect
}

// New opens the database, creates the table when missing and, on explicit
// opt-in, seeds sample data into a freshly created table.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sql config: %w", err)
	}
	db, err := libsqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := NewWithDB(db, cfg.Driver)
	created, err := s.Initialize(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if created && cfg.SeedSampleData {
		if err := s.Seed(ctx, core.SampleRecords()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema (useful for testing).
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	dl, err := dialectFor(driver)
	if err != nil {
		dl = dialects[DriverSQLite]
	}
	return &Store{db: db, driver: driver, dialect: dl}
}

func applyPragmas(ctx context.Context, db *libsqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return nil
}

// Initialize creates the highscore table if it does not exist and reports
// whether it did so.
func (s *Store) Initialize(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(s.dialect.tableExists), core.TableName); err != nil {
		return false, core.WrapStorage("initialize", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return false, core.WrapStorage("initialize", err)
	}
	return true, nil
}

// Seed upserts records in one transaction.
func (s *Store) Seed(ctx context.Context, records []core.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.WrapStorage("seed", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt := tx.Rebind(s.dialect.upsert)
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, stmt, r.Name, r.Difficulty, r.Score); err != nil {
			return core.WrapStorage("seed", err)
		}
	}
	return core.WrapStorage("seed", tx.Commit())
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle.
func (s *Store) DB() *libsqlx.DB { return s.db }

func (s *Store) Upsert(ctx context.Context, r core.Record) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsert), r.Name, r.Difficulty, r.Score)
	return core.WrapStorage("upsert", err)
}

// SubmitIfHigher relies on the conditional upsert statement for atomicity: the
// engine only replaces the row when the new score is strictly greater. The
// surrounding transaction reads the previous score for reporting.
func (s *Store) SubmitIfHigher(ctx context.Context, r core.Record) (core.Result, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev *int64
	var stored int64
	err = tx.GetContext(ctx, &stored, tx.Rebind(queryScoreForKey), r.Name, r.Difficulty)
	switch {
	case err == nil:
		prev = &stored
	case errors.Is(err, sql.ErrNoRows):
	default:
		return core.Result{}, core.WrapStorage("submit", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(s.dialect.submit), r.Name, r.Difficulty, r.Score)
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}

	out := core.Result{Record: r, Accepted: affected > 0, Previous: prev}
	if !out.Accepted {
		var current int64
		if err := tx.GetContext(ctx, &current, tx.Rebind(queryScoreForKey), r.Name, r.Difficulty); err != nil {
			return core.Result{}, core.WrapStorage("submit", err)
		}
		out.Record.Score = current
		out.Previous = nil
	}
	if err := tx.Commit(); err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}
	return out, nil
}

func (s *Store) QueryAll(ctx context.Context) iter.Seq2[core.Record, error] {
	return s.query(ctx, "query all", queryAll)
}

func (s *Store) QueryByName(ctx context.Context, name string) iter.Seq2[core.Record, error] {
	return s.query(ctx, "query by name", queryByName, name)
}

func (s *Store) QueryByDifficulty(ctx context.Context, difficulty int64) iter.Seq2[core.Record, error] {
	return s.query(ctx, "query by difficulty", queryByDifficulty, difficulty)
}

func (s *Store) QueryByNameAndDifficulty(ctx context.Context, name string, difficulty int64) iter.Seq2[core.Record, error] {
	return s.query(ctx, "query by name and difficulty", queryByNameDifficulty, name, difficulty)
}

// query runs stmt each time the sequence is ranged and streams rows as they are scanned.
func (s *Store) query(ctx context.Context, op, stmt string, args ...any) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		rows, err := s.db.QueryxContext(ctx, s.db.Rebind(stmt), args...)
		if err != nil {
			yield(core.Record{}, core.WrapStorage(op, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var r core.Record
			if err := rows.StructScan(&r); err != nil {
				yield(core.Record{}, core.WrapStorage(op, err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Record{}, core.WrapStorage(op, err))
		}
	}
}

var _ engine.Storage = (*Store)(nil)
