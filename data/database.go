package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Options configures the journal database.
type Options struct {
	Path string
	// UniqueDates enforces one folder per date label with a unique index.
	UniqueDates bool
}

// Store owns the connection pool of the journal database.
type Store struct {
	db          *sqlx.DB
	uniqueDates bool
	log         zerolog.Logger
}

// Open connects to the SQLite file at opts.Path, applies the schema and
// reconciles the unique date index with opts.UniqueDates.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", opts.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// One connection serializes writers and keeps the foreign_keys pragma
	// applied to every statement.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, uniqueDates: opts.UniqueDates, log: log.With().Str("component", "data").Logger()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info().Str("path", opts.Path).Bool("unique_dates", opts.UniqueDates).Msg("database ready")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, GetMainSchema()); err != nil {
		return fmt.Errorf("failed to execute main schema: %w", err)
	}

	if !s.uniqueDates {
		if _, err := s.db.ExecContext(ctx, dropUniqueDateIndex); err != nil {
			return fmt.Errorf("failed to drop unique date index: %w", err)
		}
		return nil
	}

	var duplicated int
	err := s.db.GetContext(ctx, &duplicated, `
		SELECT COUNT(*) FROM (
			SELECT Date FROM Folders GROUP BY Date HAVING COUNT(*) > 1
		)`)
	if err != nil {
		return fmt.Errorf("failed to check duplicate folder dates: %w", err)
	}
	if duplicated > 0 {
		return fmt.Errorf("unique folder dates requested but %d date(s) are used by several folders; merge them or disable folders.unique_dates", duplicated)
	}
	if _, err := s.db.ExecContext(ctx, createUniqueDateIndex); err != nil {
		return fmt.Errorf("failed to create unique date index: %w", err)
	}
	return nil
}

// DB returns the underlying pool for read-only callers.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// UniqueDates reports whether folder dates are enforced unique.
func (s *Store) UniqueDates() bool {
	return s.uniqueDates
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction. Any error returned by fn, or a panic,
// rolls the transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// IsForeignKeyViolation reports whether err comes from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
