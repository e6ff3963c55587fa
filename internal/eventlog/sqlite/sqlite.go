// Package sqlite persists board event logs in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed event log. Events live in board_events keyed by
// (board_key, position); the primary key turns racing appends at the same
// position into constraint violations, surfaced as eventlog.ErrConflict.
type Store struct {
	db *sql.DB
}

// Compile-time check that Store satisfies the log interface.
var _ eventlog.Log[board.Event] = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies pending
// migrations. WAL and a busy timeout keep concurrent readers off the
// writer's back.
func Open(path string, maxConns int) (*Store, error) {
	if maxConns <= 0 {
		maxConns = 10
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the board's events in position order.
func (s *Store) Load(ctx context.Context, key string) ([]board.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, payload FROM board_events WHERE board_key = ? ORDER BY position`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("load board %q: %w", key, classify(err))
	}
	defer rows.Close()

	var events []board.Event
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := board.DecodeEvent(name, payload)
		if err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load board %q: %w", key, classify(err))
	}
	return events, nil
}

// Save appends the tail of events beyond the rows already stored. A caller
// whose sequence is shorter than the stored log, or whose insert collides on
// a position, lost a race and gets eventlog.ErrConflict.
func (s *Store) Save(ctx context.Context, key string, events []board.Event) ([]board.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", classify(err))
	}
	defer tx.Rollback()

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM board_events WHERE board_key = ?`, key,
	).Scan(&stored); err != nil {
		return nil, fmt.Errorf("count stored events: %w", classify(err))
	}
	if stored > len(events) {
		return nil, fmt.Errorf("board %q has %d events, saving %d: %w",
			key, stored, len(events), eventlog.ErrConflict)
	}

	for position := stored; position < len(events); position++ {
		name, payload, err := board.EncodeEvent(events[position])
		if err != nil {
			return nil, fmt.Errorf("encode event at %d: %w", position, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO board_events (board_key, position, event_type, payload) VALUES (?, ?, ?, ?)`,
			key, position, name, payload,
		); err != nil {
			return nil, fmt.Errorf("append event at %d: %w", position, classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", classify(err))
	}
	return events, nil
}

// classify maps driver failures onto the store error kinds: lock contention
// is transient, a primary-key collision is a conflict.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch {
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %w", eventlog.ErrConflict, err)
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %w", eventlog.ErrTransient, err)
	default:
		return err
	}
}
