// Package postgres persists board event logs in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a PostgreSQL-backed event log. The (board_key, position) primary
// key turns racing appends into unique violations, surfaced as
// eventlog.ErrConflict.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check that Store satisfies the log interface.
var _ eventlog.Log[board.Event] = (*Store)(nil)

// Open connects a pool to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// runMigrations runs on its own short-lived database/sql connection; the
// pool stays dedicated to event traffic.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Load returns the board's events in position order.
func (s *Store) Load(ctx context.Context, key string) ([]board.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_type, payload FROM board_events WHERE board_key = $1 ORDER BY position`,
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

// Save appends the tail of events beyond the rows already stored, inside one
// transaction with a single multi-row insert.
func (s *Store) Save(ctx context.Context, key string, events []board.Event) ([]board.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	var stored int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM board_events WHERE board_key = $1`, key,
	).Scan(&stored); err != nil {
		return nil, fmt.Errorf("count stored events: %w", classify(err))
	}
	if stored > len(events) {
		return nil, fmt.Errorf("board %q has %d events, saving %d: %w",
			key, stored, len(events), eventlog.ErrConflict)
	}

	if stored < len(events) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO board_events (board_key, position, event_type, payload) VALUES `)
		args := make([]any, 0, (len(events)-stored)*4)
		for position := stored; position < len(events); position++ {
			name, payload, err := board.EncodeEvent(events[position])
			if err != nil {
				return nil, fmt.Errorf("encode event at %d: %w", position, err)
			}
			if position > stored {
				sb.WriteString(", ")
			}
			base := len(args)
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
			args = append(args, key, position, name, payload)
		}
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
			return nil, fmt.Errorf("append events: %w", classify(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit save: %w", classify(err))
	}
	return events, nil
}

// classify maps driver failures onto the store error kinds: unique
// violations are conflicts, connection and serialization failures transient.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %w", eventlog.ErrConflict, err)
		case pgErr.Code == "40001", strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %w", eventlog.ErrTransient, err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", eventlog.ErrTransient, err)
	}
	return err
}
