package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "poker.db"), 10)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return &Store{db: db}, mock
}

var sampleEvents = []board.Event{
	board.ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"},
	board.ParticipantVoted{
		ParticipantID: "p1",
		Vote:          board.Vote{VoteTypeID: "1", Value: board.NumberValue(3)},
	},
	board.ParticipantCouldNotVote{
		ParticipantID: "ghost",
		Reasons:       []board.NotVotedReason{board.ParticipantDoesNotExist{}},
	},
	board.VotesCleared{},
}

// TestStore_RoundTrip persists every event shape and loads it back intact.
func TestStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "b1", sampleEvents); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := store.Load(ctx, "b1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, sampleEvents) {
		t.Fatalf("loaded %+v, want %+v", loaded, sampleEvents)
	}
}

// TestStore_UnknownKeyLoadsEmpty verifies boards without rows load as empty
// sequences.
func TestStore_UnknownKeyLoadsEmpty(t *testing.T) {
	store := openTestStore(t)

	events, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("loaded %+v from an unknown key", events)
	}
}

// TestStore_SaveAppendsTail verifies repeated saves insert only the rows
// beyond the stored prefix.
func TestStore_SaveAppendsTail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "b1", sampleEvents[:1]); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if _, err := store.Save(ctx, "b1", sampleEvents[:3]); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	// Saving the identical sequence again appends nothing and succeeds.
	if _, err := store.Save(ctx, "b1", sampleEvents[:3]); err != nil {
		t.Fatalf("idempotent save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "b1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, sampleEvents[:3]) {
		t.Fatalf("loaded %+v, want %+v", loaded, sampleEvents[:3])
	}
}

// TestStore_StaleSaveConflicts verifies a save shorter than the stored log
// reports a conflict.
func TestStore_StaleSaveConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "b1", sampleEvents[:2]); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := store.Save(ctx, "b1", sampleEvents[:1]); !errors.Is(err, eventlog.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

// TestStore_BoardsAreIsolated verifies keys do not leak into each other.
func TestStore_BoardsAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.Save(ctx, "b1", sampleEvents[:1])
	store.Save(ctx, "b2", sampleEvents[:2])

	one, _ := store.Load(ctx, "b1")
	two, _ := store.Load(ctx, "b2")
	if len(one) != 1 || len(two) != 2 {
		t.Fatalf("b1 has %d events, b2 has %d", len(one), len(two))
	}
}

// TestClassify maps driver errors onto the store sentinels.
func TestClassify(t *testing.T) {
	conflict := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	if err := classify(conflict); !errors.Is(err, eventlog.ErrConflict) {
		t.Errorf("primary key violation classified as %v", err)
	}
	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	if err := classify(unique); !errors.Is(err, eventlog.ErrConflict) {
		t.Errorf("unique violation classified as %v", err)
	}

	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	if err := classify(busy); !errors.Is(err, eventlog.ErrTransient) {
		t.Errorf("busy classified as %v", err)
	}
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	if err := classify(locked); !errors.Is(err, eventlog.ErrTransient) {
		t.Errorf("locked classified as %v", err)
	}

	plain := sqlite3.Error{Code: sqlite3.ErrError}
	if err := classify(plain); eventlog.Retryable(err) {
		t.Errorf("generic driver error became retryable: %v", err)
	}
	other := errors.New("not a driver error")
	if err := classify(other); err != other {
		t.Errorf("foreign error rewritten to %v", err)
	}
}

// TestLoad_BusyBackendIsTransient verifies lock contention on the read path
// surfaces as a retryable failure.
func TestLoad_BusyBackendIsTransient(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT event_type, payload FROM board_events").
		WithArgs("b1").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})

	_, err := store.Load(context.Background(), "b1")
	if !errors.Is(err, eventlog.ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
}

// TestSave_CountQueryFailure verifies a failed prefix count aborts the save
// before any insert.
func TestSave_CountQueryFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("b1").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrLocked})
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), "b1", sampleEvents[:1])
	if !errors.Is(err, eventlog.ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
}

// TestSave_InsertConflict verifies a primary key collision on append comes
// back as a conflict.
func TestSave_InsertConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
	mock.ExpectExec("INSERT INTO board_events").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey})
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), "b1", sampleEvents[:1])
	if !errors.Is(err, eventlog.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}
