package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/synapse-ai/synapse/internal/log"
)

type fakeExecDB struct {
	tag     pgconn.CommandTag
	execErr error
	gotSQL  string
	gotArgs []any
}

func (f *fakeExecDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.gotSQL = sql
	f.gotArgs = args
	return f.tag, f.execErr
}

func (f *fakeExecDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (f *fakeExecDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{errors.New("unexpected QueryRow")}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func TestDeleteNotFound(t *testing.T) {
	store := NewStore(&fakeExecDB{tag: pgconn.NewCommandTag("DELETE 0")}, log.NewNop())
	err := store.Delete(context.Background(), uuid.New(), "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete = %v, want ErrNotFound", err)
	}
}

func TestUpdateTitleNotFound(t *testing.T) {
	store := NewStore(&fakeExecDB{tag: pgconn.NewCommandTag("UPDATE 0")}, log.NewNop())
	err := store.UpdateTitle(context.Background(), uuid.New(), "user-1", "New title")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTitle = %v, want ErrNotFound", err)
	}
}

func TestUpdateTitleScopesToUser(t *testing.T) {
	db := &fakeExecDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	store := NewStore(db, log.NewNop())

	id := uuid.New()
	if err := store.UpdateTitle(context.Background(), id, "user-1", "Renamed"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if !strings.Contains(db.gotSQL, "user_id = $2") {
		t.Errorf("update not user scoped: %q", db.gotSQL)
	}
	if db.gotArgs[1] != "user-1" || db.gotArgs[2] != "Renamed" {
		t.Errorf("update args = %v", db.gotArgs)
	}
}

func TestTouch(t *testing.T) {
	db := &fakeExecDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	store := NewStore(db, log.NewNop())

	if err := store.Touch(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !strings.Contains(db.gotSQL, "updated_at = now()") {
		t.Errorf("touch statement = %q", db.gotSQL)
	}
}

func TestGetNoRowsMapsToNotFound(t *testing.T) {
	db := &rowDB{row: errRow{pgx.ErrNoRows}}
	store := NewStore(db, log.NewNop())

	_, err := store.Get(context.Background(), uuid.New(), "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

type rowDB struct {
	fakeExecDB
	row pgx.Row
}

func (d *rowDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return d.row
}
