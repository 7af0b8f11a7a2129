package profiles

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateIgnoresConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	created := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles (id,email,role,created_at) VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING")).
		WithArgs("u1", "a@example.com", RoleUser, created).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Create(context.Background(), Profile{ID: "u1", Email: "a@example.com", Role: RoleUser, CreatedAt: created}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetRoleReturnsProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const (
		userID  = "8f14e45f-ceea-467f-a8c8-2f3a1b6c9d01"
		missing = "00000000-0000-4000-8000-000000000000"
	)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET role = $1 WHERE id = $2 RETURNING id, email, role, created_at")).
		WithArgs(RoleAdmin, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "created_at"}).AddRow(userID, "a@example.com", RoleAdmin, created))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET role = $1 WHERE id = $2")).
		WithArgs(RoleUser, missing).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "created_at"}))

	p, err := repo.SetRole(context.Background(), userID, RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if !p.IsAdmin() {
		t.Fatalf("expected admin, got %+v", p)
	}
	if _, err := repo.SetRole(context.Background(), missing, RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCountSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM profiles WHERE created_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.Count(context.Background(), since)
	if err != nil || n != 4 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRejectsNonUUIDWithoutQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	ctx := context.Background()

	if _, err := repo.Get(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.SetRole(ctx, "abc", RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetRole: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
