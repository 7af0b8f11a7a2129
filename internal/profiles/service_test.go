package profiles

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetOrCreateAssignsRoleOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepo(), []string{" Boss@Example.com "})
	svc.Now = func() time.Time { return now }

	admin, err := svc.GetOrCreate(ctx, "u-admin", "boss@example.com")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("expected admin role from ADMIN_EMAILS, got %q", admin.Role)
	}

	user, err := svc.GetOrCreate(ctx, "u-1", "someone@example.com")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if user.Role != RoleUser || !user.CreatedAt.Equal(now) {
		t.Fatalf("unexpected profile %+v", user)
	}

	if _, err := svc.SetRole(ctx, "u-1", RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	again, err := svc.GetOrCreate(ctx, "u-1", "someone@example.com")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.Role != RoleAdmin {
		t.Fatalf("existing profile must not be reset, got %q", again.Role)
	}

	ok, err := svc.IsAdmin(ctx, "u-1")
	if err != nil || !ok {
		t.Fatalf("expected admin, got %v %v", ok, err)
	}
	ok, err = svc.IsAdmin(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("missing profile must not be admin, got %v %v", ok, err)
	}
}

func TestSetRoleValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil)

	if _, err := svc.SetRole(ctx, "u-1", "owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.SetRole(ctx, "u-1", RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	_ = repo.Create(ctx, Profile{ID: "old", Role: RoleUser, CreatedAt: day.Add(-time.Hour)})
	_ = repo.Create(ctx, Profile{ID: "new", Role: RoleUser, CreatedAt: day.Add(time.Hour)})

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if n, _ := svc.Count(ctx, time.Time{}); n != 2 {
		t.Fatalf("expected 2 profiles, got %d", n)
	}
	if n, _ := svc.Count(ctx, day); n != 1 {
		t.Fatalf("expected 1 profile today, got %d", n)
	}

	if err := svc.Delete(ctx, "old"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
