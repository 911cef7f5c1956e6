package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/session/sessiontest"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/MrEthical07/goSession/user"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "gosession.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSessionRepositorySuite(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T, userID string) session.Repository {
		store := openTestStore(t)
		err := store.CreateUser(context.Background(), &user.User{
			ID:          userID,
			DisplayName: "Suite User",
			Email:       userID + "@example.com",
		})
		if err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return store
	})
}

func TestCreateUserSeedsRoles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	err := store.CreateUser(ctx, &user.User{
		ID:            "u-1",
		DisplayName:   "Store",
		Email:         "store@example.com",
		VerifiedStore: true,
		Reputation:    42,
		Roles:         []string{user.RoleUser, user.RoleVerifiedStore},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := store.GetUserByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !u.VerifiedStore || u.Reputation != 42 || len(u.Roles) != 2 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := store.CreateUser(ctx, &user.User{ID: "u-2", Email: "x@example.com", Roles: []string{"ROOT"}}); !errors.Is(err, user.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := sqlite.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := sqlite.Open(sqlite.Memory)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	u, err := store.UpsertFromProfile(context.Background(), user.Profile{SubjectID: "g-1", Email: "a@example.com"}, time.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.GetUserByID(context.Background(), u.ID); err != nil {
		t.Fatalf("get user: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosession.db")
	first, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.UpsertFromProfile(context.Background(), user.Profile{SubjectID: "g-1", Email: "a@example.com"}, time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = first.Close()

	second, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()
	if _, err := second.GetUserByExternalID(context.Background(), "g-1"); err != nil {
		t.Fatalf("expected data to survive reopen: %v", err)
	}
}

func TestUpsertCreatesUserWithDefaultRole(t *testing.T) {
	store := openTestStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()

	u, err := store.UpsertFromProfile(context.Background(), user.Profile{
		SubjectID:   "g-123",
		Email:       "ana@example.com",
		DisplayName: "Ana",
		AvatarURL:   "https://example.com/a.png",
	}, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID == "" || u.ExternalID != "g-123" || u.DisplayName != "Ana" || u.AvatarURL != "https://example.com/a.png" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if len(u.Roles) != 1 || u.Roles[0] != user.RoleUser {
		t.Fatalf("expected default role, got %v", u.Roles)
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(now) || !u.CreatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %+v", u)
	}
}

func TestUpsertRefreshesKnownSubject(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first, err := store.UpsertFromProfile(ctx, user.Profile{SubjectID: "g-1", Email: "old@example.com", DisplayName: "Old", AvatarURL: "https://example.com/old.png"}, time.Now())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	later := time.Now().Add(time.Hour)
	second, err := store.UpsertFromProfile(ctx, user.Profile{SubjectID: "g-1", Email: "new@example.com", DisplayName: "New"}, later)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same account, got %s and %s", first.ID, second.ID)
	}
	if second.Email != "new@example.com" || second.DisplayName != "New" {
		t.Fatalf("profile not refreshed: %+v", second)
	}
	if second.AvatarURL != "https://example.com/old.png" {
		t.Fatalf("empty avatar should keep stored value, got %q", second.AvatarURL)
	}
}

func TestUpsertLinksExistingEmail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first, err := store.UpsertFromProfile(ctx, user.Profile{SubjectID: "g-1", Email: "shared@example.com"}, time.Now())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.RemoveRole(ctx, first.ID, user.RoleUser); err != nil {
		t.Fatalf("remove role: %v", err)
	}

	linked, err := store.UpsertFromProfile(ctx, user.Profile{SubjectID: "g-2", Email: "shared@example.com"}, time.Now())
	if err != nil {
		t.Fatalf("link upsert: %v", err)
	}
	if linked.ID != first.ID || linked.ExternalID != "g-2" {
		t.Fatalf("expected link to existing account: %+v", linked)
	}
	if len(linked.Roles) != 1 || linked.Roles[0] != user.RoleUser {
		t.Fatalf("expected default role restored on link, got %v", linked.Roles)
	}
}

func TestUpsertRejectsIncompleteProfile(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.UpsertFromProfile(context.Background(), user.Profile{Email: "x@example.com"}, time.Now()); err == nil {
		t.Fatal("expected error for missing subject")
	}
}

func TestRoleAssignment(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	u, err := store.UpsertFromProfile(ctx, user.Profile{SubjectID: "g-1", Email: "a@example.com"}, time.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.AssignRole(ctx, u.ID, user.RoleCurator); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.AssignRole(ctx, u.ID, user.RoleCurator); err != nil {
		t.Fatalf("repeat assign should be a no-op: %v", err)
	}
	roles, err := store.RolesForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %v", roles)
	}
	if err := store.RemoveRole(ctx, u.ID, user.RoleCurator); err != nil {
		t.Fatalf("remove: %v", err)
	}
	roles, _ = store.RolesForUser(ctx, u.ID)
	if len(roles) != 1 || roles[0] != user.RoleUser {
		t.Fatalf("unexpected roles after remove: %v", roles)
	}
	if err := store.AssignRole(ctx, u.ID, "ROOT"); !errors.Is(err, user.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := store.AssignRole(ctx, "missing", user.RoleAdmin); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("by id: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUserByExternalID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("by external id: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("by email: expected ErrNotFound, got %v", err)
	}
}

func TestSessionForeignKeyEnforced(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	err := store.InsertSession(context.Background(), &session.Session{
		ID:          "s-1",
		UserID:      "no-such-user",
		RefreshHash: "h",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}
