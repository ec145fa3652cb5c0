package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	sharedauth "submission-backend/internal/shared/auth"
	"submission-backend/internal/users"
)

func TestIssueTokenCarriesDirectoryRoles(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	ctx := context.Background()
	repo := users.NewMemoryRepo()
	dir := users.NewService(repo)
	// the user signed in before and was granted a role since
	if err := dir.UpsertFromAuth(ctx, users.User{ID: "google:123", Email: "old@example.org"}); err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}
	if err := repo.GrantRole(ctx, "google:123", "InstitutionManager"); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	svc := NewGoogleService("id", "secret", "http://localhost/callback", "http://localhost/ui", dir)
	token, err := svc.issueToken(ctx, googleUserInfo{Sub: "123", Email: "mgr@example.org", Name: "Mo"})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	claims, err := sharedauth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Subject != "google:123" || claims.Email != "mgr@example.org" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "InstitutionManager" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}

	stored, _ := repo.GetByID(ctx, "google:123")
	if stored.Email != "mgr@example.org" {
		t.Fatalf("profile not refreshed: %+v", stored)
	}
}

func TestStateStoreConsumesOnce(t *testing.T) {
	s := newStateStore()
	s.put("fresh", time.Now().Add(time.Minute))
	s.put("stale", time.Now().Add(-time.Minute))

	if !s.consume("fresh") {
		t.Fatalf("expected fresh state to be accepted")
	}
	if s.consume("fresh") {
		t.Fatalf("state reused")
	}
	if s.consume("stale") {
		t.Fatalf("expired state accepted")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("https://app.example.org/login?next=%2Fqueue", "abc")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "abc" || u.Query().Get("next") != "/queue" {
		t.Fatalf("unexpected url: %s", got)
	}
	if _, err := appendToken("", "abc"); err == nil {
		t.Fatalf("expected error for empty redirect")
	}
}
