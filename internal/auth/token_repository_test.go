package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func issueToken(t *testing.T, repo TokenRepository, userID, raw string, ttl time.Duration) *RefreshToken {
	t.Helper()
	tok := &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("creating refresh token: %v", err)
	}
	return tok
}

func TestTokenRepository_CreateAndLookup(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	tok := &RefreshToken{
		UserID:     user.ID,
		TokenHash:  HashToken("session-raw"),
		ClientInfo: "vendctl on depot workstation",
		ExpiresAt:  time.Now().Add(7 * 24 * time.Hour),
	}
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(tok.ID, "rt-") {
		t.Errorf("token ID = %q, want rt- prefix", tok.ID)
	}
	if tok.FamilyID == "" {
		t.Fatal("Create() left FamilyID empty")
	}

	got, err := repo.GetByTokenHash(ctx, HashToken("session-raw"))
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, user.ID)
	}
	if got.ClientInfo != "vendctl on depot workstation" {
		t.Errorf("ClientInfo = %q", got.ClientInfo)
	}
	if got.Revoked {
		t.Error("fresh token reads revoked")
	}

	if _, err := repo.GetByTokenHash(ctx, HashToken("never-issued")); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("unknown hash error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenRepository_Revoke(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	tok := issueToken(t, repo, user.ID, "revoke-me", 7*24*time.Hour)

	if err := repo.Revoke(ctx, tok.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	got, err := repo.GetByTokenHash(ctx, tok.TokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if !got.Revoked {
		t.Error("token still active after Revoke()")
	}
}

func TestTokenRepository_RevokeFamily(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	first := issueToken(t, repo, user.ID, "chain-1", 7*24*time.Hour)

	// Second link of the same session chain.
	second := &RefreshToken{
		UserID:    user.ID,
		FamilyID:  first.FamilyID,
		TokenHash: HashToken("chain-2"),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other := issueToken(t, repo, user.ID, "other-session", 7*24*time.Hour)

	if err := repo.RevokeFamily(ctx, first.FamilyID); err != nil {
		t.Fatalf("RevokeFamily() error = %v", err)
	}

	for _, hash := range []string{first.TokenHash, second.TokenHash} {
		got, _ := repo.GetByTokenHash(ctx, hash)
		if !got.Revoked {
			t.Errorf("token %s survived family revocation", got.ID)
		}
	}
	got, _ := repo.GetByTokenHash(ctx, other.TokenHash)
	if got.Revoked {
		t.Error("unrelated session was revoked")
	}
}

func TestTokenRepository_RotateRefreshToken(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	old := issueToken(t, repo, user.ID, "rotate-old", 7*24*time.Hour)

	next := &RefreshToken{
		UserID:    user.ID,
		FamilyID:  old.FamilyID,
		TokenHash: HashToken("rotate-new"),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := repo.RotateRefreshToken(ctx, old.ID, next); err != nil {
		t.Fatalf("RotateRefreshToken() error = %v", err)
	}

	oldRow, err := repo.GetByTokenHash(ctx, old.TokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash(old) error = %v", err)
	}
	if !oldRow.Revoked {
		t.Error("rotated-out token still active, replay window open")
	}

	newRow, err := repo.GetByTokenHash(ctx, next.TokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash(new) error = %v", err)
	}
	if newRow.Revoked || newRow.FamilyID != old.FamilyID {
		t.Errorf("rotated-in token revoked=%v family=%q, want active in family %q",
			newRow.Revoked, newRow.FamilyID, old.FamilyID)
	}
}

func TestTokenRepository_RevokeAllForUser(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		issueToken(t, repo, user.ID, fmt.Sprintf("session-%d", i), 7*24*time.Hour)
	}

	if err := repo.RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}

	active, err := repo.ListActiveByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActiveByUser() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActiveByUser() returned %d after RevokeAllForUser, want 0", len(active))
	}
}

func TestTokenRepository_ListActiveByUser(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	live := issueToken(t, repo, user.ID, "live", 7*24*time.Hour)
	issueToken(t, repo, user.ID, "stale", -time.Hour)
	dead := issueToken(t, repo, user.ID, "dead", 7*24*time.Hour)
	if err := repo.Revoke(ctx, dead.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	tokens, err := repo.ListActiveByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActiveByUser() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].ID != live.ID {
		t.Fatalf("ListActiveByUser() = %d tokens, want only %s", len(tokens), live.ID)
	}
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	db := authTestDB(t)
	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	repo := NewTokenRepository(db)
	ctx := context.Background()

	stale := issueToken(t, repo, user.ID, "stale", -time.Hour)
	live := issueToken(t, repo, user.ID, "live", 7*24*time.Hour)

	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("DeleteExpired() removed %d rows, want 1", count)
	}

	if _, err := repo.GetByTokenHash(ctx, live.TokenHash); err != nil {
		t.Errorf("live token removed by cleanup: %v", err)
	}
	if _, err := repo.GetByTokenHash(ctx, stale.TokenHash); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("stale token lookup error = %v, want ErrTokenInvalid", err)
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("raw-session")
	b := HashToken("raw-session")
	c := HashToken("other-session")

	if a != b {
		t.Error("same input hashed to different values")
	}
	if a == c {
		t.Error("distinct inputs collided")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(a))
	}
}
