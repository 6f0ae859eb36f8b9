package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Resilience tests cover failure paths around operator sessions. Run them
// with the race detector:
//
//	go test -run TestResilience -race ./internal/auth/...

// TestResilience_ConcurrentRotation presents the same refresh token from
// two goroutines at once. Whatever the interleaving, the presented token
// must end up revoked and the account rows must stay readable.
func TestResilience_ConcurrentRotation(t *testing.T) {
	db := authTestDB(t)
	userRepo := NewUserRepository(db)
	tokenRepo := NewTokenRepository(db)
	ctx := context.Background()

	user := mustCreateAccount(t, db, "dispatch", RoleOperator)
	presented := issueToken(t, tokenRepo, user.ID, "shared-session", 24*time.Hour)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			stored, err := tokenRepo.GetByTokenHash(ctx, presented.TokenHash)
			if err != nil {
				results <- err
				return
			}

			next := &RefreshToken{
				UserID:    user.ID,
				FamilyID:  stored.FamilyID,
				TokenHash: HashToken(fmt.Sprintf("rotated-%d", i)),
				ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
			}
			results <- tokenRepo.RotateRefreshToken(ctx, stored.ID, next)
		}()
	}

	wg.Wait()
	close(results)

	// SQLite serialises writes, so both attempts may succeed. The
	// invariant is that at least one does and nothing corrupts.
	var successes int
	for err := range results {
		if err == nil {
			successes++
		}
	}
	if successes == 0 {
		t.Error("every concurrent rotation failed")
	}

	stored, err := tokenRepo.GetByTokenHash(ctx, presented.TokenHash)
	if err != nil {
		t.Fatalf("looking up presented token: %v", err)
	}
	if !stored.Revoked {
		t.Error("presented token still active after rotation")
	}

	if _, err := userRepo.GetByID(ctx, user.ID); err != nil {
		t.Errorf("account lookup after concurrent rotation: %v", err)
	}
}

// TestResilience_AccountDeletionCascades verifies ON DELETE CASCADE takes
// the account's refresh tokens with it.
func TestResilience_AccountDeletionCascades(t *testing.T) {
	db := authTestDB(t)
	userRepo := NewUserRepository(db)
	tokenRepo := NewTokenRepository(db)
	ctx := context.Background()

	user := mustCreateAccount(t, db, "leaver", RoleOperator)
	for i := 0; i < 3; i++ {
		issueToken(t, tokenRepo, user.ID, fmt.Sprintf("session-%d", i), 24*time.Hour)
	}

	tokens, err := tokenRepo.ListActiveByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("listing sessions pre-delete: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("pre-delete sessions = %d, want 3", len(tokens))
	}

	if err := userRepo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("deleting account: %v", err)
	}

	tokens, err = tokenRepo.ListActiveByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("listing sessions post-delete: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("post-delete sessions = %d, want 0", len(tokens))
	}
}

// TestResilience_CancelledContext runs repository operations under an
// already-cancelled context. Each should fail cleanly, no panics.
func TestResilience_CancelledContext(t *testing.T) {
	userRepo := NewUserRepository(authTestDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := userRepo.List(ctx); err == nil {
		t.Error("List() with cancelled context returned nil error")
	}
	if _, err := userRepo.GetByUsername(ctx, "dispatch"); err == nil {
		t.Error("GetByUsername() with cancelled context returned nil error")
	}
	if _, err := userRepo.Count(ctx); err == nil {
		t.Error("Count() with cancelled context returned nil error")
	}

	user := &User{
		Username:     "dispatch",
		DisplayName:  "Depot Dispatch",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$dGVzdHNhbHQ$dGVzdGhhc2g",
		Role:         RoleOperator,
		IsActive:     true,
	}
	if err := userRepo.Create(ctx, user); err == nil {
		t.Error("Create() with cancelled context returned nil error")
	}
}
