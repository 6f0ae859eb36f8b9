package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const tokenColumns = "id, user_id, family_id, token_hash, client_info, expires_at, revoked, created_at"

// TokenRepository persists refresh tokens for dashboard and vendctl
// sessions. Tokens rotate on every refresh; a family ID ties the chain
// together so replay of a consumed token burns the whole chain.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, oldID string, newToken *RefreshToken) error
	ListActiveByUser(ctx context.Context, userID string) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository on the fleet database.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hex digest of a raw refresh token.
// Only digests touch the database; the raw token exists client-side.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a refresh token, minting an ID and a fresh family ID
// when absent. A login starts a new family; rotation stays inside one.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	fillTokenIdentity(token)

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		insertArgs(token)...,
	); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash looks a token up by its digest. This is the refresh and
// logout path: the client presents the raw token, we hash and match.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash = ?", tokenHash)

	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token by hash: %w", err)
	}
	return t, nil
}

// Revoke marks one token revoked. Logout uses this.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// RevokeFamily revokes every token descended from one login. Invoked
// when a consumed token is presented again: someone replayed it, and we
// cannot tell which holder is legitimate, so nobody keeps the session.
func (r *SQLiteTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE family_id = ?", familyID); err != nil {
		return fmt.Errorf("revoking token family: %w", err)
	}
	return nil
}

// RevokeAllForUser ends every session an account holds. Password changes
// and admin force-logout use this.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("revoking all tokens for user: %w", err)
	}
	return nil
}

// RotateRefreshToken revokes the consumed token and inserts its successor
// in one transaction, so no interleaving refresh can observe the family
// with zero live tokens or two.
func (r *SQLiteTokenRepository) RotateRefreshToken(ctx context.Context, oldID string, newToken *RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE id = ?", oldID); err != nil {
		return fmt.Errorf("revoking old token: %w", err)
	}

	fillTokenIdentity(newToken)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		insertArgs(newToken)...,
	); err != nil {
		return fmt.Errorf("creating new token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// ListActiveByUser returns an account's live sessions, newest first.
func (r *SQLiteTokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens
		 WHERE user_id = ? AND revoked = 0 AND expires_at > ?
		 ORDER BY created_at DESC`,
		userID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("listing active tokens: %w", err)
	}
	defer rows.Close()

	tokens := []RefreshToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired prunes tokens past their expiry and reports how many
// went. The daemon runs this periodically; revoked-but-unexpired rows
// stay, they are the replay-detection evidence.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// fillTokenIdentity assigns ID, family, and creation time for an insert.
func fillTokenIdentity(t *RefreshToken) {
	if t.ID == "" {
		t.ID = "rt-" + uuid.NewString()[:16]
	}
	if t.FamilyID == "" {
		t.FamilyID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC().Truncate(time.Second)
}

// insertArgs lays a token out in tokenColumns order for an INSERT.
func insertArgs(t *RefreshToken) []any {
	return []any{
		t.ID, t.UserID, t.FamilyID, t.TokenHash,
		nullString(t.ClientInfo),
		t.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(t.Revoked),
		t.CreatedAt.Format(time.RFC3339),
	}
}

// scanToken reads one refresh_tokens row in the tokenColumns order.
func scanToken(s rowScanner) (*RefreshToken, error) {
	var t RefreshToken
	var clientInfo sql.NullString
	var revoked int
	var expiresAt, createdAt string

	err := s.Scan(&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &clientInfo,
		&expiresAt, &revoked, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Revoked = revoked != 0
	t.ClientInfo = clientInfo.String
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // we wrote it
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // we wrote it
	return &t, nil
}
