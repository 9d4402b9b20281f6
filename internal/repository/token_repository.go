package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// StoreRefresh inserts a refresh token hash row.  Several live tokens per
// user are allowed.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return classify(err)
}

// LiveRefresh returns the owning user id if a non-revoked, non-expired token
// with this hash exists, and ErrNotFound otherwise.
func (r *TokenRepo) LiveRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revoked   bool
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revoked)
	if err != nil {
		return 0, classify(err)
	}
	if revoked || !r.Now().Before(expiresAt) {
		return 0, ErrNotFound
	}
	return userID, nil
}

// RevokeRefresh marks a token as revoked.  Unknown or already revoked tokens
// are not an error.
func (r *TokenRepo) RevokeRefresh(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND revoked=0",
		tokenHash)
	return err
}
