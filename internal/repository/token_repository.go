package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo keeps refresh token fingerprints.  Raw tokens never reach the
// database; callers pass utils.HashToken values.  Rows are removed with
// their account by AccountRepo.DeleteCascade.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store records a freshly issued refresh token for accountID.
func (r *TokenRepo) Store(ctx context.Context, accountID uint64, hash string, exp time.Time) error {
	return storeRefreshTx(ctx, r.DB, accountID, hash, exp)
}

func storeRefreshTx(ctx context.Context, q dbtx, accountID uint64, hash string, exp time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		accountID, hash, exp.UTC().Truncate(time.Second), now())
	return err
}

// Lookup returns the owner of an active token.  Unknown, revoked and
// expired tokens all yield ErrNotFound.
func (r *TokenRepo) Lookup(ctx context.Context, hash string) (uint64, error) {
	return activeOwner(ctx, r.DB, hash)
}

func activeOwner(ctx context.Context, q dbtx, hash string) (uint64, error) {
	var (
		accountID uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := q.QueryRowContext(ctx,
		"SELECT account_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		hash).Scan(&accountID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if revokedAt.Valid || !now().Before(expiresAt) {
		return 0, ErrNotFound
	}
	return accountID, nil
}

// Rotate exchanges the active token oldHash for newHash in one
// transaction and returns the owner.  Of two concurrent rotations of the
// same token only one succeeds; the other gets ErrNotFound.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	var accountID uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		if accountID, err = activeOwner(ctx, tx, oldHash); err != nil {
			return err
		}
		if err := revokeTx(ctx, tx, oldHash); err != nil {
			return err
		}
		return storeRefreshTx(ctx, tx, accountID, newHash, exp)
	})
	if err != nil {
		return 0, err
	}
	return accountID, nil
}

// Revoke ends one active token.  It reports ErrNotFound when the token is
// unknown or already revoked.
func (r *TokenRepo) Revoke(ctx context.Context, hash string) error {
	return revokeTx(ctx, r.DB, hash)
}

func revokeTx(ctx context.Context, q dbtx, hash string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now(), hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAll ends every active token of accountID and returns how many
// were revoked.
func (r *TokenRepo) RevokeAll(ctx context.Context, accountID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE account_id=? AND revoked_at IS NULL",
		now(), accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
