package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ErrTokenUsed is returned when an approval token was already consumed.
var ErrTokenUsed = errors.New("approval token already used")

// ErrTokenExpired is returned when an approval token is past its expiry.
var ErrTokenExpired = errors.New("approval token expired")

// ApprovalTokenRepo persists single-use teacher approval tokens by hash.
type ApprovalTokenRepo struct{ DB *sql.DB }

func NewApprovalTokenRepo(db *sql.DB) *ApprovalTokenRepo { return &ApprovalTokenRepo{DB: db} }

func insertApprovalTokenTx(ctx context.Context, tx *sql.Tx, t *model.ApprovalToken) error {
	t.CreatedAt = now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO approval_tokens (evc_id, token_hash, teacher_email, expires_at, created_at)
		 VALUES (?,?,?,?,?)`,
		t.EVCID, t.TokenHash, t.TeacherEmail, t.ExpiresAt.UTC().Truncate(time.Second), t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Lookup returns the token row for hash without consuming it.  Expired
// or consumed tokens yield ErrTokenExpired or ErrTokenUsed.
func (r *ApprovalTokenRepo) Lookup(ctx context.Context, hash string) (model.ApprovalToken, error) {
	var t model.ApprovalToken
	var consumed sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, evc_id, token_hash, teacher_email, expires_at, consumed_at, created_at
		 FROM approval_tokens WHERE token_hash=? LIMIT 1`, hash).
		Scan(&t.ID, &t.EVCID, &t.TokenHash, &t.TeacherEmail, &t.ExpiresAt, &consumed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	t.ConsumedAt = timePtr(consumed)
	if t.ConsumedAt != nil {
		return t, ErrTokenUsed
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return t, ErrTokenExpired
	}
	return t, nil
}

// ConsumeAndTransition marks the token consumed and applies the EVC
// status change in one transaction.  A token consumed concurrently
// yields ErrTokenUsed and leaves the reservation untouched.
func (r *ApprovalTokenRepo) ConsumeAndTransition(ctx context.Context, hash string, evcID uint64,
	from, to model.EVCStatus, ch StatusChange) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE approval_tokens SET consumed_at=? WHERE token_hash=? AND evc_id=? AND consumed_at IS NULL AND expires_at > ?",
			now(), hash, evcID, now())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrTokenUsed
		}
		return updateStatus(ctx, tx, "evc_reservations", evcID, string(from), string(to), ch)
	})
}
