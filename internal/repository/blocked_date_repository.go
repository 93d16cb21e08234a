package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// BlockedDateRepo stores facility-wide closed days as YYYY-MM-DD text.
type BlockedDateRepo struct{ DB *sql.DB }

func NewBlockedDateRepo(db *sql.DB) *BlockedDateRepo { return &BlockedDateRepo{DB: db} }

// Add blocks day (already formatted with model.DateLayout).
func (r *BlockedDateRepo) Add(ctx context.Context, day, reason string) (model.BlockedDate, error) {
	bd := model.BlockedDate{Date: day, Reason: reason, CreatedAt: now()}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO blocked_dates (blocked_on, reason, created_at) VALUES (?,?,?)",
		bd.Date, bd.Reason, bd.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return bd, ErrDuplicate
		}
		return bd, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return bd, err
	}
	bd.ID = uint64(id)
	return bd, nil
}

// Exists reports whether day is blocked.
func (r *BlockedDateRepo) Exists(ctx context.Context, day string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocked_dates WHERE blocked_on=?", day).Scan(&n)
	return n > 0, err
}

// List returns blocked days in calendar order.
func (r *BlockedDateRepo) List(ctx context.Context) ([]model.BlockedDate, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, blocked_on, reason, created_at FROM blocked_dates ORDER BY blocked_on")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BlockedDate{}
	for rows.Next() {
		var bd model.BlockedDate
		if err := rows.Scan(&bd.ID, &bd.Date, &bd.Reason, &bd.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	return out, rows.Err()
}

// Delete unblocks a day by id.
func (r *BlockedDateRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM blocked_dates WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
