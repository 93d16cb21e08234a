package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// insertSlotsTx stores the slots of one reservation.  ownerCol is
// util_req_id or evc_id.
func insertSlotsTx(ctx context.Context, tx *sql.Tx, ownerCol string, ownerID uint64, slots []model.TimeSlot) error {
	for i := range slots {
		s := &slots[i]
		res, err := tx.ExecContext(ctx,
			"INSERT INTO time_slots ("+ownerCol+", day, start_time, end_time) VALUES (?,?,?,?)",
			ownerID, s.Day, nullTime(s.Start), nullTime(s.End))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = uint64(id)
	}
	return nil
}

func loadSlots(ctx context.Context, q dbtx, ownerCol string, ownerID uint64) ([]model.TimeSlot, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, day, start_time, end_time FROM time_slots WHERE "+ownerCol+" = ? ORDER BY day, id", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TimeSlot{}
	for rows.Next() {
		var s model.TimeSlot
		var st, et sql.NullTime
		if err := rows.Scan(&s.ID, &s.Day, &st, &et); err != nil {
			return nil, err
		}
		s.Start, s.End = timePtr(st), timePtr(et)
		out = append(out, s)
	}
	return out, rows.Err()
}

// StatusChange lists the columns written alongside a status transition.
// Nil fields are left untouched.
type StatusChange struct {
	ApprovedBy        *string
	ReceivedBy        *string
	ReceivedAt        *time.Time
	RejectReason      *string
	CancelReason      *string
	ReceiptNumber     *string
	PaidAt            *time.Time
	RejectionStage    *model.RejectionStage
	TeacherApprovedAt *time.Time
}

func (c StatusChange) assignments() ([]string, []any) {
	var cols []string
	var args []any
	add := func(col string, v any) {
		cols = append(cols, col+"=?")
		args = append(args, v)
	}
	if c.ApprovedBy != nil {
		add("approved_by", *c.ApprovedBy)
	}
	if c.ReceivedBy != nil {
		add("received_by", *c.ReceivedBy)
	}
	if c.ReceivedAt != nil {
		add("received_at", nullTime(c.ReceivedAt))
	}
	if c.RejectReason != nil {
		add("reject_reason", *c.RejectReason)
	}
	if c.CancelReason != nil {
		add("cancel_reason", *c.CancelReason)
	}
	if c.ReceiptNumber != nil {
		add("receipt_number", *c.ReceiptNumber)
	}
	if c.PaidAt != nil {
		add("paid_at", nullTime(c.PaidAt))
	}
	if c.RejectionStage != nil {
		add("rejection_stage", string(*c.RejectionStage))
	}
	if c.TeacherApprovedAt != nil {
		add("teacher_approved_at", nullTime(c.TeacherApprovedAt))
	}
	return cols, args
}

// updateStatus moves a row of table from one status to another only if
// it is still in from.  It returns ErrNotFound for a missing row and
// ErrStaleStatus when the row has moved on.
func updateStatus(ctx context.Context, q dbtx, table string, id uint64, from, to string, ch StatusChange) error {
	cols, args := ch.assignments()
	cols = append([]string{"status=?", "updated_at=?"}, cols...)
	args = append([]any{to, now()}, args...)
	args = append(args, id, from)
	res, err := q.ExecContext(ctx,
		"UPDATE "+table+" SET "+strings.Join(cols, ", ")+" WHERE id=? AND status=?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id=?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrStaleStatus
}
