package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// EVCRepo stores educational-visit reservations with their roster,
// materials and time slots.
type EVCRepo struct{ db *sql.DB }

func NewEVCRepo(db *sql.DB) *EVCRepo { return &EVCRepo{db: db} }

// EVCFilter narrows List.  Zero values match everything.
type EVCFilter struct {
	AccountID uint64
	Status    model.EVCStatus
}

const evcCols = `id, account_id, status, rejection_stage, reject_reason, cancel_reason, teacher_name,
	teacher_email, subject, topic, school_level, class_size, teacher_approved_at, approved_by,
	received_by, received_at, created_at, updated_at`

func scanEVC(row interface{ Scan(...any) error }) (model.EVCReservation, error) {
	var e model.EVCReservation
	var status, stage string
	var rejectReason, cancelReason, approvedBy, receivedBy sql.NullString
	var teacherApprovedAt, receivedAt sql.NullTime
	err := row.Scan(&e.ID, &e.AccountID, &status, &stage, &rejectReason, &cancelReason, &e.TeacherName,
		&e.TeacherEmail, &e.Subject, &e.Topic, &e.SchoolLevel, &e.ClassSize, &teacherApprovedAt, &approvedBy,
		&receivedBy, &receivedAt, &e.CreatedAt, &e.UpdatedAt)
	e.Status, e.RejectionStage = model.EVCStatus(status), model.RejectionStage(stage)
	e.RejectReason, e.CancelReason = strPtr(rejectReason), strPtr(cancelReason)
	e.TeacherApprovedAt, e.ApprovedBy = timePtr(teacherApprovedAt), strPtr(approvedBy)
	e.ReceivedBy, e.ReceivedAt = strPtr(receivedBy), timePtr(receivedAt)
	return e, err
}

// Create inserts the reservation with its children.  When token is not
// nil the approval token row is written in the same transaction.
func (r *EVCRepo) Create(ctx context.Context, e *model.EVCReservation, token *model.ApprovalToken) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO evc_reservations (account_id, status, rejection_stage, teacher_name, teacher_email,
			 subject, topic, school_level, class_size, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			e.AccountID, string(e.Status), string(e.RejectionStage), e.TeacherName, e.TeacherEmail,
			e.Subject, e.Topic, e.SchoolLevel, e.ClassSize, ts, ts)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = uint64(id)
		e.CreatedAt, e.UpdatedAt = ts, ts
		for i := range e.Students {
			st := &e.Students[i]
			res, err := tx.ExecContext(ctx, "INSERT INTO evc_students (evc_id, name) VALUES (?,?)", e.ID, st.Name)
			if err != nil {
				return err
			}
			sid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			st.ID = uint64(sid)
		}
		for i := range e.Materials {
			m := &e.Materials[i]
			res, err := tx.ExecContext(ctx,
				"INSERT INTO needed_materials (evc_id, item, quantity, description) VALUES (?,?,?,?)",
				e.ID, m.Item, m.Quantity, m.Description)
			if err != nil {
				return err
			}
			mid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			m.ID = uint64(mid)
		}
		if err := insertSlotsTx(ctx, tx, "evc_id", e.ID, e.Slots); err != nil {
			return err
		}
		if token != nil {
			token.EVCID = e.ID
			return insertApprovalTokenTx(ctx, tx, token)
		}
		return nil
	})
}

// Get loads one reservation with its children.
func (r *EVCRepo) Get(ctx context.Context, id uint64) (model.EVCReservation, error) {
	e, err := scanEVC(r.db.QueryRowContext(ctx, "SELECT "+evcCols+" FROM evc_reservations WHERE id=?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, ErrNotFound
		}
		return e, err
	}
	return e, r.loadChildren(ctx, &e)
}

// List returns reservations matching f, newest first.
func (r *EVCRepo) List(ctx context.Context, f EVCFilter) ([]model.EVCReservation, error) {
	q := "SELECT " + evcCols + " FROM evc_reservations WHERE 1=1"
	var args []any
	if f.AccountID != 0 {
		q += " AND account_id = ?"
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}
	q += " ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []model.EVCReservation{}
	for rows.Next() {
		e, err := scanEVC(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *EVCRepo) loadChildren(ctx context.Context, e *model.EVCReservation) error {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM evc_students WHERE evc_id=? ORDER BY id", e.ID)
	if err != nil {
		return err
	}
	e.Students = []model.EVCStudent{}
	for rows.Next() {
		var s model.EVCStudent
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			rows.Close()
			return err
		}
		e.Students = append(e.Students, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx,
		"SELECT id, item, quantity, description FROM needed_materials WHERE evc_id=? ORDER BY id", e.ID)
	if err != nil {
		return err
	}
	e.Materials = []model.NeededMaterial{}
	for rows.Next() {
		var m model.NeededMaterial
		if err := rows.Scan(&m.ID, &m.Item, &m.Quantity, &m.Description); err != nil {
			rows.Close()
			return err
		}
		e.Materials = append(e.Materials, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	e.Slots, err = loadSlots(ctx, r.db, "evc_id", e.ID)
	return err
}

// UpdateStatus performs a conditional transition from -> to.
func (r *EVCRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.EVCStatus, ch StatusChange) error {
	return updateStatus(ctx, r.db, "evc_reservations", id, string(from), string(to), ch)
}
