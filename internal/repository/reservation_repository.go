package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/billing"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ReservationRepo stores utilization requests together with their
// service lines, tools, time slots and downtime adjustments.  All
// timestamps are stored in UTC.
type ReservationRepo struct {
	db   *sql.DB
	lock string
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.  Approval takes row locks with SELECT ... FOR UPDATE.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, lock: " FOR UPDATE"}
}

// WithoutRowLocks drops the FOR UPDATE suffix for engines that lack it
// and serialise writers themselves (SQLite).
func (r *ReservationRepo) WithoutRowLocks() *ReservationRepo {
	r.lock = ""
	return r
}

// ReservationFilter narrows List.  Zero values match everything.
type ReservationFilter struct {
	AccountID uint64
	Status    model.UtilStatus
	From      *time.Time
	To        *time.Time
}

const utilCols = `id, account_id, status, total_amount_cents, receipt_number, paid_at, comments,
	approved_by, received_by, received_at, reject_reason, cancel_reason, created_at, updated_at`

func scanUtilReq(row interface{ Scan(...any) error }) (model.UtilReq, error) {
	var u model.UtilReq
	var status string
	var receipt, approvedBy, receivedBy, rejectReason, cancelReason sql.NullString
	var paidAt, receivedAt sql.NullTime
	err := row.Scan(&u.ID, &u.AccountID, &status, &u.TotalAmountCents, &receipt, &paidAt, &u.Comments,
		&approvedBy, &receivedBy, &receivedAt, &rejectReason, &cancelReason, &u.CreatedAt, &u.UpdatedAt)
	u.Status = model.UtilStatus(status)
	u.ReceiptNumber, u.PaidAt = strPtr(receipt), timePtr(paidAt)
	u.ApprovedBy, u.ReceivedBy, u.ReceivedAt = strPtr(approvedBy), strPtr(receivedBy), timePtr(receivedAt)
	u.RejectReason, u.CancelReason = strPtr(rejectReason), strPtr(cancelReason)
	return u, err
}

// Create inserts the request and all of its children in one
// transaction, filling every generated id.
func (r *ReservationRepo) Create(ctx context.Context, u *model.UtilReq) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO util_reqs (account_id, status, total_amount_cents, comments, created_at, updated_at)
			 VALUES (?,?,?,?,?,?)`,
			u.AccountID, string(u.Status), u.TotalAmountCents, u.Comments, ts, ts)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = uint64(id)
		u.CreatedAt, u.UpdatedAt = ts, ts
		for i := range u.Services {
			s := &u.Services[i]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO user_services (util_req_id, service_id, service_name, equipment_name,
				 machine_quantity, rate_cents, minutes, cost_cents) VALUES (?,?,?,?,?,?,?,?)`,
				u.ID, s.ServiceID, s.ServiceName, s.EquipmentName, s.MachineQuantity, s.RateCents, s.Minutes, s.CostCents)
			if err != nil {
				return err
			}
			sid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			s.ID = uint64(sid)
		}
		for i := range u.Tools {
			t := &u.Tools[i]
			res, err := tx.ExecContext(ctx,
				"INSERT INTO user_tools (util_req_id, name, quantity) VALUES (?,?,?)", u.ID, t.Name, t.Quantity)
			if err != nil {
				return err
			}
			tid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			t.ID = uint64(tid)
		}
		return insertSlotsTx(ctx, tx, "util_req_id", u.ID, u.Slots)
	})
}

// Get loads one request with its children.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (model.UtilReq, error) {
	u, err := scanUtilReq(r.db.QueryRowContext(ctx, "SELECT "+utilCols+" FROM util_reqs WHERE id=?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	if err := r.loadChildren(ctx, r.db, &u); err != nil {
		return u, err
	}
	return u, nil
}

// List returns requests matching f, newest first, with their children.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.UtilReq, error) {
	q := "SELECT " + utilCols + " FROM util_reqs WHERE 1=1"
	var args []any
	if f.AccountID != 0 {
		q += " AND account_id = ?"
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		q += " AND created_at >= ?"
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		q += " AND created_at < ?"
		args = append(args, f.To.UTC())
	}
	q += " ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []model.UtilReq{}
	for rows.Next() {
		u, err := scanUtilReq(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range out {
		if err := r.loadChildren(ctx, r.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ReservationRepo) loadChildren(ctx context.Context, q dbtx, u *model.UtilReq) error {
	lines, err := loadLines(ctx, q, u.ID)
	if err != nil {
		return err
	}
	u.Services = lines

	rows, err := q.QueryContext(ctx, "SELECT id, name, quantity FROM user_tools WHERE util_req_id=? ORDER BY id", u.ID)
	if err != nil {
		return err
	}
	u.Tools = []model.UserTool{}
	for rows.Next() {
		var t model.UserTool
		if err := rows.Scan(&t.ID, &t.Name, &t.Quantity); err != nil {
			rows.Close()
			return err
		}
		u.Tools = append(u.Tools, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if u.Slots, err = loadSlots(ctx, q, "util_req_id", u.ID); err != nil {
		return err
	}
	u.Downtimes, err = loadDowntimes(ctx, q, u.ID)
	return err
}

func loadLines(ctx context.Context, q dbtx, reqID uint64) ([]model.UserService, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, service_id, service_name, equipment_name, machine_quantity, rate_cents, minutes, cost_cents
		 FROM user_services WHERE util_req_id=? ORDER BY id`, reqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.UserService{}
	for rows.Next() {
		var s model.UserService
		if err := rows.Scan(&s.ID, &s.ServiceID, &s.ServiceName, &s.EquipmentName, &s.MachineQuantity,
			&s.RateCents, &s.Minutes, &s.CostCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadDowntimes(ctx context.Context, q dbtx, reqID uint64) ([]model.DowntimeAdjustment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_service_id, minutes, deduction_cents, reason, recorded_by, created_at
		 FROM downtime_adjustments WHERE util_req_id=? ORDER BY id`, reqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DowntimeAdjustment{}
	for rows.Next() {
		var d model.DowntimeAdjustment
		if err := rows.Scan(&d.ID, &d.UserServiceID, &d.Minutes, &d.DeductionCents, &d.Reason, &d.RecordedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus performs a conditional transition from -> to.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.UtilStatus, ch StatusChange) error {
	return updateStatus(ctx, r.db, "util_reqs", id, string(from), string(to), ch)
}

// CountOverlapping counts requests in Approved or Ongoing that book
// serviceName in a slot overlapping [start, end] inclusively.  The
// request excludeID is ignored.
func (r *ReservationRepo) CountOverlapping(ctx context.Context, serviceName string, start, end time.Time, excludeID uint64) (int, error) {
	return countOverlapping(ctx, r.db, serviceName, start, end, excludeID)
}

func countOverlapping(ctx context.Context, q dbtx, serviceName string, start, end time.Time, excludeID uint64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT u.id) FROM util_reqs u
		 JOIN user_services us ON us.util_req_id = u.id
		 JOIN time_slots t ON t.util_req_id = u.id
		 WHERE u.status IN (?, ?) AND us.service_name = ? AND u.id <> ?
		   AND t.start_time IS NOT NULL AND t.end_time IS NOT NULL
		   AND t.start_time <= ? AND t.end_time >= ?`,
		string(model.UtilApproved), string(model.UtilOngoing), serviceName, excludeID,
		end.UTC().Truncate(time.Second), start.UTC().Truncate(time.Second)).Scan(&n)
	return n, err
}

// Approve moves a Pending request to Approved after re-counting machine
// capacity for every service and scheduled slot inside one transaction.
// The service rows are locked so concurrent approvals of the same
// service serialise.  It returns ErrNoCapacity when any slot is full.
func (r *ReservationRepo) Approve(ctx context.Context, id uint64, approvedBy string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM util_reqs WHERE id=?"+r.lock, id).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if model.UtilStatus(status) != model.UtilPending {
			return ErrStaleStatus
		}
		lines, err := loadLines(ctx, tx, id)
		if err != nil {
			return err
		}
		slots, err := loadSlots(ctx, tx, "util_req_id", id)
		if err != nil {
			return err
		}
		ids := make([]uint64, 0, len(lines))
		names := map[uint64]string{}
		for _, l := range lines {
			if _, ok := names[l.ServiceID]; !ok {
				ids = append(ids, l.ServiceID)
			}
			names[l.ServiceID] = l.ServiceName
		}
		if len(ids) > 0 {
			rows, err := tx.QueryContext(ctx,
				"SELECT id FROM services WHERE id IN ("+placeholders(len(ids))+") ORDER BY id"+r.lock,
				uint64Args(ids)...)
			if err != nil {
				return err
			}
			rows.Close()
		}
		for _, sid := range ids {
			total, err := countAvailableMachines(ctx, tx, sid)
			if err != nil {
				return err
			}
			for _, s := range slots {
				if !s.Scheduled() {
					continue
				}
				booked, err := countOverlapping(ctx, tx, names[sid], *s.Start, *s.End, id)
				if err != nil {
					return err
				}
				if booked >= total {
					return ErrNoCapacity
				}
			}
		}
		return updateStatus(ctx, tx, "util_reqs", id, string(model.UtilPending), string(model.UtilApproved),
			StatusChange{ApprovedBy: &approvedBy})
	})
}

// AddDowntime records a downtime adjustment against one service line
// and re-derives the request total from its lines and adjustments.  It
// returns the new total.
func (r *ReservationRepo) AddDowntime(ctx context.Context, reqID uint64, d *model.DowntimeAdjustment) (int64, error) {
	var total int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var id uint64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM util_reqs WHERE id=?"+r.lock, reqID).Scan(&id); err != nil {
			return err
		}
		lines, err := loadLines(ctx, tx, reqID)
		if err != nil {
			return err
		}
		downs, err := loadDowntimes(ctx, tx, reqID)
		if err != nil {
			return err
		}
		var line *model.UserService
		for i := range lines {
			if lines[i].ID == d.UserServiceID {
				line = &lines[i]
			}
		}
		if line == nil {
			return ErrNotFound
		}
		// Re-priced under the row lock against the adjustments already stored.
		d.DeductionCents = billing.DowntimeDeduction(d.Minutes, *line, downs)
		d.CreatedAt = now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO downtime_adjustments (util_req_id, user_service_id, minutes, deduction_cents, reason, recorded_by, created_at)
			 VALUES (?,?,?,?,?,?,?)`,
			reqID, d.UserServiceID, d.Minutes, d.DeductionCents, d.Reason, d.RecordedBy, d.CreatedAt)
		if err != nil {
			return err
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		d.ID = uint64(newID)
		total = billing.Total(lines, append(downs, *d))
		_, err = tx.ExecContext(ctx,
			"UPDATE util_reqs SET total_amount_cents=?, updated_at=? WHERE id=?", total, now(), reqID)
		return err
	})
	return total, err
}
