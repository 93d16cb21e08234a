package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// AccountRepo persists accounts and performs the cascading delete.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountCols = "id,subject,name,email,role,created_at,updated_at"

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	var role string
	err := row.Scan(&a.ID, &a.Subject, &a.Name, &a.Email, &role, &a.CreatedAt, &a.UpdatedAt)
	a.Role = model.Role(role)
	return a, err
}

// Create inserts the account and fills its ID.  When verifyTeacher is
// true the matching teacher_emails entry is marked verified in the same
// transaction.  A unique-key violation yields ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account, verifyTeacher bool) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	ts := now()
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (subject, name, email, role, created_at, updated_at) VALUES (?,?,?,?,?,?)",
			a.Subject, a.Name, a.Email, string(a.Role), ts, ts)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if verifyTeacher {
			if _, err := tx.ExecContext(ctx,
				"UPDATE teacher_emails SET verified=? WHERE email=?", true, a.Email); err != nil {
				return err
			}
		}
		a.ID = uint64(id)
		a.CreatedAt, a.UpdatedAt = ts, ts
		return nil
	})
}

// GetBySubject fetches an account by identity provider subject.
func (r *AccountRepo) GetBySubject(ctx context.Context, subject string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM accounts WHERE subject=? LIMIT 1", subject))
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM accounts WHERE id=? LIMIT 1", id))
}

// List returns all accounts ordered by id.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+accountCols+" FROM accounts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetRole overwrites the role of an account.
func (r *AccountRepo) SetRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET role=?, updated_at=? WHERE id=?", string(role), now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes the account and everything it owns in one
// transaction: profiles, refresh tokens, utilization requests and EVC
// reservations with their slots, line items, rosters, materials,
// downtime rows, approval tokens and survey rows.
func (r *AccountRepo) DeleteCascade(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE id=?", id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		const utilSub = "SELECT id FROM util_reqs WHERE account_id=?"
		const evcSub = "SELECT id FROM evc_reservations WHERE account_id=?"
		stmts := []string{
			"DELETE FROM preliminary_surveys WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM customer_feedback WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM employee_evaluations WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM preliminary_surveys WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM customer_feedback WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM employee_evaluations WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM downtime_adjustments WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM user_services WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM user_tools WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM time_slots WHERE util_req_id IN (" + utilSub + ")",
			"DELETE FROM time_slots WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM evc_students WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM needed_materials WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM approval_tokens WHERE evc_id IN (" + evcSub + ")",
			"DELETE FROM util_reqs WHERE account_id=?",
			"DELETE FROM evc_reservations WHERE account_id=?",
			"DELETE FROM client_info WHERE account_id=?",
			"DELETE FROM business_info WHERE account_id=?",
			"DELETE FROM refresh_tokens WHERE account_id=?",
			"DELETE FROM accounts WHERE id=?",
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}
