package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ProfileRepo stores the mutually exclusive client and business
// profiles of an account.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// GetClient returns the client profile or sql.ErrNoRows.
func (r *ProfileRepo) GetClient(ctx context.Context, accountID uint64) (model.ClientInfo, error) {
	var ci model.ClientInfo
	err := r.DB.QueryRowContext(ctx,
		"SELECT account_id,address,contact_number,designation,affiliation FROM client_info WHERE account_id=?",
		accountID).Scan(&ci.AccountID, &ci.Address, &ci.ContactNumber, &ci.Designation, &ci.Affiliation)
	return ci, err
}

// GetBusiness returns the business profile or sql.ErrNoRows.
func (r *ProfileRepo) GetBusiness(ctx context.Context, accountID uint64) (model.BusinessInfo, error) {
	var bi model.BusinessInfo
	err := r.DB.QueryRowContext(ctx,
		`SELECT account_id,address,contact_number,company_name,business_type,tin,employee_count
		 FROM business_info WHERE account_id=?`,
		accountID).Scan(&bi.AccountID, &bi.Address, &bi.ContactNumber, &bi.CompanyName,
		&bi.BusinessType, &bi.TIN, &bi.EmployeeCount)
	return bi, err
}

// Get returns whichever profile exists.  Both results are nil when the
// account has not filled in a profile yet.
func (r *ProfileRepo) Get(ctx context.Context, accountID uint64) (*model.ClientInfo, *model.BusinessInfo, error) {
	ci, err := r.GetClient(ctx, accountID)
	if err == nil {
		return &ci, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}
	bi, err := r.GetBusiness(ctx, accountID)
	if err == nil {
		return nil, &bi, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	return nil, nil, err
}

// SaveClient replaces the account's profile with ci and sets the role
// to CLIENT.
func (r *ProfileRepo) SaveClient(ctx context.Context, ci model.ClientInfo) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := clearProfilesTx(ctx, tx, ci.AccountID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO client_info (account_id,address,contact_number,designation,affiliation) VALUES (?,?,?,?,?)",
			ci.AccountID, ci.Address, ci.ContactNumber, ci.Designation, ci.Affiliation); err != nil {
			return err
		}
		return setRoleTx(ctx, tx, ci.AccountID, model.RoleClient)
	})
}

// SaveBusiness replaces the account's profile with bi and sets the role
// to BUSINESS.
func (r *ProfileRepo) SaveBusiness(ctx context.Context, bi model.BusinessInfo) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := clearProfilesTx(ctx, tx, bi.AccountID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO business_info (account_id,address,contact_number,company_name,business_type,tin,employee_count)
			 VALUES (?,?,?,?,?,?,?)`,
			bi.AccountID, bi.Address, bi.ContactNumber, bi.CompanyName, bi.BusinessType, bi.TIN, bi.EmployeeCount); err != nil {
			return err
		}
		return setRoleTx(ctx, tx, bi.AccountID, model.RoleBusiness)
	})
}

func clearProfilesTx(ctx context.Context, tx *sql.Tx, accountID uint64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM client_info WHERE account_id=?", accountID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM business_info WHERE account_id=?", accountID)
	return err
}

func setRoleTx(ctx context.Context, tx *sql.Tx, accountID uint64, role model.Role) error {
	res, err := tx.ExecContext(ctx, "UPDATE accounts SET role=?, updated_at=? WHERE id=?", string(role), now(), accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
