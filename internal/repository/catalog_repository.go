package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// CatalogRepo manages services, machines and the machine_services join.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// DB exposes the underlying handle for callers that need their own
// transaction.
func (r *CatalogRepo) DB() *sql.DB { return r.db }

const serviceCols = "id,name,rate_cents,billing_unit,icon,description,created_at,updated_at"

func scanService(row interface{ Scan(...any) error }) (model.Service, error) {
	var s model.Service
	var icon, desc sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.RateCents, &s.BillingUnit, &icon, &desc, &s.CreatedAt, &s.UpdatedAt)
	s.Icon, s.Description = strPtr(icon), strPtr(desc)
	s.MachineIDs = []uint64{}
	return s, err
}

// CreateService inserts the service and its machine links.
func (r *CatalogRepo) CreateService(ctx context.Context, s *model.Service) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO services (name, rate_cents, billing_unit, icon, description, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?)`,
			s.Name, s.RateCents, s.BillingUnit, nullString(s.Icon), nullString(s.Description), ts, ts)
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
		s.ID = uint64(id)
		s.CreatedAt, s.UpdatedAt = ts, ts
		return replaceLinksTx(ctx, tx, "service_id", s.ID, "machine_id", s.MachineIDs)
	})
}

// UpdateService overwrites the service row and replaces its machine
// links in the same transaction.
func (r *CatalogRepo) UpdateService(ctx context.Context, s *model.Service) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE services SET name=?, rate_cents=?, billing_unit=?, icon=?, description=?, updated_at=?
			 WHERE id=?`,
			s.Name, s.RateCents, s.BillingUnit, nullString(s.Icon), nullString(s.Description), ts, s.ID)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		s.UpdatedAt = ts
		return replaceLinksTx(ctx, tx, "service_id", s.ID, "machine_id", s.MachineIDs)
	})
}

// DeleteService removes a service and its machine links.  It returns
// ErrConflict while an open reservation still books the service.
func (r *CatalogRepo) DeleteService(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var open int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_services us
			 JOIN util_reqs u ON u.id = us.util_req_id
			 WHERE us.service_id = ? AND u.status IN (?,?,?,?)`,
			id, string(model.UtilPending), string(model.UtilApproved),
			string(model.UtilOngoing), string(model.UtilPendingPayment)).Scan(&open)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrConflict
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM machine_services WHERE service_id=?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM services WHERE id=?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetService fetches one service with its machine ids.
func (r *CatalogRepo) GetService(ctx context.Context, id uint64) (model.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx, "SELECT "+serviceCols+" FROM services WHERE id=?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, ErrNotFound
		}
		return s, err
	}
	links, err := r.links(ctx, "service_id", "machine_id", id)
	if err != nil {
		return s, err
	}
	s.MachineIDs = links[id]
	if s.MachineIDs == nil {
		s.MachineIDs = []uint64{}
	}
	return s, nil
}

// ListServices returns every service ordered by name.
func (r *CatalogRepo) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+serviceCols+" FROM services ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	links, err := r.links(ctx, "service_id", "machine_id", 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ids := links[out[i].ID]; ids != nil {
			out[i].MachineIDs = ids
		}
	}
	return out, nil
}

const machineCols = "id,name,description,is_available,instructions,link,created_at,updated_at"

func scanMachine(row interface{ Scan(...any) error }) (model.Machine, error) {
	var m model.Machine
	var desc, instr, link sql.NullString
	err := row.Scan(&m.ID, &m.Name, &desc, &m.IsAvailable, &instr, &link, &m.CreatedAt, &m.UpdatedAt)
	m.Description, m.Instructions, m.Link = strPtr(desc), strPtr(instr), strPtr(link)
	m.ServiceIDs = []uint64{}
	return m, err
}

// CreateMachine inserts the machine and its service links.
func (r *CatalogRepo) CreateMachine(ctx context.Context, m *model.Machine) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO machines (name, description, is_available, instructions, link, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?)`,
			m.Name, nullString(m.Description), m.IsAvailable, nullString(m.Instructions), nullString(m.Link), ts, ts)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.ID = uint64(id)
		m.CreatedAt, m.UpdatedAt = ts, ts
		return replaceLinksTx(ctx, tx, "machine_id", m.ID, "service_id", m.ServiceIDs)
	})
}

// UpdateMachine overwrites the machine row and replaces its service
// links in the same transaction.
func (r *CatalogRepo) UpdateMachine(ctx context.Context, m *model.Machine) error {
	ts := now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE machines SET name=?, description=?, is_available=?, instructions=?, link=?, updated_at=?
			 WHERE id=?`,
			m.Name, nullString(m.Description), m.IsAvailable, nullString(m.Instructions), nullString(m.Link), ts, m.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		m.UpdatedAt = ts
		return replaceLinksTx(ctx, tx, "machine_id", m.ID, "service_id", m.ServiceIDs)
	})
}

// SetMachineAvailability flips the manual availability toggle.
func (r *CatalogRepo) SetMachineAvailability(ctx context.Context, id uint64, available bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE machines SET is_available=?, updated_at=? WHERE id=?", available, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMachine removes a machine and its service links.
func (r *CatalogRepo) DeleteMachine(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM machine_services WHERE machine_id=?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM machines WHERE id=?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetMachine fetches one machine with its service ids.
func (r *CatalogRepo) GetMachine(ctx context.Context, id uint64) (model.Machine, error) {
	m, err := scanMachine(r.db.QueryRowContext(ctx, "SELECT "+machineCols+" FROM machines WHERE id=?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, ErrNotFound
		}
		return m, err
	}
	links, err := r.links(ctx, "machine_id", "service_id", id)
	if err != nil {
		return m, err
	}
	if ids := links[id]; ids != nil {
		m.ServiceIDs = ids
	}
	return m, nil
}

// ListMachines returns every machine ordered by name.
func (r *CatalogRepo) ListMachines(ctx context.Context) ([]model.Machine, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+machineCols+" FROM machines ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	links, err := r.links(ctx, "machine_id", "service_id", 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ids := links[out[i].ID]; ids != nil {
			out[i].ServiceIDs = ids
		}
	}
	return out, nil
}

// CountAvailableMachines counts machines linked to the service whose
// availability flag is set.
func (r *CatalogRepo) CountAvailableMachines(ctx context.Context, serviceID uint64) (int, error) {
	return countAvailableMachines(ctx, r.db, serviceID)
}

func countAvailableMachines(ctx context.Context, q dbtx, serviceID uint64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM machines m
		 JOIN machine_services ms ON ms.machine_id = m.id
		 WHERE ms.service_id = ? AND m.is_available = ?`,
		serviceID, true).Scan(&n)
	return n, err
}

// links groups machine_services rows by keyCol.  A zero id loads the
// whole table.
func (r *CatalogRepo) links(ctx context.Context, keyCol, valCol string, id uint64) (map[uint64][]uint64, error) {
	q := "SELECT " + keyCol + ", " + valCol + " FROM machine_services"
	var args []any
	if id != 0 {
		q += " WHERE " + keyCol + " = ?"
		args = append(args, id)
	}
	q += " ORDER BY " + valCol
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uint64][]uint64{}
	for rows.Next() {
		var k, v uint64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = append(out[k], v)
	}
	return out, rows.Err()
}

// replaceLinksTx deletes every join row of ownerID and inserts one per
// entry of ids.  Duplicate ids are skipped.
func replaceLinksTx(ctx context.Context, tx *sql.Tx, ownerCol string, ownerID uint64, otherCol string, ids []uint64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM machine_services WHERE "+ownerCol+" = ?", ownerID); err != nil {
		return err
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, other := range ids {
		if _, ok := seen[other]; ok || other == 0 {
			continue
		}
		seen[other] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO machine_services ("+ownerCol+", "+otherCol+") VALUES (?, ?)", ownerID, other); err != nil {
			return err
		}
	}
	return nil
}
