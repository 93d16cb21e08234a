package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// TeacherEmailRepo manages the teacher email allowlist.
type TeacherEmailRepo struct{ DB *sql.DB }

func NewTeacherEmailRepo(db *sql.DB) *TeacherEmailRepo { return &TeacherEmailRepo{DB: db} }

// Add inserts an allowlist entry.  Emails are stored lower-cased.
func (r *TeacherEmailRepo) Add(ctx context.Context, email string) (model.TeacherEmail, error) {
	te := model.TeacherEmail{Email: strings.ToLower(strings.TrimSpace(email)), CreatedAt: now()}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO teacher_emails (email, verified, created_at) VALUES (?,?,?)",
		te.Email, false, te.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return te, ErrDuplicate
		}
		return te, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return te, err
	}
	te.ID = uint64(id)
	return te, nil
}

// Exists reports whether email is on the allowlist.
func (r *TeacherEmailRepo) Exists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM teacher_emails WHERE email=?",
		strings.ToLower(strings.TrimSpace(email))).Scan(&n)
	return n > 0, err
}

// List returns every allowlist entry ordered by email.
func (r *TeacherEmailRepo) List(ctx context.Context) ([]model.TeacherEmail, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,email,verified,created_at FROM teacher_emails ORDER BY email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TeacherEmail{}
	for rows.Next() {
		var te model.TeacherEmail
		if err := rows.Scan(&te.ID, &te.Email, &te.Verified, &te.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, te)
	}
	return out, rows.Err()
}

// Delete removes an allowlist entry.
func (r *TeacherEmailRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM teacher_emails WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
