package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// SurveyRepo stores the three survey artifacts of a reservation.  Each
// table carries a unique key on util_req_id and on evc_id so a
// reservation can be surveyed once.
type SurveyRepo struct{ DB *sql.DB }

func NewSurveyRepo(db *sql.DB) *SurveyRepo { return &SurveyRepo{DB: db} }

func linkColumn(f model.Family) (col, table string, err error) {
	switch f {
	case model.FamilyUtilization:
		return "util_req_id", "util_reqs", nil
	case model.FamilyEVC:
		return "evc_id", "evc_reservations", nil
	}
	return "", "", fmt.Errorf("unknown reservation family %q", f)
}

// Exists reports whether a survey was already stored for link.
func (r *SurveyRepo) Exists(ctx context.Context, link model.SurveyLink) (bool, error) {
	return surveyExists(ctx, r.DB, link)
}

func surveyExists(ctx context.Context, q dbtx, link model.SurveyLink) (bool, error) {
	col, _, err := linkColumn(link.Family)
	if err != nil {
		return false, err
	}
	var n int
	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM preliminary_surveys WHERE "+col+"=?", link.ReservationID).Scan(&n)
	return n > 0, err
}

// Submit writes the preliminary survey, customer feedback and employee
// evaluation and moves the reservation from -> to, all in one
// transaction.  A second submission for the same link returns
// ErrDuplicate and writes nothing.
func (r *SurveyRepo) Submit(ctx context.Context, link model.SurveyLink, sub model.SurveySubmission, from, to string) error {
	col, table, err := linkColumn(link.Family)
	if err != nil {
		return err
	}
	ts := now()
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		dup, err := surveyExists(ctx, tx, link)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicate
		}
		p := sub.Preliminary
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO preliminary_surveys (`+col+`, client_type, sex, age_group, region, service_availed,
			 cc1, cc2, cc3, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			link.ReservationID, p.ClientType, p.Sex, p.AgeGroup, p.Region, p.ServiceAvailed,
			p.CC1, p.CC2, p.CC3, ts); err != nil {
			return wrapDuplicate(err)
		}

		cols, marks := numberedColumns("sqd", 0, len(sub.Feedback.SQD))
		args := []any{link.ReservationID}
		for _, v := range sub.Feedback.SQD {
			args = append(args, v)
		}
		args = append(args, sub.Feedback.Suggestions, ts)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO customer_feedback ("+col+", "+cols+", suggestions, created_at) VALUES (?, "+marks+", ?, ?)",
			args...); err != nil {
			return wrapDuplicate(err)
		}

		cols, marks = numberedColumns("e", 1, len(sub.Evaluation.E))
		args = []any{link.ReservationID}
		for _, v := range sub.Evaluation.E {
			args = append(args, v)
		}
		args = append(args, sub.Evaluation.Comments, ts)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO employee_evaluations ("+col+", "+cols+", comments, created_at) VALUES (?, "+marks+", ?, ?)",
			args...); err != nil {
			return wrapDuplicate(err)
		}

		return updateStatus(ctx, tx, table, link.ReservationID, from, to, StatusChange{})
	})
}

// Get loads a stored submission.
func (r *SurveyRepo) Get(ctx context.Context, link model.SurveyLink) (model.SurveySubmission, error) {
	var sub model.SurveySubmission
	col, _, err := linkColumn(link.Family)
	if err != nil {
		return sub, err
	}
	p := &sub.Preliminary
	err = r.DB.QueryRowContext(ctx,
		`SELECT client_type, sex, age_group, region, service_availed, cc1, cc2, cc3, created_at
		 FROM preliminary_surveys WHERE `+col+`=?`, link.ReservationID).
		Scan(&p.ClientType, &p.Sex, &p.AgeGroup, &p.Region, &p.ServiceAvailed, &p.CC1, &p.CC2, &p.CC3, &sub.SubmittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sub, ErrNotFound
		}
		return sub, err
	}

	cols, _ := numberedColumns("sqd", 0, len(sub.Feedback.SQD))
	dest := []any{}
	for i := range sub.Feedback.SQD {
		dest = append(dest, &sub.Feedback.SQD[i])
	}
	dest = append(dest, &sub.Feedback.Suggestions)
	if err := r.DB.QueryRowContext(ctx,
		"SELECT "+cols+", suggestions FROM customer_feedback WHERE "+col+"=?", link.ReservationID).Scan(dest...); err != nil {
		return sub, err
	}

	cols, _ = numberedColumns("e", 1, len(sub.Evaluation.E))
	dest = dest[:0]
	for i := range sub.Evaluation.E {
		dest = append(dest, &sub.Evaluation.E[i])
	}
	dest = append(dest, &sub.Evaluation.Comments)
	err = r.DB.QueryRowContext(ctx,
		"SELECT "+cols+", comments FROM employee_evaluations WHERE "+col+"=?", link.ReservationID).Scan(dest...)
	return sub, err
}

// numberedColumns returns "prefixN, prefixN+1, ..." and the matching
// placeholder list.
func numberedColumns(prefix string, first, n int) (string, string) {
	cols := make([]string, n)
	for i := 0; i < n; i++ {
		cols[i] = fmt.Sprintf("%s%d", prefix, first+i)
	}
	return strings.Join(cols, ", "), placeholders(n)
}

func wrapDuplicate(err error) error {
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
