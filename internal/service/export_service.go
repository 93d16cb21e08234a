package service

import (
	"context"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/export"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// ExportService renders reservations for download.
type ExportService struct {
	reservations *repository.ReservationRepo
	accounts     *repository.AccountRepo
	signingKey   string
	loc          *time.Location
}

func NewExportService(reservations *repository.ReservationRepo, accounts *repository.AccountRepo,
	signingKey string, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{reservations: reservations, accounts: accounts, signingKey: signingKey, loc: loc}
}

// ReservationPDF renders one request for its owner, admins and cashiers.
func (s *ExportService) ReservationPDF(ctx context.Context, actor Actor, id uint64) ([]byte, error) {
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "reservation")
	}
	if err := requireOwnerOr(actor, u.AccountID, model.RoleAdmin, model.RoleCashier); err != nil {
		return nil, err
	}
	owner, err := s.accounts.GetByID(ctx, u.AccountID)
	if err != nil {
		return nil, translate(err, "account")
	}
	out, err := export.ReservationPDF(u, owner, s.signingKey, s.loc, utcNow())
	if err != nil {
		return nil, Internal("render pdf", err)
	}
	return out, nil
}

// VerifyReceipt checks a scanned receipt QR payload and returns the
// reservation it names.
func (s *ExportService) VerifyReceipt(ctx context.Context, actor Actor, payload string) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleAdmin, model.RoleCashier); err != nil {
		return model.UtilReq{}, err
	}
	id, ok := export.VerifyReceipt(s.signingKey, payload)
	if !ok {
		return model.UtilReq{}, Validation("receipt signature does not match", nil)
	}
	u, err := s.reservations.Get(ctx, id)
	return u, translate(err, "reservation")
}

// Report builds the admin workbook of requests matching f.
func (s *ExportService) Report(ctx context.Context, actor Actor, f ListFilter) ([]byte, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	rf := repository.ReservationFilter{From: f.From, To: f.To}
	if f.Status != "" {
		st, ok := model.ParseUtilStatus(f.Status)
		if !ok {
			return nil, Validation("unknown status", map[string]any{"status": f.Status})
		}
		rf.Status = st
	}
	reqs, err := s.reservations.List(ctx, rf)
	if err != nil {
		return nil, translate(err, "reservation")
	}
	out, err := export.ReservationReport(reqs, s.loc)
	if err != nil {
		return nil, Internal("render report", err)
	}
	return out, nil
}
