package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/billing"
	"github.com/iliyamo/fablab-reservation/internal/export"
	"github.com/iliyamo/fablab-reservation/internal/lifecycle"
	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/notify"
	"github.com/iliyamo/fablab-reservation/internal/queue"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// Roles that may book machine time.
var requesterRoles = []model.Role{model.RoleClient, model.RoleBusiness, model.RoleStudent, model.RoleStaff}

// LineInput requests one service on a utilization request.
type LineInput struct {
	ServiceID       uint64 `json:"service_id"`
	EquipmentName   string `json:"equipment_name"`
	MachineQuantity int    `json:"machine_quantity"`
}

// ToolInput requests a tool.
type ToolInput struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// UtilReqInput is the payload of a new utilization request.
type UtilReqInput struct {
	Services []LineInput `json:"services"`
	Tools    []ToolInput `json:"tools"`
	Slots    []SlotInput `json:"slots"`
	Comments string      `json:"comments"`
}

// ListFilter narrows reservation listings.
type ListFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
}

// ReservationService runs the utilization request lifecycle.
type ReservationService struct {
	reservations *repository.ReservationRepo
	catalog      *repository.CatalogRepo
	accounts     *repository.AccountRepo
	avail        *AvailabilityService
	out          dispatcher
	log          zerolog.Logger
}

func NewReservationService(reservations *repository.ReservationRepo, catalog *repository.CatalogRepo,
	accounts *repository.AccountRepo, avail *AvailabilityService, notifier notify.Notifier, log zerolog.Logger) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		catalog:      catalog,
		accounts:     accounts,
		avail:        avail,
		out:          dispatcher{notifier: notifier, log: log},
		log:          log,
	}
}

// Create validates and prices a new request.  Every scheduled slot must
// fall on an open day and find a free machine for every service.
func (s *ReservationService) Create(ctx context.Context, actor Actor, in UtilReqInput) (model.UtilReq, error) {
	if err := requireRole(actor, requesterRoles...); err != nil {
		return model.UtilReq{}, err
	}
	if len(in.Services) == 0 {
		return model.UtilReq{}, Validation("at least one service is required", nil)
	}
	slots, err := s.avail.ParseSlots(in.Slots)
	if err != nil {
		return model.UtilReq{}, err
	}

	minutes := billing.SlotMinutes(slots)
	lines := make([]model.UserService, 0, len(in.Services))
	booked := []model.Service{}
	seen := map[uint64]bool{}
	for i, li := range in.Services {
		svc, err := s.catalog.GetService(ctx, li.ServiceID)
		if err != nil {
			if missing(err) {
				return model.UtilReq{}, Validation("unknown service", map[string]any{"index": i, "service_id": li.ServiceID})
			}
			return model.UtilReq{}, translate(err, "service")
		}
		qty := li.MachineQuantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return model.UtilReq{}, Validation("machine_quantity must be positive", map[string]any{"index": i})
		}
		mins, cost := billing.ServiceCost(svc.RateCents, qty, minutes)
		lines = append(lines, model.UserService{
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			EquipmentName:   strings.TrimSpace(li.EquipmentName),
			MachineQuantity: qty,
			RateCents:       svc.RateCents,
			Minutes:         mins,
			CostCents:       cost,
		})
		if !seen[svc.ID] {
			seen[svc.ID] = true
			booked = append(booked, svc)
		}
	}
	tools := make([]model.UserTool, 0, len(in.Tools))
	for i, t := range in.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" || t.Quantity < 1 {
			return model.UtilReq{}, Validation("tools need a name and a positive quantity", map[string]any{"index": i})
		}
		tools = append(tools, model.UserTool{Name: name, Quantity: t.Quantity})
	}

	if err := s.avail.checkSlots(ctx, slots, booked); err != nil {
		return model.UtilReq{}, err
	}

	u := model.UtilReq{
		AccountID:        actor.AccountID,
		Status:           model.UtilPending,
		Services:         lines,
		Tools:            tools,
		Slots:            slots,
		Downtimes:        []model.DowntimeAdjustment{},
		TotalAmountCents: billing.Total(lines, nil),
		Comments:         strings.TrimSpace(in.Comments),
	}
	if err := s.reservations.Create(ctx, &u); err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	metrics.IncReservationCreated(string(model.FamilyUtilization))
	s.log.Info().Uint64("reservation_id", u.ID).Uint64("account_id", u.AccountID).
		Int64("total_cents", u.TotalAmountCents).Msg("utilization request created")
	return u, nil
}

// Get returns a request to its owner, admins and cashiers.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id uint64) (model.UtilReq, error) {
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := requireOwnerOr(actor, u.AccountID, model.RoleAdmin, model.RoleCashier); err != nil {
		return model.UtilReq{}, err
	}
	return u, nil
}

// List returns the caller's requests, or every request for admins and
// cashiers.
func (s *ReservationService) List(ctx context.Context, actor Actor, f ListFilter) ([]model.UtilReq, error) {
	if actor.AccountID == 0 {
		return nil, newErr(KindUnauthorized, "authentication required")
	}
	rf := repository.ReservationFilter{From: f.From, To: f.To}
	if f.Status != "" {
		st, ok := model.ParseUtilStatus(f.Status)
		if !ok {
			return nil, Validation("unknown status", map[string]any{"status": f.Status})
		}
		rf.Status = st
	}
	if !actor.Is(model.RoleAdmin, model.RoleCashier) {
		rf.AccountID = actor.AccountID
	}
	out, err := s.reservations.List(ctx, rf)
	return out, translate(err, "reservation")
}

// Approve moves a Pending request to Approved.  Machine capacity is
// re-counted under lock; a full slot yields a conflict.
func (s *ReservationService) Approve(ctx context.Context, actor Actor, id uint64) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.UtilReq{}, err
	}
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := lifecycle.CheckUtil(u.Status, model.UtilApproved); err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := s.reservations.Approve(ctx, id, actor.Name); err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	return s.after(ctx, id, model.UtilApproved, queue.KindApproved, "")
}

// Reject moves a Pending request to Rejected with a reason.
func (s *ReservationService) Reject(ctx context.Context, actor Actor, id uint64, reason string) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.UtilReq{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.UtilReq{}, Validation("reason is required", nil)
	}
	return s.transition(ctx, id, model.UtilRejected, repository.StatusChange{RejectReason: &reason}, queue.KindRejected, reason)
}

// MarkReceived records the admin who received the job and moves the
// request to Ongoing.
func (s *ReservationService) MarkReceived(ctx context.Context, actor Actor, id uint64) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.UtilReq{}, err
	}
	return s.transition(ctx, id, model.UtilOngoing,
		repository.StatusChange{ReceivedBy: strp(actor.Name), ReceivedAt: timep(utcNow())}, "", "")
}

// ConfirmPayment completes a Pending Payment request with the cashier's
// receipt number.
func (s *ReservationService) ConfirmPayment(ctx context.Context, actor Actor, id uint64, receipt string) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleCashier); err != nil {
		return model.UtilReq{}, err
	}
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return model.UtilReq{}, Validation("receipt_number is required", nil)
	}
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if u.Status != model.UtilPendingPayment {
		return model.UtilReq{}, translate(&lifecycle.TransitionError{Family: model.FamilyUtilization,
			From: string(u.Status), To: string(model.UtilCompleted)}, "reservation")
	}
	return s.transition(ctx, id, model.UtilCompleted,
		repository.StatusChange{ReceiptNumber: &receipt, PaidAt: timep(utcNow())}, "", "")
}

// Cancel is open to the requester and admins from any non-terminal
// state.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uint64, reason string) (model.UtilReq, error) {
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := requireOwnerOr(actor, u.AccountID, model.RoleAdmin); err != nil {
		return model.UtilReq{}, err
	}
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, id, model.UtilCancelled, repository.StatusChange{CancelReason: &reason}, queue.KindCancelled, reason)
}

// DowntimeInput records lost machine time against one service line.
type DowntimeInput struct {
	UserServiceID uint64 `json:"user_service_id"`
	Minutes       int    `json:"minutes"`
	Reason        string `json:"reason"`
}

// RecordDowntime stores lost machine time as an adjustment and
// re-derives the total.  A line's adjustments never deduct more than the
// line cost.
func (s *ReservationService) RecordDowntime(ctx context.Context, actor Actor, id uint64, in DowntimeInput) (model.UtilReq, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.UtilReq{}, err
	}
	if in.Minutes < 1 {
		return model.UtilReq{}, Validation("minutes must be positive", nil)
	}
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if u.Status == model.UtilRejected || u.Status == model.UtilCancelled {
		return model.UtilReq{}, Validation("downtime cannot be recorded on a "+string(u.Status)+" reservation", nil)
	}
	var line *model.UserService
	for i := range u.Services {
		if u.Services[i].ID == in.UserServiceID {
			line = &u.Services[i]
		}
	}
	if line == nil {
		return model.UtilReq{}, Validation("user_service_id is not a line of this reservation",
			map[string]any{"user_service_id": in.UserServiceID})
	}
	// The repository prices the deduction under the request's row lock.
	d := model.DowntimeAdjustment{
		UserServiceID: line.ID,
		Minutes:       in.Minutes,
		Reason:        strings.TrimSpace(in.Reason),
		RecordedBy:    actor.Name,
	}
	total, err := s.reservations.AddDowntime(ctx, id, &d)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	s.log.Info().Uint64("reservation_id", id).Int("minutes", d.Minutes).
		Int64("deduction_cents", d.DeductionCents).Int64("total_cents", total).Msg("downtime recorded")
	u, err = s.reservations.Get(ctx, id)
	return u, translate(err, "reservation")
}

// transition validates from the stored status, applies the conditional
// update and emits kind when it is set.
func (s *ReservationService) transition(ctx context.Context, id uint64, to model.UtilStatus,
	ch repository.StatusChange, kind queue.NotificationKind, reason string) (model.UtilReq, error) {
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := lifecycle.CheckUtil(u.Status, to); err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if err := s.reservations.UpdateStatus(ctx, id, u.Status, to, ch); err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	return s.after(ctx, id, to, kind, reason)
}

func (s *ReservationService) after(ctx context.Context, id uint64, to model.UtilStatus,
	kind queue.NotificationKind, reason string) (model.UtilReq, error) {
	transitioned(model.FamilyUtilization, string(to))
	s.log.Info().Uint64("reservation_id", id).Str("to", string(to)).Msg("utilization request transitioned")
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.UtilReq{}, translate(err, "reservation")
	}
	if kind != "" {
		s.notifyOwner(ctx, u, kind, reason)
	}
	return u, nil
}

func (s *ReservationService) notifyOwner(ctx context.Context, u model.UtilReq, kind queue.NotificationKind, reason string) {
	owner, err := s.accounts.GetByID(ctx, u.AccountID)
	if err != nil {
		s.log.Warn().Err(err).Uint64("reservation_id", u.ID).Msg("notification skipped: owner lookup failed")
		return
	}
	s.out.send(ctx, notify.Event{
		Kind:           kind,
		Family:         string(model.FamilyUtilization),
		ReservationID:  u.ID,
		RecipientEmail: owner.Email,
		RecipientName:  owner.Name,
		Reason:         reason,
		Services:       u.ServiceNames(),
		Schedule:       export.ScheduleLines(u.Slots, s.avail.Location()),
	})
}
