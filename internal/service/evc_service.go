package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/export"
	"github.com/iliyamo/fablab-reservation/internal/lifecycle"
	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/notify"
	"github.com/iliyamo/fablab-reservation/internal/queue"
	"github.com/iliyamo/fablab-reservation/internal/repository"
	"github.com/iliyamo/fablab-reservation/internal/utils"
)

// MaterialInput requests a material for an educational visit.
type MaterialInput struct {
	Item        string `json:"item"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

// EVCInput is the payload of a new educational visit reservation.
type EVCInput struct {
	TeacherName  string          `json:"teacher_name"`
	TeacherEmail string          `json:"teacher_email"`
	Subject      string          `json:"subject"`
	Topic        string          `json:"topic"`
	SchoolLevel  string          `json:"school_level"`
	ClassSize    int             `json:"class_size"`
	Students     []string        `json:"students"`
	Materials    []MaterialInput `json:"materials"`
	Slots        []SlotInput     `json:"slots"`
}

// EVCService runs the educational visit lifecycle, including the
// emailed teacher approval link.
type EVCService struct {
	evcs     *repository.EVCRepo
	tokens   *repository.ApprovalTokenRepo
	teachers *repository.TeacherEmailRepo
	accounts *repository.AccountRepo
	avail    *AvailabilityService
	out      dispatcher
	log      zerolog.Logger
	baseURL  string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewEVCService(evcs *repository.EVCRepo, tokens *repository.ApprovalTokenRepo, teachers *repository.TeacherEmailRepo,
	accounts *repository.AccountRepo, avail *AvailabilityService, notifier notify.Notifier, log zerolog.Logger,
	baseURL string, tokenTTL time.Duration) *EVCService {
	return &EVCService{
		evcs:     evcs,
		tokens:   tokens,
		teachers: teachers,
		accounts: accounts,
		avail:    avail,
		out:      dispatcher{notifier: notifier, log: log},
		log:      log,
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenTTL: tokenTTL,
		now:      utcNow,
	}
}

// ApprovalURL is the landing page a teacher opens from the email.
func (s *EVCService) ApprovalURL(rawToken string) string {
	return s.baseURL + "/v1/evc/approvals/" + rawToken
}

// Create stores a new reservation.  Student requests start at teacher
// approval and email a single-use link to the teacher; staff requests
// go straight to admin approval.
func (s *EVCService) Create(ctx context.Context, actor Actor, in EVCInput) (model.EVCReservation, error) {
	if err := requireRole(actor, model.RoleStudent, model.RoleStaff); err != nil {
		return model.EVCReservation{}, err
	}
	e, err := s.validate(ctx, in)
	if err != nil {
		return model.EVCReservation{}, err
	}
	if err := s.avail.checkSlots(ctx, e.Slots, nil); err != nil {
		return model.EVCReservation{}, err
	}
	e.AccountID = actor.AccountID
	e.Status = lifecycle.InitialEVC(actor.Role)

	var raw string
	var token *model.ApprovalToken
	if e.Status == model.EVCPendingTeacher {
		raw, err = utils.NewApprovalToken()
		if err != nil {
			return model.EVCReservation{}, Internal("issue approval token", err)
		}
		token = &model.ApprovalToken{
			TokenHash:    utils.HashToken(raw),
			TeacherEmail: e.TeacherEmail,
			ExpiresAt:    s.now().Add(s.tokenTTL),
		}
	}
	if err := s.evcs.Create(ctx, &e, token); err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	metrics.IncReservationCreated(string(model.FamilyEVC))
	s.log.Info().Uint64("reservation_id", e.ID).Str("status", string(e.Status)).Msg("evc reservation created")

	if token != nil {
		s.out.send(ctx, s.event(e, queue.KindTeacherApprovalRequested, e.TeacherEmail, e.TeacherName, "", s.ApprovalURL(raw)))
	}
	return e, nil
}

func (s *EVCService) validate(ctx context.Context, in EVCInput) (model.EVCReservation, error) {
	e := model.EVCReservation{
		TeacherName:  strings.TrimSpace(in.TeacherName),
		TeacherEmail: strings.ToLower(strings.TrimSpace(in.TeacherEmail)),
		Subject:      strings.TrimSpace(in.Subject),
		Topic:        strings.TrimSpace(in.Topic),
		SchoolLevel:  strings.TrimSpace(in.SchoolLevel),
		ClassSize:    in.ClassSize,
	}
	var missingFields []string
	for _, f := range []struct{ name, v string }{
		{"teacher_name", e.TeacherName}, {"teacher_email", e.TeacherEmail},
		{"subject", e.Subject}, {"topic", e.Topic},
	} {
		if f.v == "" {
			missingFields = append(missingFields, f.name)
		}
	}
	if len(missingFields) > 0 {
		return e, Validation("missing required fields", map[string]any{"fields": missingFields})
	}
	if _, err := mail.ParseAddress(e.TeacherEmail); err != nil {
		return e, Validation("invalid teacher_email", nil)
	}
	if e.ClassSize < 1 {
		return e, Validation("class_size must be positive", nil)
	}
	listed, err := s.teachers.Exists(ctx, e.TeacherEmail)
	if err != nil {
		return e, translate(err, "teacher email")
	}
	if !listed {
		return e, Validation("teacher_email is not a registered teacher", map[string]any{"teacher_email": e.TeacherEmail})
	}
	for _, name := range in.Students {
		if name = strings.TrimSpace(name); name != "" {
			e.Students = append(e.Students, model.EVCStudent{Name: name})
		}
	}
	for i, m := range in.Materials {
		item := strings.TrimSpace(m.Item)
		if item == "" || m.Quantity < 1 {
			return e, Validation("materials need an item and a positive quantity", map[string]any{"index": i})
		}
		e.Materials = append(e.Materials, model.NeededMaterial{Item: item, Quantity: m.Quantity, Description: strings.TrimSpace(m.Description)})
	}
	slots, err := s.avail.ParseSlots(in.Slots)
	if err != nil {
		return e, err
	}
	e.Slots = slots
	return e, nil
}

// Get returns a reservation to its owner and admins.
func (s *EVCService) Get(ctx context.Context, actor Actor, id uint64) (model.EVCReservation, error) {
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if err := requireOwnerOr(actor, e.AccountID, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	return e, nil
}

// List returns the caller's reservations, or all of them for admins.
func (s *EVCService) List(ctx context.Context, actor Actor, status string) ([]model.EVCReservation, error) {
	if actor.AccountID == 0 {
		return nil, newErr(KindUnauthorized, "authentication required")
	}
	var f repository.EVCFilter
	if status != "" {
		st, ok := model.ParseEVCStatus(status)
		if !ok {
			return nil, Validation("unknown status", map[string]any{"status": status})
		}
		f.Status = st
	}
	if !actor.Is(model.RoleAdmin) {
		f.AccountID = actor.AccountID
	}
	out, err := s.evcs.List(ctx, f)
	return out, translate(err, "evc reservation")
}

// PendingApproval resolves an approval link for the teacher landing
// page without consuming it.
func (s *EVCService) PendingApproval(ctx context.Context, rawToken string) (model.EVCReservation, error) {
	t, err := s.tokens.Lookup(ctx, utils.HashToken(rawToken))
	if err != nil {
		return model.EVCReservation{}, translate(err, "approval link")
	}
	e, err := s.evcs.Get(ctx, t.EVCID)
	return e, translate(err, "evc reservation")
}

// TeacherDecision applies the teacher's answer from the approval link.
// The link is consumed in the same transaction as the status change.
func (s *EVCService) TeacherDecision(ctx context.Context, rawToken string, approve bool, reason string) (model.EVCReservation, error) {
	hash := utils.HashToken(rawToken)
	t, err := s.tokens.Lookup(ctx, hash)
	if err != nil {
		return model.EVCReservation{}, translate(err, "approval link")
	}
	e, err := s.evcs.Get(ctx, t.EVCID)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}

	to := model.EVCPendingAdmin
	kind := queue.KindTeacherApproved
	ch := repository.StatusChange{TeacherApprovedAt: timep(s.now())}
	reason = strings.TrimSpace(reason)
	if !approve {
		if reason == "" {
			return model.EVCReservation{}, Validation("reason is required", nil)
		}
		to, kind = model.EVCRejected, queue.KindTeacherRejected
		stage := model.RejectionTeacher
		ch = repository.StatusChange{RejectionStage: &stage, RejectReason: &reason}
	}
	if e.Status != model.EVCPendingTeacher {
		return model.EVCReservation{}, translate(&lifecycle.TransitionError{Family: model.FamilyEVC,
			From: string(e.Status), To: string(to)}, "evc reservation")
	}
	if err := s.tokens.ConsumeAndTransition(ctx, hash, e.ID, e.Status, to, ch); err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	return s.after(ctx, e.ID, to, kind, reason)
}

// AdminApprove moves Pending Admin Approval to Approved.
func (s *EVCService) AdminApprove(ctx context.Context, actor Actor, id uint64) (model.EVCReservation, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	return s.transition(ctx, id, model.EVCApproved, repository.StatusChange{ApprovedBy: strp(actor.Name)}, queue.KindApproved, "")
}

// AdminReject rejects a reservation awaiting admin approval.
func (s *EVCService) AdminReject(ctx context.Context, actor Actor, id uint64, reason string) (model.EVCReservation, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.EVCReservation{}, Validation("reason is required", nil)
	}
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if e.Status != model.EVCPendingAdmin {
		return model.EVCReservation{}, translate(&lifecycle.TransitionError{Family: model.FamilyEVC,
			From: string(e.Status), To: string(model.EVCRejected)}, "evc reservation")
	}
	stage := model.RejectionAdmin
	return s.transition(ctx, id, model.EVCRejected,
		repository.StatusChange{RejectionStage: &stage, RejectReason: &reason}, queue.KindRejected, reason)
}

// MarkOngoing records the admin who received the class.
func (s *EVCService) MarkOngoing(ctx context.Context, actor Actor, id uint64) (model.EVCReservation, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	return s.transition(ctx, id, model.EVCOngoing,
		repository.StatusChange{ReceivedBy: strp(actor.Name), ReceivedAt: timep(s.now())}, "", "")
}

// Complete closes an Ongoing reservation without a survey.
func (s *EVCService) Complete(ctx context.Context, actor Actor, id uint64) (model.EVCReservation, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	return s.transition(ctx, id, model.EVCCompleted, repository.StatusChange{}, "", "")
}

// Cancel is open to the owner and admins.
func (s *EVCService) Cancel(ctx context.Context, actor Actor, id uint64, reason string) (model.EVCReservation, error) {
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if err := requireOwnerOr(actor, e.AccountID, model.RoleAdmin); err != nil {
		return model.EVCReservation{}, err
	}
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, id, model.EVCCancelled, repository.StatusChange{CancelReason: &reason}, queue.KindCancelled, reason)
}

func (s *EVCService) transition(ctx context.Context, id uint64, to model.EVCStatus,
	ch repository.StatusChange, kind queue.NotificationKind, reason string) (model.EVCReservation, error) {
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if err := lifecycle.CheckEVC(e.Status, to); err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if err := s.evcs.UpdateStatus(ctx, id, e.Status, to, ch); err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	return s.after(ctx, id, to, kind, reason)
}

func (s *EVCService) after(ctx context.Context, id uint64, to model.EVCStatus,
	kind queue.NotificationKind, reason string) (model.EVCReservation, error) {
	transitioned(model.FamilyEVC, string(to))
	s.log.Info().Uint64("reservation_id", id).Str("to", string(to)).Msg("evc reservation transitioned")
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return model.EVCReservation{}, translate(err, "evc reservation")
	}
	if kind == "" {
		return e, nil
	}
	owner, err := s.accounts.GetByID(ctx, e.AccountID)
	if err != nil {
		s.log.Warn().Err(err).Uint64("reservation_id", id).Msg("notification skipped: owner lookup failed")
		return e, nil
	}
	s.out.send(ctx, s.event(e, kind, owner.Email, owner.Name, reason, ""))
	return e, nil
}

func (s *EVCService) event(e model.EVCReservation, kind queue.NotificationKind, email, name, reason, link string) notify.Event {
	return notify.Event{
		Kind:           kind,
		Family:         string(model.FamilyEVC),
		ReservationID:  e.ID,
		RecipientEmail: email,
		RecipientName:  name,
		Reason:         reason,
		Services:       []string{e.Subject + ": " + e.Topic},
		Schedule:       export.ScheduleLines(e.Slots, s.avail.Location()),
		Link:           link,
	}
}
