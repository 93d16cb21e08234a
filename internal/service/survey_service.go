package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/lifecycle"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// SurveyPath selects which survey endpoint a submission came through.
type SurveyPath int

const (
	// SurveyStandard is the client path: Ongoing → Pending Payment.
	SurveyStandard SurveyPath = iota
	// SurveyInternal is the staff path: Ongoing → Completed, no payment.
	SurveyInternal
)

// SurveyService stores post-service surveys and advances the surveyed
// reservation in the same transaction.
type SurveyService struct {
	surveys      *repository.SurveyRepo
	reservations *repository.ReservationRepo
	evcs         *repository.EVCRepo
	log          zerolog.Logger
}

func NewSurveyService(surveys *repository.SurveyRepo, reservations *repository.ReservationRepo,
	evcs *repository.EVCRepo, log zerolog.Logger) *SurveyService {
	return &SurveyService{surveys: surveys, reservations: reservations, evcs: evcs, log: log}
}

func validateRatings(sub model.SurveySubmission) error {
	for i, v := range sub.Feedback.SQD {
		if v < 1 || v > 5 {
			return Validation("ratings must be between 1 and 5", map[string]any{"field": fmt.Sprintf("sqd%d", i)})
		}
	}
	for i, v := range sub.Evaluation.E {
		if v < 1 || v > 5 {
			return Validation("ratings must be between 1 and 5", map[string]any{"field": fmt.Sprintf("e%d", i+1)})
		}
	}
	return nil
}

// SubmitUtil records the survey of a utilization request.  Staff must
// use the internal path and everyone else the standard one.
func (s *SurveyService) SubmitUtil(ctx context.Context, actor Actor, id uint64, path SurveyPath, sub model.SurveySubmission) error {
	if actor.AccountID == 0 {
		return newErr(KindUnauthorized, "authentication required")
	}
	to := model.UtilPendingPayment
	switch path {
	case SurveyStandard:
		if actor.Is(model.RoleStaff) {
			return Forbidden("staff must submit the internal survey")
		}
	case SurveyInternal:
		if !actor.Is(model.RoleStaff) {
			return Forbidden("the internal survey is for staff only")
		}
		to = model.UtilCompleted
	}
	if err := validateRatings(sub); err != nil {
		return err
	}
	u, err := s.reservations.Get(ctx, id)
	if err != nil {
		return translate(err, "reservation")
	}
	if u.AccountID != actor.AccountID {
		return Forbidden("not the owner of this reservation")
	}
	link := model.SurveyLink{Family: model.FamilyUtilization, ReservationID: id}
	if err := s.checkFresh(ctx, link); err != nil {
		return err
	}
	if u.Status != model.UtilOngoing {
		return translate(&lifecycle.TransitionError{Family: model.FamilyUtilization, From: string(u.Status), To: string(to)}, "reservation")
	}
	if err := s.surveys.Submit(ctx, link, sub, string(u.Status), string(to)); err != nil {
		return s.submitErr(err)
	}
	transitioned(model.FamilyUtilization, string(to))
	s.log.Info().Uint64("reservation_id", id).Str("to", string(to)).Msg("survey submitted")
	return nil
}

// SubmitEVC records the survey of an educational visit and completes it.
func (s *SurveyService) SubmitEVC(ctx context.Context, actor Actor, id uint64, sub model.SurveySubmission) error {
	if actor.AccountID == 0 {
		return newErr(KindUnauthorized, "authentication required")
	}
	if err := validateRatings(sub); err != nil {
		return err
	}
	e, err := s.evcs.Get(ctx, id)
	if err != nil {
		return translate(err, "evc reservation")
	}
	if e.AccountID != actor.AccountID {
		return Forbidden("not the owner of this reservation")
	}
	link := model.SurveyLink{Family: model.FamilyEVC, ReservationID: id}
	if err := s.checkFresh(ctx, link); err != nil {
		return err
	}
	if err := lifecycle.CheckEVC(e.Status, model.EVCCompleted); err != nil {
		return translate(err, "evc reservation")
	}
	if err := s.surveys.Submit(ctx, link, sub, string(e.Status), string(model.EVCCompleted)); err != nil {
		return s.submitErr(err)
	}
	transitioned(model.FamilyEVC, string(model.EVCCompleted))
	s.log.Info().Uint64("reservation_id", id).Msg("evc survey submitted")
	return nil
}

// Get returns a stored survey to admins.
func (s *SurveyService) Get(ctx context.Context, actor Actor, family model.Family, id uint64) (model.SurveySubmission, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.SurveySubmission{}, err
	}
	sub, err := s.surveys.Get(ctx, model.SurveyLink{Family: family, ReservationID: id})
	return sub, translate(err, "survey")
}

func (s *SurveyService) checkFresh(ctx context.Context, link model.SurveyLink) error {
	dup, err := s.surveys.Exists(ctx, link)
	if err != nil {
		return translate(err, "survey")
	}
	if dup {
		return Conflict("a survey was already submitted for this reservation", nil)
	}
	return nil
}

func (s *SurveyService) submitErr(err error) error {
	if IsKind(translate(err, "survey"), KindConflict) {
		return Conflict("a survey was already submitted for this reservation", nil)
	}
	return translate(err, "reservation")
}
