package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/billing"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// SlotInput is one requested day of a reservation.  Date is YYYY-MM-DD
// and Start/End are 12-hour clock strings in the facility time zone.
// A day with neither Start nor End is an unscheduled placeholder.
type SlotInput struct {
	Day   int    `json:"day"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityService answers calendar questions: blocked days and
// count-based machine availability.
type AvailabilityService struct {
	blocked      *repository.BlockedDateRepo
	catalog      *repository.CatalogRepo
	reservations *repository.ReservationRepo
	loc          *time.Location
}

func NewAvailabilityService(blocked *repository.BlockedDateRepo, catalog *repository.CatalogRepo,
	reservations *repository.ReservationRepo, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{blocked: blocked, catalog: catalog, reservations: reservations, loc: loc}
}

// Location returns the facility time zone.
func (s *AvailabilityService) Location() *time.Location { return s.loc }

// IsDateBlocked reports whether the facility-local calendar day of t is
// blocked.  Time of day is ignored.
func (s *AvailabilityService) IsDateBlocked(ctx context.Context, t time.Time) (bool, error) {
	ok, err := s.blocked.Exists(ctx, t.In(s.loc).Format(model.DateLayout))
	if err != nil {
		return false, translate(err, "blocked date")
	}
	return ok, nil
}

// CheckMachineAvailability counts the available machines of a service
// and the Approved or Ongoing requests for it that overlap the window.
// It never assigns a specific machine.
func (s *AvailabilityService) CheckMachineAvailability(ctx context.Context, serviceID uint64, date, startClock, endClock string) (model.Availability, error) {
	start, end, err := s.window(date, startClock, endClock)
	if err != nil {
		return model.Availability{}, err
	}
	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return model.Availability{}, translate(err, "service")
	}
	return s.availability(ctx, svc, start, end)
}

func (s *AvailabilityService) availability(ctx context.Context, svc model.Service, start, end time.Time) (model.Availability, error) {
	total, err := s.catalog.CountAvailableMachines(ctx, svc.ID)
	if err != nil {
		return model.Availability{}, translate(err, "service")
	}
	booked, err := s.reservations.CountOverlapping(ctx, svc.Name, start, end, 0)
	if err != nil {
		return model.Availability{}, translate(err, "reservation")
	}
	free := total - booked
	if free < 0 {
		free = 0
	}
	return model.Availability{
		Available:         free > 0,
		AvailableMachines: free,
		TotalMachines:     total,
		BookedMachines:    booked,
	}, nil
}

// window converts a facility-local date and clock range to UTC.
func (s *AvailabilityService) window(date, startClock, endClock string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(date), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, Validation("date must be YYYY-MM-DD", map[string]any{"date": date})
	}
	sm, err := billing.ParseClock(startClock)
	if err != nil {
		return time.Time{}, time.Time{}, Validation("invalid start time", map[string]any{"start": startClock})
	}
	em, err := billing.ParseClock(endClock)
	if err != nil {
		return time.Time{}, time.Time{}, Validation("invalid end time", map[string]any{"end": endClock})
	}
	if em <= sm {
		return time.Time{}, time.Time{}, Validation("end time must be after start time", nil)
	}
	start := day.Add(time.Duration(sm) * time.Minute).UTC()
	end := day.Add(time.Duration(em) * time.Minute).UTC()
	return start, end, nil
}

// ParseSlots validates requested days and converts them to stored
// slots.  Start and End must be given together with End after Start,
// and day numbers must be exactly 1..n.
func (s *AvailabilityService) ParseSlots(in []SlotInput) ([]model.TimeSlot, error) {
	if len(in) == 0 {
		return nil, Validation("at least one time slot is required", nil)
	}
	seen := make(map[int]bool, len(in))
	out := make([]model.TimeSlot, 0, len(in))
	for i, si := range in {
		if si.Day < 1 || si.Day > len(in) || seen[si.Day] {
			return nil, Validation("slot days must be numbered 1..n without repeats",
				map[string]any{"index": i, "day": si.Day})
		}
		seen[si.Day] = true

		hasStart, hasEnd := strings.TrimSpace(si.Start) != "", strings.TrimSpace(si.End) != ""
		if hasStart != hasEnd {
			return nil, Validation("slot start and end must be given together", map[string]any{"day": si.Day})
		}
		slot := model.TimeSlot{Day: si.Day}
		if hasStart {
			start, end, err := s.window(si.Date, si.Start, si.End)
			if err != nil {
				if se, ok := err.(*Error); ok {
					se.Message = fmt.Sprintf("day %d: %s", si.Day, se.Message)
				}
				return nil, err
			}
			slot.Start, slot.End = &start, &end
		}
		out = append(out, slot)
	}
	return out, nil
}

// checkSlots applies the blocked-day gate to every scheduled slot and,
// when services is not empty, the machine availability gate too.
func (s *AvailabilityService) checkSlots(ctx context.Context, slots []model.TimeSlot, services []model.Service) error {
	for _, sl := range slots {
		if !sl.Scheduled() {
			continue
		}
		blocked, err := s.IsDateBlocked(ctx, *sl.Start)
		if err != nil {
			return err
		}
		if blocked {
			return Validation("the facility is closed on the requested date",
				map[string]any{"day": sl.Day, "date": sl.Start.In(s.loc).Format(model.DateLayout)})
		}
		for _, svc := range services {
			av, err := s.availability(ctx, svc, *sl.Start, *sl.End)
			if err != nil {
				return err
			}
			if !av.Available {
				return Conflict("no machine available for the requested time", map[string]any{
					"day":          sl.Day,
					"service":      svc.Name,
					"availability": av,
				})
			}
		}
	}
	return nil
}

// BlockDate closes the facility for day.  Admin only.
func (s *AvailabilityService) BlockDate(ctx context.Context, actor Actor, day, reason string) (model.BlockedDate, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.BlockedDate{}, err
	}
	day = strings.TrimSpace(day)
	if _, err := time.Parse(model.DateLayout, day); err != nil {
		return model.BlockedDate{}, Validation("date must be YYYY-MM-DD", map[string]any{"date": day})
	}
	bd, err := s.blocked.Add(ctx, day, strings.TrimSpace(reason))
	return bd, translate(err, "blocked date")
}

func (s *AvailabilityService) ListBlockedDates(ctx context.Context) ([]model.BlockedDate, error) {
	out, err := s.blocked.List(ctx)
	return out, translate(err, "blocked date")
}

func (s *AvailabilityService) UnblockDate(ctx context.Context, actor Actor, id uint64) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	return translate(s.blocked.Delete(ctx, id), "blocked date")
}
