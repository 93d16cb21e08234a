package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/identity"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/notify"
	"github.com/iliyamo/fablab-reservation/internal/queue"
	"github.com/iliyamo/fablab-reservation/internal/repository"
	"github.com/iliyamo/fablab-reservation/internal/testutil"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, ev notify.Event) { m.Called(ctx, ev) }

// sent returns the events of kind in call order.
func (m *mockNotifier) sent(kind queue.NotificationKind) []notify.Event {
	var out []notify.Event
	for _, c := range m.Calls {
		if ev := c.Arguments.Get(1).(notify.Event); ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type mockProvider struct{ mock.Mock }

func (m *mockProvider) UserInfo(ctx context.Context, token string) (identity.Profile, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(identity.Profile), args.Error(1)
}

func (m *mockProvider) DeleteUser(ctx context.Context, subject string) error {
	return m.Called(ctx, subject).Error(0)
}

type fixture struct {
	t        *testing.T
	db       *sql.DB
	notifier *mockNotifier
	idp      *mockProvider
	loc      *time.Location

	accounts *AccountService
	catalog  *CatalogService
	avail    *AvailabilityService
	res      *ReservationService
	evc      *EVCService
	surveys  *SurveyService
	exports  *ExportService

	admin Actor
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return()
	idp := &mockProvider{}
	log := zerolog.Nop()

	accountRepo := repository.NewAccountRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)
	resRepo := repository.NewReservationRepo(db).WithoutRowLocks()
	evcRepo := repository.NewEVCRepo(db)
	teachers := repository.NewTeacherEmailRepo(db)

	f := &fixture{t: t, db: db, notifier: n, idp: idp, loc: loc}
	f.avail = NewAvailabilityService(repository.NewBlockedDateRepo(db), catalogRepo, resRepo, loc)
	f.accounts = NewAccountService(accountRepo, repository.NewProfileRepo(db), teachers, idp, "school.edu.ph", log)
	f.catalog = NewCatalogService(catalogRepo)
	f.res = NewReservationService(resRepo, catalogRepo, accountRepo, f.avail, n, log)
	f.evc = NewEVCService(evcRepo, repository.NewApprovalTokenRepo(db), teachers, accountRepo, f.avail, n, log,
		"https://lab.example.com/", 72*time.Hour)
	f.surveys = NewSurveyService(repository.NewSurveyRepo(db), resRepo, evcRepo, log)
	f.exports = NewExportService(resRepo, accountRepo, "receipt-key", loc)
	f.admin = f.actor(model.RoleAdmin)
	return f
}

// actor creates an account with role and returns it as an Actor.
func (f *fixture) actor(role model.Role) Actor {
	f.t.Helper()
	f.seq++
	name := fmt.Sprintf("%s-%d", role, f.seq)
	a := model.Account{Subject: "sub|" + name, Name: name, Email: name + "@example.com", Role: role}
	require.NoError(f.t, repository.NewAccountRepo(f.db).Create(context.Background(), &a, false))
	return Actor{AccountID: a.ID, Role: a.Role, Name: a.Name}
}

// service creates a service backed by machines available machines.
func (f *fixture) service(name string, rateCents int64, machines int) model.Service {
	f.t.Helper()
	ctx := context.Background()
	var ids []uint64
	for i := 0; i < machines; i++ {
		m, err := f.catalog.CreateMachine(ctx, f.admin, MachineInput{Name: fmt.Sprintf("%s #%d", name, i+1)})
		require.NoError(f.t, err)
		ids = append(ids, m.ID)
	}
	svc, err := f.catalog.CreateService(ctx, f.admin, ServiceInput{Name: name, RateCents: rateCents, MachineIDs: ids})
	require.NoError(f.t, err)
	return svc
}

// book creates a one-slot request for svc on 2026-10-20.
func (f *fixture) book(owner Actor, svc model.Service, start, end string) model.UtilReq {
	f.t.Helper()
	u, err := f.res.Create(context.Background(), owner, UtilReqInput{
		Services: []LineInput{{ServiceID: svc.ID, MachineQuantity: 1}},
		Slots:    []SlotInput{{Day: 1, Date: "2026-10-20", Start: start, End: end}},
	})
	require.NoError(f.t, err)
	return u
}

// ongoing books and walks a request to Ongoing.
func (f *fixture) ongoing(owner Actor, svc model.Service) model.UtilReq {
	f.t.Helper()
	ctx := context.Background()
	u := f.book(owner, svc, "9:00 AM", "10:00 AM")
	_, err := f.res.Approve(ctx, f.admin, u.ID)
	require.NoError(f.t, err)
	u, err = f.res.MarkReceived(ctx, f.admin, u.ID)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) count(table, where string, args ...any) int {
	f.t.Helper()
	var n int
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	require.NoError(f.t, f.db.QueryRow(q, args...).Scan(&n))
	return n
}

func validSurvey() model.SurveySubmission {
	var sub model.SurveySubmission
	sub.Preliminary = model.PreliminarySurvey{ClientType: "Citizen", Sex: "F", AgeGroup: "20-34", Region: "VII",
		ServiceAvailed: "Laser Cutting", CC1: "1", CC2: "1", CC3: "1"}
	for i := range sub.Feedback.SQD {
		sub.Feedback.SQD[i] = 5
	}
	for i := range sub.Evaluation.E {
		sub.Evaluation.E[i] = 4
	}
	return sub
}
