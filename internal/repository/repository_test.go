package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/testutil"
)

func at(day, hour, min int) *time.Time {
	t := time.Date(2026, 10, day, hour, min, 0, 0, time.UTC)
	return &t
}

func seedAccount(t *testing.T, db *sql.DB, subject string, role model.Role) model.Account {
	t.Helper()
	a := model.Account{Subject: subject, Name: subject, Email: subject + "@example.com", Role: role}
	require.NoError(t, NewAccountRepo(db).Create(context.Background(), &a, false))
	return a
}

func seedService(t *testing.T, db *sql.DB, name string, rate int64, machines int) model.Service {
	t.Helper()
	ctx := context.Background()
	cat := NewCatalogRepo(db)
	s := model.Service{Name: name, RateCents: rate, BillingUnit: "hour"}
	for i := 0; i < machines; i++ {
		m := model.Machine{Name: name + " unit", IsAvailable: true}
		require.NoError(t, cat.CreateMachine(ctx, &m))
		s.MachineIDs = append(s.MachineIDs, m.ID)
	}
	require.NoError(t, cat.CreateService(ctx, &s))
	return s
}

func seedUtilReq(t *testing.T, db *sql.DB, accountID uint64, svc model.Service, status model.UtilStatus, start, end *time.Time) model.UtilReq {
	t.Helper()
	u := model.UtilReq{
		AccountID: accountID,
		Status:    status,
		Services: []model.UserService{{
			ServiceID: svc.ID, ServiceName: svc.Name, MachineQuantity: 1,
			RateCents: svc.RateCents, Minutes: 60, CostCents: svc.RateCents,
		}},
		Tools:            []model.UserTool{{Name: "calipers", Quantity: 1}},
		Slots:            []model.TimeSlot{{Day: 1, Start: start, End: end}},
		TotalAmountCents: svc.RateCents,
	}
	require.NoError(t, NewReservationRepo(db).WithoutRowLocks().Create(context.Background(), &u))
	return u
}

func TestAccountRepoCreateAndLookup(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	_, err := NewTeacherEmailRepo(db).Add(ctx, "Teacher@School.edu")
	require.NoError(t, err)

	a := model.Account{Subject: "sub-1", Name: "T", Email: "TEACHER@school.edu ", Role: model.RoleStaff}
	require.NoError(t, repo.Create(ctx, &a, true))
	assert.NotZero(t, a.ID)

	got, err := repo.GetBySubject(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.edu", got.Email)
	assert.Equal(t, model.RoleStaff, got.Role)

	list, err := NewTeacherEmailRepo(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Verified)

	dup := model.Account{Subject: "sub-1", Email: "other@example.com", Role: model.RoleClient}
	assert.ErrorIs(t, repo.Create(ctx, &dup, false), ErrDuplicate)

	require.NoError(t, repo.SetRole(ctx, a.ID, model.RoleAdmin))
	got, err = repo.GetByEmail(ctx, "teacher@school.edu")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.ErrorIs(t, repo.SetRole(ctx, 999, model.RoleAdmin), ErrNotFound)
}

func TestProfileRepoSwitchesBetweenClientAndBusiness(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	profiles := NewProfileRepo(db)

	require.NoError(t, profiles.SaveBusiness(ctx, model.BusinessInfo{AccountID: a.ID, CompanyName: "Acme", TIN: "123"}))
	ci, bi, err := profiles.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, ci)
	require.NotNil(t, bi)
	assert.Equal(t, "Acme", bi.CompanyName)
	acc, err := NewAccountRepo(db).GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleBusiness, acc.Role)

	require.NoError(t, profiles.SaveClient(ctx, model.ClientInfo{AccountID: a.ID, Address: "Manila"}))
	ci, bi, err = profiles.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, bi)
	require.NotNil(t, ci)
	assert.Equal(t, "Manila", ci.Address)
}

func TestCatalogRepoReplacesLinksOnUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	cat := NewCatalogRepo(db)
	svc := seedService(t, db, "Laser Cutting", 10000, 2)

	got, err := cat.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Len(t, got.MachineIDs, 2)

	m, err := cat.GetMachine(ctx, svc.MachineIDs[0])
	require.NoError(t, err)
	m.ServiceIDs = nil
	require.NoError(t, cat.UpdateMachine(ctx, &m))

	got, err = cat.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{svc.MachineIDs[1]}, got.MachineIDs)

	n, err := cat.CountAvailableMachines(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, cat.SetMachineAvailability(ctx, svc.MachineIDs[1], false))
	n, err = cat.CountAvailableMachines(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = cat.GetService(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogRepoDeleteServiceConflictsWithOpenReservation(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	svc := seedService(t, db, "3D Printing", 5000, 1)
	seedUtilReq(t, db, a.ID, svc, model.UtilPending, at(20, 1, 0), at(20, 2, 0))

	assert.ErrorIs(t, NewCatalogRepo(db).DeleteService(ctx, svc.ID), ErrConflict)
}

func TestBlockedDateRepo(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewBlockedDateRepo(db)

	bd, err := repo.Add(ctx, "2026-12-25", "Christmas")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "2026-12-25", "again")
	assert.ErrorIs(t, err, ErrDuplicate)

	ok, err := repo.Exists(ctx, "2026-12-25")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, "2026-12-24")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, bd.ID))
	assert.ErrorIs(t, repo.Delete(ctx, bd.ID), ErrNotFound)
}

func TestReservationRepoRoundTripAndConditionalStatus(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	svc := seedService(t, db, "CNC", 20000, 1)
	u := seedUtilReq(t, db, a.ID, svc, model.UtilPending, at(20, 1, 0), at(20, 3, 0))

	repo := NewReservationRepo(db)
	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UtilPending, got.Status)
	require.Len(t, got.Services, 1)
	require.Len(t, got.Tools, 1)
	require.Len(t, got.Slots, 1)
	assert.True(t, got.Slots[0].Start.Equal(*at(20, 1, 0)))

	err = repo.UpdateStatus(ctx, u.ID, model.UtilApproved, model.UtilOngoing, StatusChange{})
	assert.ErrorIs(t, err, ErrStaleStatus)
	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UtilPending, got.Status)

	reason := "no longer needed"
	require.NoError(t, repo.UpdateStatus(ctx, u.ID, model.UtilPending, model.UtilCancelled, StatusChange{CancelReason: &reason}))
	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UtilCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, reason, *got.CancelReason)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, 999, model.UtilPending, model.UtilApproved, StatusChange{}), ErrNotFound)

	list, err := repo.List(ctx, ReservationFilter{AccountID: a.ID, Status: model.UtilCancelled})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReservationRepoCountOverlappingIsInclusive(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	svc := seedService(t, db, "Laser", 10000, 3)
	seedUtilReq(t, db, a.ID, svc, model.UtilApproved, at(20, 1, 0), at(20, 2, 0))
	seedUtilReq(t, db, a.ID, svc, model.UtilOngoing, at(20, 2, 0), at(20, 4, 0))
	seedUtilReq(t, db, a.ID, svc, model.UtilPending, at(20, 1, 0), at(20, 4, 0))
	seedUtilReq(t, db, a.ID, svc, model.UtilApproved, at(21, 1, 0), at(21, 4, 0))

	repo := NewReservationRepo(db)
	n, err := repo.CountOverlapping(ctx, "Laser", *at(20, 2, 0), *at(20, 3, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountOverlapping(ctx, "Laser", *at(20, 4, 1), *at(20, 5, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.CountOverlapping(ctx, "Other", *at(20, 1, 0), *at(20, 5, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReservationRepoApproveChecksCapacity(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	svc := seedService(t, db, "Vinyl", 10000, 1)
	repo := NewReservationRepo(db).WithoutRowLocks()

	first := seedUtilReq(t, db, a.ID, svc, model.UtilPending, at(20, 1, 0), at(20, 2, 0))
	second := seedUtilReq(t, db, a.ID, svc, model.UtilPending, at(20, 1, 30), at(20, 3, 0))

	require.NoError(t, repo.Approve(ctx, first.ID, "Admin"))
	assert.ErrorIs(t, repo.Approve(ctx, second.ID, "Admin"), ErrNoCapacity)
	assert.ErrorIs(t, repo.Approve(ctx, first.ID, "Admin"), ErrStaleStatus)

	got, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UtilPending, got.Status)
	got, err = repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "Admin", *got.ApprovedBy)
}

func TestReservationRepoAddDowntimeCapsPerLine(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	laser := seedService(t, db, "Laser", 10000, 1)
	router := seedService(t, db, "Router", 10000, 1)
	repo := NewReservationRepo(db).WithoutRowLocks()

	u := model.UtilReq{
		AccountID: a.ID,
		Status:    model.UtilOngoing,
		Services: []model.UserService{
			{ServiceID: laser.ID, ServiceName: laser.Name, MachineQuantity: 1, RateCents: 10000, Minutes: 60, CostCents: 10000},
			{ServiceID: router.ID, ServiceName: router.Name, MachineQuantity: 1, RateCents: 10000, Minutes: 180, CostCents: 30000},
		},
		Slots:            []model.TimeSlot{{Day: 1, Start: at(20, 1, 0), End: at(20, 4, 0)}},
		TotalAmountCents: 40000,
	}
	require.NoError(t, repo.Create(ctx, &u))
	laserLine := u.Services[0].ID

	// The caller's price is not trusted: the deduction is re-derived.
	d := model.DowntimeAdjustment{UserServiceID: laserLine, Minutes: 60, DeductionCents: 99999, Reason: "jam", RecordedBy: "Admin"}
	total, err := repo.AddDowntime(ctx, u.ID, &d)
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, int64(10000), d.DeductionCents)
	assert.Equal(t, int64(30000), total)

	// The laser line is used up, so a second outage on it deducts nothing
	// and the router line keeps its full charge.
	d2 := model.DowntimeAdjustment{UserServiceID: laserLine, Minutes: 60, RecordedBy: "Admin"}
	total, err = repo.AddDowntime(ctx, u.ID, &d2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d2.DeductionCents)
	assert.Equal(t, int64(30000), total)

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.Downtimes, 2)
	assert.Equal(t, int64(30000), got.TotalAmountCents)

	_, err = repo.AddDowntime(ctx, u.ID, &model.DowntimeAdjustment{UserServiceID: 9999, Minutes: 10})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSurveyRepoRejectsSecondSubmission(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "client", model.RoleClient)
	svc := seedService(t, db, "Laser", 10000, 1)
	u := seedUtilReq(t, db, a.ID, svc, model.UtilOngoing, at(20, 1, 0), at(20, 2, 0))

	repo := NewSurveyRepo(db)
	link := model.SurveyLink{Family: model.FamilyUtilization, ReservationID: u.ID}
	sub := model.SurveySubmission{
		Preliminary: model.PreliminarySurvey{ClientType: "citizen", CC1: "1"},
		Feedback:    model.CustomerFeedback{SQD: [9]int{5, 5, 5, 5, 5, 5, 5, 5, 4}, Suggestions: "more lasers"},
		Evaluation:  model.EmployeeEvaluation{E: [17]int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 3}},
	}
	require.NoError(t, repo.Submit(ctx, link, sub, string(model.UtilOngoing), string(model.UtilPendingPayment)))
	err := repo.Submit(ctx, link, sub, string(model.UtilPendingPayment), string(model.UtilCompleted))
	assert.ErrorIs(t, err, ErrDuplicate)

	for _, table := range []string{"preliminary_surveys", "customer_feedback", "employee_evaluations"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
	got, err := NewReservationRepo(db).Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UtilPendingPayment, got.Status)

	stored, err := repo.Get(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Feedback.SQD[8])
	assert.Equal(t, 3, stored.Evaluation.E[16])
	assert.Equal(t, "more lasers", stored.Feedback.Suggestions)
}

func TestApprovalTokenIsSingleUse(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "student", model.RoleStudent)
	e := model.EVCReservation{
		AccountID: a.ID, Status: model.EVCPendingTeacher, TeacherEmail: "t@school.edu",
		Students: []model.EVCStudent{{Name: "Ana"}},
		Slots:    []model.TimeSlot{{Day: 1}},
	}
	tok := model.ApprovalToken{TokenHash: "h1", TeacherEmail: "t@school.edu", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, NewEVCRepo(db).Create(ctx, &e, &tok))
	assert.Equal(t, e.ID, tok.EVCID)

	repo := NewApprovalTokenRepo(db)
	got, err := repo.Lookup(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.EVCID)

	now := time.Now().UTC()
	require.NoError(t, repo.ConsumeAndTransition(ctx, "h1", e.ID, model.EVCPendingTeacher, model.EVCPendingAdmin,
		StatusChange{TeacherApprovedAt: &now}))
	assert.ErrorIs(t, repo.ConsumeAndTransition(ctx, "h1", e.ID, model.EVCPendingAdmin, model.EVCApproved, StatusChange{}), ErrTokenUsed)
	_, err = repo.Lookup(ctx, "h1")
	assert.ErrorIs(t, err, ErrTokenUsed)

	stored, err := NewEVCRepo(db).Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EVCPendingAdmin, stored.Status)
	assert.NotNil(t, stored.TeacherApprovedAt)
	assert.Len(t, stored.Students, 1)
	assert.Len(t, stored.Slots, 1)
	assert.False(t, stored.Slots[0].Scheduled())

	_, err = repo.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprovalTokenExpired(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "student", model.RoleStudent)
	e := model.EVCReservation{AccountID: a.ID, Status: model.EVCPendingTeacher, TeacherEmail: "t@school.edu"}
	tok := model.ApprovalToken{TokenHash: "old", TeacherEmail: "t@school.edu", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, NewEVCRepo(db).Create(ctx, &e, &tok))

	_, err := NewApprovalTokenRepo(db).Lookup(ctx, "old")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccountDeleteCascade(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "doomed", model.RoleClient)
	other := seedAccount(t, db, "keeper", model.RoleClient)
	svc := seedService(t, db, "Laser", 10000, 1)
	u := seedUtilReq(t, db, a.ID, svc, model.UtilOngoing, at(20, 1, 0), at(20, 2, 0))
	kept := seedUtilReq(t, db, other.ID, svc, model.UtilPending, at(22, 1, 0), at(22, 2, 0))
	require.NoError(t, NewProfileRepo(db).SaveClient(ctx, model.ClientInfo{AccountID: a.ID}))
	e := model.EVCReservation{AccountID: a.ID, Status: model.EVCPendingTeacher, TeacherEmail: "t@x",
		Students:  []model.EVCStudent{{Name: "Ana"}},
		Slots:     []model.TimeSlot{{Day: 1}},
		Materials: []model.NeededMaterial{{Item: "acrylic", Quantity: 2}}}
	require.NoError(t, NewEVCRepo(db).Create(ctx, &e, &model.ApprovalToken{TokenHash: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, NewSurveyRepo(db).Submit(ctx, model.SurveyLink{Family: model.FamilyUtilization, ReservationID: u.ID},
		model.SurveySubmission{}, string(model.UtilOngoing), string(model.UtilPendingPayment)))
	require.NoError(t, NewTokenRepo(db).Store(ctx, a.ID, "rt", time.Now().Add(time.Hour)))

	require.NoError(t, NewAccountRepo(db).DeleteCascade(ctx, a.ID))

	counts := map[string]string{
		"accounts":         "SELECT COUNT(*) FROM accounts WHERE id=?",
		"util_reqs":        "SELECT COUNT(*) FROM util_reqs WHERE account_id=?",
		"evc_reservations": "SELECT COUNT(*) FROM evc_reservations WHERE account_id=?",
		"client_info":      "SELECT COUNT(*) FROM client_info WHERE account_id=?",
		"business_info":    "SELECT COUNT(*) FROM business_info WHERE account_id=?",
		"refresh_tokens":   "SELECT COUNT(*) FROM refresh_tokens WHERE account_id=?",
	}
	for name, q := range counts {
		var n int
		require.NoError(t, db.QueryRow(q, a.ID).Scan(&n))
		assert.Zero(t, n, name)
	}
	children := map[string]string{
		"user_services":        "SELECT COUNT(*) FROM user_services WHERE util_req_id=?",
		"user_tools":           "SELECT COUNT(*) FROM user_tools WHERE util_req_id=?",
		"preliminary_surveys":  "SELECT COUNT(*) FROM preliminary_surveys WHERE util_req_id=?",
		"customer_feedback":    "SELECT COUNT(*) FROM customer_feedback WHERE util_req_id=?",
		"employee_evaluations": "SELECT COUNT(*) FROM employee_evaluations WHERE util_req_id=?",
	}
	for name, q := range children {
		var n int
		require.NoError(t, db.QueryRow(q, u.ID).Scan(&n))
		assert.Zero(t, n, name)
	}
	for _, table := range []string{"evc_students", "needed_materials", "approval_tokens"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE evc_id=?", e.ID).Scan(&n))
		assert.Zero(t, n, table)
	}
	var slots int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM time_slots").Scan(&slots))
	assert.Equal(t, 1, slots)

	_, err := NewReservationRepo(db).Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, NewAccountRepo(db).DeleteCascade(ctx, a.ID), ErrNotFound)
}

func TestTokenRepoRotateIsSingleUse(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "rotator", model.RoleClient)
	tokens := NewTokenRepo(db)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, tokens.Store(ctx, a.ID, "first", exp))
	owner, err := tokens.Lookup(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner)

	owner, err = tokens.Rotate(ctx, "first", "second", exp)
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner)

	_, err = tokens.Lookup(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound)
	owner, err = tokens.Lookup(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner)

	// a replayed token cannot mint another one
	_, err = tokens.Rotate(ctx, "first", "third", exp)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tokens.Lookup(ctx, "third")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tokens.Revoke(ctx, "second"))
	assert.ErrorIs(t, tokens.Revoke(ctx, "second"), ErrNotFound)
	assert.ErrorIs(t, tokens.Revoke(ctx, "unknown"), ErrNotFound)
}

func TestTokenRepoExpiredAndRevokeAll(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := seedAccount(t, db, "sessions", model.RoleClient)
	tokens := NewTokenRepo(db)

	require.NoError(t, tokens.Store(ctx, a.ID, "stale", time.Now().Add(-time.Hour)))
	_, err := tokens.Lookup(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tokens.Rotate(ctx, "stale", "fresh", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tokens.Store(ctx, a.ID, "laptop", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.Store(ctx, a.ID, "phone", time.Now().Add(time.Hour)))
	n, err := tokens.RevokeAll(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = tokens.Lookup(ctx, "phone")
	assert.ErrorIs(t, err, ErrNotFound)
	n, err = tokens.RevokeAll(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
