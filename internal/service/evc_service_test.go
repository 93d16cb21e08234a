package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/queue"
)

const teacherEmail = "ms.santos@school.edu.ph"

func (f *fixture) evcInput() EVCInput {
	return EVCInput{
		TeacherName:  "Ms. Santos",
		TeacherEmail: " MS.Santos@school.edu.ph ",
		Subject:      "Physics",
		Topic:        "Laser optics",
		SchoolLevel:  "Grade 10",
		ClassSize:    30,
		Students:     []string{"Ana", " ", "Ben"},
		Materials:    []MaterialInput{{Item: "acrylic sheet", Quantity: 2}},
		Slots:        []SlotInput{{Day: 1, Date: "2026-10-22", Start: "1:00 PM", End: "3:00 PM"}},
	}
}

func (f *fixture) allowTeacher() {
	f.t.Helper()
	_, err := f.accounts.AddTeacherEmail(context.Background(), f.admin, teacherEmail)
	require.NoError(f.t, err)
}

// approvalToken extracts the raw token from the last teacher email.
func (f *fixture) approvalToken() string {
	f.t.Helper()
	evs := f.notifier.sent(queue.KindTeacherApprovalRequested)
	require.NotEmpty(f.t, evs)
	link := evs[len(evs)-1].Link
	const prefix = "https://lab.example.com/v1/evc/approvals/"
	require.True(f.t, strings.HasPrefix(link, prefix), link)
	return strings.TrimPrefix(link, prefix)
}

func TestEVCStudentFlow(t *testing.T) {
	f := newFixture(t)
	f.allowTeacher()
	ctx := context.Background()
	student := f.actor(model.RoleStudent)

	e, err := f.evc.Create(ctx, student, f.evcInput())
	require.NoError(t, err)
	assert.Equal(t, model.EVCPendingTeacher, e.Status)
	assert.Equal(t, teacherEmail, e.TeacherEmail)
	assert.Len(t, e.Students, 2)

	req := f.notifier.sent(queue.KindTeacherApprovalRequested)
	require.Len(t, req, 1)
	assert.Equal(t, teacherEmail, req[0].RecipientEmail)
	assert.Equal(t, []string{"Day 1: 2026-10-22 1:00 PM-3:00 PM"}, req[0].Schedule)
	raw := f.approvalToken()
	assert.Equal(t, 0, f.count("approval_tokens", "token_hash = ?", raw), "only the hash is stored")

	pending, err := f.evc.PendingApproval(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, e.ID, pending.ID)

	_, err = f.evc.AdminApprove(ctx, f.admin, e.ID)
	assert.True(t, IsKind(err, KindInvalidTransition), "admin cannot skip the teacher")

	e, err = f.evc.TeacherDecision(ctx, raw, true, "")
	require.NoError(t, err)
	assert.Equal(t, model.EVCPendingAdmin, e.Status)
	assert.NotNil(t, e.TeacherApprovedAt)
	assert.Len(t, f.notifier.sent(queue.KindTeacherApproved), 1)

	_, err = f.evc.TeacherDecision(ctx, raw, true, "")
	assert.True(t, IsKind(err, KindConflict))
	_, err = f.evc.PendingApproval(ctx, raw)
	assert.True(t, IsKind(err, KindConflict))

	e, err = f.evc.AdminApprove(ctx, f.admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EVCApproved, e.Status)
	require.NotNil(t, e.ApprovedBy)
	assert.Equal(t, f.admin.Name, *e.ApprovedBy)

	e, err = f.evc.MarkOngoing(ctx, f.admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EVCOngoing, e.Status)

	require.NoError(t, f.surveys.SubmitEVC(ctx, student, e.ID, validSurvey()))
	e, err = f.evc.Get(ctx, student, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EVCCompleted, e.Status)

	err = f.surveys.SubmitEVC(ctx, student, e.ID, validSurvey())
	assert.True(t, IsKind(err, KindConflict))
}

func TestEVCTeacherReject(t *testing.T) {
	f := newFixture(t)
	f.allowTeacher()
	ctx := context.Background()
	student := f.actor(model.RoleStudent)

	e, err := f.evc.Create(ctx, student, f.evcInput())
	require.NoError(t, err)
	raw := f.approvalToken()

	_, err = f.evc.TeacherDecision(ctx, raw, false, " ")
	assert.True(t, IsKind(err, KindValidation))

	e, err = f.evc.TeacherDecision(ctx, raw, false, "class schedule changed")
	require.NoError(t, err)
	assert.Equal(t, model.EVCRejected, e.Status)
	assert.Equal(t, model.RejectionTeacher, e.RejectionStage)
	require.NotNil(t, e.RejectReason)
	assert.Equal(t, "class schedule changed", *e.RejectReason)

	rejected := f.notifier.sent(queue.KindTeacherRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, student.Name+"@example.com", rejected[0].RecipientEmail)
}

func TestEVCStaffSkipsTeacher(t *testing.T) {
	f := newFixture(t)
	f.allowTeacher()
	ctx := context.Background()
	staff := f.actor(model.RoleStaff)

	e, err := f.evc.Create(ctx, staff, f.evcInput())
	require.NoError(t, err)
	assert.Equal(t, model.EVCPendingAdmin, e.Status)
	assert.Empty(t, f.notifier.sent(queue.KindTeacherApprovalRequested))
	assert.Zero(t, f.count("approval_tokens", ""))

	_, err = f.evc.AdminReject(ctx, f.admin, e.ID, "")
	assert.True(t, IsKind(err, KindValidation))

	e, err = f.evc.AdminReject(ctx, f.admin, e.ID, "lab closed for inventory")
	require.NoError(t, err)
	assert.Equal(t, model.EVCRejected, e.Status)
	assert.Equal(t, model.RejectionAdmin, e.RejectionStage)
	assert.Len(t, f.notifier.sent(queue.KindRejected), 1)

	_, err = f.evc.Cancel(ctx, staff, e.ID, "")
	assert.True(t, IsKind(err, KindInvalidTransition))
}

func TestEVCCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.allowTeacher()
	ctx := context.Background()
	student := f.actor(model.RoleStudent)

	tests := []struct {
		name   string
		mutate func(*EVCInput)
		kind   Kind
	}{
		{"teacher not on allowlist", func(in *EVCInput) { in.TeacherEmail = "someone@school.edu.ph" }, KindValidation},
		{"missing topic", func(in *EVCInput) { in.Topic = "" }, KindValidation},
		{"bad teacher email", func(in *EVCInput) { in.TeacherEmail = "not-an-email" }, KindValidation},
		{"empty class", func(in *EVCInput) { in.ClassSize = 0 }, KindValidation},
		{"material without quantity", func(in *EVCInput) { in.Materials = []MaterialInput{{Item: "wood"}} }, KindValidation},
		{"no slots", func(in *EVCInput) { in.Slots = nil }, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.evcInput()
			tt.mutate(&in)
			_, err := f.evc.Create(ctx, student, in)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}

	_, err := f.evc.Create(ctx, f.actor(model.RoleClient), f.evcInput())
	assert.True(t, IsKind(err, KindForbidden))

	_, err = f.avail.BlockDate(ctx, f.admin, "2026-10-22", "holiday")
	require.NoError(t, err)
	_, err = f.evc.Create(ctx, student, f.evcInput())
	assert.True(t, IsKind(err, KindValidation))

	assert.Zero(t, f.count("evc_reservations", ""))
}

func TestEVCExpiredLink(t *testing.T) {
	f := newFixture(t)
	f.allowTeacher()
	ctx := context.Background()
	f.evc.now = func() time.Time { return time.Now().UTC().Add(-100 * time.Hour) }

	e, err := f.evc.Create(ctx, f.actor(model.RoleStudent), f.evcInput())
	require.NoError(t, err)

	_, err = f.evc.TeacherDecision(ctx, f.approvalToken(), true, "")
	assert.True(t, IsKind(err, KindValidation))

	_, err = f.evc.TeacherDecision(ctx, "no-such-token", true, "")
	assert.True(t, IsKind(err, KindNotFound))

	got, err := f.evc.Get(ctx, f.admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EVCPendingTeacher, got.Status)
}
