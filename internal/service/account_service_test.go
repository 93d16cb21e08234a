package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

func TestResolveOrCreateClassifiesRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.AddTeacherEmail(ctx, f.admin, "Teacher@Example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		subject string
		email   string
		want    model.Role
	}{
		{"allowlisted teacher", "t1", "teacher@example.com", model.RoleStaff},
		{"student domain", "s1", "juan@school.edu.ph", model.RoleStudent},
		{"lookalike domain", "c0", "juan@notschool.edu.ph", model.RoleClient},
		{"anyone else", "c1", "maria@gmail.com", model.RoleClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.accounts.ResolveOrCreate(ctx, tt.subject, tt.email, "Someone")
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Role)
		})
	}

	list, err := f.accounts.ListTeacherEmails(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Verified)
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.accounts.ResolveOrCreate(ctx, "auth0|1", "Ana@Example.com", "Ana")
	require.NoError(t, err)
	b, err := f.accounts.ResolveOrCreate(ctx, "auth0|1", "ana@example.com", "Ana")
	require.NoError(t, err)
	c, err := f.accounts.ResolveOrCreate(ctx, "google|9", "ana@example.com", "Ana")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.ID, c.ID, "same email resolves to the existing account")
	assert.Equal(t, 1, f.count("accounts", "email=?", "ana@example.com"))

	_, err = f.accounts.ResolveOrCreate(ctx, "", "x@example.com", "")
	assert.True(t, IsKind(err, KindValidation))
}

func TestSetRoleAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.actor(model.RoleClient)

	_, err := f.accounts.SetRole(ctx, client, client.AccountID, "ADMIN")
	assert.True(t, IsKind(err, KindForbidden))

	_, err = f.accounts.SetRole(ctx, f.admin, client.AccountID, "wizard")
	assert.True(t, IsKind(err, KindValidation))

	a, err := f.accounts.SetRole(ctx, f.admin, client.AccountID, "cashier")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCashier, a.Role)
}

func TestDeleteAccountSurvivesIdentityFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service("Laser Cutting", 10000, 2)

	client := f.actor(model.RoleClient)
	_, err := f.accounts.SaveProfile(ctx, client, model.ProfileInput{Address: "Cebu", ContactNumber: "0917", Business: model.NotApplicable{}})
	require.NoError(t, err)
	f.book(client, svc, "9:00 AM", "10:00 AM")

	other := f.actor(model.RoleClient)
	f.book(other, svc, "1:00 PM", "2:00 PM")

	f.idp.On("DeleteUser", mock.Anything, "sub|"+client.Name).Return(errors.New("provider unavailable")).Once()
	before := testutil.ToFloat64(metrics.IdentityDeleteFailureCounter())

	require.NoError(t, f.accounts.Delete(ctx, f.admin, client.AccountID))

	f.idp.AssertExpectations(t)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IdentityDeleteFailureCounter()))
	assert.Zero(t, f.count("accounts", "id=?", client.AccountID))
	assert.Zero(t, f.count("util_reqs", "account_id=?", client.AccountID))
	assert.Zero(t, f.count("evc_reservations", "account_id=?", client.AccountID))
	assert.Zero(t, f.count("client_info", "account_id=?", client.AccountID))
	assert.Zero(t, f.count("business_info", "account_id=?", client.AccountID))
	assert.Equal(t, 1, f.count("util_reqs", "account_id=?", other.AccountID))

	err = f.accounts.Delete(ctx, f.admin, client.AccountID)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestDeleteAccountOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.actor(model.RoleClient), f.actor(model.RoleClient)

	err := f.accounts.Delete(ctx, b, a.AccountID)
	assert.True(t, IsKind(err, KindForbidden))

	f.idp.On("DeleteUser", mock.Anything, "sub|"+a.Name).Return(nil).Once()
	require.NoError(t, f.accounts.Delete(ctx, a, a.AccountID))
	f.idp.AssertExpectations(t)
}

func TestSaveProfileSwitchesRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.actor(model.RoleClient)

	p, err := f.accounts.SaveProfile(ctx, client, model.ProfileInput{
		Address: "Cebu", ContactNumber: "0917",
		Business: model.BusinessOwner{CompanyName: "Acme Fab", BusinessType: "MSME", EmployeeCount: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleBusiness, p.Account.Role)
	require.NotNil(t, p.Business)
	assert.Nil(t, p.Client)
	assert.Equal(t, "Acme Fab", p.Business.CompanyName)

	client.Role = model.RoleBusiness
	p, err = f.accounts.SaveProfile(ctx, client, model.ProfileInput{Address: "Cebu", ContactNumber: "0917", Business: model.NotApplicable{}})
	require.NoError(t, err)
	assert.Equal(t, model.RoleClient, p.Account.Role)
	assert.Nil(t, p.Business)
	require.NotNil(t, p.Client)

	_, err = f.accounts.SaveProfile(ctx, client, model.ProfileInput{Business: model.NotApplicable{}})
	assert.True(t, IsKind(err, KindValidation))

	staff := f.actor(model.RoleStaff)
	_, err = f.accounts.SaveProfile(ctx, staff, model.ProfileInput{Address: "x", ContactNumber: "y"})
	assert.True(t, IsKind(err, KindForbidden))
}

func TestAccountReadsAndTeacherEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.actor(model.RoleClient)

	list, err := f.accounts.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, err = f.accounts.List(ctx, client)
	assert.True(t, IsKind(err, KindForbidden))

	a, err := f.accounts.Get(ctx, client, client.AccountID)
	require.NoError(t, err)
	assert.Equal(t, client.Name, a.Name)
	_, err = f.accounts.Get(ctx, client, f.admin.AccountID)
	assert.True(t, IsKind(err, KindForbidden))
	_, err = f.accounts.Get(ctx, f.admin, 9999)
	assert.True(t, IsKind(err, KindNotFound))

	te, err := f.accounts.AddTeacherEmail(ctx, f.admin, " Ms.Cruz@School.edu.ph ")
	require.NoError(t, err)
	assert.Equal(t, "ms.cruz@school.edu.ph", te.Email)
	assert.False(t, te.Verified)

	_, err = f.accounts.AddTeacherEmail(ctx, f.admin, "ms.cruz@school.edu.ph")
	assert.True(t, IsKind(err, KindConflict))
	_, err = f.accounts.AddTeacherEmail(ctx, f.admin, "not-an-email")
	assert.True(t, IsKind(err, KindValidation))
	_, err = f.accounts.AddTeacherEmail(ctx, client, "x@school.edu.ph")
	assert.True(t, IsKind(err, KindForbidden))

	require.NoError(t, f.accounts.DeleteTeacherEmail(ctx, f.admin, te.ID))
	assert.True(t, IsKind(f.accounts.DeleteTeacherEmail(ctx, f.admin, te.ID), KindNotFound))
	emails, err := f.accounts.ListTeacherEmails(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, emails)
}
