package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/identity"
	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// AccountService manages accounts, their profiles and the teacher
// allowlist.
type AccountService struct {
	accounts      *repository.AccountRepo
	profiles      *repository.ProfileRepo
	teachers      *repository.TeacherEmailRepo
	idp           identity.Provider
	studentDomain string
	log           zerolog.Logger
}

func NewAccountService(accounts *repository.AccountRepo, profiles *repository.ProfileRepo,
	teachers *repository.TeacherEmailRepo, idp identity.Provider, studentDomain string, log zerolog.Logger) *AccountService {
	return &AccountService{
		accounts:      accounts,
		profiles:      profiles,
		teachers:      teachers,
		idp:           idp,
		studentDomain: strings.ToLower(strings.TrimPrefix(studentDomain, "@")),
		log:           log,
	}
}

// ResolveOrCreate returns the account for an identity provider subject,
// creating it on first sign-in.  New accounts get their role from the
// teacher allowlist (STAFF), the student email domain (STUDENT) or
// CLIENT otherwise.  Concurrent first sign-ins converge on one row.
func (s *AccountService) ResolveOrCreate(ctx context.Context, subject, email, name string) (model.Account, error) {
	subject = strings.TrimSpace(subject)
	email = strings.ToLower(strings.TrimSpace(email))
	if subject == "" || email == "" {
		return model.Account{}, Validation("subject and email are required", nil)
	}

	if a, err := s.lookup(ctx, subject, email); err == nil {
		return a, nil
	} else if !missing(err) {
		return model.Account{}, translate(err, "account")
	}

	role, teacher, err := s.classify(ctx, email)
	if err != nil {
		return model.Account{}, translate(err, "account")
	}
	a := model.Account{Subject: subject, Email: email, Name: strings.TrimSpace(name), Role: role}
	if a.Name == "" {
		a.Name = email
	}
	if err := s.accounts.Create(ctx, &a, teacher); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent sign-in.
			existing, lerr := s.lookup(ctx, subject, email)
			if lerr == nil {
				return existing, nil
			}
		}
		return model.Account{}, translate(err, "account")
	}
	s.log.Info().Uint64("account_id", a.ID).Str("role", string(a.Role)).Msg("account created")
	return a, nil
}

func (s *AccountService) lookup(ctx context.Context, subject, email string) (model.Account, error) {
	a, err := s.accounts.GetBySubject(ctx, subject)
	if err == nil || !missing(err) {
		return a, err
	}
	return s.accounts.GetByEmail(ctx, email)
}

func (s *AccountService) classify(ctx context.Context, email string) (model.Role, bool, error) {
	listed, err := s.teachers.Exists(ctx, email)
	if err != nil {
		return "", false, err
	}
	switch {
	case listed:
		return model.RoleStaff, true, nil
	case s.studentDomain != "" && strings.HasSuffix(email, "@"+s.studentDomain):
		return model.RoleStudent, false, nil
	}
	return model.RoleClient, false, nil
}

// Get returns one account.  Callers other than admins may only read
// their own.
func (s *AccountService) Get(ctx context.Context, actor Actor, id uint64) (model.Account, error) {
	if err := requireOwnerOr(actor, id, model.RoleAdmin); err != nil {
		return model.Account{}, err
	}
	a, err := s.accounts.GetByID(ctx, id)
	return a, translate(err, "account")
}

func (s *AccountService) List(ctx context.Context, actor Actor) ([]model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	out, err := s.accounts.List(ctx)
	return out, translate(err, "account")
}

// SetRole changes an account's role.  Admin only.
func (s *AccountService) SetRole(ctx context.Context, actor Actor, id uint64, role string) (model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Account{}, err
	}
	r, ok := model.ParseRole(role)
	if !ok {
		return model.Account{}, Validation("unknown role", map[string]any{"role": role, "allowed": model.AllRoles})
	}
	if err := s.accounts.SetRole(ctx, id, r); err != nil {
		return model.Account{}, translate(err, "account")
	}
	a, err := s.accounts.GetByID(ctx, id)
	return a, translate(err, "account")
}

// Delete removes the account and everything it owns, then asks the
// identity provider to forget the subject.  A provider failure is
// logged and counted; the local deletion stands.
func (s *AccountService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if err := requireOwnerOr(actor, id, model.RoleAdmin); err != nil {
		return err
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return translate(err, "account")
	}
	if err := s.accounts.DeleteCascade(ctx, id); err != nil {
		return translate(err, "account")
	}
	s.log.Info().Uint64("account_id", id).Uint64("deleted_by", actor.AccountID).Msg("account deleted")

	if s.idp == nil || a.Subject == "" {
		return nil
	}
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.idp.DeleteUser(ictx, a.Subject); err != nil {
		metrics.IncIdentityDeleteFailure()
		s.log.Error().Err(err).Uint64("account_id", id).Str("subject", a.Subject).
			Msg("identity provider deletion failed")
	}
	return nil
}

// Profile is the stored profile of an account; at most one of Client
// and Business is set.
type Profile struct {
	Account  model.Account       `json:"account"`
	Client   *model.ClientInfo   `json:"client,omitempty"`
	Business *model.BusinessInfo `json:"business,omitempty"`
}

func (s *AccountService) GetProfile(ctx context.Context, actor Actor) (Profile, error) {
	a, err := s.accounts.GetByID(ctx, actor.AccountID)
	if err != nil {
		return Profile{}, translate(err, "account")
	}
	ci, bi, err := s.profiles.Get(ctx, actor.AccountID)
	if err != nil {
		return Profile{}, translate(err, "profile")
	}
	return Profile{Account: a, Client: ci, Business: bi}, nil
}

// SaveProfile stores the caller's contact profile.  A business owner
// becomes BUSINESS; anyone else becomes CLIENT.  Only CLIENT and
// BUSINESS accounts have profiles.
func (s *AccountService) SaveProfile(ctx context.Context, actor Actor, in model.ProfileInput) (Profile, error) {
	if err := requireRole(actor, model.RoleClient, model.RoleBusiness); err != nil {
		return Profile{}, err
	}
	in.Address = strings.TrimSpace(in.Address)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	missing := []string{}
	if in.Address == "" {
		missing = append(missing, "address")
	}
	if in.ContactNumber == "" {
		missing = append(missing, "contact_number")
	}

	var err error
	switch b := in.Business.(type) {
	case model.BusinessOwner:
		if strings.TrimSpace(b.CompanyName) == "" {
			missing = append(missing, "business.company_name")
		}
		if b.EmployeeCount < 0 {
			return Profile{}, Validation("business.employee_count must not be negative", nil)
		}
		if len(missing) > 0 {
			return Profile{}, Validation("missing required fields", map[string]any{"fields": missing})
		}
		err = s.profiles.SaveBusiness(ctx, model.BusinessInfo{
			AccountID:     actor.AccountID,
			Address:       in.Address,
			ContactNumber: in.ContactNumber,
			CompanyName:   strings.TrimSpace(b.CompanyName),
			BusinessType:  strings.TrimSpace(b.BusinessType),
			TIN:           strings.TrimSpace(b.TIN),
			EmployeeCount: b.EmployeeCount,
		})
	default:
		if len(missing) > 0 {
			return Profile{}, Validation("missing required fields", map[string]any{"fields": missing})
		}
		err = s.profiles.SaveClient(ctx, model.ClientInfo{
			AccountID:     actor.AccountID,
			Address:       in.Address,
			ContactNumber: in.ContactNumber,
			Designation:   strings.TrimSpace(in.Designation),
			Affiliation:   strings.TrimSpace(in.Affiliation),
		})
	}
	if err != nil {
		return Profile{}, translate(err, "profile")
	}
	return s.GetProfile(ctx, actor)
}

// AddTeacherEmail puts an address on the teacher allowlist.
func (s *AccountService) AddTeacherEmail(ctx context.Context, actor Actor, email string) (model.TeacherEmail, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.TeacherEmail{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return model.TeacherEmail{}, Validation("invalid email", map[string]any{"email": email})
	}
	te, err := s.teachers.Add(ctx, email)
	return te, translate(err, "teacher email")
}

func (s *AccountService) ListTeacherEmails(ctx context.Context, actor Actor) ([]model.TeacherEmail, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	out, err := s.teachers.List(ctx)
	return out, translate(err, "teacher email")
}

func (s *AccountService) DeleteTeacherEmail(ctx context.Context, actor Actor, id uint64) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	return translate(s.teachers.Delete(ctx, id), "teacher email")
}
