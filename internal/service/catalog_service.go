package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// CatalogService manages services and machines.  Reads are public;
// writes are admin only.
type CatalogService struct {
	catalog *repository.CatalogRepo
}

func NewCatalogService(catalog *repository.CatalogRepo) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// ServiceInput is the writable part of a service.
type ServiceInput struct {
	Name        string   `json:"name"`
	RateCents   int64    `json:"rate_cents"`
	BillingUnit string   `json:"billing_unit"`
	Icon        *string  `json:"icon"`
	Description *string  `json:"description"`
	MachineIDs  []uint64 `json:"machine_ids"`
}

func (in ServiceInput) toModel() (model.Service, error) {
	s := model.Service{
		Name:        strings.TrimSpace(in.Name),
		RateCents:   in.RateCents,
		BillingUnit: strings.TrimSpace(in.BillingUnit),
		Icon:        in.Icon,
		Description: in.Description,
		MachineIDs:  dedupe(in.MachineIDs),
	}
	if s.Name == "" {
		return s, Validation("name is required", nil)
	}
	if s.RateCents < 0 {
		return s, Validation("rate_cents must not be negative", nil)
	}
	if s.BillingUnit == "" {
		s.BillingUnit = "hour"
	}
	return s, nil
}

// MachineInput is the writable part of a machine.
type MachineInput struct {
	Name         string   `json:"name"`
	Description  *string  `json:"description"`
	IsAvailable  *bool    `json:"is_available"`
	Instructions *string  `json:"instructions"`
	Link         *string  `json:"link"`
	ServiceIDs   []uint64 `json:"service_ids"`
}

func (in MachineInput) toModel() (model.Machine, error) {
	m := model.Machine{
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		IsAvailable:  true,
		Instructions: in.Instructions,
		Link:         in.Link,
		ServiceIDs:   dedupe(in.ServiceIDs),
	}
	if in.IsAvailable != nil {
		m.IsAvailable = *in.IsAvailable
	}
	if m.Name == "" {
		return m, Validation("name is required", nil)
	}
	return m, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *CatalogService) ListServices(ctx context.Context) ([]model.Service, error) {
	out, err := s.catalog.ListServices(ctx)
	return out, translate(err, "service")
}

func (s *CatalogService) GetService(ctx context.Context, id uint64) (model.Service, error) {
	out, err := s.catalog.GetService(ctx, id)
	return out, translate(err, "service")
}

func (s *CatalogService) CreateService(ctx context.Context, actor Actor, in ServiceInput) (model.Service, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Service{}, err
	}
	svc, err := in.toModel()
	if err != nil {
		return model.Service{}, err
	}
	if err := s.catalog.CreateService(ctx, &svc); err != nil {
		return model.Service{}, translate(err, "service")
	}
	return svc, nil
}

// UpdateService overwrites a service and replaces its machine links.
func (s *CatalogService) UpdateService(ctx context.Context, actor Actor, id uint64, in ServiceInput) (model.Service, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Service{}, err
	}
	svc, err := in.toModel()
	if err != nil {
		return model.Service{}, err
	}
	svc.ID = id
	if err := s.catalog.UpdateService(ctx, &svc); err != nil {
		return model.Service{}, translate(err, "service")
	}
	return s.GetService(ctx, id)
}

// DeleteService fails with a conflict while open reservations book it.
func (s *CatalogService) DeleteService(ctx context.Context, actor Actor, id uint64) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	err := s.catalog.DeleteService(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return Conflict("service is booked by open reservations", map[string]any{"service_id": id})
	}
	return translate(err, "service")
}

func (s *CatalogService) ListMachines(ctx context.Context) ([]model.Machine, error) {
	out, err := s.catalog.ListMachines(ctx)
	return out, translate(err, "machine")
}

func (s *CatalogService) GetMachine(ctx context.Context, id uint64) (model.Machine, error) {
	out, err := s.catalog.GetMachine(ctx, id)
	return out, translate(err, "machine")
}

func (s *CatalogService) CreateMachine(ctx context.Context, actor Actor, in MachineInput) (model.Machine, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Machine{}, err
	}
	m, err := in.toModel()
	if err != nil {
		return model.Machine{}, err
	}
	if err := s.catalog.CreateMachine(ctx, &m); err != nil {
		return model.Machine{}, translate(err, "machine")
	}
	return m, nil
}

// UpdateMachine overwrites a machine and replaces its service links.
func (s *CatalogService) UpdateMachine(ctx context.Context, actor Actor, id uint64, in MachineInput) (model.Machine, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Machine{}, err
	}
	m, err := in.toModel()
	if err != nil {
		return model.Machine{}, err
	}
	m.ID = id
	if err := s.catalog.UpdateMachine(ctx, &m); err != nil {
		return model.Machine{}, translate(err, "machine")
	}
	return s.GetMachine(ctx, id)
}

// SetMachineAvailability flips the manual availability toggle.
func (s *CatalogService) SetMachineAvailability(ctx context.Context, actor Actor, id uint64, available bool) (model.Machine, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return model.Machine{}, err
	}
	if err := s.catalog.SetMachineAvailability(ctx, id, available); err != nil {
		return model.Machine{}, translate(err, "machine")
	}
	return s.GetMachine(ctx, id)
}

func (s *CatalogService) DeleteMachine(ctx context.Context, actor Actor, id uint64) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	return translate(s.catalog.DeleteMachine(ctx, id), "machine")
}
