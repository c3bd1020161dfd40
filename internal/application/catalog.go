package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

type CatalogService struct {
	repo   ports.ServiceRepository
	logger ports.Logger
	now    func() time.Time
	newID  func() string
}

func NewCatalogService(repo ports.ServiceRepository, logger ports.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger, now: utcNow, newID: uuid.NewString}
}

func validateService(svc *domain.ServiceDefinition) error {
	svc.Title = strings.TrimSpace(svc.Title)
	svc.Description = strings.TrimSpace(svc.Description)
	svc.Requirements = strings.TrimSpace(svc.Requirements)
	svc.ProcessingTime = strings.TrimSpace(svc.ProcessingTime)
	switch {
	case svc.Title == "":
		return domain.Invalid("title", "is required")
	case svc.Description == "":
		return domain.Invalid("description", "is required")
	case svc.Requirements == "":
		return domain.Invalid("requirements", "is required")
	case svc.ProcessingTime == "":
		return domain.Invalid("processingTime", "is required")
	case svc.Fee.IsNegative():
		return domain.Invalid("fee", "must not be negative")
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, actor domain.Actor, svc domain.ServiceDefinition) (domain.ServiceDefinition, error) {
	if err := Authorize(actor, domain.ActionManageServices, ""); err != nil {
		return domain.ServiceDefinition{}, err
	}
	if err := validateService(&svc); err != nil {
		return domain.ServiceDefinition{}, err
	}
	if svc.ID == "" {
		svc.ID = s.newID()
	}
	now := s.now()
	svc.CreatedBy = actor.ID
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if err := s.repo.Create(ctx, svc); err != nil {
		return domain.ServiceDefinition{}, err
	}
	s.logger.Info(ctx, "service created", "service_id", svc.ID, "created_by", actor.ID)
	return svc, nil
}

func (s *CatalogService) Update(ctx context.Context, actor domain.Actor, svc domain.ServiceDefinition) (domain.ServiceDefinition, error) {
	if err := Authorize(actor, domain.ActionManageServices, ""); err != nil {
		return domain.ServiceDefinition{}, err
	}
	if svc.ID == "" {
		return domain.ServiceDefinition{}, domain.Invalid("serviceId", "is required")
	}
	if err := validateService(&svc); err != nil {
		return domain.ServiceDefinition{}, err
	}
	existing, err := s.repo.GetByID(ctx, svc.ID)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	svc.CreatedBy = existing.CreatedBy
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, svc); err != nil {
		return domain.ServiceDefinition{}, err
	}
	return svc, nil
}

// Delete removes the catalog entry only. Applications keep their weak
// serviceId reference.
func (s *CatalogService) Delete(ctx context.Context, actor domain.Actor, serviceID string) error {
	if err := Authorize(actor, domain.ActionManageServices, ""); err != nil {
		return err
	}
	if serviceID == "" {
		return domain.Invalid("serviceId", "is required")
	}
	if err := s.repo.Delete(ctx, serviceID); err != nil {
		return err
	}
	s.logger.Info(ctx, "service deleted", "service_id", serviceID, "deleted_by", actor.ID)
	return nil
}

func (s *CatalogService) Get(ctx context.Context, serviceID string) (domain.ServiceDefinition, error) {
	if serviceID == "" {
		return domain.ServiceDefinition{}, domain.Invalid("serviceId", "is required")
	}
	return s.repo.GetByID(ctx, serviceID)
}

func (s *CatalogService) List(ctx context.Context) ([]domain.ServiceDefinition, error) {
	return s.repo.List(ctx)
}

// ParseFee reads a fee as entered in forms; blank means free.
func ParseFee(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, domain.Invalid("fee", "must be a decimal number")
	}
	return fee, nil
}
