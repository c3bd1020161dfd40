package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

const defaultRecentLimit = 5

type SubmitRequest struct {
	ServiceID   string
	Description string
	Documents   []domain.Document
}

type ApplicationService struct {
	repo     ports.ApplicationRepository
	services ports.ServiceRepository
	stats    *StatsAggregator
	logger   ports.Logger
	now      func() time.Time
	newID    func() string
}

func NewApplicationService(repo ports.ApplicationRepository, services ports.ServiceRepository, stats *StatsAggregator, logger ports.Logger) *ApplicationService {
	return &ApplicationService{
		repo:     repo,
		services: services,
		stats:    stats,
		logger:   logger,
		now:      utcNow,
		newID:    uuid.NewString,
	}
}

// Submit creates a new application owned by the citizen actor.
func (s *ApplicationService) Submit(ctx context.Context, actor domain.Actor, req SubmitRequest) (domain.Application, error) {
	if err := Authorize(actor, domain.ActionSubmitApplication, actor.ID); err != nil {
		return domain.Application{}, err
	}
	if req.ServiceID == "" {
		return domain.Application{}, domain.Invalid("serviceId", "is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Application{}, domain.Invalid("description", "is required")
	}
	for _, doc := range req.Documents {
		if doc.Name == "" || doc.URL == "" {
			return domain.Application{}, domain.Invalid("documents", "name and url are required")
		}
		if doc.Size < 0 || doc.Size > domain.MaxDocumentSize {
			return domain.Application{}, domain.Invalid("documents", "size must be between 0 and 10 MiB")
		}
	}
	if _, err := s.services.GetByID(ctx, req.ServiceID); err != nil {
		return domain.Application{}, err
	}

	now := s.now()
	app := domain.Application{
		ID:          s.newID(),
		UserID:      actor.ID,
		ServiceID:   req.ServiceID,
		Status:      domain.StatusSubmitted,
		Description: description,
		Documents:   append([]domain.Document{}, req.Documents...),
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return domain.Application{}, err
	}
	s.stats.Invalidate(ctx, app.UserID)
	s.logger.Info(ctx, "application submitted", "application_id", app.ID, "service_id", app.ServiceID, "user_id", app.UserID)
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, actor domain.Actor, appID string) (domain.Application, error) {
	if appID == "" {
		return domain.Application{}, domain.Invalid("applicationId", "is required")
	}
	if actor.ID == "" {
		return domain.Application{}, domain.ErrUnauthenticated
	}
	if !actor.Role.Valid() {
		return domain.Application{}, domain.Deny(domain.ReasonNoRoleAssigned)
	}
	app, err := s.repo.GetByID(ctx, appID)
	if err != nil {
		return domain.Application{}, err
	}
	if err := Authorize(actor, domain.ActionViewOwnApplication, app.UserID); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// ListForOwner never trusts the requested owner for citizens: they always
// get their own applications. Personnel may list any owner.
func (s *ApplicationService) ListForOwner(ctx context.Context, actor domain.Actor, ownerID string) ([]domain.Application, error) {
	if err := Authorize(actor, domain.ActionViewAnyApplication, ""); err != nil {
		if err := Authorize(actor, domain.ActionViewOwnApplication, actor.ID); err != nil {
			return nil, err
		}
		ownerID = actor.ID
	}
	if ownerID == "" {
		ownerID = actor.ID
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *ApplicationService) ListAll(ctx context.Context, actor domain.Actor, filter domain.ApplicationFilter) ([]domain.Application, error) {
	if err := Authorize(actor, domain.ActionViewAnyApplication, ""); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("status", "is not a known status")
	}
	if filter.Limit < 0 {
		return nil, domain.Invalid("limit", "must not be negative")
	}
	return s.repo.List(ctx, filter)
}

// ListRecent returns the newest applications in the actor's scope.
func (s *ApplicationService) ListRecent(ctx context.Context, actor domain.Actor, limit int) ([]domain.Application, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	scope, err := ScopeFor(actor)
	if err != nil {
		return nil, err
	}
	var apps []domain.Application
	if scope.Global() {
		apps, err = s.repo.List(ctx, domain.ApplicationFilter{Limit: limit})
	} else {
		apps, err = s.repo.ListByOwner(ctx, scope.OwnerID)
	}
	if err != nil {
		return nil, err
	}
	SortNewestFirst(apps)
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

func SortNewestFirst(apps []domain.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].SubmittedAt.After(apps[j].SubmittedAt)
	})
}
