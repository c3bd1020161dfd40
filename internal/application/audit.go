package application

import (
	"context"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

type History struct {
	ApplicationID string                     `json:"application_id"`
	Status        domain.Status              `json:"status"`
	Events        []domain.StatusChangeEvent `json:"events"`
	Consistent    bool                       `json:"consistent"`
}

// AuditService is the read side of the audit log. Writes only happen inside
// TransitionStore.CommitTransition.
type AuditService struct {
	apps   ports.ApplicationRepository
	events ports.AuditRepository
	logger ports.Logger
}

func NewAuditService(apps ports.ApplicationRepository, events ports.AuditRepository, logger ports.Logger) *AuditService {
	return &AuditService{apps: apps, events: events, logger: logger}
}

func (s *AuditService) History(ctx context.Context, actor domain.Actor, appID string) (History, error) {
	if appID == "" {
		return History{}, domain.Invalid("applicationId", "is required")
	}
	if actor.ID == "" {
		return History{}, domain.ErrUnauthenticated
	}
	if !actor.Role.Valid() {
		return History{}, domain.Deny(domain.ReasonNoRoleAssigned)
	}
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return History{}, err
	}
	if err := Authorize(actor, domain.ActionViewOwnApplication, app.UserID); err != nil {
		return History{}, err
	}
	events, err := s.events.ListByApplication(ctx, appID)
	if err != nil {
		return History{}, err
	}
	replayed, replayErr := domain.ReplayStatus(events)
	consistent := replayErr == nil && replayed == app.Status
	if !consistent {
		s.logger.Error(ctx, "audit trail does not reproduce application status",
			"application_id", appID,
			"status", app.Status.String(),
			"replayed", replayed.String(),
			"error", replayErr,
		)
	}
	return History{ApplicationID: appID, Status: app.Status, Events: events, Consistent: consistent}, nil
}
