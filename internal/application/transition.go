package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

type TransitionRequest struct {
	ApplicationID  string
	ExpectedStatus domain.Status
	NewStatus      domain.Status
	Remarks        string
}

func (r TransitionRequest) validate() error {
	if r.ApplicationID == "" {
		return domain.Invalid("applicationId", "is required")
	}
	if r.ExpectedStatus == "" {
		return domain.Invalid("expectedStatus", "is required")
	}
	if !r.ExpectedStatus.Valid() {
		return domain.Invalid("expectedStatus", "is not a known status")
	}
	if r.NewStatus == "" {
		return domain.Invalid("newStatus", "is required")
	}
	if !r.NewStatus.Valid() {
		return domain.Invalid("newStatus", "is not a known status")
	}
	// No status is reachable from itself, whatever is stored.
	if r.ExpectedStatus == r.NewStatus {
		return domain.NewInvalidTransition(r.ExpectedStatus, r.NewStatus)
	}
	return nil
}

// TransitionEngine is the only writer of status, updatedAt and staffRemarks.
type TransitionEngine struct {
	repo    ports.ApplicationRepository
	tx      ports.TransitionStore
	stats   *StatsAggregator
	metrics ports.Metrics
	logger  ports.Logger
	now     func() time.Time
	newID   func() string
}

func NewTransitionEngine(repo ports.ApplicationRepository, tx ports.TransitionStore, stats *StatsAggregator, metrics ports.Metrics, logger ports.Logger) *TransitionEngine {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &TransitionEngine{
		repo:    repo,
		tx:      tx,
		stats:   stats,
		metrics: metrics,
		logger:  logger,
		now:     utcNow,
		newID:   uuid.NewString,
	}
}

// Transition moves one application to req.NewStatus. The stored status must
// equal req.ExpectedStatus and the step must be legal. On success the
// returned application is the post-write state; on any failure nothing was
// written.
func (e *TransitionEngine) Transition(ctx context.Context, actor domain.Actor, req TransitionRequest) (domain.Application, error) {
	started := time.Now()
	app, err := e.transition(ctx, actor, req)
	outcome := transitionOutcome(err)
	e.metrics.ObserveTransition(outcome, time.Since(started))
	switch outcome {
	case "ok":
		e.logger.Info(ctx, "application status changed",
			"application_id", app.ID,
			"old_status", req.ExpectedStatus.String(),
			"new_status", app.Status.String(),
			"changed_by", actor.ID,
		)
	case "storage_error", "error":
		e.logger.Error(ctx, "application transition failed", "application_id", req.ApplicationID, "error", err)
	default:
		e.logger.Warn(ctx, "application transition rejected",
			"application_id", req.ApplicationID,
			"reason", outcome,
			"actor_id", actor.ID,
			"error", err,
		)
	}
	return app, err
}

func (e *TransitionEngine) transition(ctx context.Context, actor domain.Actor, req TransitionRequest) (domain.Application, error) {
	if err := Authorize(actor, domain.ActionTransitionStatus, ""); err != nil {
		return domain.Application{}, err
	}
	if err := req.validate(); err != nil {
		return domain.Application{}, err
	}
	current, err := e.repo.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return domain.Application{}, err
	}
	if current.Status != req.ExpectedStatus {
		return domain.Application{}, domain.ErrConflict
	}
	if !current.Status.CanTransitionTo(req.NewStatus) {
		return domain.Application{}, domain.NewInvalidTransition(current.Status, req.NewStatus)
	}

	// Single-writer timestamps never run backwards, even with clock skew.
	now := e.now()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	remarks := strings.TrimSpace(req.Remarks)

	updated := current
	updated.Status = req.NewStatus
	updated.UpdatedAt = now
	if remarks != "" {
		updated.StaffRemarks = remarks
	}
	event := domain.StatusChangeEvent{
		ID:            e.newID(),
		ApplicationID: current.ID,
		ChangedBy:     actor.Ref(),
		OldStatus:     current.Status,
		NewStatus:     req.NewStatus,
		Timestamp:     now,
		Remarks:       remarks,
	}
	if err := e.tx.CommitTransition(ctx, updated, current.Status, event); err != nil {
		return domain.Application{}, err
	}
	e.stats.Invalidate(ctx, updated.UserID)
	return updated, nil
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrUnauthenticated):
		return "permission_denied"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "validation_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
