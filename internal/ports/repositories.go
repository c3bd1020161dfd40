package ports

import (
	"context"
	"time"

	"citizen-portal/internal/domain"
)

type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	Update(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, accountID string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	List(ctx context.Context, role domain.Role) ([]domain.Account, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, service domain.ServiceDefinition) error
	Update(ctx context.Context, service domain.ServiceDefinition) error
	Delete(ctx context.Context, serviceID string) error
	GetByID(ctx context.Context, serviceID string) (domain.ServiceDefinition, error)
	List(ctx context.Context) ([]domain.ServiceDefinition, error)
}

// ApplicationRepository has no status setter: status only changes through
// TransitionStore.CommitTransition.
type ApplicationRepository interface {
	Create(ctx context.Context, app domain.Application) error
	GetByID(ctx context.Context, appID string) (domain.Application, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Application, error)
	List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error)
}

// AuditRepository is write-once: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, event domain.StatusChangeEvent) (string, error)
	ListByApplication(ctx context.Context, appID string) ([]domain.StatusChangeEvent, error)
}

// TransitionStore commits a status change and its audit event as one unit.
// It returns domain.ErrConflict when the stored status no longer equals
// expected, and writes nothing in that case.
type TransitionStore interface {
	CommitTransition(ctx context.Context, updated domain.Application, expected domain.Status, event domain.StatusChangeEvent) error
}

type StatsCache interface {
	Get(ctx context.Context, key string) (domain.Stats, bool, error)
	Set(ctx context.Context, key string, stats domain.Stats, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
