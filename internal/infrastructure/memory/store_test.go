package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-portal/internal/domain"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newApp(id, owner string, submitted time.Duration) domain.Application {
	return domain.Application{
		ID:          id,
		UserID:      owner,
		ServiceID:   "svc-1",
		Status:      domain.StatusSubmitted,
		Description: "request",
		Documents:   []domain.Document{{Name: "id.pdf", URL: "s3://docs/id.pdf", Size: 1024}},
		SubmittedAt: base.Add(submitted),
		UpdatedAt:   base.Add(submitted),
	}
}

func TestAccountRepository_EmailIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewStore())
	require.NoError(t, repo.Create(ctx, domain.Account{ID: "a", Email: "asha@example.com", Role: domain.RoleCitizen}))

	err := repo.Create(ctx, domain.Account{ID: "b", Email: "ASHA@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	found, err := repo.GetByEmail(ctx, "Asha@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "a", found.ID)
}

func TestAccountRepository_ListFiltersByRole(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewStore())
	require.NoError(t, repo.Create(ctx, domain.Account{ID: "c", Email: "c@example.com", Role: domain.RoleStaff}))
	require.NoError(t, repo.Create(ctx, domain.Account{ID: "a", Email: "a@example.com", Role: domain.RoleCitizen}))
	require.NoError(t, repo.Create(ctx, domain.Account{ID: "b", Email: "b@example.com", Role: domain.RoleStaff}))

	staff, err := repo.List(ctx, domain.RoleStaff)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "b", staff[0].ID)

	all, err := repo.List(ctx, domain.RoleNone)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, repo.Update(ctx, domain.Account{ID: "missing"}), domain.ErrNotFound)
}

func TestServiceRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewServiceRepository(NewStore())
	require.NoError(t, repo.Create(ctx, domain.ServiceDefinition{ID: "2", Title: "Ration Card"}))
	require.NoError(t, repo.Create(ctx, domain.ServiceDefinition{ID: "1", Title: "Birth Certificate"}))
	assert.ErrorIs(t, repo.Create(ctx, domain.ServiceDefinition{ID: "1"}), domain.ErrConflict)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Birth Certificate", list[0].Title)

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.GetByID(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "1"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, domain.ServiceDefinition{ID: "1"}), domain.ErrNotFound)
}

func TestApplicationRepository_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(NewStore())
	require.NoError(t, repo.Create(ctx, newApp("app-1", "u1", 0)))

	got, err := repo.GetByID(ctx, "app-1")
	require.NoError(t, err)
	got.Documents[0].Name = "tampered"
	got.Status = domain.StatusApproved

	again, err := repo.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "id.pdf", again.Documents[0].Name)
	assert.Equal(t, domain.StatusSubmitted, again.Status)
}

func TestApplicationRepository_RejectsUnknownStatus(t *testing.T) {
	app := newApp("app-1", "u1", 0)
	app.Status = "pending"

	err := NewApplicationRepository(NewStore()).Create(context.Background(), app)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplicationRepository_ListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(NewStore())
	require.NoError(t, repo.Create(ctx, newApp("old", "u1", 0)))
	require.NoError(t, repo.Create(ctx, newApp("mid", "u2", time.Hour)))
	require.NoError(t, repo.Create(ctx, newApp("new", "u1", 2*time.Hour)))

	owned, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "new", owned[0].ID)
	assert.Equal(t, "old", owned[1].ID)

	limited, err := repo.List(ctx, domain.ApplicationFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, []string{"new", "mid"}, []string{limited[0].ID, limited[1].ID})

	none, err := repo.ListByOwner(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransitionStore_CommitIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	apps := NewApplicationRepository(store)
	events := NewAuditRepository(store)
	tx := NewTransitionStore(store)
	require.NoError(t, apps.Create(ctx, newApp("app-1", "u1", 0)))

	updated := newApp("app-1", "u1", 0)
	updated.Status = domain.StatusInReview
	event := domain.StatusChangeEvent{
		ID:            "evt-1",
		ApplicationID: "app-1",
		OldStatus:     domain.StatusSubmitted,
		NewStatus:     domain.StatusInReview,
		Timestamp:     base.Add(time.Minute),
	}
	require.NoError(t, tx.CommitTransition(ctx, updated, domain.StatusSubmitted, event))

	stale := updated
	stale.Status = domain.StatusApproved
	event2 := event
	event2.ID = "evt-2"
	assert.ErrorIs(t, tx.CommitTransition(ctx, stale, domain.StatusSubmitted, event2), domain.ErrConflict)

	missing := newApp("ghost", "u1", 0)
	assert.ErrorIs(t, tx.CommitTransition(ctx, missing, domain.StatusSubmitted, event2), domain.ErrNotFound)

	trail, err := events.ListByApplication(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "evt-1", trail[0].ID)

	current, err := apps.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, current.Status)
}

func TestAuditRepository_OrdersByTimestampAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(NewStore())
	_, err := repo.Append(ctx, domain.StatusChangeEvent{ID: "late", ApplicationID: "app-1", Timestamp: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.Append(ctx, domain.StatusChangeEvent{ID: "early", ApplicationID: "app-1", Timestamp: base})
	require.NoError(t, err)

	_, err = repo.Append(ctx, domain.StatusChangeEvent{ID: "early", ApplicationID: "app-1", Timestamp: base})
	assert.ErrorIs(t, err, domain.ErrConflict)

	trail, err := repo.ListByApplication(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "early", trail[0].ID)

	empty, err := repo.ListByApplication(ctx, "app-2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_CancelledContextIsStorageError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewApplicationRepository(NewStore()).GetByID(ctx, "app-1")

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}
