package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/infrastructure/memory"
	"citizen-portal/internal/ports"
)

type portal struct {
	store    *memory.Store
	cache    *memory.StatsCache
	apps     *ApplicationService
	engine   *TransitionEngine
	audit    *AuditService
	stats    *StatsAggregator
	catalog  *CatalogService
	accounts *memory.AccountRepository
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewStatsCache()
	accounts := memory.NewAccountRepository(store)
	services := memory.NewServiceRepository(store)
	appRepo := memory.NewApplicationRepository(store)
	events := memory.NewAuditRepository(store)
	logger := ports.NopLogger{}

	stats := NewStatsAggregator(appRepo, accounts, services, cache, time.Minute, nil, logger)
	return &portal{
		store:    store,
		cache:    cache,
		apps:     NewApplicationService(appRepo, services, stats, logger),
		engine:   NewTransitionEngine(appRepo, memory.NewTransitionStore(store), stats, nil, logger),
		audit:    NewAuditService(appRepo, events, logger),
		stats:    stats,
		catalog:  NewCatalogService(services, logger),
		accounts: accounts,
	}
}

func (p *portal) submit(t *testing.T, owner domain.Actor) domain.Application {
	t.Helper()
	svc, err := p.catalog.Create(context.Background(), admin1, domain.ServiceDefinition{
		Title: "Birth Certificate", Description: "d", Requirements: "r", ProcessingTime: "7 days",
	})
	require.NoError(t, err)
	app, err := p.apps.Submit(context.Background(), owner, SubmitRequest{ServiceID: svc.ID, Description: "please"})
	require.NoError(t, err)
	return app
}

func TestLifecycle_ReviewThenApprove(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)

	reviewed, err := p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusInReview,
	})
	require.NoError(t, err)
	approved, err := p.engine.Transition(ctx, officer1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusInReview, NewStatus: domain.StatusApproved, Remarks: "verified",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.False(t, approved.UpdatedAt.Before(reviewed.UpdatedAt))

	history, err := p.audit.History(ctx, citizen1, app.ID)
	require.NoError(t, err)
	assert.True(t, history.Consistent)
	require.Len(t, history.Events, 2)
	assert.Equal(t, domain.StatusSubmitted, history.Events[0].OldStatus)
	assert.Equal(t, domain.StatusApproved, history.Events[1].NewStatus)
	assert.Equal(t, "verified", history.Events[1].Remarks)
	assert.Equal(t, officer1.ID, history.Events[1].ChangedBy.ID)
}

func TestLifecycle_TerminalStatusIsAbsorbing(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)

	_, err := p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusRejected,
	})
	require.NoError(t, err)

	for _, next := range domain.Statuses {
		_, err := p.engine.Transition(ctx, admin1, TransitionRequest{
			ApplicationID: app.ID, ExpectedStatus: domain.StatusRejected, NewStatus: next,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, next.String())
	}

	history, err := p.audit.History(ctx, staff1, app.ID)
	require.NoError(t, err)
	assert.Len(t, history.Events, 1)
	assert.True(t, history.Consistent)
}

func TestLifecycle_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)

	targets := []domain.Status{domain.StatusApproved, domain.StatusRejected, domain.StatusInReview, domain.StatusApproved}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, next := range targets {
		wg.Add(1)
		go func(i int, next domain.Status) {
			defer wg.Done()
			_, errs[i] = p.engine.Transition(ctx, staff1, TransitionRequest{
				ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: next,
			})
		}(i, next)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	history, err := p.audit.History(ctx, staff1, app.ID)
	require.NoError(t, err)
	assert.Len(t, history.Events, 1)
	assert.True(t, history.Consistent)
}

func TestLifecycle_FailedTransitionsWriteNothing(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)

	_, err := p.engine.Transition(ctx, citizen1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusApproved,
	})
	requireDenied(t, err, domain.ReasonInsufficientRole)

	_, err = p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusInReview, NewStatus: domain.StatusApproved,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusSubmitted,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := p.apps.Get(ctx, citizen1, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app, stored)

	history, err := p.audit.History(ctx, citizen1, app.ID)
	require.NoError(t, err)
	assert.Empty(t, history.Events)
	assert.True(t, history.Consistent)
}

func TestLifecycle_SameStatusRequestIsInvalidEvenWhenStale(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)
	reviewed, err := p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusInReview,
	})
	require.NoError(t, err)

	_, err = p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusApproved, NewStatus: domain.StatusApproved,
	})
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.NotErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.StatusApproved, invalid.From)
	assert.Equal(t, domain.StatusApproved, invalid.To)
	assert.Empty(t, invalid.Allowed)

	stored, err := p.apps.Get(ctx, citizen1, app.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewed, stored)
	history, err := p.audit.History(ctx, citizen1, app.ID)
	require.NoError(t, err)
	assert.Len(t, history.Events, 1)
}

func TestLifecycle_StatsFollowTransitions(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	app := p.submit(t, citizen1)
	p.submit(t, citizen2)

	stats, err := p.stats.ForActor(ctx, staff1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ByStatus[domain.StatusSubmitted])

	_, err = p.engine.Transition(ctx, staff1, TransitionRequest{
		ApplicationID: app.ID, ExpectedStatus: domain.StatusSubmitted, NewStatus: domain.StatusApproved,
	})
	require.NoError(t, err)

	stats, err = p.stats.ForActor(ctx, staff1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusSubmitted])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusApproved])

	own, err := p.stats.ForActor(ctx, citizen2)
	require.NoError(t, err)
	assert.Equal(t, 1, own.Total)
	assert.Equal(t, 1, own.ByStatus[domain.StatusSubmitted])
}

func TestSeeder_SeedsOnceThroughTheEngine(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	appRepo := memory.NewApplicationRepository(p.store)
	seeder := NewSeeder(p.accounts, p.catalog, p.apps, p.engine, ports.NopLogger{})

	seeded, err := seeder.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	all, err := appRepo.List(ctx, domain.ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, len(sampleApplications))

	staff := domain.Actor{ID: "sample-staff-1", DisplayName: "Staff Member", Role: domain.RoleStaff}
	for _, app := range all {
		require.True(t, app.Status.Valid())
		history, err := p.audit.History(ctx, staff, app.ID)
		require.NoError(t, err)
		assert.True(t, history.Consistent, app.ID)
	}

	seeded, err = seeder.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestSeeder_StopsOnCancelledContext(t *testing.T) {
	p := newPortal(t)
	seeder := NewSeeder(p.accounts, p.catalog, p.apps, p.engine, ports.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seeder.SeedIfEmpty(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
}
