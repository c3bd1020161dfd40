package application

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

const defaultStatsTTL = 30 * time.Second

// StatsAggregator counts applications per scope. Results may lag in-flight
// transitions; they are never used for authorization.
type StatsAggregator struct {
	apps     ports.ApplicationRepository
	accounts ports.AccountRepository
	services ports.ServiceRepository
	cache    ports.StatsCache
	ttl      time.Duration
	metrics  ports.Metrics
	logger   ports.Logger
}

func NewStatsAggregator(
	apps ports.ApplicationRepository,
	accounts ports.AccountRepository,
	services ports.ServiceRepository,
	cache ports.StatsCache,
	ttl time.Duration,
	metrics ports.Metrics,
	logger ports.Logger,
) *StatsAggregator {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &StatsAggregator{
		apps:     apps,
		accounts: accounts,
		services: services,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}
}

func cacheKey(scope domain.Scope) string { return "stats:" + scope.Key() }

func (s *StatsAggregator) Aggregate(ctx context.Context, scope domain.Scope) (domain.Stats, error) {
	key := cacheKey(scope)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.IncStatsCache("error")
			s.logger.Warn(ctx, "stats cache read failed", "key", key, "error", err)
		case ok:
			s.metrics.IncStatsCache("hit")
			return cached, nil
		default:
			s.metrics.IncStatsCache("miss")
		}
	}

	var (
		apps []domain.Application
		err  error
	)
	if scope.Global() {
		apps, err = s.apps.List(ctx, domain.ApplicationFilter{})
	} else {
		apps, err = s.apps.ListByOwner(ctx, scope.OwnerID)
	}
	if err != nil {
		return domain.Stats{}, err
	}
	stats := domain.NewStats(scope)
	for _, app := range apps {
		stats.Add(app.Status)
	}

	// A Set racing a concurrent Invalidate may cache pre-write counts until
	// the TTL expires; stats are allowed to lag that much.
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn(ctx, "stats cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

// ForActor aggregates over the actor's scope: global for personnel, own
// applications for citizens.
func (s *StatsAggregator) ForActor(ctx context.Context, actor domain.Actor) (domain.Stats, error) {
	scope, err := ScopeFor(actor)
	if err != nil {
		return domain.Stats{}, err
	}
	return s.Aggregate(ctx, scope)
}

func (s *StatsAggregator) Overview(ctx context.Context, actor domain.Actor) (domain.Overview, error) {
	if err := Authorize(actor, domain.ActionViewPortalOverview, ""); err != nil {
		return domain.Overview{}, err
	}
	var out domain.Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Aggregate(gctx, domain.GlobalScope())
		out.Applications = stats
		return err
	})
	g.Go(func() error {
		accounts, err := s.accounts.List(gctx, domain.RoleNone)
		if err != nil {
			return err
		}
		out.TotalAccounts = len(accounts)
		for _, a := range accounts {
			if a.Role.Personnel() {
				out.Personnel++
			}
		}
		return nil
	})
	g.Go(func() error {
		services, err := s.services.List(gctx)
		out.TotalServices = len(services)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Overview{}, err
	}
	return out, nil
}

// Invalidate drops the cached global stats and the owner's stats. Cache
// failures are logged, never returned: the write they follow has committed.
func (s *StatsAggregator) Invalidate(ctx context.Context, ownerID string) {
	if s == nil || s.cache == nil {
		return
	}
	keys := []string{cacheKey(domain.GlobalScope())}
	if ownerID != "" {
		keys = append(keys, cacheKey(domain.OwnedBy(ownerID)))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn(ctx, "stats cache invalidation failed", "keys", keys, "error", err)
	}
}

// ScopeFor derives what the actor may see.
func ScopeFor(actor domain.Actor) (domain.Scope, error) {
	if err := Authorize(actor, domain.ActionViewAnyApplication, ""); err == nil {
		return domain.GlobalScope(), nil
	}
	if err := Authorize(actor, domain.ActionViewOwnApplication, actor.ID); err != nil {
		return domain.Scope{}, err
	}
	return domain.OwnedBy(actor.ID), nil
}
