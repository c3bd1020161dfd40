package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	adaptermiddleware "citizen-portal/internal/adapters/http/middleware"
	adapterlogger "citizen-portal/internal/adapters/logger"
	"citizen-portal/internal/adapters/metrics"
	"citizen-portal/internal/application"
	"citizen-portal/internal/infrastructure"
	"citizen-portal/internal/infrastructure/auth"
	"citizen-portal/internal/infrastructure/dynamodb"
	"citizen-portal/internal/infrastructure/memory"
	"citizen-portal/internal/infrastructure/redis"
	httpiface "citizen-portal/internal/interfaces/http"
	"citizen-portal/internal/ports"
)

type repositories struct {
	accounts ports.AccountRepository
	services ports.ServiceRepository
	apps     ports.ApplicationRepository
	audit    ports.AuditRepository
	tx       ports.TransitionStore
}

// App is the assembled portal: the router plus whatever needs closing.
type App struct {
	Echo    *echo.Echo
	Logger  ports.Logger
	Metrics *metrics.Metrics
	closers []func() error
}

func (a *App) Close() error {
	var first error
	for _, closer := range a.closers {
		if err := closer(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newRepositories(ctx context.Context, cfg infrastructure.Config) (repositories, error) {
	if strings.EqualFold(cfg.StoreBackend, infrastructure.BackendMemory) {
		store := memory.NewStore()
		return repositories{
			accounts: memory.NewAccountRepository(store),
			services: memory.NewServiceRepository(store),
			apps:     memory.NewApplicationRepository(store),
			audit:    memory.NewAuditRepository(store),
			tx:       memory.NewTransitionStore(store),
		}, nil
	}
	client, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName, cfg.DynamoDBEndpoint)
	if err != nil {
		return repositories{}, fmt.Errorf("initialize dynamodb client: %w", err)
	}
	return repositories{
		accounts: dynamodb.NewAccountRepository(client),
		services: dynamodb.NewServiceRepository(client),
		apps:     dynamodb.NewApplicationRepository(client),
		audit:    dynamodb.NewAuditRepository(client),
		tx:       dynamodb.NewTransitionStore(client),
	}, nil
}

// New wires every component named by cfg. With SeedSampleData set the
// sample catalog is written before the router is returned.
func New(ctx context.Context, cfg infrastructure.Config) (*App, error) {
	logger, err := adapterlogger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &App{Logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(reg)

	repos, err := newRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var cache ports.StatsCache = memory.NewStatsCache()
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		cache = redis.NewStatsCache(redisClient.Client)
		a.closers = append(a.closers, redisClient.Close)
		logger.Info(ctx, "stats cache backed by redis")
	}

	directory := application.NewDirectory(repos.accounts, logger.With("component", "directory"))
	stats := application.NewStatsAggregator(repos.apps, repos.accounts, repos.services, cache, cfg.StatsCacheTTL, a.Metrics, logger.With("component", "stats"))
	catalog := application.NewCatalogService(repos.services, logger.With("component", "catalog"))
	apps := application.NewApplicationService(repos.apps, repos.services, stats, logger.With("component", "applications"))
	engine := application.NewTransitionEngine(repos.apps, repos.tx, stats, a.Metrics, logger.With("component", "transition"))
	audit := application.NewAuditService(repos.apps, repos.audit, logger.With("component", "audit"))
	authz := application.NewAuthorizationService(directory)

	if cfg.SeedSampleData {
		seeded, err := application.NewSeeder(repos.accounts, catalog, apps, engine, logger.With("component", "seed")).SeedIfEmpty(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
		logger.Info(ctx, "sample data checked", "seeded", seeded)
	}

	mode, err := adaptermiddleware.ParseAuthMode(cfg.AuthMode)
	if err != nil {
		a.Close()
		return nil, err
	}
	var cognito echo.MiddlewareFunc
	if mode == adaptermiddleware.ModeCognito {
		cognito = auth.NewCognitoMiddleware(cfg.CognitoUserPoolID, cfg.Region).Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(mode, cfg.APIKey, cognito)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize auth middleware: %w", err)
	}

	a.Echo = httpiface.NewMainRouter(
		httpiface.Handlers{
			Accounts:      httpiface.NewAccountsHandler(directory),
			Authorization: httpiface.NewAuthorizationHandler(directory, authz),
			Services:      httpiface.NewServicesHandler(directory, catalog),
			Applications:  httpiface.NewApplicationsHandler(directory, apps, engine, audit),
			Stats:         httpiface.NewStatsHandler(directory, stats),
			Metrics:       a.Metrics.Handler(),
		},
		httpiface.Middleware{
			Auth:          authMiddleware,
			XRay:          adaptermiddleware.XRayMiddleware("citizen-portal"),
			RequestLogger: adaptermiddleware.RequestLogger(logger.With("component", "http"), a.Metrics),
		},
	)
	return a, nil
}
