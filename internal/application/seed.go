package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

type sampleApplication struct {
	owner   string
	service string
	path    []domain.Status
	remarks string
}

var sampleAccounts = []domain.Account{
	{ID: "sample-user-1", Name: "Rajesh Kumar", Email: "rajesh@example.com", Phone: "9876543210", Role: domain.RoleCitizen},
	{ID: "sample-user-2", Name: "Priya Sharma", Email: "priya@example.com", Phone: "9876543211", Role: domain.RoleCitizen},
	{ID: "sample-user-3", Name: "Amit Patel", Email: "amit@example.com", Phone: "9876543212", Role: domain.RoleCitizen},
	{ID: "sample-user-4", Name: "Sunita Devi", Email: "sunita@example.com", Phone: "9876543213", Role: domain.RoleCitizen},
	{ID: "sample-staff-1", Name: "Staff Member", Email: "staff@example.com", Role: domain.RoleStaff},
	{ID: "sample-admin-1", Name: "Portal Administrator", Email: "admin@example.com", Role: domain.RoleAdmin},
}

var sampleServices = []domain.ServiceDefinition{
	{Title: "Birth Certificate", Description: "Apply for a birth certificate", Requirements: "Identity proof, address proof", ProcessingTime: "7 working days", Fee: decimal.NewFromInt(50)},
	{Title: "Ration Card", Description: "Apply for a ration card", Requirements: "Income certificate, address proof", ProcessingTime: "15 working days", Fee: decimal.Zero},
	{Title: "Property Tax Assessment", Description: "Property tax assessment service", Requirements: "Property documents, identity proof", ProcessingTime: "30 working days", Fee: decimal.RequireFromString("250.00")},
	{Title: "Death Certificate", Description: "Apply for a death certificate", Requirements: "Medical certificate, identity proof", ProcessingTime: "7 working days", Fee: decimal.NewFromInt(50)},
	{Title: "Marriage Certificate", Description: "Apply for a marriage certificate", Requirements: "Marriage proof, identity proof", ProcessingTime: "10 working days", Fee: decimal.RequireFromString("100.00")},
}

// Every sample reaches its status through the transition engine, so seeded
// data satisfies the audit replay invariant like organic data.
var sampleApplications = []sampleApplication{
	{owner: "sample-user-1", service: "Birth Certificate"},
	{owner: "sample-user-2", service: "Ration Card", path: []domain.Status{domain.StatusInReview, domain.StatusApproved}, remarks: "Documents verified"},
	{owner: "sample-user-3", service: "Property Tax Assessment", path: []domain.Status{domain.StatusRejected}, remarks: "Property documents missing"},
	{owner: "sample-user-1", service: "Death Certificate", path: []domain.Status{domain.StatusInReview}},
	{owner: "sample-user-4", service: "Marriage Certificate", path: []domain.Status{domain.StatusInReview}},
	{owner: "sample-user-2", service: "Birth Certificate", path: []domain.Status{domain.StatusApproved}},
}

type Seeder struct {
	accounts ports.AccountRepository
	catalog  *CatalogService
	apps     *ApplicationService
	engine   *TransitionEngine
	logger   ports.Logger
}

func NewSeeder(accounts ports.AccountRepository, catalog *CatalogService, apps *ApplicationService, engine *TransitionEngine, logger ports.Logger) *Seeder {
	return &Seeder{accounts: accounts, catalog: catalog, apps: apps, engine: engine, logger: logger}
}

// SeedIfEmpty populates sample data when the catalog is empty. It reports
// whether anything was written.
func (s *Seeder) SeedIfEmpty(ctx context.Context) (bool, error) {
	existing, err := s.catalog.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		s.logger.Debug(ctx, "catalog not empty, skipping seed", "services", len(existing))
		return false, nil
	}

	actors := map[string]domain.Actor{}
	for _, account := range sampleAccounts {
		account.CreatedAt = utcNow()
		account.UpdatedAt = account.CreatedAt
		if err := s.accounts.Create(ctx, account); err != nil {
			return false, fmt.Errorf("seed account %s: %w", account.ID, err)
		}
		actors[account.ID] = domain.Actor{ID: account.ID, DisplayName: account.Name, Email: account.Email, Role: account.Role}
	}

	admin, staff := actors["sample-admin-1"], actors["sample-staff-1"]
	serviceIDs := map[string]string{}
	for _, svc := range sampleServices {
		created, err := s.catalog.Create(ctx, admin, svc)
		if err != nil {
			return false, fmt.Errorf("seed service %s: %w", svc.Title, err)
		}
		serviceIDs[created.Title] = created.ID
	}

	for _, sample := range sampleApplications {
		app, err := s.apps.Submit(ctx, actors[sample.owner], SubmitRequest{
			ServiceID:   serviceIDs[sample.service],
			Description: sample.service + " application",
		})
		if err != nil {
			return false, fmt.Errorf("seed application %s/%s: %w", sample.owner, sample.service, err)
		}
		for _, next := range sample.path {
			updated, err := s.engine.Transition(ctx, staff, TransitionRequest{
				ApplicationID:  app.ID,
				ExpectedStatus: app.Status,
				NewStatus:      next,
				Remarks:        sample.remarks,
			})
			if err != nil {
				return false, fmt.Errorf("seed transition %s -> %s: %w", app.ID, next, err)
			}
			app = updated
		}
	}
	s.logger.Info(ctx, "sample data seeded",
		"accounts", len(sampleAccounts),
		"services", len(sampleServices),
		"applications", len(sampleApplications),
	)
	return true, nil
}
