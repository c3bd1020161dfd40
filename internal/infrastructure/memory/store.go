package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"citizen-portal/internal/domain"
)

// Store is an in-process document store with one collection per record
// type. Reads return copies; callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	services map[string]domain.ServiceDefinition
	apps     map[string]domain.Application
	events   map[string][]domain.StatusChangeEvent
	eventIDs map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]domain.Account{},
		services: map[string]domain.ServiceDefinition{},
		apps:     map[string]domain.Application{},
		events:   map[string][]domain.StatusChangeEvent{},
		eventIDs: map[string]struct{}{},
	}
}

func live(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: op, Err: err}
	}
	return nil
}

func copyApp(app domain.Application) domain.Application {
	app.Documents = slices.Clone(app.Documents)
	return app
}

type AccountRepository struct{ store *Store }

type ServiceRepository struct{ store *Store }

type ApplicationRepository struct{ store *Store }

type AuditRepository struct{ store *Store }

type TransitionStore struct{ store *Store }

func NewAccountRepository(store *Store) *AccountRepository { return &AccountRepository{store: store} }

func NewServiceRepository(store *Store) *ServiceRepository { return &ServiceRepository{store: store} }

func NewApplicationRepository(store *Store) *ApplicationRepository {
	return &ApplicationRepository{store: store}
}

func NewAuditRepository(store *Store) *AuditRepository { return &AuditRepository{store: store} }

func NewTransitionStore(store *Store) *TransitionStore { return &TransitionStore{store: store} }

func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	if err := live(ctx, "PutAccount"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.accounts[account.ID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range r.store.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return domain.ErrConflict
		}
	}
	r.store.accounts[account.ID] = account
	return nil
}

func (r *AccountRepository) Update(ctx context.Context, account domain.Account) error {
	if err := live(ctx, "UpdateAccount"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.accounts[account.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store.accounts[account.ID] = account
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (domain.Account, error) {
	if err := live(ctx, "GetAccount"); err != nil {
		return domain.Account{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	account, ok := r.store.accounts[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	if err := live(ctx, "QueryAccountByEmail"); err != nil {
		return domain.Account{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, account := range r.store.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *AccountRepository) List(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	if err := live(ctx, "QueryAccounts"); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	accounts := make([]domain.Account, 0, len(r.store.accounts))
	for _, account := range r.store.accounts {
		if role == domain.RoleNone || account.Role == role {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *ServiceRepository) Create(ctx context.Context, svc domain.ServiceDefinition) error {
	if err := live(ctx, "PutService"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.services[svc.ID]; ok {
		return domain.ErrConflict
	}
	r.store.services[svc.ID] = svc
	return nil
}

func (r *ServiceRepository) Update(ctx context.Context, svc domain.ServiceDefinition) error {
	if err := live(ctx, "UpdateService"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.services[svc.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store.services[svc.ID] = svc
	return nil
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	if err := live(ctx, "DeleteService"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.services[serviceID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.store.services, serviceID)
	return nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, serviceID string) (domain.ServiceDefinition, error) {
	if err := live(ctx, "GetService"); err != nil {
		return domain.ServiceDefinition{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	svc, ok := r.store.services[serviceID]
	if !ok {
		return domain.ServiceDefinition{}, domain.ErrNotFound
	}
	return svc, nil
}

func (r *ServiceRepository) List(ctx context.Context) ([]domain.ServiceDefinition, error) {
	if err := live(ctx, "QueryServices"); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	services := make([]domain.ServiceDefinition, 0, len(r.store.services))
	for _, svc := range r.store.services {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Title < services[j].Title })
	return services, nil
}

func (r *ApplicationRepository) Create(ctx context.Context, app domain.Application) error {
	if err := live(ctx, "PutApplication"); err != nil {
		return err
	}
	if !app.Status.Valid() {
		return domain.Invalid("status", "is not a known status")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.apps[app.ID]; ok {
		return domain.ErrConflict
	}
	r.store.apps[app.ID] = copyApp(app)
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, appID string) (domain.Application, error) {
	if err := live(ctx, "GetApplication"); err != nil {
		return domain.Application{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	app, ok := r.store.apps[appID]
	if !ok {
		return domain.Application{}, domain.ErrNotFound
	}
	return copyApp(app), nil
}

func (r *ApplicationRepository) ListByOwner(ctx context.Context, userID string) ([]domain.Application, error) {
	if userID == "" {
		return []domain.Application{}, nil
	}
	return r.List(ctx, domain.ApplicationFilter{UserID: userID})
}

// List returns matching applications newest first, truncated to
// filter.Limit when it is set.
func (r *ApplicationRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	if err := live(ctx, "QueryApplications"); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	apps := make([]domain.Application, 0, len(r.store.apps))
	for _, app := range r.store.apps {
		if filter.Matches(app) {
			apps = append(apps, copyApp(app))
		}
	}
	r.store.mu.RUnlock()
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].SubmittedAt.Equal(apps[j].SubmittedAt) {
			return apps[i].ID < apps[j].ID
		}
		return apps[i].SubmittedAt.After(apps[j].SubmittedAt)
	})
	if filter.Limit > 0 && len(apps) > filter.Limit {
		apps = apps[:filter.Limit]
	}
	return apps, nil
}

func (r *AuditRepository) Append(ctx context.Context, event domain.StatusChangeEvent) (string, error) {
	if err := live(ctx, "PutStatusChangeEvent"); err != nil {
		return "", err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.appendLocked(event); err != nil {
		return "", err
	}
	return event.ID, nil
}

func (s *Store) appendLocked(event domain.StatusChangeEvent) error {
	if event.ID == "" || event.ApplicationID == "" {
		return domain.Invalid("event", "id and applicationId are required")
	}
	if _, dup := s.eventIDs[event.ID]; dup {
		return domain.ErrConflict
	}
	s.eventIDs[event.ID] = struct{}{}
	s.events[event.ApplicationID] = append(s.events[event.ApplicationID], event)
	return nil
}

// ListByApplication returns events in timestamp order, insertion order on ties.
func (r *AuditRepository) ListByApplication(ctx context.Context, appID string) ([]domain.StatusChangeEvent, error) {
	if err := live(ctx, "QueryStatusChangeEvents"); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	events := slices.Clone(r.store.events[appID])
	r.store.mu.RUnlock()
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	if events == nil {
		events = []domain.StatusChangeEvent{}
	}
	return events, nil
}

// CommitTransition compares the stored status with expected and, only if
// they match, writes the application and appends the event under one lock.
func (t *TransitionStore) CommitTransition(ctx context.Context, updated domain.Application, expected domain.Status, event domain.StatusChangeEvent) error {
	if err := live(ctx, "TransactTransition"); err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.apps[updated.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	if _, dup := s.eventIDs[event.ID]; dup {
		return domain.ErrConflict
	}
	if err := s.appendLocked(event); err != nil {
		return err
	}
	s.apps[updated.ID] = copyApp(updated)
	return nil
}
