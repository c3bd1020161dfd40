package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"citizen-portal/internal/domain"
	"citizen-portal/internal/ports"
)

// Directory is the Role Directory plus the account operations around it.
type Directory struct {
	repo   ports.AccountRepository
	logger ports.Logger
	now    func() time.Time
}

func NewDirectory(repo ports.AccountRepository, logger ports.Logger) *Directory {
	return &Directory{repo: repo, logger: logger, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

func (d *Directory) ResolveRole(ctx context.Context, accountID string) (domain.Role, error) {
	if accountID == "" {
		return domain.RoleNone, domain.Invalid("accountId", "is required")
	}
	account, err := d.repo.GetByID(ctx, accountID)
	if err != nil {
		return domain.RoleNone, err
	}
	return account.Role, nil
}

// ResolveActor turns a provider identity into an actor. Identities without
// an account resolve with no role, so every protected action is denied.
func (d *Directory) ResolveActor(ctx context.Context, identity domain.Identity) (domain.Actor, error) {
	if identity.ID == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	actor := domain.Actor{ID: identity.ID, DisplayName: identity.DisplayName, Email: identity.Email}
	account, err := d.repo.GetByID(ctx, identity.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return actor, nil
	case err != nil:
		return domain.Actor{}, err
	}
	actor.Role = account.Role
	if actor.DisplayName == "" {
		actor.DisplayName = account.Name
	}
	if actor.Email == "" {
		actor.Email = account.Email
	}
	return actor, nil
}

// Register creates the caller's own account as a Citizen.
func (d *Directory) Register(ctx context.Context, identity domain.Identity, name, phone string) (domain.Account, error) {
	if identity.ID == "" {
		return domain.Account{}, domain.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, domain.Invalid("name", "is required")
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return domain.Account{}, domain.Invalid("email", "is required")
	}
	now := d.now()
	account := domain.Account{
		ID:        identity.ID,
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(phone),
		Role:      domain.RoleCitizen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.repo.Create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	d.logger.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

func (d *Directory) GetAccount(ctx context.Context, actor domain.Actor, accountID string) (domain.Account, error) {
	if accountID == "" {
		return domain.Account{}, domain.Invalid("accountId", "is required")
	}
	if actor.ID == "" {
		return domain.Account{}, domain.ErrUnauthenticated
	}
	if actor.ID != accountID {
		if err := Authorize(actor, domain.ActionManageAccountRoles, ""); err != nil {
			return domain.Account{}, err
		}
	}
	return d.repo.GetByID(ctx, accountID)
}

// UpdateProfile lets holders change name and phone. Role is never touched.
func (d *Directory) UpdateProfile(ctx context.Context, actor domain.Actor, name, phone string) (domain.Account, error) {
	if actor.ID == "" {
		return domain.Account{}, domain.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, domain.Invalid("name", "is required")
	}
	account, err := d.repo.GetByID(ctx, actor.ID)
	if err != nil {
		return domain.Account{}, err
	}
	account.Name = name
	account.Phone = strings.TrimSpace(phone)
	account.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (d *Directory) AssignRole(ctx context.Context, actor domain.Actor, accountID string, role domain.Role) (domain.Account, error) {
	if err := Authorize(actor, domain.ActionManageAccountRoles, ""); err != nil {
		return domain.Account{}, err
	}
	if accountID == "" {
		return domain.Account{}, domain.Invalid("accountId", "is required")
	}
	if !role.Valid() {
		return domain.Account{}, domain.Invalid("role", "must be one of citizen, staff, officer, admin")
	}
	account, err := d.repo.GetByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	return d.applyRole(ctx, actor, account, role)
}

func (d *Directory) AssignRoleByEmail(ctx context.Context, actor domain.Actor, email string, role domain.Role) (domain.Account, error) {
	if err := Authorize(actor, domain.ActionManageAccountRoles, ""); err != nil {
		return domain.Account{}, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.Invalid("email", "is required")
	}
	if !role.Valid() {
		return domain.Account{}, domain.Invalid("role", "must be one of citizen, staff, officer, admin")
	}
	account, err := d.repo.GetByEmail(ctx, email)
	if err != nil {
		return domain.Account{}, err
	}
	return d.applyRole(ctx, actor, account, role)
}

// Admin accounts are locked: applyRole refuses them, the caller's own included.
func (d *Directory) applyRole(ctx context.Context, actor domain.Actor, account domain.Account, role domain.Role) (domain.Account, error) {
	if account.Role == domain.RoleAdmin {
		d.logger.Warn(ctx, "role change on admin account refused", "account_id", account.ID, "requested_by", actor.ID)
		return domain.Account{}, domain.Deny(domain.ReasonInsufficientRole)
	}
	previous := account.Role
	account.Role = role
	account.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, account); err != nil {
		return domain.Account{}, err
	}
	d.logger.Info(ctx, "account role assigned",
		"account_id", account.ID,
		"old_role", previous.String(),
		"new_role", role.String(),
		"assigned_by", actor.ID,
	)
	return account, nil
}

func (d *Directory) ListAccounts(ctx context.Context, actor domain.Actor, role domain.Role) ([]domain.Account, error) {
	if err := Authorize(actor, domain.ActionManageAccountRoles, ""); err != nil {
		return nil, err
	}
	if role != domain.RoleNone && !role.Valid() {
		return nil, domain.Invalid("role", "must be one of citizen, staff, officer, admin")
	}
	return d.repo.List(ctx, role)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
