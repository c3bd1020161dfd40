package application

import (
	"context"
	"errors"

	"citizen-portal/internal/domain"
)

// Authorize is the permission matrix. It is pure: the actor's role must
// already be resolved. resourceOwnerID only matters for owner-scoped actions.
func Authorize(actor domain.Actor, action domain.Action, resourceOwnerID string) error {
	if actor.ID == "" {
		return domain.ErrUnauthenticated
	}
	if !actor.Role.Valid() {
		return domain.Deny(domain.ReasonNoRoleAssigned)
	}
	switch action {
	case domain.ActionViewOwnApplication:
		if actor.Role.Personnel() {
			return nil
		}
		if resourceOwnerID != actor.ID {
			return domain.Deny(domain.ReasonNotOwner)
		}
		return nil
	case domain.ActionViewAnyApplication, domain.ActionTransitionStatus:
		if actor.Role.Personnel() {
			return nil
		}
	case domain.ActionSubmitApplication:
		if actor.Role == domain.RoleCitizen {
			return nil
		}
	case domain.ActionManageServices, domain.ActionViewPortalOverview:
		if actor.Role == domain.RoleOfficer || actor.Role == domain.RoleAdmin {
			return nil
		}
	case domain.ActionManageAccountRoles:
		if actor.Role == domain.RoleAdmin {
			return nil
		}
	}
	return domain.Deny(domain.ReasonInsufficientRole)
}

type AuthorizationService struct {
	directory *Directory
}

func NewAuthorizationService(directory *Directory) *AuthorizationService {
	return &AuthorizationService{directory: directory}
}

// IsAllowed resolves the account's role and evaluates the matrix. A nil
// error means permit; denials come back as *domain.PermissionDeniedError.
func (s *AuthorizationService) IsAllowed(ctx context.Context, accountID string, action domain.Action, resourceOwnerID string) error {
	if accountID == "" {
		return domain.ErrUnauthenticated
	}
	if action == "" {
		return domain.Invalid("action", "is required")
	}
	role, err := s.directory.ResolveRole(ctx, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return Authorize(domain.Actor{ID: accountID, Role: role}, action, resourceOwnerID)
}
