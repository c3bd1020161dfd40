package domain

import "fmt"

type Role string

const (
	RoleNone    Role = ""
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleCitizen, RoleStaff, RoleOfficer, RoleAdmin}

func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleCitizen, RoleStaff, RoleOfficer, RoleAdmin:
		return r, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", raw)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Personnel roles see every application.
func (r Role) Personnel() bool {
	return r == RoleStaff || r == RoleOfficer || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

type Action string

const (
	ActionViewOwnApplication Action = "application:view_own"
	ActionViewAnyApplication Action = "application:view_any"
	ActionSubmitApplication  Action = "application:submit"
	ActionTransitionStatus   Action = "application:transition"
	ActionManageServices     Action = "service:manage"
	ActionManageAccountRoles Action = "account:manage_roles"
	ActionViewPortalOverview Action = "stats:overview"
)

// Identity is what the external identity provider vouches for.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Actor is an identity with its role resolved by the Role Directory.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

func (a Actor) Ref() ActorRef {
	return ActorRef{ID: a.ID, Name: a.DisplayName}
}
