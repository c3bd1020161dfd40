package middleware

import (
	"github.com/labstack/echo/v4"

	"citizen-portal/internal/domain"
)

// Echo context keys shared with the Cognito middleware.
const (
	ContextUserID    = "user_id"
	ContextUserName  = "user_name"
	ContextUserEmail = "user_email"
)

// IdentityFrom returns the authenticated identity, or the zero value when
// the request carried none.
func IdentityFrom(c echo.Context) domain.Identity {
	get := func(key string) string {
		v, _ := c.Get(key).(string)
		return v
	}
	return domain.Identity{
		ID:          get(ContextUserID),
		DisplayName: get(ContextUserName),
		Email:       get(ContextUserEmail),
	}
}
