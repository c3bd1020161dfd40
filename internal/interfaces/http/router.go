package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
}

type Handlers struct {
	Accounts      *AccountsHandler
	Authorization *AuthorizationHandler
	Services      *ServicesHandler
	Applications  *ApplicationsHandler
	Stats         *StatsHandler
	// Metrics is mounted at /metrics when non-nil.
	Metrics stdhttp.Handler
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	if m.XRay != nil {
		e.Use(m.XRay)
	}
	if m.RequestLogger != nil {
		e.Use(m.RequestLogger)
	}
	return e
}

// NewMainRouter mounts the health and metrics endpoints outside the auth
// middleware and every portal route behind it.
func NewMainRouter(h Handlers, m Middleware) *echo.Echo {
	e := newEcho(m)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	var api *echo.Group
	if m.Auth != nil {
		api = e.Group("", m.Auth)
	} else {
		api = e.Group("")
	}

	api.POST("/accounts", h.Accounts.Register)
	api.GET("/accounts", h.Accounts.List)
	api.GET("/accounts/me", h.Accounts.Me)
	api.PATCH("/accounts/me", h.Accounts.UpdateMe)
	api.PUT("/accounts/:id/role", h.Accounts.AssignRole)
	api.POST("/accounts/role-assignments", h.Accounts.AssignRoleByEmail)
	api.POST("/authorize", h.Authorization.Authorize)

	api.GET("/services", h.Services.List)
	api.POST("/services", h.Services.Create)
	api.GET("/services/:id", h.Services.Get)
	api.PUT("/services/:id", h.Services.Update)
	api.DELETE("/services/:id", h.Services.Delete)

	api.POST("/applications", h.Applications.Submit)
	api.GET("/applications", h.Applications.List)
	api.GET("/applications/recent", h.Applications.Recent)
	api.GET("/applications/:id", h.Applications.Get)
	api.POST("/applications/:id/transitions", h.Applications.Transition)
	api.GET("/applications/:id/history", h.Applications.History)

	api.GET("/stats", h.Stats.Stats)
	api.GET("/stats/overview", h.Stats.Overview)
	return e
}
