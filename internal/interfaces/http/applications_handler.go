package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"citizen-portal/internal/application"
	"citizen-portal/internal/domain"
)

type ApplicationsHandler struct {
	actors
	apps   *application.ApplicationService
	engine *application.TransitionEngine
	audit  *application.AuditService
}

func NewApplicationsHandler(
	directory *application.Directory,
	apps *application.ApplicationService,
	engine *application.TransitionEngine,
	audit *application.AuditService,
) *ApplicationsHandler {
	return &ApplicationsHandler{actors: actors{directory: directory}, apps: apps, engine: engine, audit: audit}
}

func (h *ApplicationsHandler) Submit(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req struct {
		ServiceID   string            `json:"service_id"`
		Description string            `json:"description"`
		Documents   []domain.Document `json:"documents"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	app, err := h.apps.Submit(c.Request().Context(), actor, application.SubmitRequest{
		ServiceID:   req.ServiceID,
		Description: req.Description,
		Documents:   req.Documents,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, app)
}

func queryLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, domain.Invalid("limit", "must be a non-negative integer")
	}
	return limit, nil
}

// List serves personnel the whole store (optionally filtered by owner and
// status) and citizens their own applications.
func (h *ApplicationsHandler) List(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return handleError(c, err)
	}
	filter := domain.ApplicationFilter{UserID: c.QueryParam("owner"), Limit: limit}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return handleError(c, domain.Invalid("status", "is not a known status"))
		}
		filter.Status = status
	}
	ctx := c.Request().Context()
	if application.Authorize(actor, domain.ActionViewAnyApplication, "") == nil {
		apps, err := h.apps.ListAll(ctx, actor, filter)
		if err != nil {
			return handleError(c, err)
		}
		return c.JSON(stdhttp.StatusOK, apps)
	}
	owned, err := h.apps.ListForOwner(ctx, actor, filter.UserID)
	if err != nil {
		return handleError(c, err)
	}
	apps := make([]domain.Application, 0, len(owned))
	for _, app := range owned {
		if filter.Status == "" || app.Status == filter.Status {
			apps = append(apps, app)
		}
	}
	application.SortNewestFirst(apps)
	if limit > 0 && len(apps) > limit {
		apps = apps[:limit]
	}
	return c.JSON(stdhttp.StatusOK, apps)
}

func (h *ApplicationsHandler) Recent(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return handleError(c, err)
	}
	apps, err := h.apps.ListRecent(c.Request().Context(), actor, limit)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, apps)
}

func (h *ApplicationsHandler) Get(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	app, err := h.apps.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}

func (h *ApplicationsHandler) Transition(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req struct {
		ExpectedStatus string `json:"expected_status"`
		NewStatus      string `json:"new_status"`
		Remarks        string `json:"remarks"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	app, err := h.engine.Transition(c.Request().Context(), actor, application.TransitionRequest{
		ApplicationID:  c.Param("id"),
		ExpectedStatus: domain.Status(req.ExpectedStatus),
		NewStatus:      domain.Status(req.NewStatus),
		Remarks:        req.Remarks,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}

func (h *ApplicationsHandler) History(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	history, err := h.audit.History(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, history)
}

type ServicesHandler struct {
	actors
	catalog *application.CatalogService
}

func NewServicesHandler(directory *application.Directory, catalog *application.CatalogService) *ServicesHandler {
	return &ServicesHandler{actors: actors{directory: directory}, catalog: catalog}
}

type serviceRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Requirements   string `json:"requirements"`
	ProcessingTime string `json:"processing_time"`
	Fee            string `json:"fee"`
}

func (r serviceRequest) definition(id string) (domain.ServiceDefinition, error) {
	fee, err := application.ParseFee(r.Fee)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	return domain.ServiceDefinition{
		ID:             id,
		Title:          r.Title,
		Description:    r.Description,
		Requirements:   r.Requirements,
		ProcessingTime: r.ProcessingTime,
		Fee:            fee,
	}, nil
}

func (h *ServicesHandler) Create(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	def, err := req.definition("")
	if err != nil {
		return handleError(c, err)
	}
	created, err := h.catalog.Create(c.Request().Context(), actor, def)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, created)
}

func (h *ServicesHandler) Update(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	def, err := req.definition(c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	updated, err := h.catalog.Update(c.Request().Context(), actor, def)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, updated)
}

func (h *ServicesHandler) Delete(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := h.catalog.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

// Get and List are open to any authenticated caller, registered or not.
func (h *ServicesHandler) Get(c echo.Context) error {
	if _, err := h.resolve(c); err != nil {
		return handleError(c, err)
	}
	svc, err := h.catalog.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, svc)
}

func (h *ServicesHandler) List(c echo.Context) error {
	if _, err := h.resolve(c); err != nil {
		return handleError(c, err)
	}
	services, err := h.catalog.List(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, services)
}

type StatsHandler struct {
	actors
	stats *application.StatsAggregator
}

func NewStatsHandler(directory *application.Directory, stats *application.StatsAggregator) *StatsHandler {
	return &StatsHandler{actors: actors{directory: directory}, stats: stats}
}

func (h *StatsHandler) Stats(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	stats, err := h.stats.ForActor(c.Request().Context(), actor)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, stats)
}

func (h *StatsHandler) Overview(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	overview, err := h.stats.Overview(c.Request().Context(), actor)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, overview)
}
