package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"citizen-portal/internal/adapters/http/middleware"
	"citizen-portal/internal/application"
	"citizen-portal/internal/domain"
)

type errorBody struct {
	Error   string   `json:"error"`
	Reason  string   `json:"reason,omitempty"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message,omitempty"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

// handleError maps each core error kind to exactly one status code.
func handleError(c echo.Context, err error) error {
	var (
		denied     *domain.PermissionDeniedError
		invalid    *domain.ValidationError
		transition *domain.InvalidTransitionError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.JSON(stdhttp.StatusUnauthorized, errorBody{Error: "authentication required"})
	case errors.As(err, &denied):
		return c.JSON(stdhttp.StatusForbidden, errorBody{Error: "access denied", Reason: string(denied.Reason)})
	case errors.Is(err, domain.ErrPermissionDenied):
		return c.JSON(stdhttp.StatusForbidden, errorBody{Error: "access denied"})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &invalid):
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid input", Field: invalid.Field, Message: invalid.Message})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid input"})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(stdhttp.StatusConflict, errorBody{Error: "conflicting update"})
	case errors.As(err, &transition):
		allowed := make([]string, 0, len(transition.Allowed))
		for _, s := range transition.Allowed {
			allowed = append(allowed, s.String())
		}
		return c.JSON(stdhttp.StatusUnprocessableEntity, errorBody{
			Error:   "invalid transition",
			From:    transition.From.String(),
			To:      transition.To.String(),
			Allowed: allowed,
		})
	case errors.Is(err, domain.ErrStorage):
		return c.JSON(stdhttp.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable"})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func invalidPayload(c echo.Context) error {
	return c.JSON(stdhttp.StatusBadRequest, errorBody{Error: "invalid payload"})
}

// actors resolves the caller's identity into an actor for every handler.
type actors struct {
	directory *application.Directory
}

func (a actors) resolve(c echo.Context) (domain.Actor, error) {
	identity := middleware.IdentityFrom(c)
	if identity.ID == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return a.directory.ResolveActor(c.Request().Context(), identity)
}

type AccountsHandler struct {
	actors
}

func NewAccountsHandler(directory *application.Directory) *AccountsHandler {
	return &AccountsHandler{actors: actors{directory: directory}}
}

type profileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *AccountsHandler) Register(c echo.Context) error {
	identity := middleware.IdentityFrom(c)
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if req.Name == "" {
		req.Name = identity.DisplayName
	}
	account, err := h.directory.Register(c.Request().Context(), identity, req.Name, req.Phone)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, account)
}

func (h *AccountsHandler) Me(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	account, err := h.directory.GetAccount(c.Request().Context(), actor, actor.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, account)
}

func (h *AccountsHandler) UpdateMe(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	account, err := h.directory.UpdateProfile(c.Request().Context(), actor, req.Name, req.Phone)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, account)
}

func (h *AccountsHandler) List(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	accounts, err := h.directory.ListAccounts(c.Request().Context(), actor, domain.Role(c.QueryParam("role")))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, accounts)
}

func (h *AccountsHandler) AssignRole(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	account, err := h.directory.AssignRole(c.Request().Context(), actor, c.Param("id"), domain.Role(req.Role))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, account)
}

func (h *AccountsHandler) AssignRoleByEmail(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	account, err := h.directory.AssignRoleByEmail(c.Request().Context(), actor, req.Email, domain.Role(req.Role))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, account)
}

type AuthorizationHandler struct {
	actors
	service *application.AuthorizationService
}

func NewAuthorizationHandler(directory *application.Directory, service *application.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{actors: actors{directory: directory}, service: service}
}

// Authorize answers isAllowed for the caller, or for another account when
// the caller may manage roles.
func (h *AuthorizationHandler) Authorize(c echo.Context) error {
	actor, err := h.resolve(c)
	if err != nil {
		return handleError(c, err)
	}
	var req struct {
		AccountID       string `json:"account_id"`
		Action          string `json:"action"`
		ResourceOwnerID string `json:"resource_owner_id"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if req.AccountID == "" {
		req.AccountID = actor.ID
	}
	if req.AccountID != actor.ID {
		if err := application.Authorize(actor, domain.ActionManageAccountRoles, ""); err != nil {
			return handleError(c, err)
		}
	}
	err = h.service.IsAllowed(c.Request().Context(), req.AccountID, domain.Action(req.Action), req.ResourceOwnerID)
	var denied *domain.PermissionDeniedError
	switch {
	case err == nil:
		return c.JSON(stdhttp.StatusOK, map[string]any{"allowed": true})
	case errors.As(err, &denied):
		return c.JSON(stdhttp.StatusOK, map[string]any{"allowed": false, "reason": string(denied.Reason)})
	default:
		return handleError(c, err)
	}
}
