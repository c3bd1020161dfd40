package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Mode string

const (
	ModeNone    Mode = "none"
	ModeAPIKey  Mode = "api_key"
	ModeCognito Mode = "cognito"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

func ParseAuthMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return ModeNone, nil
	case ModeNone, ModeAPIKey, ModeCognito:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid auth mode %q", raw)
	}
}

// AuthMiddleware puts the caller's identity on the echo context. In none and
// api_key modes it is read from the X-User-* headers set by a trusted
// gateway; in cognito mode the JWT middleware sets it from token claims.
func AuthMiddleware(mode Mode, apiKey string, cognito echo.MiddlewareFunc) (echo.MiddlewareFunc, error) {
	switch mode {
	case ModeNone:
	case ModeAPIKey:
		if apiKey == "" {
			return nil, errors.New("API_KEY is required when AUTH_MODE=api_key")
		}
	case ModeCognito:
		if cognito == nil {
			return nil, errors.New("cognito middleware is required when AUTH_MODE=cognito")
		}
	default:
		return nil, fmt.Errorf("invalid auth mode %q", mode)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch mode {
			case ModeNone:
				identityFromHeaders(c)
				return next(c)
			case ModeAPIKey:
				got := c.Request().Header.Get(HeaderAPIKey)
				if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				}
				identityFromHeaders(c)
				return next(c)
			default:
				return cognito(next)(c)
			}
		}
	}, nil
}

func identityFromHeaders(c echo.Context) {
	h := c.Request().Header
	if id := strings.TrimSpace(h.Get(HeaderUserID)); id != "" {
		c.Set(ContextUserID, id)
		c.Set(ContextUserName, strings.TrimSpace(h.Get(HeaderUserName)))
		c.Set(ContextUserEmail, strings.TrimSpace(h.Get(HeaderUserEmail)))
	}
}
