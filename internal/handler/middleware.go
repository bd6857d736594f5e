package handler

import (
	"net/http"

	"github.com/haatos/simple-cd/internal"
	"github.com/labstack/echo/v4"
)

// APIKeyAuth rejects requests that do not carry a known API key in the
// X-SimpleCD-API-Key header.
func APIKeyAuth(apiKeyService APIKeyServicer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(internal.APIKeyHeader)
			if value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
			}
			if _, err := apiKeyService.GetAPIKeyByValue(
				c.Request().Context(), value,
			); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}
