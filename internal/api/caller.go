package api

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/middleware"
)

// Caller returns the authenticated account or UNAUTHORIZED.
func Caller(c echo.Context) (identity.Account, error) {
	acc, ok := middleware.AccountFrom(c)
	if !ok || acc.ID == "" {
		return identity.Account{}, apperr.Unauthorized("unauthorized", nil)
	}
	return acc, nil
}
