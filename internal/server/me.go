package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/api"
)

func identityRoutes() []api.Route {
	return []api.Route{
		{Method: http.MethodGet, Path: "/me", Handler: me, Access: api.Authenticated},
	}
}

// me returns the currently authenticated account
func me(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc)
}
