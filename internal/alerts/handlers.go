package alerts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/api"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() []api.Route {
	return []api.Route{
		{Method: http.MethodGet, Path: "/notifications", Handler: h.ListNotifications, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/notifications/:id/read", Handler: h.MarkNotificationRead, Access: api.Authenticated},
	}
}

// ListNotifications returns current user's notifications, newest first
func (h *Handler) ListNotifications(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	limit, offset := api.Page(c)
	items, err := h.store.List(c.Request().Context(), acc.ID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

func (h *Handler) MarkNotificationRead(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	if err := h.store.MarkRead(c.Request().Context(), acc.ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
