package messaging

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/api"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() []api.Route {
	return []api.Route{
		{Method: http.MethodPost, Path: "/messages", Handler: h.SendMessage, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/messages", Handler: h.ListMessages, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/messages/unread-count", Handler: h.UnreadCount, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/messages/:id/read", Handler: h.MarkMessageRead, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/postings/:id/messages", Handler: h.ListListingMessages, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/ws/messages/:listing_id", Handler: h.ListingSocket, Access: api.Socket},
		{Method: http.MethodGet, Path: "/ws/notifications", Handler: h.NotificationSocket, Access: api.Socket},
	}
}

// SendMessage stores a message on a listing thread and fans it out.
func (h *Handler) SendMessage(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	var in SendInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	m, err := h.svc.Send(c.Request().Context(), acc, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMessages returns the caller's inbox and sent messages, newest first.
func (h *Handler) ListMessages(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	limit, offset := api.Page(c)
	msgs, err := h.svc.ListForAccount(c.Request().Context(), acc, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// ListListingMessages returns a listing's thread in creation order.
func (h *Handler) ListListingMessages(c echo.Context) error {
	limit, offset := api.Page(c)
	msgs, err := h.svc.ListForListing(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	count, err := h.svc.UnreadCount(c.Request().Context(), acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkMessageRead - recipient marks a specific message as read
func (h *Handler) MarkMessageRead(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	m, err := h.svc.MarkRead(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
