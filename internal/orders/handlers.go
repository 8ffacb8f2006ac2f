package orders

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
		{Method: http.MethodPost, Path: "/orders", Handler: h.CreateOrder, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/orders", Handler: h.ListOrders, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/orders/sales", Handler: h.ListSales, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/orders/:id", Handler: h.GetOrder, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/orders/:id/payment-intent", Handler: h.CreatePaymentIntent, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/orders/:id/checkout-session", Handler: h.CreateCheckoutSession, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/orders/:id/verify-payment", Handler: h.VerifyPayment, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/orders/:id/cancel", Handler: h.CancelOrder, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/postings/:id/orders", Handler: h.ListListingOrders, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/webhooks/payments", Handler: h.PaymentWebhook, Access: api.Public},
	}
}

func (h *Handler) CreateOrder(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	o, err := h.svc.Create(c.Request().Context(), acc, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	limit, offset := api.Page(c)
	out, err := h.svc.ListForBuyer(c.Request().Context(), acc, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListSales(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	limit, offset := api.Page(c)
	out, err := h.svc.ListSales(c.Request().Context(), acc, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListListingOrders(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	limit, offset := api.Page(c)
	out, err := h.svc.ListForListing(c.Request().Context(), acc, c.Param("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetOrder(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	o, err := h.svc.Get(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CreatePaymentIntent(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	o, err := h.svc.AttachPaymentIntent(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CreateCheckoutSession(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	o, err := h.svc.AttachCheckoutSession(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) VerifyPayment(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	o, err := h.svc.VerifyPayment(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	o, err := h.svc.Cancel(c.Request().Context(), acc, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
