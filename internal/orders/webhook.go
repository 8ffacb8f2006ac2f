package orders

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/payments"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

// PaymentWebhook acknowledges every correctly signed event. Events that refer
// to unknown orders or stale references are logged and dropped so the
// provider stops retrying; only internal failures ask for a retry.
func (h *Handler) PaymentWebhook(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperr.Validation("webhook body too large", err)
	}
	evt, err := h.svc.gateway.ParseWebhook(payload, c.Request().Header.Get(signatureHeader))
	if err != nil {
		logger.Warn("rejected payment webhook: %v", err)
		return err
	}

	if err := h.svc.HandleEvent(c.Request().Context(), evt); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// HandleEvent applies a verified provider event.
func (s *Service) HandleEvent(ctx context.Context, evt payments.Event) error {
	if evt.Reference == "" || evt.Outcome == payments.OutcomePending {
		logger.Debug("ignoring payment event %s (%s)", evt.ID, evt.Type)
		return nil
	}

	c := Confirmation{OrderID: evt.OrderID, Reference: evt.Reference}
	var err error
	if evt.Outcome == payments.OutcomeSucceeded {
		_, err = s.ConfirmPayment(ctx, c)
	} else {
		_, err = s.FailPayment(ctx, c)
	}

	switch {
	case err == nil:
		logger.Info("payment event %s applied (%s, ref %s)", evt.ID, evt.Type, evt.Reference)
		return nil
	case apperr.Is(err, apperr.CodeNotFound),
		apperr.Is(err, apperr.CodePaymentIntentMismatch),
		apperr.Is(err, apperr.CodeInvalidTransition):
		logger.Warn("payment event %s dropped: %v", evt.ID, err)
		return nil
	default:
		return err
	}
}
