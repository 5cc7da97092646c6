package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/andrelfnavarro/cidi-api/internal/platform/auth"
	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

type Handler struct {
	svc           *Service
	webhookSecret string
	logger        zerolog.Logger
}

func NewHandler(svc *Service, webhookSecret string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, logger: logger}
}

func (h *Handler) RegisterRoutes(api, public, webhooks *echo.Group) {
	public.POST("/signup/checkout", h.CreateCheckout)
	public.POST("/signup/complete", h.CompleteCheckout)

	webhooks.POST("/payment", h.Webhook)

	billing := api.Group("/billing", auth.RequireAdmin())
	billing.GET("/subscription", h.GetSubscription)
	billing.POST("/portal", h.CreatePortal)
}

func (h *Handler) CreateCheckout(c echo.Context) error {
	var in CheckoutInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.CreateCheckout(c.Request().Context(), in)
	if err != nil {
		var apiErr *payment.APIError
		if errors.As(err, &apiErr) {
			h.logger.Error().Err(err).Msg("checkout session creation failed")
			return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) CompleteCheckout(c echo.Context) error {
	var in CompleteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.CompleteCheckout(c.Request().Context(), in.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotPaid) {
			return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
		}
		if in.SessionID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Str("session", in.SessionID).Msg("checkout materialization failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "signup could not be completed")
	}
	return c.JSON(http.StatusCreated, result)
}

// Webhook verifies the signature over the raw body before anything is
// parsed or processed. Bad signature means 400 and nothing happened.
func (h *Handler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	event, err := payment.ConstructEvent(payload, c.Request().Header.Get(payment.SignatureHeader), h.webhookSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	if err := h.svc.HandleEvent(c.Request().Context(), event); err != nil {
		h.logger.Error().Err(err).Str("event", event.ID).Str("type", event.Type).
			Msg("webhook processing failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "event processing failed")
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) GetSubscription(c echo.Context) error {
	sub, err := h.svc.CurrentSubscription(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) CreatePortal(c echo.Context) error {
	url, err := h.svc.PortalURL(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		h.logger.Error().Err(err).Msg("portal session creation failed")
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}
