package tenant

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andrelfnavarro/cidi-api/internal/platform/auth"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api, public *echo.Group) {
	public.GET("/clinics/:slug", h.GetClinicCard)

	api.GET("/tenant", h.GetTenant)
	api.PUT("/tenant", h.UpdateTenant, auth.RequireAdmin())
}

// GetClinicCard serves the public clinic card behind an intake URL.
func (h *Handler) GetClinicCard(c echo.Context) error {
	t, err := h.svc.ResolveSlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve clinic")
	}
	if !t.Active {
		return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
	}
	return c.JSON(http.StatusOK, t.PublicCard())
}

func (h *Handler) GetTenant(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.svc.GetByID(ctx, db.TenantFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tenant not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTenant(c echo.Context) error {
	var in SettingsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	t, err := h.svc.UpdateSettings(ctx, db.TenantFromContext(ctx), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}
