package patient

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
	"github.com/andrelfnavarro/cidi-api/pkg/cpf"
	"github.com/andrelfnavarro/cidi-api/pkg/pagination"
)

// ClinicResolver maps a public URL slug to its tenant.
type ClinicResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

type Handler struct {
	svc      *Service
	resolver ClinicResolver
}

func NewHandler(svc *Service, resolver ClinicResolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api, public *echo.Group) {
	public.POST("/clinics/:slug/patients/lookup", h.Lookup)
	public.POST("/clinics/:slug/patients", h.Register)

	api.GET("/patients", h.SearchPatients)
	api.GET("/patients/:id", h.GetPatient)
}

// resolveIntakeTenant maps the slug to a clinic open for self
// registration and scopes the request context to it. Closed and unknown
// clinics are indistinguishable from the outside.
func (h *Handler) resolveIntakeTenant(c echo.Context) (context.Context, error) {
	ctx := c.Request().Context()
	t, err := h.resolver.ResolveSlug(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve clinic")
	}
	if !t.Active || !t.AllowSelfRegistration {
		return nil, echo.NewHTTPError(http.StatusNotFound, "clinic not found")
	}
	return db.WithTenant(ctx, t.ID), nil
}

func (h *Handler) Lookup(c echo.Context) error {
	ctx, err := h.resolveIntakeTenant(c)
	if err != nil {
		return err
	}
	var in LookupInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Lookup(ctx, in.CPF)
	if err != nil {
		if errors.Is(err, cpf.ErrInvalidLength) || errors.Is(err, cpf.ErrInvalidDigits) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid CPF")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Register(c echo.Context) error {
	ctx, err := h.resolveIntakeTenant(c)
	if err != nil {
		return err
	}
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Register(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrCPFRegistered), errors.Is(err, ErrEmailRegistered):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, cpf.ErrInvalidLength), errors.Is(err, cpf.ErrInvalidDigits):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid CPF")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("query"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}
