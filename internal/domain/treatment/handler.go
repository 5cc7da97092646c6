package treatment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/andrelfnavarro/cidi-api/internal/platform/auth"
	"github.com/andrelfnavarro/cidi-api/internal/platform/blobstore"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
	"github.com/andrelfnavarro/cidi-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/treatments", h.OpenTreatment)
	api.GET("/patients/:id/treatments", h.ListTreatments)

	api.GET("/treatments/:id", h.GetTreatment)
	api.POST("/treatments/:id/finalize", h.FinalizeTreatment)
	api.PUT("/treatments/:id/anamnesis", h.SaveAnamnesis)
	api.PUT("/treatments/:id/items", h.SaveItems)
	api.PUT("/treatments/:id/payment", h.SavePayment)

	api.POST("/treatments/:id/files", h.UploadFile)
	api.GET("/treatments/:id/files", h.ListFiles)
	api.GET("/treatments/:id/files/:fileID/url", h.GetFileURL)
	api.DELETE("/treatments/:id/files/:fileID", h.DeleteFile)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func dentistID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return id, nil
}

func (h *Handler) OpenTreatment(c echo.Context) error {
	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	did, err := dentistID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Open(c.Request().Context(), patientID, did)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	treatments, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(treatments, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDetail(c.Request().Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) FinalizeTreatment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	did, err := dentistID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Finalize(c.Request().Context(), id, did)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case db.IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) SaveAnamnesis(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	did, err := dentistID(c)
	if err != nil {
		return err
	}
	var a Anamnesis
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	saved, err := h.svc.SaveAnamnesis(c.Request().Context(), id, did, &a)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) SaveItems(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	did, err := dentistID(c)
	if err != nil {
		return err
	}
	var in struct {
		Items []ItemInput `json:"items"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	saved, err := h.svc.SaveItems(c.Request().Context(), id, did, in.Items)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": saved})
}

func (h *Handler) SavePayment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SavePayment(c.Request().Context(), id, in)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadFile(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	did, err := dentistID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	if fh.Size > blobstore.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	f, err := h.svc.UploadFile(c.Request().Context(), id, did, fh.Filename, fh.Header.Get("Content-Type"), src)
	if err != nil {
		switch {
		case errors.Is(err, blobstore.ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, blobstore.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case db.IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "upload failed")
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ListFiles(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	files, err := h.svc.ListFiles(c.Request().Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, files)
}

func (h *Handler) GetFileURL(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fileID, err := pathID(c, "fileID")
	if err != nil {
		return err
	}
	url, err := h.svc.FileURL(c.Request().Context(), id, fileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) DeleteFile(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fileID, err := pathID(c, "fileID")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFile(c.Request().Context(), id, fileID); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
