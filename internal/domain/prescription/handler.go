package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pis/pis/internal/domain/catalog"
	"github.com/pis/pis/internal/domain/inventory"
	"github.com/pis/pis/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.CreatePrescription)
	api.GET("/prescriptions", h.ListPrescriptions)
	api.GET("/prescriptions/counts", h.GetCounts)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.POST("/prescriptions/:id/dispense", h.DispensePrescription)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalog.ErrDrugNotFound),
		errors.Is(err, catalog.ErrPackageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyDispensed),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrStockRace):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrPackageCycle):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) DispensePrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	if err := h.svc.Dispense(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": StatusOngoing,
	})
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	params := pagination.FromContext(c)
	status := ParseStatus(c.QueryParam("status"))

	views, err := h.svc.ListByStatus(c.Request().Context(), status, params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	if views == nil {
		views = []*View{}
	}

	counts, err := h.svc.Counts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total := int(counts.Prescribed + counts.Ongoing + counts.Completed)
	if status != nil {
		switch *status {
		case StatusPrescribed:
			total = int(counts.Prescribed)
		case StatusOngoing:
			total = int(counts.Ongoing)
		case StatusCompleted:
			total = int(counts.Completed)
		}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, params.Limit, params.Offset))
}

func (h *Handler) GetCounts(c echo.Context) error {
	counts, err := h.svc.Counts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}
