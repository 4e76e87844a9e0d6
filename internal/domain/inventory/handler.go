package inventory

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/domain/catalog"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/inventory/receive", h.ReceiveStock)
	api.GET("/inventory", h.GetSnapshot)
	api.GET("/inventory/availability", h.CheckAvailability)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, catalog.ErrDrugNotFound), errors.Is(err, catalog.ErrPackageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrPackageCycle):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrStockRace):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) ReceiveStock(c echo.Context) error {
	var req ReceiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.Receive(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	filter := ParseStockStatus(c.QueryParam("status"))
	snapshot, err := h.svc.Snapshot(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if snapshot == nil {
		snapshot = []*DrugStock{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": snapshot})
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	drugID, err := uuid.Parse(c.QueryParam("drug_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid drug_id")
	}
	packageID, err := uuid.Parse(c.QueryParam("package_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid package_id")
	}
	required, err := decimal.NewFromString(c.QueryParam("required"))
	if err != nil || !required.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "required must be a positive number")
	}

	available, err := h.svc.Available(c.Request().Context(), drugID, packageID, required)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"drug_id":    drugID,
		"package_id": packageID,
		"required":   required,
		"available":  available,
	})
}
