package clinical

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/auth"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("DOCTOR", "HOD", "PARENT"))
	group.POST("/children", h.CreateChild)
	group.GET("/children", h.ListChildren)
	group.GET("/children/:id", h.GetChild)
	group.PUT("/children/:id", h.UpdateChild)
}

func (h *Handler) CreateChild(c echo.Context) error {
	var child Child
	if err := c.Bind(&child); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateChild(c.Request().Context(), &child); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, child)
}

func (h *Handler) GetChild(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	child, err := h.svc.GetChild(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "child not found")
	}
	return c.JSON(http.StatusOK, child)
}

func (h *Handler) ListChildren(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListChildren(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateChild(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var child Child
	if err := c.Bind(&child); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	child.ID = id
	if err := h.svc.UpdateChild(c.Request().Context(), &child); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, child)
}
