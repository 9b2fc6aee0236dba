package report

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinician := api.Group("", auth.RequireRole("DOCTOR", "HOD"))
	clinician.GET("/children/:child_id/pool-summaries", h.ListPoolSummaries)
	clinician.GET("/children/:child_id/pool-summaries/:pool_id", h.GetPoolSummary)
	clinician.GET("/children/:child_id/report", h.GetFinalReport)

	doctor := api.Group("", auth.RequireRole("DOCTOR"))
	doctor.POST("/children/:child_id/pool-summaries/:pool_id/regenerate", h.RegeneratePoolSummary)
	doctor.POST("/children/:child_id/report/regenerate", h.RegenerateFinalReport)
	doctor.POST("/reports/:id/review/doctor", h.MarkDoctorReviewed)

	hod := api.Group("", auth.RequireRole("HOD"))
	hod.POST("/reports/:id/review/hod", h.MarkHodReviewed)
}

func (h *Handler) ListPoolSummaries(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	items, err := h.svc.ListPoolSummaries(c.Request().Context(), childID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetPoolSummary(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	poolID, err := uuid.Parse(c.Param("pool_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pool id")
	}
	summary, err := h.svc.GetPoolSummary(c.Request().Context(), childID, poolID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "pool summary not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetFinalReport(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	role := auth.PrimaryRole(c.Request().Context())
	fr, err := h.svc.GetFinalReport(c.Request().Context(), childID, role)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		case errors.Is(err, ErrAccessDenied):
			return echo.NewHTTPError(http.StatusForbidden, "report not yet available for this role")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, fr)
}

func (h *Handler) RegeneratePoolSummary(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	poolID, err := uuid.Parse(c.Param("pool_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pool id")
	}
	summary, err := h.svc.RegeneratePoolSummary(c.Request().Context(), childID, poolID)
	if err != nil {
		return generationHTTPError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) RegenerateFinalReport(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	fr, err := h.svc.RegenerateFinalReport(c.Request().Context(), childID)
	if err != nil {
		return generationHTTPError(err)
	}
	return c.JSON(http.StatusOK, fr)
}

func generationHTTPError(err error) *echo.HTTPError {
	var genErr *GenerationError
	switch {
	case errors.Is(err, ErrNotYetComplete):
		return echo.NewHTTPError(http.StatusConflict, "assessment not yet complete")
	case errors.As(err, &genErr):
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed, retry later")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type reviewRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) MarkDoctorReviewed(c echo.Context) error {
	return h.review(c, h.svc.MarkDoctorReviewed)
}

func (h *Handler) MarkHodReviewed(c echo.Context) error {
	return h.review(c, h.svc.MarkHodReviewed)
}

func (h *Handler) review(c echo.Context, mark func(ctx context.Context, id uuid.UUID, reviewerID string, notes *string) (*FinalReport, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	fr, err := mark(ctx, id, auth.UserIDFromContext(ctx), req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		case errors.Is(err, ErrReviewSequence):
			return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, fr)
}
