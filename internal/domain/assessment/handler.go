package assessment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/auth"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/genai"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("DOCTOR", "HOD", "PARENT"))
	group.POST("/responses", h.StartResponse)
	group.GET("/responses/:id", h.GetResponse)
	group.GET("/responses/:id/answers", h.ListAnswers)
	group.POST("/responses/:id/conversation", h.SubmitConversation)
	group.GET("/children/:child_id/responses", h.ListResponses)
	group.GET("/children/:child_id/progress", h.Progress)

	clinician := api.Group("", auth.RequireRole("DOCTOR", "HOD"))
	clinician.POST("/responses/:id/answers", h.RecordAnswer)
}

type startRequest struct {
	ChildID   uuid.UUID `json:"child_id"`
	SectionID uuid.UUID `json:"section_id"`
	Language  string    `json:"language"`
}

func (h *Handler) StartResponse(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.StartResponse(c.Request().Context(), req.ChildID, req.SectionID, req.Language)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetResponse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	resp, err := h.svc.GetResponse(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "response not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListResponses(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	items, err := h.svc.ListResponses(c.Request().Context(), childID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListAnswers(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListAnswers(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "response not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

type recordAnswerRequest struct {
	QuestionID       uuid.UUID `json:"question_id"`
	RawAnswer        string    `json:"raw_answer"`
	TranslatedAnswer *string   `json:"translated_answer"`
	AnswerBucket     string    `json:"answer_bucket"`
	Score            int       `json:"score"`
}

func (h *Handler) RecordAnswer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req recordAnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.RecordAnswer(c.Request().Context(), id, req.QuestionID,
		req.RawAnswer, req.TranslatedAnswer, req.AnswerBucket, req.Score)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "response not found")
		case errors.Is(err, ErrSessionCompleted):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrDuplicateAnswer):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, resp)
}

type submitRequest struct {
	Conversation json.RawMessage `json:"conversation"`
}

func (h *Handler) SubmitConversation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Conversation) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation is required")
	}
	result, err := h.svc.SubmitConversation(c.Request().Context(), id, req.Conversation)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "response not found")
		case errors.Is(err, ErrSessionCompleted):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, genai.ErrMalformedOutput), errors.Is(err, genai.ErrUnavailable):
			return echo.NewHTTPError(http.StatusBadGateway, "answer extraction failed, response parked for retry")
		default:
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Progress(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	progress, err := h.svc.Progress(c.Request().Context(), childID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, progress)
}
