package handler

import (
	"errors"
	"net/http"

	"gamebook-server/internal/engine"
	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"
	"gamebook-server/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// GameLoopHandler обрабатывает HTTP запросы игрового цикла.
type GameLoopHandler struct {
	service service.GameLoopService
	logger  *zap.Logger
}

func NewGameLoopHandler(svc service.GameLoopService, logger *zap.Logger) *GameLoopHandler {
	return &GameLoopHandler{
		service: svc,
		logger:  logger.Named("GameLoopHandler"),
	}
}

// RegisterRoutes регистрирует маршруты игрового цикла.
func (h *GameLoopHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(narration.Registry, promhttp.HandlerOpts{})))

	storiesGroup := e.Group("/stories")
	{
		storiesGroup.POST("/:slug/session", h.startSession)
		storiesGroup.POST("/:slug/view", h.getView)
		storiesGroup.POST("/:slug/advance", h.advance)
	}

	internalGroup := e.Group("/internal")
	{
		internalGroup.POST("/narration/pregenerate", h.pregenerate)
	}
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	var validationErr *engine.GraphValidationError

	switch {
	case errors.Is(err, models.ErrStoryNotFound), errors.Is(err, models.ErrNodeNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrInvalidChoice),
		errors.Is(err, models.ErrNoSkillCheck),
		errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrEmptyText):
		statusCode = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrProviderUnavailable):
		statusCode = http.StatusServiceUnavailable
		apiErr = APIError{Message: "narration provider is unavailable"}
	case errors.As(err, &validationErr):
		// Авторская ошибка данных, а не запроса читателя, но и не сбой сервера.
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}

func (h *GameLoopHandler) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GameLoopHandler) startSession(c echo.Context) error {
	slug := c.Param("slug")
	session, view, err := h.service.StartSession(c.Request().Context(), slug)
	if err != nil {
		h.logger.Warn("Failed to start session", zap.String("slug", slug), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, startSessionResponse{Session: session, View: view})
}

func (h *GameLoopHandler) getView(c echo.Context) error {
	slug := c.Param("slug")
	var req viewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	view, err := h.service.GetNodeView(c.Request().Context(), slug, req.Session)
	if err != nil {
		h.logger.Warn("Failed to build node view", zap.String("slug", slug), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *GameLoopHandler) advance(c echo.Context) error {
	slug := c.Param("slug")
	var req advanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	result, err := h.service.Advance(c.Request().Context(), slug, req.Session, req.Action)
	if err != nil {
		h.logger.Warn("Advance failed",
			zap.String("slug", slug),
			zap.String("node", req.Session.CurrentNodeKey),
			zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *GameLoopHandler) pregenerate(c echo.Context) error {
	var req pregenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	if req.StorySlug == "" || req.NodeKey == "" {
		return c.JSON(http.StatusBadRequest, APIError{Message: "story_slug and node_key are required"})
	}
	taskID, err := h.service.RequestPregeneration(c.Request().Context(), req.StorySlug, req.NodeKey, req.Kinds)
	if err != nil {
		h.logger.Warn("Failed to queue pregeneration",
			zap.String("slug", req.StorySlug),
			zap.String("node", req.NodeKey),
			zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, pregenerateResponse{TaskID: taskID.String()})
}
