package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate *validator.Validate
	mapView  *usecase.MapViewUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.MapViewUseCase) *Handler {
	return &Handler{
		validate: v,
		mapView:  uc,
	}
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	c.JSON(code, response{
		Success: success,
		Message: message,
		Data:    data,
	})
}

func (h *Handler) RespondWithError(c *gin.Context, code int, err error) {
	h.RespondWithJSON(c, code, err.Error(), nil)
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context, err error) {
	requestLogger(c).Error("internal http_server error",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"user_agent", c.Request.UserAgent(),
		"ip", c.ClientIP(),
		"error", err,
	)
	_ = c.Error(err)

	h.RespondWithError(c, http.StatusInternalServerError, InternalServerError)
}

// respondWithUseCaseError maps errors coming back from the map view loop.
func (h *Handler) respondWithUseCaseError(c *gin.Context, err error) {
	if errors.Is(err, usecase.ErrStopped) {
		h.RespondWithError(c, http.StatusServiceUnavailable, ErrEngineStopped)
		return
	}
	h.RespondWithInternalServerError(c, err)
}

func requestLogger(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if l, ok := l.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
