package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/infrastructure/http/v1/dto"
)

func (h *Handler) Camera(c *gin.Context) {
	cam, err := h.mapView.Camera(c.Request.Context())
	if err != nil {
		h.respondWithUseCaseError(c, err)
		return
	}
	h.RespondWithJSON(c, http.StatusOK, "camera", dto.CameraFromEntity(cam))
}

func (h *Handler) SetCamera(c *gin.Context) {
	l := requestLogger(c)

	var req dto.Camera
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn("failed to decode camera", "error", err)
		h.RespondWithError(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		l.Warn("invalid camera", "error", err)
		h.RespondWithError(c, http.StatusUnprocessableEntity, err)
		return
	}

	if err := h.mapView.SetCamera(c.Request.Context(), req.ToEntity()); err != nil {
		h.respondWithUseCaseError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "camera updated", req)
}
