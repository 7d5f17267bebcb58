package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/infrastructure/http/v1/dto"
)

// ClearCache empties the disk cache. Tiles that failed to download become
// eligible for another attempt.
func (h *Handler) ClearCache(c *gin.Context) {
	removed, err := h.mapView.ClearCache(c.Request.Context())
	if err != nil {
		h.respondWithUseCaseError(c, err)
		return
	}

	requestLogger(c).Info("tile cache cleared", "removed", removed)
	h.RespondWithJSON(c, http.StatusOK, "cache cleared", dto.ClearCacheResponse{Removed: removed})
}
