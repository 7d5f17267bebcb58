package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/infrastructure/http/v1/dto"
)

// Tiles lists tracked tile records. ?state=visible narrows the list.
func (h *Handler) Tiles(c *gin.Context) {
	var filter *entity.State
	if name := c.Query("state"); name != "" {
		s, ok := entity.ParseState(name)
		if !ok {
			requestLogger(c).Warn("invalid state parameter", "state", name)
			h.RespondWithError(c, http.StatusBadRequest, ErrUnknownTileState)
			return
		}
		filter = &s
	}

	records, err := h.mapView.Tiles(c.Request.Context(), filter)
	if err != nil {
		h.respondWithUseCaseError(c, err)
		return
	}

	tiles := make([]dto.Tile, 0, len(records))
	for _, r := range records {
		tiles = append(tiles, dto.TileFromRecord(r))
	}

	h.RespondWithJSON(c, http.StatusOK, "tracked tiles", dto.TilesResponse{
		Count: len(tiles),
		Tiles: tiles,
	})
}
