package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Healthz(c *gin.Context) {
	if !h.mapView.Running() {
		c.String(http.StatusServiceUnavailable, "STOPPED")
		return
	}
	c.String(http.StatusOK, "OK")
}
