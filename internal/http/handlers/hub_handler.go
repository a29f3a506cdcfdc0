// README: Hub and fare rate lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fareway/internal/modules/booking"
)

type HubHandler struct {
	booking *booking.Service
}

func NewHubHandler(svc *booking.Service) *HubHandler {
	return &HubHandler{booking: svc}
}

func (h *HubHandler) Get(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"hub":   h.booking.Hub(),
		"rates": h.booking.Rates(),
	})
}
