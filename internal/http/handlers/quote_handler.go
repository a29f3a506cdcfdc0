// README: Quote handler prices a source/destination pair.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fareway/internal/modules/booking"
)

type QuoteHandler struct {
	booking *booking.Service
	timeout time.Duration
}

// NewQuoteHandler bounds each quote's geocoding by timeout; zero disables it.
func NewQuoteHandler(svc *booking.Service, timeout time.Duration) *QuoteHandler {
	return &QuoteHandler{booking: svc, timeout: timeout}
}

type createQuoteReq struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (h *QuoteHandler) Create(c *gin.Context) {
	var req createQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	q, err := h.booking.Quote(ctx, booking.QuoteCommand{
		Source:      req.Source,
		Destination: req.Destination,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, q)
}
