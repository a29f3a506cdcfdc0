// README: Ride handlers for booking, history, summary and eligibility.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fareway/internal/http/middleware"
	"fareway/internal/modules/booking"
	"fareway/internal/modules/ride"
	"fareway/internal/types"
)

type RideHandler struct {
	booking *booking.Service
}

func NewRideHandler(svc *booking.Service) *RideHandler {
	return &RideHandler{booking: svc}
}

type bookRideReq struct {
	QuoteID      string `json:"quote_id"`
	CarpoolCount *int   `json:"carpool_count"`
}

func (h *RideHandler) Book(c *gin.Context) {
	var req bookRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.booking.BookQuote(c.Request.Context(), booking.BookQuoteCommand{
		UserID:       middleware.CallerUID(c),
		QuoteID:      types.ID(req.QuoteID),
		CarpoolCount: req.CarpoolCount,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RideHandler) List(c *gin.Context) {
	order := strings.ToLower(c.DefaultQuery("order", "desc"))
	if order != "asc" && order != "desc" {
		writeError(c, http.StatusBadRequest, "order must be asc or desc")
		return
	}
	rides, err := h.booking.History(c.Request.Context(), middleware.CallerUID(c), booking.HistoryQuery{
		SortBy: strings.ToLower(c.Query("sort")),
		Desc:   order == "desc",
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	if rides == nil {
		rides = []ride.Ride{}
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": rides})
}

func (h *RideHandler) Summary(c *gin.Context) {
	s, err := h.booking.Summary(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *RideHandler) Eligibility(c *gin.Context) {
	e, err := h.booking.Eligibility(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, e)
}
