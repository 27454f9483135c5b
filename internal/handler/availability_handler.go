package handler

import (
	"net/http"

	"rail-reservation/internal/model"
	"rail-reservation/internal/service"

	"github.com/gin-gonic/gin"
)

// AvailabilityHandler serves display reads. Results may be stale.
type AvailabilityHandler struct {
	service service.BookingService
}

func NewAvailabilityHandler(service service.BookingService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

func (h *AvailabilityHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("availability", h.GetAvailability)
		router.GET("waitlist", h.ListWaitlist)
	}
}

func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	var q model.AvailabilityQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	av, err := h.service.GetAvailability(c, q)
	if err != nil {
		handleError(c, err, "GetAvailability")
		return
	}
	handleSuccess(c, av, http.StatusOK)
}

func (h *AvailabilityHandler) ListWaitlist(c *gin.Context) {
	var q model.AvailabilityQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}

	entries, err := h.service.ListWaitlist(c, q)
	if err != nil {
		handleError(c, err, "ListWaitlist")
		return
	}
	handleSuccess(c, entries, http.StatusOK)
}
