package handler

import (
	"net/http"

	"rail-reservation/internal/model"
	"rail-reservation/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service service.BookingService
}

func NewBookingHandler(service service.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("bookings", h.Submit)
		router.GET("bookings/:id", h.GetBooking)
		router.PUT("bookings/:id/cancel", h.Cancel)
		router.POST("bookings/:id/payment", h.PaymentResult)
		router.GET("pnr/:pnr", h.GetByPNR)
		router.GET("users/:id/bookings", h.ListUserBookings)
	}
}

// PaymentResultRequest is the gateway callback for a pending booking.
type PaymentResultRequest struct {
	Status string `json:"status" binding:"required,oneof=success failed"`
	Reason string `json:"reason"`
}

type pnrUri struct {
	PNR string `uri:"pnr" binding:"required,len=10,numeric"`
}

func (h *BookingHandler) Submit(c *gin.Context) {
	var req model.BookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.Submit(c, req)
	if err != nil {
		handleError(c, err, "Submit")
		return
	}

	status := http.StatusCreated
	if booking.Status == model.BookingStatusWaitlisted {
		status = http.StatusAccepted
	}
	handleSuccess(c, model.NewBookingResponse(booking), status)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	booking, err := h.service.GetBooking(c, uri.ID)
	if err != nil {
		handleError(c, err, "GetBooking")
		return
	}
	handleSuccess(c, booking, http.StatusOK)
}

func (h *BookingHandler) GetByPNR(c *gin.Context) {
	var uri pnrUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	booking, err := h.service.GetBookingByPNR(c, uri.PNR)
	if err != nil {
		handleError(c, err, "GetByPNR")
		return
	}
	handleSuccess(c, booking, http.StatusOK)
}

func (h *BookingHandler) ListUserBookings(c *gin.Context) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	bookings, err := h.service.ListUserBookings(c, uri.ID)
	if err != nil {
		handleError(c, err, "ListUserBookings")
		return
	}

	resp := make([]model.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, model.NewBookingResponse(b))
	}
	handleSuccess(c, resp, http.StatusOK)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	booking, err := h.service.Cancel(c, uri.ID)
	if err != nil {
		handleError(c, err, "Cancel")
		return
	}
	handleSuccess(c, model.NewBookingResponse(booking), http.StatusOK)
}

func (h *BookingHandler) PaymentResult(c *gin.Context) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return
	}
	var req PaymentResultRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	var (
		booking *model.Booking
		err     error
	)
	if req.Status == "success" {
		booking, err = h.service.ConfirmPayment(c, uri.ID)
	} else {
		reason := req.Reason
		if reason == "" {
			reason = "payment failed"
		}
		booking, err = h.service.FailPayment(c, uri.ID, reason)
	}
	if err != nil {
		handleError(c, err, "PaymentResult")
		return
	}
	handleSuccess(c, model.NewBookingResponse(booking), http.StatusOK)
}
