package handler

import (
	"errors"
	"net/http"

	apperrors "rail-reservation/pkg/app_errors"
	"rail-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RetryAfterSeconds is sent with 503 responses when a ledger key is busy.
const RetryAfterSeconds = "1"

type idUri struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// handleError maps domain errors onto HTTP statuses. Busy and sold out stay
// distinguishable: 503 with Retry-After against 409.
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		log.Debug("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, apperrors.ErrBookingNotFound):
		log.Debug("Booking not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Booking not found",
		})
	case errors.Is(err, apperrors.ErrTrainNotFound):
		log.Debug("Train not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Train not found",
		})
	case errors.Is(err, apperrors.ErrStationNotFound):
		log.Debug("Station not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Station not found",
		})
	case errors.Is(err, apperrors.ErrSoldOut):
		log.Info("Sold out")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Sold out",
		})
	case errors.Is(err, apperrors.ErrInvalidStatusTransition):
		log.Info("Invalid status transition")
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, apperrors.ErrBusy):
		log.Warn("Ledger busy")
		c.Header("Retry-After", RetryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Busy, retry later",
		})
	case errors.Is(err, apperrors.ErrPaymentFailed):
		log.Info("Payment failed")
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": "Payment failed",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": apperrors.ErrInternalServerError.Error(),
		})
	}
}

func handleSuccess(c *gin.Context, data interface{}, statusCode int) {
	if data != nil {
		c.JSON(statusCode, data)
	} else {
		c.Status(statusCode)
	}
}
