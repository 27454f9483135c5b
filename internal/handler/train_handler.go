package handler

import (
	"net/http"

	"rail-reservation/internal/service"

	"github.com/gin-gonic/gin"
)

type TrainHandler struct {
	service service.CatalogService
}

func NewTrainHandler(service service.CatalogService) *TrainHandler {
	return &TrainHandler{service: service}
}

func (h *TrainHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("trains", h.ListTrains)
		router.GET("trains/:id", h.GetTrain)
		router.GET("stations", h.ListStations)
	}
}

func (h *TrainHandler) ListTrains(c *gin.Context) {
	trains, err := h.service.ListTrains(c)
	if err != nil {
		handleError(c, err, "ListTrains")
		return
	}
	handleSuccess(c, trains, http.StatusOK)
}

func (h *TrainHandler) GetTrain(c *gin.Context) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	train, err := h.service.GetTrain(c, uri.ID)
	if err != nil {
		handleError(c, err, "GetTrain")
		return
	}
	handleSuccess(c, train, http.StatusOK)
}

func (h *TrainHandler) ListStations(c *gin.Context) {
	stations, err := h.service.ListStations(c)
	if err != nil {
		handleError(c, err, "ListStations")
		return
	}
	handleSuccess(c, stations, http.StatusOK)
}
