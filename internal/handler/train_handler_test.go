package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rail-reservation/internal/handler"
	"rail-reservation/internal/model"
	"rail-reservation/internal/repository/memory"
	"rail-reservation/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTrainTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	trains := memory.NewTrainCatalog(&model.Train{
		ID: 1, Number: "12951", Name: "Rajdhani", Active: true,
		Classes: []model.TrainClass{{CoachClass: "3A", TotalSeats: 64, TatkalSeats: 10, BaseFare: 1800}},
	})
	stations := memory.NewStationCatalog(
		&model.Station{ID: 2, Code: "MMCT", Name: "Mumbai Central", Active: true},
		&model.Station{ID: 1, Code: "NDLS", Name: "New Delhi", Active: true},
	)
	handler.NewTrainHandler(service.NewCatalogService(trains, stations)).RegisterRoutes(router)
	return router
}

func TestTrainHandler(t *testing.T) {
	router := setupTrainTestRouter()

	t.Run("List trains", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("GET", "/api/v1/trains", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var trains []model.Train
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trains))
		require.Len(t, trains, 1)
		assert.Equal(t, "12951", trains[0].Number)
		assert.Equal(t, 10, trains[0].Classes[0].TatkalSeats)
	})

	t.Run("Get train", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("GET", "/api/v1/trains/1", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("GET", "/api/v1/trains/2", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List stations", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("GET", "/api/v1/stations", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var stations []model.Station
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stations))
		require.Len(t, stations, 2)
		assert.Equal(t, "NDLS", stations[0].Code)
	})
}
