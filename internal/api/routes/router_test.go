package routes_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/retailsegmentation/internal/api/handlers"
	"github.com/zatekoja/retailsegmentation/internal/api/routes"
	"github.com/zatekoja/retailsegmentation/internal/application/services"
	"github.com/zatekoja/retailsegmentation/internal/model"
	"github.com/zatekoja/retailsegmentation/internal/segmentation"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	artifacts, err := model.LoadDir("../../model/testdata/valid")
	require.NoError(t, err)
	predictor, err := segmentation.NewBatchPredictor(artifacts)
	require.NoError(t, err)
	service := services.NewSegmentationService(predictor, nil, nil, nil)

	router := routes.NewRouter(
		handlers.NewSegmentationHandler(service, 1<<20),
		nil,
		[]string{"*"},
		nil,
	)
	return router.SetupRoutes()
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_SegmentationRoutes(t *testing.T) {
	handler := newRouter(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID\n" +
		"536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850.0\n"
	req := httptest.NewRequest(http.MethodPost, "/api/segmentations", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Origin", "https://dash.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	// no run store is configured
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/segmentations/6f1c9a52-4a53-4d1e-9c1a-1f2e3d4c5b6a", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/segmentations", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_StreamRequiresEventBus(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/segmentations", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
