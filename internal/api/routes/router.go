package routes

import (
	"net/http"

	"github.com/zatekoja/retailsegmentation/internal/api/handlers"
	"github.com/zatekoja/retailsegmentation/internal/api/middleware"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	segmentationHandler *handlers.SegmentationHandler
	sseHandler          *handlers.SSEHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when no event bus
// is configured.
func NewRouter(
	segmentationHandler *handlers.SegmentationHandler,
	sseHandler *handlers.SSEHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		segmentationHandler: segmentationHandler,
		sseHandler:          sseHandler,
		allowedOrigins:      allowedOrigins,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.mux.HandleFunc("GET /api/model", r.segmentationHandler.GetModel)

	r.mux.HandleFunc("POST /api/segmentations", r.segmentationHandler.CreateSegmentation)
	r.mux.HandleFunc("POST /api/segmentations/from-store", r.segmentationHandler.CreateSegmentationFromStore)
	r.mux.HandleFunc("GET /api/segmentations/{id}", r.segmentationHandler.GetSegmentation)
	r.mux.HandleFunc("GET /api/segmentations/{id}/export", r.segmentationHandler.ExportSegmentation)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/segmentations", r.sseHandler.StreamSegmentations)
	}

	// Last applied is outermost: CORS, compression, tracing, then logging
	// so access logs carry the trace id.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
