package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
)

const (
	heartbeatInterval = 30 * time.Second
	clientBuffer      = 10
)

// SSEHandler streams segmentation completion events to dashboards
type SSEHandler struct {
	eventBus providers.EventBus
	clients  map[chan *entities.SegmentationEvent]struct{}
	mu       sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		clients:  make(map[chan *entities.SegmentationEvent]struct{}),
	}
}

// StreamSegmentations handles SSE connections for completed runs. An
// optional model_version query parameter restricts the stream to one model.
// GET /api/stream/segmentations[?model_version=X]
func (h *SSEHandler) StreamSegmentations(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())
	modelVersion := r.URL.Query().Get("model_version")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelSegmentationRuns)
	if err != nil {
		logger.Error().Err(err).Str("channel", providers.EventChannelSegmentationRuns).Msg("failed to subscribe")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.SegmentationEvent, clientBuffer)
	h.registerClient(clientChan)
	defer h.unregisterClient(clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"channel":       providers.EventChannelSegmentationRuns,
		"model_version": modelVersion,
		"timestamp":     time.Now().UTC(),
	})
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan, modelVersion)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("client disconnected from segmentation stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event, ok := <-clientChan:
			if !ok {
				logger.Debug().Msg("segmentation stream closed by event bus")
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies bus events to a client, skipping them when the
// client is not keeping up. clientChan is closed once the subscription ends.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.SegmentationEvent, clientChan chan<- *entities.SegmentationEvent, modelVersion string) {
	defer close(clientChan)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if modelVersion != "" && event.ModelVersion != modelVersion {
				continue
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *SSEHandler) registerClient(clientChan chan *entities.SegmentationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientChan] = struct{}{}
}

func (h *SSEHandler) unregisterClient(clientChan chan *entities.SegmentationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientChan)
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Warn().Err(err).Str("event", eventType).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// ClientCount returns the number of connected stream clients
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
