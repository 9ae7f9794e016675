package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zatekoja/retailsegmentation/internal/adapters/tabular"
	"github.com/zatekoja/retailsegmentation/internal/application/services"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

const uploadField = "file"

// SegmentationService is what the segmentation endpoints need from the
// application layer.
type SegmentationService interface {
	Segment(ctx context.Context, rows []entities.TransactionRow, source string) (*entities.SegmentationRun, error)
	GetRun(ctx context.Context, id string) (*entities.SegmentationRun, error)
	SegmentFromStore(ctx context.Context, filter entities.TransactionFilter) (*entities.SegmentationRun, error)
	ModelInfo() services.ModelInfo
}

// SegmentationHandler handles segmentation-related HTTP requests
type SegmentationHandler struct {
	service        SegmentationService
	maxUploadBytes int64
}

// NewSegmentationHandler creates a new segmentation handler
func NewSegmentationHandler(service SegmentationService, maxUploadBytes int64) *SegmentationHandler {
	return &SegmentationHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// GetModel reports the loaded model bundle
// GET /api/model
func (h *SegmentationHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.ModelInfo())
}

// CreateSegmentation segments an uploaded transaction file
// POST /api/segmentations[?format=csv]
func (h *SegmentationHandler) CreateSegmentation(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	rows, source, err := h.readUpload(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	run, err := h.service.Segment(r.Context(), rows, source)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, r, run)
		return
	}
	respondWithJSON(w, http.StatusCreated, run)
}

// CreateSegmentationFromStore segments transactions read from the
// configured database
// POST /api/segmentations/from-store?since=YYYY-MM-DD&until=YYYY-MM-DD[&limit=N][&format=csv]
func (h *SegmentationHandler) CreateSegmentationFromStore(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	run, err := h.service.SegmentFromStore(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, r, run)
		return
	}
	respondWithJSON(w, http.StatusCreated, run)
}

// GetSegmentation returns a stored run
// GET /api/segmentations/{id}
func (h *SegmentationHandler) GetSegmentation(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

// ExportSegmentation downloads a stored run as CSV
// GET /api/segmentations/{id}/export
func (h *SegmentationHandler) ExportSegmentation(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeCSV(w, r, run)
}

func (h *SegmentationHandler) lookup(w http.ResponseWriter, r *http.Request) (*entities.SegmentationRun, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "segmentation ID is required")
		return nil, false
	}

	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return nil, false
	}
	return run, true
}

// readUpload accepts a multipart form with a "file" part or a raw CSV body.
func (h *SegmentationHandler) readUpload(r *http.Request) ([]entities.TransactionRow, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", apperrors.NewFileFormatError("missing or invalid Content-Type", err)
	}

	switch {
	case mediaType == "multipart/form-data":
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, "", err
			}
			return nil, "", apperrors.NewValidationError(`multipart field "file" is required`)
		}
		defer file.Close()

		if err := tabular.CheckFileName(header.Filename); err != nil {
			return nil, "", err
		}
		rows, err := tabular.ReadTransactions(file)
		return rows, "upload:" + header.Filename, err

	case mediaType == "text/csv", mediaType == "text/plain", mediaType == "application/csv":
		rows, err := tabular.ReadTransactions(r.Body)
		return rows, "upload", err

	default:
		return nil, "", apperrors.NewFileFormatError("unsupported content type "+mediaType+", expected text/csv or multipart/form-data", nil)
	}
}

func parseFilter(query url.Values) (entities.TransactionFilter, error) {
	var filter entities.TransactionFilter

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
		if err != nil {
			return filter, apperrors.NewValidationError(p.name + " must be a YYYY-MM-DD date")
		}
		*p.dst = &t
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, apperrors.NewValidationError("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *SegmentationHandler) writeCSV(w http.ResponseWriter, r *http.Request, run *entities.SegmentationRun) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+tabular.ExportFileName+`"`)
	w.Header().Set("X-Segmentation-Run-Id", run.ID)
	w.WriteHeader(http.StatusOK)

	if err := tabular.WriteCustomers(w, run.Customers); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("run_id", run.ID).Msg("failed to stream export")
	}
}
