package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	"github.com/zatekoja/retailsegmentation/internal/domain/repositories"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/internal/segmentation"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// ModelInfo describes the loaded artifact bundle
type ModelInfo struct {
	Version  string                  `json:"version"`
	Features []string                `json:"features"`
	Clusters int                     `json:"clusters"`
	Labels   []entities.SegmentLabel `json:"labels"`
}

// SegmentationService runs the segmentation pipeline and handles the
// optional collaborators around it: result cache, run store, transaction
// source and completion events.
type SegmentationService struct {
	predictor *segmentation.BatchPredictor
	labeler   *segmentation.SegmentLabeler
	runs      repositories.SegmentationRepository
	source    repositories.TransactionRepository
	cache     providers.CacheProvider
	cacheTTL  time.Duration
	bus       providers.EventBus
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewSegmentationService creates a new segmentation service. runs, source
// and metrics may be nil.
func NewSegmentationService(
	predictor *segmentation.BatchPredictor,
	runs repositories.SegmentationRepository,
	source repositories.TransactionRepository,
	metrics *observability.Metrics,
) *SegmentationService {
	return &SegmentationService{
		predictor: predictor,
		labeler:   segmentation.NewSegmentLabeler(),
		runs:      runs,
		source:    source,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetCache caches runs by input fingerprint for ttl.
func (s *SegmentationService) SetCache(cache providers.CacheProvider, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// SetEventBus publishes a SegmentationEvent per completed run.
func (s *SegmentationService) SetEventBus(bus providers.EventBus) {
	s.bus = bus
}

// Segment scores rows and labels the resulting clusters. Identical input
// against the same model is served from cache when one is configured.
func (s *SegmentationService) Segment(ctx context.Context, rows []entities.TransactionRow, source string) (*entities.SegmentationRun, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "segmentation.run")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	key := s.fingerprint(rows)
	if run := s.cached(ctx, key); run != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		logger.Debug().Str("run_id", run.ID).Msg("segmentation served from cache")
		return run, nil
	}

	prediction, err := s.predictor.Predict(ctx, rows)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordRunMetric(ctx, s.metrics, outcome(err), 0, time.Since(start))
		logger.Warn().Err(err).Str("source", source).Int("rows", len(rows)).Msg("segmentation failed")
		return nil, err
	}

	_, labelSpan := observability.StartSpan(ctx, "segmentation.label")
	labels := s.labeler.LabelSegments(prediction.Customers)
	customers := segmentation.ApplyLabels(prediction.Customers, labels)
	summary := segmentation.Summarize(customers)
	labelSpan.SetAttributes(attribute.Int("clusters", len(labels)))
	labelSpan.End()

	run := &entities.SegmentationRun{
		ID:           uuid.New().String(),
		Source:       source,
		ModelVersion: prediction.ModelVersion,
		RowsRead:     prediction.Stats.RowsRead,
		RowsCleaned:  prediction.Stats.RowsKept,
		Customers:    customers,
		Labels:       labels,
		Summary:      summary,
		CreatedAt:    s.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("customers", len(customers)),
	)
	s.recordDrops(ctx, prediction.Stats)

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			observability.RecordError(span, err)
			observability.RecordRunMetric(ctx, s.metrics, "store_failed", 0, time.Since(start))
			return nil, apperrors.NewInternalError("failed to persist segmentation run", err)
		}
	}

	s.store(ctx, key, run)

	if s.bus != nil {
		event := entities.NewSegmentationCompletedEvent(run)
		if err := s.bus.Publish(ctx, providers.EventChannelSegmentationRuns, event); err != nil {
			logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to publish segmentation event")
		}
	}

	observability.RecordRunMetric(ctx, s.metrics, "success", len(customers), time.Since(start))
	logger.Info().
		Str("run_id", run.ID).
		Str("source", source).
		Str("model_version", run.ModelVersion).
		Int("rows_read", run.RowsRead).
		Int("rows_cleaned", run.RowsCleaned).
		Int("customers", len(customers)).
		Dur("duration", time.Since(start)).
		Msg("segmentation completed")

	return run, nil
}

// SegmentFromStore reads transactions from the configured source and
// segments them.
func (s *SegmentationService) SegmentFromStore(ctx context.Context, filter entities.TransactionFilter) (*entities.SegmentationRun, error) {
	if s.source == nil {
		return nil, apperrors.NewValidationError("no transaction source is configured")
	}
	if filter.Since != nil && filter.Until != nil && !filter.Since.Before(*filter.Until) {
		return nil, apperrors.NewValidationError("since must be before until")
	}

	rows, err := s.source.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.Segment(ctx, rows, describeFilter(filter))
}

// GetRun retrieves a stored run
func (s *SegmentationService) GetRun(ctx context.Context, id string) (*entities.SegmentationRun, error) {
	if s.runs == nil {
		return nil, apperrors.NewNotFoundError("segmentation runs are not stored")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("segmentation run " + id + " not found")
	}
	return s.runs.GetRun(ctx, id)
}

// ModelInfo reports the loaded model
func (s *SegmentationService) ModelInfo() ModelInfo {
	artifacts := s.predictor.Artifacts()
	return ModelInfo{
		Version:  artifacts.Version(),
		Features: artifacts.Schema().Features,
		Clusters: artifacts.K(),
		Labels:   entities.SegmentLabels(),
	}
}

func (s *SegmentationService) cached(ctx context.Context, key string) *entities.SegmentationRun {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("segmentation cache unavailable")
		}
		observability.RecordCacheMiss(ctx, s.metrics, "segmentation")
		return nil
	}

	var run entities.SegmentationRun
	if err := json.Unmarshal(data, &run); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("discarding undecodable cached run")
		_ = s.cache.Delete(ctx, key)
		observability.RecordCacheMiss(ctx, s.metrics, "segmentation")
		return nil
	}
	observability.RecordCacheHit(ctx, s.metrics, "segmentation")
	return &run
}

func (s *SegmentationService) store(ctx context.Context, key string, run *entities.SegmentationRun) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to encode run for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("run_id", run.ID).Msg("failed to cache segmentation run")
	}
}

func (s *SegmentationService) recordDrops(ctx context.Context, stats segmentation.CleanStats) {
	observability.RecordRowsDropped(ctx, s.metrics, "missing_customer", stats.MissingCustomer)
	observability.RecordRowsDropped(ctx, s.metrics, "cancelled", stats.Cancelled)
	observability.RecordRowsDropped(ctx, s.metrics, "non_positive", stats.NonPositive)
}

// fingerprint identifies the input rows and model version.
func (s *SegmentationService) fingerprint(rows []entities.TransactionRow) string {
	h := sha256.New()
	_, _ = io.WriteString(h, s.predictor.Artifacts().Version())
	for _, r := range rows {
		_, _ = io.WriteString(h, "\x1e")
		_, _ = io.WriteString(h, strings.Join([]string{
			r.InvoiceNo,
			r.StockCode,
			r.Description,
			strconv.FormatInt(r.Quantity, 10),
			r.InvoiceDate,
			r.UnitPrice.String(),
			r.CustomerID,
		}, "\x1f"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func outcome(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return strings.ToLower(string(appErr.Type))
	}
	return "error"
}

func describeFilter(filter entities.TransactionFilter) string {
	var b strings.Builder
	b.WriteString("db")
	if filter.Since != nil {
		b.WriteString(" since=" + filter.Since.Format(time.DateOnly))
	}
	if filter.Until != nil {
		b.WriteString(" until=" + filter.Until.Format(time.DateOnly))
	}
	return b.String()
}
