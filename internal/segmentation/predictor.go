package segmentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/internal/model"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// Prediction is the result of one batch prediction.
type Prediction struct {
	Customers    []entities.ScoredCustomer
	Stats        CleanStats
	ModelVersion string
}

// BatchPredictor runs Clean -> Build -> Project -> Scale -> Assign against
// one immutable artifact bundle. It holds no mutable state and may be used
// concurrently.
type BatchPredictor struct {
	artifacts *model.Artifacts
	cleaner   *Cleaner
	builder   *FeatureBuilder
}

// PredictorOption configures a BatchPredictor.
type PredictorOption func(*BatchPredictor)

// WithCleaner overrides the default cleaner.
func WithCleaner(c *Cleaner) PredictorOption {
	return func(p *BatchPredictor) {
		if c != nil {
			p.cleaner = c
		}
	}
}

// NewBatchPredictor creates a predictor bound to artifacts.
func NewBatchPredictor(artifacts *model.Artifacts, opts ...PredictorOption) (*BatchPredictor, error) {
	if artifacts == nil {
		return nil, apperrors.NewArtifactLoadError("model artifacts are required", nil)
	}
	p := &BatchPredictor{
		artifacts: artifacts,
		cleaner:   NewCleaner(),
		builder:   NewFeatureBuilder(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Artifacts returns the bundle the predictor scores against.
func (p *BatchPredictor) Artifacts() *model.Artifacts {
	return p.artifacts
}

// Predict scores raw transaction rows. Any failure aborts the whole batch.
func (p *BatchPredictor) Predict(ctx context.Context, rows []entities.TransactionRow) (*Prediction, error) {
	logger := observability.LoggerFromContext(ctx)

	_, span := observability.StartSpan(ctx, "segmentation.clean")
	cleaned, stats, err := p.cleaner.CleanWithStats(rows)
	span.SetAttributes(
		attribute.Int("rows.read", stats.RowsRead),
		attribute.Int("rows.kept", stats.RowsKept),
	)
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("rows_read", stats.RowsRead).
		Int("missing_customer", stats.MissingCustomer).
		Int("cancelled", stats.Cancelled).
		Int("non_positive", stats.NonPositive).
		Int("rows_kept", stats.RowsKept).
		Msg("transactions cleaned")

	_, span = observability.StartSpan(ctx, "segmentation.features")
	features, err := p.builder.Build(cleaned)
	observability.RecordError(span, err)
	span.SetAttributes(attribute.Int("customers", len(features)))
	span.End()
	if err != nil {
		return nil, err
	}

	scored, err := p.PredictTable(ctx, NewFeatureTable(features))
	if err != nil {
		return nil, err
	}

	return &Prediction{
		Customers:    scored,
		Stats:        stats,
		ModelVersion: p.artifacts.Version(),
	}, nil
}

// PredictTable projects table onto the model schema, scales it and assigns
// a cluster to each customer. The scaler and clusterer both verify that the
// matrix columns are in their fitted order.
func (p *BatchPredictor) PredictTable(ctx context.Context, table *FeatureTable) ([]entities.ScoredCustomer, error) {
	_, span := observability.StartSpan(ctx, "segmentation.project")
	matrix, err := Project(table, p.artifacts.Schema())
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = observability.StartSpan(ctx, "segmentation.scale")
	scaled, err := p.artifacts.Scaler().Transform(matrix)
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = observability.StartSpan(ctx, "segmentation.assign")
	clusters, err := p.artifacts.Clusterer().Assign(scaled)
	observability.RecordError(span, err)
	span.SetAttributes(attribute.Int("clusters.k", p.artifacts.K()))
	span.End()
	if err != nil {
		return nil, err
	}
	if len(clusters) != table.Len() {
		return nil, apperrors.NewInternalError(
			fmt.Sprintf("clusterer returned %d assignments for %d customers", len(clusters), table.Len()), nil)
	}

	rows := table.Rows()
	scored := make([]entities.ScoredCustomer, len(rows))
	for i, row := range rows {
		scored[i] = entities.ScoredCustomer{CustomerFeatureRow: row, Cluster: clusters[i]}
	}
	return scored, nil
}
