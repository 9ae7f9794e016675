package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/repositories"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

const (
	runsTable          = "segmentation_runs"
	customerTable      = "customer_segments"
	customerInsertSize = 1000
)

// SegmentationAdapter implements the SegmentationRepository interface
type SegmentationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSegmentationAdapter creates a new segmentation run adapter
func NewSegmentationAdapter(client *postgres.Client) repositories.SegmentationRepository {
	return &SegmentationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// SaveRun inserts the run header and its customers in one transaction
func (a *SegmentationAdapter) SaveRun(ctx context.Context, run *entities.SegmentationRun) error {
	if run == nil {
		return apperrors.NewInternalError("segmentation run is nil", fmt.Errorf("segmentation run is nil"))
	}

	labels, err := json.Marshal(run.Labels)
	if err != nil {
		return apperrors.NewInternalError("failed to encode segment labels", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return apperrors.NewInternalError("failed to encode segment summary", err)
	}

	runQuery, runArgs, err := a.db.Insert(runsTable).Rows(goqu.Record{
		"id":             run.ID,
		"source":         run.Source,
		"model_version":  run.ModelVersion,
		"rows_read":      run.RowsRead,
		"rows_cleaned":   run.RowsCleaned,
		"customer_count": len(run.Customers),
		"labels":         string(labels),
		"summary":        string(summary),
		"created_at":     run.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build run insert query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, runQuery, runArgs...); err != nil {
		return apperrors.NewInternalError("failed to insert segmentation run", err)
	}

	for chunk := range slices.Chunk(run.Customers, customerInsertSize) {
		records := make([]interface{}, len(chunk))
		for i, c := range chunk {
			records[i] = goqu.Record{
				"run_id":          run.ID,
				"customer_id":     c.CustomerID,
				"recency":         c.Recency,
				"frequency":       c.Frequency,
				"monetary":        c.Monetary.String(),
				"total_quantity":  c.TotalQuantity,
				"unique_products": c.UniqueProducts,
				"cluster":         c.Cluster,
				"segment_name":    sql.NullString{String: string(c.Segment), Valid: c.Segment != ""},
			}
		}
		query, args, err := a.db.Insert(customerTable).Rows(records...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build customer insert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to insert customer segments", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit segmentation run", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (a *SegmentationAdapter) GetRun(ctx context.Context, id string) (*entities.SegmentationRun, error) {
	query, args, err := a.db.Select(
		"id", "source", "model_version", "rows_read", "rows_cleaned",
		"labels", "summary", "created_at",
	).From(runsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	run := &entities.SegmentationRun{}
	var labels, summary []byte
	var createdAt time.Time
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&run.ID,
		&run.Source,
		&run.ModelVersion,
		&run.RowsRead,
		&run.RowsCleaned,
		&labels,
		&summary,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("segmentation run %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get segmentation run", err)
	}
	run.CreatedAt = createdAt.UTC()

	if err := json.Unmarshal(labels, &run.Labels); err != nil {
		return nil, apperrors.NewInternalError("failed to decode segment labels", err)
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, apperrors.NewInternalError("failed to decode segment summary", err)
		}
	}

	customers, err := a.listCustomers(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Customers = customers
	return run, nil
}

func (a *SegmentationAdapter) listCustomers(ctx context.Context, runID string) ([]entities.ScoredCustomer, error) {
	query, args, err := a.db.Select(
		"customer_id", "recency", "frequency", "monetary",
		"total_quantity", "unique_products", "cluster", "segment_name",
	).From(customerTable).
		Where(goqu.Ex{"run_id": runID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list customer segments", err)
	}
	defer rows.Close()

	var customers []entities.ScoredCustomer
	for rows.Next() {
		var c entities.ScoredCustomer
		var monetary decimal.Decimal
		var segment sql.NullString
		if err := rows.Scan(
			&c.CustomerID,
			&c.Recency,
			&c.Frequency,
			&monetary,
			&c.TotalQuantity,
			&c.UniqueProducts,
			&c.Cluster,
			&segment,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan customer segment", err)
		}
		c.Monetary = monetary
		c.Segment = entities.SegmentLabel(segment.String)
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read customer segments", err)
	}

	slices.SortFunc(customers, func(x, y entities.ScoredCustomer) int {
		return entities.CompareCustomerIDs(x.CustomerID, y.CustomerID)
	})
	return customers, nil
}
