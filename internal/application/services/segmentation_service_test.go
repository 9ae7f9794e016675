package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/retailsegmentation/internal/application/services"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	"github.com/zatekoja/retailsegmentation/internal/model"
	"github.com/zatekoja/retailsegmentation/internal/segmentation"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// MockRunStore for testing
type MockRunStore struct {
	mu      sync.Mutex
	runs    map[string]*entities.SegmentationRun
	saveErr error
	saves   int
}

func NewMockRunStore() *MockRunStore {
	return &MockRunStore{runs: make(map[string]*entities.SegmentationRun)}
}

func (m *MockRunStore) SaveRun(ctx context.Context, run *entities.SegmentationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MockRunStore) GetRun(ctx context.Context, id string) (*entities.SegmentationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("segmentation run " + id + " not found")
	}
	return run, nil
}

// MockEventBus records published events
type MockEventBus struct {
	mu         sync.Mutex
	published  []*entities.SegmentationEvent
	channels   []string
	publishErr error
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.SegmentationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	m.channels = append(m.channels, channel)
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SegmentationEvent, error) {
	return make(chan *entities.SegmentationEvent), nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (m *MockEventBus) Close() error { return nil }

// MockTransactionSource returns fixed rows
type MockTransactionSource struct {
	rows       []entities.TransactionRow
	lastFilter entities.TransactionFilter
}

func (m *MockTransactionSource) List(ctx context.Context, filter entities.TransactionFilter) ([]entities.TransactionRow, error) {
	m.lastFilter = filter
	return m.rows, nil
}

func newPredictor(t *testing.T) *segmentation.BatchPredictor {
	t.Helper()
	features := []string{entities.FeatureRecency, entities.FeatureMonetary}
	schema, err := entities.NewFeatureSchema(features...)
	require.NoError(t, err)
	scaler, err := model.NewStandardScaler(features, []float64{50, 100}, []float64{50, 100})
	require.NoError(t, err)
	clusterer, err := model.NewKMeans(features, [][]float64{{1.5, -0.5}, {-0.9, 3}, {-0.9, -0.5}, {0, 0.5}})
	require.NoError(t, err)
	artifacts, err := model.NewArtifacts(schema, scaler, clusterer, "unit-test-k4")
	require.NoError(t, err)
	predictor, err := segmentation.NewBatchPredictor(artifacts)
	require.NoError(t, err)
	return predictor
}

func row(invoice, customer string, qty int64, price, date string) entities.TransactionRow {
	return entities.TransactionRow{
		InvoiceNo:   invoice,
		StockCode:   "SKU-" + invoice,
		Quantity:    qty,
		InvoiceDate: date,
		UnitPrice:   decimal.RequireFromString(price),
		CustomerID:  customer,
	}
}

func sampleRows() []entities.TransactionRow {
	return []entities.TransactionRow{
		row("1", "100", 1, "20", "2023-01-10"),
		row("2", "200", 10, "50", "2023-06-28"),
		row("3", "300", 1, "15", "2023-06-30"),
		row("4", "400", 3, "50", "2023-05-20"),
		row("C5", "400", 1, "50", "2023-05-21"),
	}
}

func TestSegmentationService_Segment(t *testing.T) {
	store := NewMockRunStore()
	bus := &MockEventBus{}
	svc := services.NewSegmentationService(newPredictor(t), store, nil, nil)
	svc.SetEventBus(bus)

	run, err := svc.Segment(context.Background(), sampleRows(), "upload:sample.csv")
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "upload:sample.csv", run.Source)
	assert.Equal(t, "unit-test-k4", run.ModelVersion)
	assert.Equal(t, 5, run.RowsRead)
	assert.Equal(t, 4, run.RowsCleaned)
	require.Len(t, run.Customers, 4)
	for _, c := range run.Customers {
		assert.Equal(t, run.Labels[c.Cluster], c.Segment)
	}
	assert.NotEmpty(t, run.Summary)

	assert.Equal(t, 1, store.saves)
	require.Len(t, bus.published, 1)
	assert.Equal(t, providers.EventChannelSegmentationRuns, bus.channels[0])
	assert.Equal(t, run.ID, bus.published[0].RunID)
	assert.Equal(t, 4, bus.published[0].Customers)
}

func TestSegmentationService_CacheHit(t *testing.T) {
	cache := NewMockCacheProvider()
	store := NewMockRunStore()
	svc := services.NewSegmentationService(newPredictor(t), store, nil, nil)
	svc.SetCache(cache, time.Minute)

	first, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)
	second, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.saves, "cached result must not be recomputed or stored again")
	assert.Len(t, second.Customers, len(first.Customers))

	changed := append(sampleRows(), row("9", "900", 1, "1", "2023-06-30"))
	third, err := svc.Segment(context.Background(), changed, "upload")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestSegmentationService_CorruptCacheEntryIsDiscarded(t *testing.T) {
	cache := NewMockCacheProvider()
	svc := services.NewSegmentationService(newPredictor(t), nil, nil, nil)
	svc.SetCache(cache, time.Minute)

	first, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)
	for k := range cache.data {
		cache.data[k] = []byte("{not json")
	}

	second, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, cache.deleted, 1)
}

func TestSegmentationService_OptionalCollaboratorFailures(t *testing.T) {
	cache := NewMockCacheProvider()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	bus := &MockEventBus{publishErr: errors.New("connection refused")}

	svc := services.NewSegmentationService(newPredictor(t), nil, nil, nil)
	svc.SetCache(cache, time.Minute)
	svc.SetEventBus(bus)

	run, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)
	assert.Len(t, run.Customers, 4)
}

func TestSegmentationService_StoreFailureFailsRun(t *testing.T) {
	store := NewMockRunStore()
	store.saveErr = errors.New("disk full")
	bus := &MockEventBus{}

	svc := services.NewSegmentationService(newPredictor(t), store, nil, nil)
	svc.SetEventBus(bus)

	run, err := svc.Segment(context.Background(), sampleRows(), "upload")
	assert.Nil(t, run)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.Empty(t, bus.published)
}

func TestSegmentationService_PipelineErrorPropagates(t *testing.T) {
	svc := services.NewSegmentationService(newPredictor(t), nil, nil, nil)

	_, err := svc.Segment(context.Background(), []entities.TransactionRow{
		row("C1", "1", 1, "1", "2023-01-01"),
	}, "upload")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyResult))
}

func TestSegmentationService_SegmentFromStore(t *testing.T) {
	svc := services.NewSegmentationService(newPredictor(t), nil, nil, nil)
	_, err := svc.SegmentFromStore(context.Background(), entities.TransactionFilter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	source := &MockTransactionSource{rows: sampleRows()}
	svc = services.NewSegmentationService(newPredictor(t), nil, source, nil)

	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	run, err := svc.SegmentFromStore(context.Background(), entities.TransactionFilter{Since: &since, Until: &until})
	require.NoError(t, err)
	assert.Equal(t, "db since=2023-01-01 until=2023-07-01", run.Source)
	assert.Equal(t, &since, source.lastFilter.Since)

	_, err = svc.SegmentFromStore(context.Background(), entities.TransactionFilter{Since: &until, Until: &since})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestSegmentationService_GetRun(t *testing.T) {
	svc := services.NewSegmentationService(newPredictor(t), nil, nil, nil)
	_, err := svc.GetRun(context.Background(), "6f1c9a52-4a53-4d1e-9c1a-1f2e3d4c5b6a")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	store := NewMockRunStore()
	svc = services.NewSegmentationService(newPredictor(t), store, nil, nil)
	run, err := svc.Segment(context.Background(), sampleRows(), "upload")
	require.NoError(t, err)

	got, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = svc.GetRun(context.Background(), "not-a-uuid")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestSegmentationService_ModelInfo(t *testing.T) {
	info := services.NewSegmentationService(newPredictor(t), nil, nil, nil).ModelInfo()
	assert.Equal(t, "unit-test-k4", info.Version)
	assert.Equal(t, []string{"Recency", "Monetary"}, info.Features)
	assert.Equal(t, 4, info.Clusters)
	assert.Len(t, info.Labels, 4)
}
