//go:build integration

package events_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/retailsegmentation/internal/adapters/events"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/redis"
	"github.com/zatekoja/retailsegmentation/pkg/config"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_REDIS_PORT"))
	if port == 0 {
		port = 6379
	}

	client, err := redis.NewClient(&config.RedisConfig{
		Host:     os.Getenv("TEST_REDIS_HOST"),
		Port:     port,
		Password: os.Getenv("TEST_REDIS_PASSWORD"),
	})
	require.NoError(t, err, "Failed to create redis client")
	return client
}

func waitForEvent(t *testing.T, ch <-chan *entities.SegmentationEvent) *entities.SegmentationEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for segmentation event")
		return nil
	}
}

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	defer bus.Close()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := bus.Subscribe(ctx1, providers.EventChannelSegmentationRuns)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx2, providers.EventChannelSegmentationRuns)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := entities.NewSegmentationCompletedEvent(&entities.SegmentationRun{
		ID:           "6f1c9a52-4a53-4d1e-9c1a-1f2e3d4c5b6a",
		ModelVersion: "2024-06-kmeans-k4",
		Customers:    []entities.ScoredCustomer{{Cluster: 1, Segment: entities.SegmentAtRisk}},
	})
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelSegmentationRuns, event))

	received1 := waitForEvent(t, sub1)
	received2 := waitForEvent(t, sub2)
	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, 1, received1.SegmentCounts[entities.SegmentAtRisk])

	cancel1()
	select {
	case _, ok := <-sub1:
		assert.False(t, ok, "cancelled subscriber channel should be closed")
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber channel was not closed after cancel")
	}
}

func TestRedisEventBusCloseIntegration(t *testing.T) {
	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	sub, err := bus.Subscribe(context.Background(), providers.EventChannelSegmentationRuns)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber channel was not closed by Close")
	}

	_, err = bus.Subscribe(context.Background(), providers.EventChannelSegmentationRuns)
	assert.Error(t, err)
}

func TestRedisEventBus_ResubscribeAfterLastSubscriberLeaves(t *testing.T) {
	client := newTestRedisClient(t)
	defer client.Close()

	bus := events.NewRedisEventBus(client)
	defer bus.Close()

	channel := "test:resubscribe:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := bus.Subscribe(ctx, channel)
		require.NoError(t, err)
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	event := &entities.SegmentationEvent{ID: "evt-resub", RunID: "run-resub"}
	require.NoError(t, bus.Publish(context.Background(), channel, event))

	select {
	case got, ok := <-stream:
		require.True(t, ok, "subscription closed by a stale receiver")
		assert.Equal(t, "run-resub", got.RunID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
