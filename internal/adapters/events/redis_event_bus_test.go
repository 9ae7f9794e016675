package events

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
)

func TestCleanupChannel_IgnoresReplacedSubscription(t *testing.T) {
	released := &redis.PubSub{}
	current := &redis.PubSub{}
	subscriber := make(chan *entities.SegmentationEvent, 1)

	bus := &RedisEventBus{
		subscriptions: map[string]*redis.PubSub{"runs": current},
		subscribers:   map[string]subscriberSet{"runs": {subscriber: struct{}{}}},
	}

	// the receiver of the released subscription exits after a new Subscribe
	require.NoError(t, bus.cleanupChannel("runs", released))

	assert.Same(t, current, bus.subscriptions["runs"])
	assert.Len(t, bus.subscribers["runs"], 1)
	select {
	case _, ok := <-subscriber:
		assert.True(t, ok, "subscriber of the new subscription was closed")
	default:
	}

	require.NoError(t, bus.cleanupChannel("unknown", released))
}
