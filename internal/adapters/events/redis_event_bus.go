package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/providers"
	redisclient "github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/redis"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
)

const subscriberBuffer = 32

type subscriberSet map[chan *entities.SegmentationEvent]struct{}

// RedisEventBus fans segmentation events out over Redis Pub/Sub. One Redis
// subscription is held per channel and shared by all local subscribers.
type RedisEventBus struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]subscriberSet
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zerolog.Logger
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	logger := observability.GetLogger().With().Str("component", "event_bus").Logger()
	return &RedisEventBus{
		client:        client.Client(),
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]subscriberSet),
		ctx:           ctx,
		cancel:        cancel,
		logger:        &logger,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.SegmentationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).Str("run_id", event.RunID).Msg("event published")
	return nil
}

// Subscribe returns a channel of events that is closed when ctx is done or
// the bus shuts down.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SegmentationEvent, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, errors.New("event bus is closed")
	}

	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Subscribe(b.ctx, channel)
		b.subscriptions[channel] = pubsub
		go b.receiveMessages(channel, pubsub)
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(subscriberSet)
	}

	eventChan := make(chan *entities.SegmentationEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	count := len(b.subscribers[channel])
	b.mu.Unlock()

	b.logger.Debug().Str("channel", channel).Int("subscribers", count).Msg("subscribed")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

// receiveMessages broadcasts Redis messages to local subscribers. Slow
// subscribers miss events rather than block the others.
func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	defer func() {
		if err := b.cleanupChannel(channel, pubsub); err != nil {
			b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to clean up channel")
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.SegmentationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable event")
				continue
			}

			b.mu.RLock()
			for subscriber := range b.subscribers[channel] {
				select {
				case subscriber <- &event:
				default:
					b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.SegmentationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}

	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
		if pubsub, ok := b.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(b.subscriptions, channel)
		}
	}
}

// cleanupChannel tears down channel only while pubsub is still its active
// subscription. A receiver whose subscription was already released, and
// possibly replaced by a newer Subscribe, leaves the newer one alone.
func (b *RedisEventBus) cleanupChannel(channel string, pubsub *redis.PubSub) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.subscriptions[channel]; !ok || current != pubsub {
		return nil
	}

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	delete(b.subscribers, channel)
	delete(b.subscriptions, channel)

	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	return nil
}

// Unsubscribe drops every local subscriber of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.RLock()
	pubsub, ok := b.subscriptions[channel]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	return b.cleanupChannel(channel, pubsub)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	b.cancel()
	subscriptions := make(map[string]*redis.PubSub, len(b.subscriptions))
	for channel, pubsub := range b.subscriptions {
		subscriptions[channel] = pubsub
	}
	b.mu.Unlock()

	var errs []error
	for channel, pubsub := range subscriptions {
		if err := b.cleanupChannel(channel, pubsub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
