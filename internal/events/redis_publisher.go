package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	LedgerEventsChannel = "ledger_events"
	LedgerEventsStream  = "ledger_events"

	DefaultStreamMaxLen = 100000
)

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends every event as JSON to a Redis stream, which consumer
// groups read at their own pace, and then announces it on a pub/sub channel
// for live listeners. An event counts as published once the stream holds it.
type RedisPublisher struct {
	client       redisPublishClient
	channel      string
	stream       string
	streamMaxLen int64
	logger       *logrus.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redisPublishClient, logger *logrus.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:       client,
		channel:      LedgerEventsChannel,
		stream:       LedgerEventsStream,
		streamMaxLen: DefaultStreamMaxLen,
		logger:       logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"key":     event.Key(),
				"type":    string(event.Type),
				"payload": payload,
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to append event %s: %w", event.Key(), err)
		}

		// the stream already holds the event, a missed announcement is not a loss
		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			p.logger.WithError(err).WithField("eventKey", event.Key()).Warn("RedisPublisher.Publish.announce")
		}

		p.logger.WithFields(logrus.Fields{
			"eventType": event.Type,
			"eventKey":  event.Key(),
		}).Debug("RedisPublisher.Publish.published")
	}
	return nil
}
