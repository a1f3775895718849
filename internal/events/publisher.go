// Package events publishes portfolio lifecycle events to a Redis stream.
// A nil *Publisher is valid and drops every event, which is how the service
// runs when Redis is disabled.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
)

const (
	asyncPublishTimeout = 5 * time.Second
	// defaultMaxLen trims the stream approximately so it cannot grow unbounded.
	defaultMaxLen = 10000
)

// Publisher writes events with XADD.
type Publisher struct {
	client *redis.Client
	stream string
	log    infralogger.Logger
	wg     sync.WaitGroup
}

// NewPublisher returns nil when client is nil.
func NewPublisher(client *redis.Client, stream string, log infralogger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	if stream == "" {
		stream = infraevents.DefaultStreamName
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Publisher{
		client: client,
		stream: stream,
		log:    log,
	}
}

// Publish fills in a missing ID and timestamp and appends the event.
func (p *Publisher) Publish(ctx context.Context, event infraevents.Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	streamID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_type": string(event.EventType),
			"event":      string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}

	p.log.Debug("Published event",
		infralogger.String("event_type", string(event.EventType)),
		infralogger.String("entity_id", event.EntityID),
		infralogger.String("stream_id", streamID),
	)
	return nil
}

// PublishAsync publishes in the background; failures are only logged.
func (p *Publisher) PublishAsync(event infraevents.Event) {
	if p == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.log.Error("Async publish failed",
				infralogger.String("event_type", string(event.EventType)),
				infralogger.String("entity_id", event.EntityID),
				infralogger.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight PublishAsync calls finish.
func (p *Publisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
