/*
Package events publishes domain events for successful mutations.

Every create, update and delete of a resource produces an Event. Events are
fire and forget: a failing publisher is logged and never fails the request
that caused the event.
*/
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/logger"
)

// Event describes a mutation of a resource
type Event struct {
	Resource    string          `json:"resource"`
	Operation   core.Operation  `json:"operation"`
	ResourceID  int64           `json:"resourceID"`
	RequesterID int64           `json:"requesterID,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	// Context correlates the event with the request that caused it
	Context json.RawMessage `json:"context,omitempty"`
}

// Publisher publishes events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New returns an event for a mutation in the context of the current request
func New(ctx context.Context, resource string, operation core.Operation, resourceID, requesterID int64, payload interface{}) Event {
	event := Event{
		Resource:    resource,
		Operation:   operation,
		ResourceID:  resourceID,
		RequesterID: requesterID,
		CreatedAt:   time.Now().UTC(),
		Context:     logger.SerializeLoggerContext(ctx),
	}
	if payload != nil {
		if body, err := json.Marshal(payload); err == nil {
			event.Payload = body
		}
	}
	return event
}

// Emit publishes the event and logs a failure
func Emit(ctx context.Context, publisher Publisher, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4901: cannot publish %s %s event", event.Operation, event.Resource)
	}
}

// messageWriter is the part of kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to a kafka topic. Events of the same
// resource row share a key and therefore a partition, so consumers see them
// in order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic on the brokers.
// Writes are asynchronous, errors are reported to the log.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	rlog := logger.Default()
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				rlog.WithError(err).Errorf("Error 4902: cannot deliver %d events", len(messages))
			}
		},
	}
	return &KafkaPublisher{writer: writer}
}

// Publish implements Publisher
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Resource + ":" + strconv.FormatInt(event.ResourceID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "requestID", Value: []byte(logger.RequestIDFromContext(ctx))},
		},
		Time: event.CreatedAt,
	})
}

// Close flushes pending events
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the debug log. It is used when no broker is
// configured.
type LogPublisher struct{}

// Publish implements Publisher
func (LogPublisher) Publish(ctx context.Context, event Event) error {
	logger.FromContext(ctx).Debugf("event: %s %s #%d", event.Operation, event.Resource, event.ResourceID)
	return nil
}

// Close implements Publisher
func (LogPublisher) Close() error {
	return nil
}
