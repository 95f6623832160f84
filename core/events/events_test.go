package events

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/logger"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	ctx, _ := logger.ContextWithLogger(context.Background())
	event := New(ctx, "issues", core.OperationCreate, 12, 5, core.Record{"title": "Pothole"})
	require.NoError(t, publisher.Publish(ctx, event))
	require.Len(t, writer.messages, 1)

	message := writer.messages[0]
	assert.Equal(t, "issues:12", string(message.Key))
	assert.Equal(t, "create", string(message.Headers[0].Value))
	assert.Equal(t, logger.RequestIDFromContext(ctx), string(message.Headers[1].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(message.Value, &decoded))
	assert.Equal(t, "issues", decoded.Resource)
	assert.Equal(t, int64(5), decoded.RequesterID)
	assert.JSONEq(t, `{"title":"Pothole"}`, string(decoded.Payload))
	assert.Contains(t, string(decoded.Context), logger.RequestIDFromContext(ctx))

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestEmitSwallowsErrors(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	Emit(context.Background(), &KafkaPublisher{writer: writer}, Event{Resource: "issues"})
	Emit(context.Background(), nil, Event{Resource: "issues"})
	Emit(context.Background(), LogPublisher{}, Event{Resource: "issues"})
	assert.Empty(t, writer.messages)
}
