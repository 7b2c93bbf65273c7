package helpers

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []*message.Message
}

func (r *recordingPublisher) Publish(_ string, messages ...*message.Message) error {
	r.published = append(r.published, messages...)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestCorrelationPublisherDecorator(t *testing.T) {
	rec := &recordingPublisher{}
	pub := CorrelationPublisherDecorator{Publisher: rec}

	fromCtx := message.NewMessage("1", nil)
	fromCtx.SetContext(ContextWithCorrelationID(context.Background(), "session-1"))

	preset := message.NewMessage("2", nil)
	preset.Metadata.Set(CorrelationIDMetadataKey, "kept")

	missing := message.NewMessage("3", nil)

	require.NoError(t, pub.Publish("ui", fromCtx, preset, missing))
	require.Len(t, rec.published, 3)

	assert.Equal(t, "session-1", CorrelationID(rec.published[0]))
	assert.Equal(t, "kept", CorrelationID(rec.published[1]))
	generated := CorrelationID(rec.published[2])
	assert.True(t, IsGeneratedCorrelationID(generated))
	assert.False(t, IsGeneratedCorrelationID("session-1"))
}

func TestCorrelationIDFromContext(t *testing.T) {
	_, ok := CorrelationIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := CorrelationIDFromContext(ContextWithCorrelationID(context.Background(), "w"))
	assert.True(t, ok)
	assert.Equal(t, "w", id)
}
