package helpers

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog/log"
)

// CorrelationIDMetadataKey is the watermill metadata key carrying the id of the session or
// wizard that produced a message.
const CorrelationIDMetadataKey = "correlation_id"

// generatedPrefix marks ids that were made up because the publisher did not pass one.
const generatedPrefix = "gen_"

type correlationIDKey struct{}

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CorrelationIDFromContext returns the id stored by ContextWithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationIDKey{}).(string)
	return v, ok && v != ""
}

// CorrelationID returns the correlation id stamped on msg, or "" if there is none.
func CorrelationID(msg *message.Message) string {
	return msg.Metadata.Get(CorrelationIDMetadataKey)
}

// IsGeneratedCorrelationID reports whether id was made up by CorrelationPublisherDecorator.
func IsGeneratedCorrelationID(id string) bool {
	return strings.HasPrefix(id, generatedPrefix)
}

// CorrelationPublisherDecorator stamps every outgoing message with the correlation id from
// its context. Messages that already carry one keep it.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if CorrelationID(msg) != "" {
			continue
		}
		id, ok := CorrelationIDFromContext(msg.Context())
		if !ok {
			id = generatedPrefix + shortuuid.New()
			log.Debug().Str("topic", topic).Str("message_uuid", msg.UUID).Msg("Message published without correlation id")
		}
		msg.Metadata.Set(CorrelationIDMetadataKey, id)
	}
	return c.Publisher.Publish(topic, messages...)
}
