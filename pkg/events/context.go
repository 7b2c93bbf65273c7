package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

type sinksKey struct{}

// WithEventSinks returns a context carrying sinks in addition to any already attached.
// Sessions and wizard controllers publish to these next to their own sinks.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := make([]EventSink, 0, len(existing)+len(sinks))
	combined = append(combined, existing...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, sinksKey{}, combined)
}

func GetEventSinks(ctx context.Context) []EventSink {
	sinks, _ := ctx.Value(sinksKey{}).([]EventSink)
	return sinks
}

// PublishEventToContext publishes event to the sinks attached to ctx, if any.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		return
	}
	log.Trace().Str("event_type", string(event.Type())).Int("sinks", len(sinks)).Msg("Publishing event to context sinks")
	PublishToSinks(sinks, event)
}
