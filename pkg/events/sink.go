package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// EventSink is the UI boundary: sessions and wizards hand every event they emit to their
// sinks.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// WatermillSink publishes events to a watermill Publisher.
// This allows events to be distributed through the watermill message bus
// to multiple subscribers.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent serializes the event to JSON and publishes it as a watermill message. The
// session id travels as the message correlation id.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if sessionID := event.Metadata().SessionID; sessionID != "" {
		msg.SetContext(helpers.ContextWithCorrelationID(msg.Context(), sessionID))
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// CollectingSink records events in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

var _ EventSink = (*CollectingSink)(nil)

func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (c *CollectingSink) PublishEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (c *CollectingSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Types returns the types of everything published so far.
func (c *CollectingSink) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]EventType, 0, len(c.events))
	for _, e := range c.events {
		ret = append(ret, e.Type())
	}
	return ret
}

// PublishToSinks hands event to every sink. Sink failures are logged and do not stop the
// caller.
func PublishToSinks(sinks []EventSink, event Event) {
	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("Event sink failed")
		}
	}
}
