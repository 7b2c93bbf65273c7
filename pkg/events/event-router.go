package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
)

// TopicUI is the topic sessions and wizards publish to in the CLI.
const TopicUI = "ui"

// EventRouter fans UI events out to terminal handlers over an in-process pub/sub.
type EventRouter struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	router     *message.Router
	logger     watermill.LoggerAdapter
	verbose    bool
	dumpWriter io.Writer
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

// WithVerbose routes watermill's own logs to zerolog and keeps message metadata in raw dumps.
func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = helpers.NewWatermillLogger(log.Logger)
		}
	}
}

// WithDumpWriter sets where DumpRawEvents writes. Defaults to stdout.
func WithDumpWriter(w io.Writer) EventRouterOption {
	return func(r *EventRouter) {
		r.dumpWriter = w
	}
}

// NewEventRouter creates a router over a gochannel pub/sub. Publishing blocks until every
// subscriber acked the message, so handlers see events in publish order.
func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	r := &EventRouter{
		logger:     watermill.NopLogger{},
		dumpWriter: os.Stdout,
	}
	for _, o := range options {
		o(r)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, r.logger)
	r.Publisher = helpers.CorrelationPublisherDecorator{Publisher: pubSub}
	r.Subscriber = pubSub

	router, err := message.NewRouter(message.RouterConfig{}, r.logger)
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}
	r.router = router
	return r, nil
}

// Close shuts down the pub/sub and then the router. Both are closed even if the first fails.
func (r *EventRouter) Close() error {
	pubErr := r.Publisher.Close()
	if pubErr != nil {
		log.Error().Err(pubErr).Msg("Failed to close event publisher")
	}
	routerErr := r.router.Close()
	if routerErr != nil {
		log.Error().Err(routerErr).Msg("Failed to close event router")
	}
	log.Debug().Msg("Event router closed")

	if pubErr != nil {
		return errors.Wrap(pubErr, "closing event publisher")
	}
	return errors.Wrap(routerErr, "closing event router")
}

// Sink returns an EventSink publishing to topic on this router.
func (r *EventRouter) Sink(topic string) *WatermillSink {
	return NewWatermillSink(r.Publisher, topic)
}

// AddHandler registers a consumer for topic. Handlers must ack their messages.
func (r *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

// DumpRawEvents writes each event as indented JSON. Unless verbose, the metadata block is
// reduced to the event type and the stream id.
func (r *EventRouter) DumpRawEvents(msg *message.Message) error {
	defer msg.Ack()

	var raw map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &raw); err != nil {
		return errors.Wrap(err, "could not decode event")
	}
	if r.verbose {
		raw[helpers.CorrelationIDMetadataKey] = helpers.CorrelationID(msg)
	} else if meta, ok := raw["meta"].(map[string]interface{}); ok {
		raw["stream_id"] = meta["stream_id"]
		delete(raw, "meta")
	}

	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.dumpWriter, string(b))
	return err
}

func (r *EventRouter) Running() chan struct{} {
	return r.router.Running()
}

func (r *EventRouter) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}
