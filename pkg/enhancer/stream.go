package enhancer

import (
	"context"
	"sync"

	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrTurnStreamNil = errors.New("turn stream is nil")

// eventBuffer bounds how far the producer may run ahead of a slow consumer.
const eventBuffer = 16

// TurnStream is one in-flight assistant turn.
//
// Events yields partial completion events, then exactly one terminal event (final or error),
// then a payload-ready event when the reply contains an enhanced prompt; the channel is
// closed afterwards. The consumer must either drain Events or call Cancel. By the time the
// terminal event is delivered the assistant turn has been appended to the conversation.
type TurnStream struct {
	SessionID string
	StreamID  string

	events chan events.Event
	done   chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	text   string
	err    error
}

func newTurnStream(sessionID, streamID string, cancel context.CancelFunc) *TurnStream {
	return &TurnStream{
		SessionID: sessionID,
		StreamID:  streamID,
		events:    make(chan events.Event, eventBuffer),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

func (h *TurnStream) Events() <-chan events.Event {
	return h.events
}

// Cancel stops the stream. The text received so far is still appended to the conversation.
// It is safe to call multiple times.
func (h *TurnStream) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the assistant turn has been recorded and returns its text together with
// the failure that ended the stream, if any.
func (h *TurnStream) Wait() (string, error) {
	if h == nil {
		return "", ErrTurnStreamNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text, h.err
}

// Drain discards the remaining events and waits for the result.
func (h *TurnStream) Drain() (string, error) {
	if h == nil {
		return "", ErrTurnStreamNil
	}
	for range h.events {
	}
	return h.Wait()
}

// IsRunning reports whether the stream has not yet recorded its assistant turn.
func (h *TurnStream) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *TurnStream) setResult(text string, err error) {
	h.mu.Lock()
	h.text = text
	h.err = err
	h.cancel = nil
	h.mu.Unlock()
	close(h.done)
}

// emit delivers e unless ctx is cancelled first.
func (h *TurnStream) emit(ctx context.Context, e events.Event) bool {
	select {
	case h.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitTerminal delivers e even when ctx is cancelled. If the consumer stopped reading,
// undelivered events are dropped to make room.
func (h *TurnStream) emitTerminal(ctx context.Context, e events.Event) {
	if h.emit(ctx, e) {
		return
	}
	for {
		select {
		case h.events <- e:
			return
		default:
		}
		select {
		case stale := <-h.events:
			log.Trace().Str("event_type", string(stale.Type())).Str("stream_id", h.StreamID).Msg("Dropping undelivered event")
		default:
		}
	}
}
