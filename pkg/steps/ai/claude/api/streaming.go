package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type StreamingEventType string

const (
	PingType              StreamingEventType = "ping"
	MessageStartType      StreamingEventType = "message_start"
	ContentBlockStartType StreamingEventType = "content_block_start"
	ContentBlockDeltaType StreamingEventType = "content_block_delta"
	ContentBlockStopType  StreamingEventType = "content_block_stop"
	MessageDeltaType      StreamingEventType = "message_delta"
	MessageStopType       StreamingEventType = "message_stop"
	ErrorType             StreamingEventType = "error"
)

type StreamingDeltaType string

const (
	TextDeltaType StreamingDeltaType = "text_delta"
)

// ReadErrorType marks error events synthesized by the client when the response body could
// not be read, as opposed to error events sent by the API.
const ReadErrorType = "stream_read_error"

type StreamingEvent struct {
	Type         StreamingEventType `json:"type"`
	Message      *MessageResponse   `json:"message,omitempty"`
	Delta        *Delta             `json:"delta,omitempty"`
	Error        *Error             `json:"error,omitempty"`
	Index        int                `json:"index,omitempty"`
	Usage        *Usage             `json:"usage,omitempty"`
	ContentBlock *ContentBlock      `json:"content_block,omitempty"`
}

func (s StreamingEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(s.Type))

	if s.Delta != nil {
		e.Object("delta", s.Delta)
	}

	if s.Error != nil {
		e.Object("error", s.Error)
	}

	if s.Index != 0 {
		e.Int("index", s.Index)
	}

	if s.Usage != nil {
		e.Int("output_tokens", s.Usage.OutputTokens)
	}
}

var _ zerolog.LogObjectMarshaler = StreamingEvent{}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Delta struct {
	Type         StreamingDeltaType `json:"type"`
	Text         string             `json:"text,omitempty"`
	StopReason   string             `json:"stop_reason,omitempty"`
	StopSequence string             `json:"stop_sequence,omitempty"`
}

func (err Error) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", err.Type)
	e.Str("message", err.Message)
}

func (d Delta) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(d.Type))
	if d.Text != "" {
		e.Str("text", d.Text)
	}
	if d.StopReason != "" {
		e.Str("stop_reason", d.StopReason)
	}
}

// TextDelta returns the text carried by a content_block_delta event, if any.
func (s StreamingEvent) TextDelta() (string, bool) {
	if s.Type != ContentBlockDeltaType || s.Delta == nil || s.Delta.Type != TextDeltaType {
		return "", false
	}
	return s.Delta.Text, true
}

func sendEvent(ctx context.Context, events chan<- StreamingEvent, event StreamingEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// streamEvents decodes the SSE body into events until the body ends, a read fails, or ctx
// is done. Events that are not valid JSON are skipped.
func streamEvents(ctx context.Context, body io.ReadCloser, events chan<- StreamingEvent) {
	defer func() {
		_ = body.Close()
	}()

	dec := newSSEDecoder(body)
	count := 0
	for {
		data, err := dec.Next()
		if err == io.EOF {
			log.Debug().Int("events", count).Msg("Claude stream body finished")
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Reading claude stream failed")
			sendEvent(ctx, events, StreamingEvent{
				Type:  ErrorType,
				Error: &Error{Type: ReadErrorType, Message: err.Error()},
			})
			return
		}

		var event StreamingEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Debug().Err(err).Msg("Skipping undecodable stream event")
			continue
		}
		count++
		log.Trace().Int("event_number", count).Object("event", event).Msg("Claude stream event")
		if !sendEvent(ctx, events, event) {
			return
		}
	}
}

// sseDecoder splits a text/event-stream body into the data payloads of its events.
type sseDecoder struct {
	r    *bufio.Reader
	data bytes.Buffer
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{r: bufio.NewReader(r)}
}

// Next returns the joined data lines of the next event. Events without data are skipped.
// It returns io.EOF after the last event.
func (d *sseDecoder) Next() ([]byte, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			d.field(line)
		}
		if err != nil {
			if err == io.EOF && d.data.Len() > 0 {
				return d.take(), nil
			}
			return nil, err
		}
		if len(line) == 0 && d.data.Len() > 0 {
			return d.take(), nil
		}
	}
}

func (d *sseDecoder) field(line []byte) {
	name, value, found := bytes.Cut(line, []byte(":"))
	if !found || string(name) != "data" {
		return
	}
	if d.data.Len() > 0 {
		d.data.WriteByte('\n')
	}
	d.data.Write(bytes.TrimPrefix(value, []byte(" ")))
}

func (d *sseDecoder) take() []byte {
	ret := append([]byte(nil), d.data.Bytes()...)
	d.data.Reset()
	return ret
}
