package events

import (
	"encoding/json"
	"fmt"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypePartialCompletion to EventTypePayloadReady are emitted by an enhancement session
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"
	EventTypePayloadReady      EventType = "payload-ready"

	// wizard
	EventTypeSuggestionsUpdated EventType = "suggestions-updated"
	EventTypeSuggestionsError   EventType = "suggestions-error"
	EventTypeWizardStep         EventType = "wizard-step"
	EventTypeTemplateCreated    EventType = "template-created"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

// EventMetadata is passed along with every event. SessionID identifies the session or
// wizard that emitted it, StreamID the single request within it.
type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	StreamID  string    `json:"stream_id,omitempty" yaml:"stream_id,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	// Extra carries caller-specific values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewEventMetadata returns metadata with a fresh message id.
func NewEventMetadata(sessionID, streamID, model string) EventMetadata {
	return EventMetadata{
		ID:        uuid.New(),
		SessionID: sessionID,
		StreamID:  streamID,
		Model:     model,
	}
}

// WithNewID returns a copy of em carrying a fresh message id.
func (em EventMetadata) WithNewID() EventMetadata {
	em.ID = uuid.New()
	return em
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.StreamID != "" {
		e.Str("stream_id", em.StreamID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

// EventPartialCompletion carries one streamed fragment and the text accumulated so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventFinal{}

// EventError terminates a stream that failed or was cancelled. Text is whatever had been
// received before the failure.
type EventError struct {
	EventImpl
	ErrorString string                 `json:"error_string"`
	Kind        completion.FailureKind `json:"kind"`
	UserMessage string                 `json:"user_message"`
	Text        string                 `json:"text,omitempty"`
}

func NewErrorEvent(metadata EventMetadata, err error, text string) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
		Kind:        completion.Classify(err),
		UserMessage: completion.UserMessage(err),
		Text:        text,
	}
}

var _ Event = &EventError{}

// EventPayloadReady follows a final event whose text contained an enhanced prompt.
type EventPayloadReady struct {
	EventImpl
	Prompt string `json:"prompt"`
}

func NewPayloadReadyEvent(metadata EventMetadata, prompt string) *EventPayloadReady {
	return &EventPayloadReady{
		EventImpl: EventImpl{Type_: EventTypePayloadReady, Metadata_: metadata},
		Prompt:    prompt,
	}
}

var _ Event = &EventPayloadReady{}

type EventSuggestionsUpdated struct {
	EventImpl
	Field       templates.Field `json:"field"`
	Refined     bool            `json:"refined"`
	Suggestions []string        `json:"suggestions"`
}

func NewSuggestionsUpdatedEvent(metadata EventMetadata, field templates.Field, refined bool, suggestions []string) *EventSuggestionsUpdated {
	return &EventSuggestionsUpdated{
		EventImpl:   EventImpl{Type_: EventTypeSuggestionsUpdated, Metadata_: metadata},
		Field:       field,
		Refined:     refined,
		Suggestions: suggestions,
	}
}

var _ Event = &EventSuggestionsUpdated{}

type EventSuggestionsError struct {
	EventImpl
	Field       templates.Field        `json:"field"`
	ErrorString string                 `json:"error_string"`
	Kind        completion.FailureKind `json:"kind"`
	UserMessage string                 `json:"user_message"`
}

func NewSuggestionsErrorEvent(metadata EventMetadata, field templates.Field, err error) *EventSuggestionsError {
	return &EventSuggestionsError{
		EventImpl:   EventImpl{Type_: EventTypeSuggestionsError, Metadata_: metadata},
		Field:       field,
		ErrorString: err.Error(),
		Kind:        completion.Classify(err),
		UserMessage: completion.UserMessage(err),
	}
}

var _ Event = &EventSuggestionsError{}

// EventWizardStep announces the field the wizard now collects. Number is 1-based and counts
// the name step, so the first field is step 2 of Total.
type EventWizardStep struct {
	EventImpl
	Number      int             `json:"number"`
	Total       int             `json:"total"`
	Field       templates.Field `json:"field"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
}

func NewWizardStepEvent(metadata EventMetadata, number, total int, field templates.Field, label, description string) *EventWizardStep {
	return &EventWizardStep{
		EventImpl:   EventImpl{Type_: EventTypeWizardStep, Metadata_: metadata},
		Number:      number,
		Total:       total,
		Field:       field,
		Label:       label,
		Description: description,
	}
}

var _ Event = &EventWizardStep{}

type EventTemplateCreated struct {
	EventImpl
	Template *templates.Template `json:"template"`
}

func NewTemplateCreatedEvent(metadata EventMetadata, t *templates.Template) *EventTemplateCreated {
	return &EventTemplateCreated{
		EventImpl: EventImpl{Type_: EventTypeTemplateCreated, Metadata_: metadata},
		Template:  t,
	}
}

var _ Event = &EventTemplateCreated{}

// IsTerminal reports whether e ends a session stream.
func IsTerminal(e Event) bool {
	t := e.Type()
	return t == EventTypeFinal || t == EventTypeError
}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypePartialCompletion:
		return toTyped[EventPartialCompletion](e)
	case EventTypeFinal:
		return toTyped[EventFinal](e)
	case EventTypeError:
		return toTyped[EventError](e)
	case EventTypePayloadReady:
		return toTyped[EventPayloadReady](e)
	case EventTypeSuggestionsUpdated:
		return toTyped[EventSuggestionsUpdated](e)
	case EventTypeSuggestionsError:
		return toTyped[EventSuggestionsError](e)
	case EventTypeWizardStep:
		return toTyped[EventWizardStep](e)
	case EventTypeTemplateCreated:
		return toTyped[EventTemplateCreated](e)
	}

	return e, nil
}

type typedEvent[T any] interface {
	*T
	Event
	setPayload([]byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func toTyped[T any, PT typedEvent[T]](e *EventImpl) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, fmt.Errorf("could not cast event to %s", e.Type_)
	}
	PT(ret).setPayload(e.payload)
	return PT(ret), nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
