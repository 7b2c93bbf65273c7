// Package enhancer runs the enhancement conversation: it owns the conversation history,
// derives the system prompt from a template, streams each reply, and extracts the enhanced
// prompt once the model produces one.
package enhancer

import (
	"context"
	"strings"
	"sync"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/conversation"
	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/parse"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrSessionAlreadyActive = errors.New("session already has an active stream")
	ErrSessionNoActive      = errors.New("session has no active stream")
)

// Session is one enhancement conversation. Only one stream may be active at a time.
type Session struct {
	SessionID string

	template *templates.Template
	settings *settings.Settings
	service  completion.Service
	sinks    []events.EventSink

	conversation *conversation.Conversation

	mu     sync.Mutex
	active *TurnStream
}

type Option func(*Session)

// WithEventSinks adds sinks that receive every event the session emits.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithSessionID(id string) Option {
	return func(s *Session) {
		s.SessionID = id
	}
}

// NewSession creates a session for tmpl. The template and settings are copied; later
// changes by the caller do not affect the session.
func NewSession(tmpl *templates.Template, s *settings.Settings, service completion.Service, options ...Option) (*Session, error) {
	if tmpl == nil {
		return nil, errors.New("template is required")
	}
	if s == nil {
		return nil, errors.New("settings are required")
	}
	if service == nil {
		return nil, errors.New("completion service is required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ret := &Session{
		SessionID:    uuid.NewString(),
		template:     tmpl.Clone(),
		settings:     s.Clone(),
		service:      service,
		conversation: conversation.NewConversation(),
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

// Template returns a copy of the session template.
func (s *Session) Template() *templates.Template {
	return s.template.Clone()
}

// SystemPrompt is derived from the template on every call.
func (s *Session) SystemPrompt() string {
	return BuildSystemPrompt(s.template)
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []conversation.Turn {
	return s.conversation.Turns()
}

func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

// ExtractLatestPayload returns the last enhanced prompt in the most recent assistant turn.
// Earlier turns are not searched.
func (s *Session) ExtractLatestPayload() (string, bool) {
	last, ok := s.conversation.LastOfRole(conversation.RoleAssistant)
	if !ok {
		return "", false
	}
	return parse.LatestTagged(last.Content, parse.TagEnhancedPrompt)
}

// SendMessage appends text as a user turn and starts streaming the reply. Empty text is
// sent as an empty turn. A second call while a stream is active fails with
// ErrSessionAlreadyActive and leaves the conversation untouched.
func (s *Session) SendMessage(ctx context.Context, text string) (*TurnStream, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.active != nil && s.active.IsRunning() {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}

	s.conversation.Append(conversation.NewUserTurn(text))
	req := &completion.Request{
		System:    s.SystemPrompt(),
		Messages:  s.conversation.Turns(),
		Model:     s.settings.Model,
		MaxTokens: s.settings.MaxTokens,
		APIKey:    s.settings.APIKey,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	handle := newTurnStream(s.SessionID, uuid.NewString(), cancel)
	s.active = handle
	s.mu.Unlock()

	log.Debug().
		Str("session_id", s.SessionID).
		Str("stream_id", handle.StreamID).
		Int("turns", len(req.Messages)).
		Msg("Sending message")

	go s.run(streamCtx, cancel, handle, req)

	return handle, nil
}

// CancelActive cancels the active stream, if any.
func (s *Session) CancelActive() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, h *TurnStream, req *completion.Request) {
	defer cancel()
	defer close(h.events)

	meta := events.NewEventMetadata(s.SessionID, h.StreamID, req.Model)
	publish := func(e events.Event) bool {
		s.publish(ctx, e)
		return h.emit(ctx, e)
	}

	var sb strings.Builder
	var err error

	c, err := s.service.Stream(ctx, req)
	if err == nil {
	loop:
		for {
			select {
			case r, ok := <-c:
				if !ok {
					err = ctx.Err()
					break loop
				}
				fragment, rErr := r.Value()
				if rErr != nil {
					err = rErr
					break loop
				}
				sb.WriteString(fragment)
				if !publish(events.NewPartialCompletionEvent(meta.WithNewID(), fragment, sb.String())) {
					err = ctx.Err()
					break loop
				}
			case <-ctx.Done():
				err = ctx.Err()
				break loop
			}
		}
	}

	text := sb.String()
	s.finish(h, text, err)

	if err != nil {
		log.Debug().Err(err).Str("stream_id", h.StreamID).Int("partial_length", len(text)).Msg("Stream ended with failure")
		e := events.NewErrorEvent(meta.WithNewID(), err, text)
		s.publish(ctx, e)
		h.emitTerminal(ctx, e)
		return
	}

	final := events.NewFinalEvent(meta.WithNewID(), text)
	s.publish(ctx, final)
	h.emitTerminal(ctx, final)

	if payload, ok := parse.LatestTagged(text, parse.TagEnhancedPrompt); ok {
		log.Info().Str("session_id", s.SessionID).Int("length", len(payload)).Msg("Enhanced prompt ready")
		e := events.NewPayloadReadyEvent(meta.WithNewID(), payload)
		s.publish(ctx, e)
		h.emitTerminal(ctx, e)
	}
}

// publish forwards e to the session sinks and to any sinks attached to ctx.
func (s *Session) publish(ctx context.Context, e events.Event) {
	events.PublishToSinks(s.sinks, e)
	events.PublishEventToContext(ctx, e)
}

// finish records the assistant turn and releases the session for the next message.
func (s *Session) finish(h *TurnStream, text string, err error) {
	s.mu.Lock()
	s.conversation.Append(conversation.NewAssistantTurn(text))
	if s.active == h {
		s.active = nil
	}
	s.mu.Unlock()
	h.setResult(text, err)
}
