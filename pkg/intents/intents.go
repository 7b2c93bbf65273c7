// Package intents is the single entry point from a user interface into the enhancement
// session and the template wizard. Every user action is one Intent value.
package intents

import (
	"context"

	"github.com/cosmicshuai/prompt-enhancer/pkg/enhancer"
	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/cosmicshuai/prompt-enhancer/pkg/wizard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Intent is implemented only by the types in this package.
type Intent interface {
	intent()
	Kind() string
}

type SubmitName struct{ Name string }

type SelectSuggestion struct{ Index int }

type ProvideCustom struct{ Text string }

type Advance struct{}

type FetchSuggestions struct{ Refine bool }

type SendMessage struct{ Text string }

// CancelWizard abandons the wizard.
type CancelWizard struct{}

func (SubmitName) intent()       {}
func (SelectSuggestion) intent() {}
func (ProvideCustom) intent()    {}
func (Advance) intent()          {}
func (FetchSuggestions) intent() {}
func (SendMessage) intent()      {}
func (CancelWizard) intent()     {}

func (SubmitName) Kind() string       { return "submit-name" }
func (SelectSuggestion) Kind() string { return "select-suggestion" }
func (ProvideCustom) Kind() string    { return "provide-custom" }
func (Advance) Kind() string          { return "advance" }
func (FetchSuggestions) Kind() string { return "fetch-suggestions" }
func (SendMessage) Kind() string      { return "send-message" }
func (CancelWizard) Kind() string     { return "cancel-wizard" }

var (
	ErrNoSession = errors.New("no enhancement session")
	ErrNoWizard  = errors.New("no template wizard")
)

// Outcome holds whatever the intent started or produced. At most one field is set.
type Outcome struct {
	Stream   *enhancer.TurnStream
	Fetch    *wizard.FetchHandle
	Template *templates.Template
}

// Dispatcher routes intents to a session, a wizard, or both.
type Dispatcher struct {
	session *enhancer.Session
	wizard  *wizard.Controller
	store   templates.Store
	sinks   []events.EventSink
}

type DispatcherOption func(*Dispatcher)

func WithSession(s *enhancer.Session) DispatcherOption {
	return func(d *Dispatcher) {
		d.session = s
	}
}

func WithWizard(w *wizard.Controller) DispatcherOption {
	return func(d *Dispatcher) {
		d.wizard = w
	}
}

// WithTemplateStore saves the template the wizard produces.
func WithTemplateStore(s templates.Store) DispatcherOption {
	return func(d *Dispatcher) {
		d.store = s
	}
}

// WithEventSinks adds sinks that receive the template-created event.
func WithEventSinks(sinks ...events.EventSink) DispatcherOption {
	return func(d *Dispatcher) {
		d.sinks = append(d.sinks, sinks...)
	}
}

func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	ret := &Dispatcher{}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (d *Dispatcher) Dispatch(ctx context.Context, i Intent) (*Outcome, error) {
	if i == nil {
		return nil, errors.New("intent is nil")
	}
	log.Trace().Str("intent", i.Kind()).Msg("Dispatching intent")

	if s, ok := i.(SendMessage); ok {
		if d.session == nil {
			return nil, ErrNoSession
		}
		stream, err := d.session.SendMessage(ctx, s.Text)
		if err != nil {
			return nil, err
		}
		return &Outcome{Stream: stream}, nil
	}

	if d.wizard == nil {
		return nil, ErrNoWizard
	}

	var h *wizard.FetchHandle
	var err error
	switch i_ := i.(type) {
	case SubmitName:
		h, err = d.wizard.SubmitName(ctx, i_.Name)
	case SelectSuggestion:
		h, err = d.wizard.SelectSuggestion(ctx, i_.Index)
	case ProvideCustom:
		h, err = d.wizard.ProvideCustomValue(ctx, i_.Text)
	case FetchSuggestions:
		h, err = d.wizard.FetchSuggestions(ctx, i_.Refine)
	case CancelWizard:
		d.wizard.Cancel()
		return &Outcome{}, nil
	case Advance:
		var t *templates.Template
		h, t, err = d.wizard.Advance(ctx)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return d.saveTemplate(ctx, t)
		}
	default:
		return nil, errors.Errorf("unknown intent %T", i)
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Fetch: h}, nil
}

// saveTemplate stores t when a store is configured and announces it. Nothing is announced
// when the save fails; the unsaved template is returned alongside the error.
func (d *Dispatcher) saveTemplate(ctx context.Context, t *templates.Template) (*Outcome, error) {
	if d.store != nil {
		saved, err := d.store.Save(ctx, t)
		if err != nil {
			return &Outcome{Template: t}, errors.Wrap(err, "could not save template")
		}
		log.Info().Str("template_id", saved.ID).Str("name", saved.Name).Msg("Template saved")
		t = saved
	}

	e := events.NewTemplateCreatedEvent(d.wizard.EventMetadata(), t.Clone())
	events.PublishToSinks(d.sinks, e)
	if ctx != nil {
		events.PublishEventToContext(ctx, e)
	}
	return &Outcome{Template: t}, nil
}
