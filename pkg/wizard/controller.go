// Package wizard builds a template field by field. For every field it asks the model for
// a few candidate values, lets the user pick one or type their own, offers refined
// variations of the current choice, and assembles the template once all four fields have
// been accepted.
package wizard

import (
	"context"
	"fmt"
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

// Step is the wizard position. Field steps index FieldSteps.
type Step int

const (
	StepName                   Step = -1
	StepSystemPrompt           Step = 0
	StepDomainKnowledge        Step = 1
	StepThinkingSteps          Step = 2
	StepClarifyingInstructions Step = 3
	StepDone                   Step = 4
)

func (s Step) IsField() bool {
	return s >= StepSystemPrompt && s <= StepClarifyingInstructions
}

// Number is the 1-based progress position including the name step.
func (s Step) Number() int {
	return int(s) + 2
}

func (s Step) Info() (FieldInfo, bool) {
	if !s.IsField() {
		return FieldInfo{}, false
	}
	return FieldSteps[s], true
}

// State is a snapshot of the wizard.
type State struct {
	Step      Step
	Name      string
	Accepted  map[templates.Field]string
	Candidate *string
	// Candidates is the last suggestion list received for the current step.
	Candidates []string
	Fetching   bool
	Cancelled  bool
}

type Controller struct {
	WizardID string

	settings *settings.Settings
	service  completion.Service
	sinks    []events.EventSink

	mu         sync.Mutex
	step       Step
	name       string
	accepted   map[templates.Field]string
	candidate  *string
	candidates []string
	generation uint64
	pending    *FetchHandle
	result     *templates.Template
	cancelled  bool
}

type Option func(*Controller)

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

func WithWizardID(id string) Option {
	return func(c *Controller) {
		c.WizardID = id
	}
}

func NewController(s *settings.Settings, service completion.Service, options ...Option) (*Controller, error) {
	if s == nil {
		return nil, errors.New("settings are required")
	}
	if service == nil {
		return nil, errors.New("completion service is required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ret := &Controller{
		WizardID: uuid.NewString(),
		settings: s.Clone(),
		service:  service,
		step:     StepName,
		accepted: map[templates.Field]string{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Step:       c.step,
		Name:       c.name,
		Accepted:   make(map[templates.Field]string, len(c.accepted)),
		Candidates: append([]string(nil), c.candidates...),
		Fetching:   c.pending != nil && c.pending.IsRunning(),
		Cancelled:  c.cancelled,
	}
	for k, v := range c.accepted {
		st.Accepted[k] = v
	}
	if c.candidate != nil {
		v := *c.candidate
		st.Candidate = &v
	}
	return st
}

// Result returns the assembled template once the wizard is done.
func (c *Controller) Result() (*templates.Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil, false
	}
	return c.result.Clone(), true
}

// SubmitName sets the template name and starts the first suggestion request.
func (c *Controller) SubmitName(ctx context.Context, name string) (*FetchHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "please enter a template name"}
	}

	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.step != StepName {
		c.mu.Unlock()
		return nil, ErrNameSubmitted
	}
	c.name = name
	toPublish := c.enterStepLocked(StepSystemPrompt)
	h := c.startFetchLocked(ctx, false)
	c.mu.Unlock()

	log.Info().Str("wizard_id", c.WizardID).Str("name", name).Msg("Template name submitted")
	c.publish(ctx, toPublish)
	return h, nil
}

// FetchSuggestions explicitly requests suggestions for the current step, for example to
// retry after a failure. Refinement only applies when a candidate is set.
func (c *Controller) FetchSuggestions(ctx context.Context, refine bool) (*FetchHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldStepLocked(); err != nil {
		return nil, err
	}
	if c.pending != nil && c.pending.IsRunning() {
		return nil, ErrFetchInFlight
	}
	return c.startFetchLocked(ctx, refine), nil
}

// SelectSuggestion makes candidate i the current value and asks for refined variations.
func (c *Controller) SelectSuggestion(ctx context.Context, i int) (*FetchHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldStepLocked(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(c.candidates) {
		return nil, &ValidationError{
			Field:   "selection",
			Message: fmt.Sprintf("index %d out of range (%d suggestions)", i, len(c.candidates)),
		}
	}
	v := c.candidates[i]
	c.candidate = &v
	return c.startFetchLocked(ctx, true), nil
}

// ProvideCustomValue makes text the current value and asks for refined variations.
func (c *Controller) ProvideCustomValue(ctx context.Context, text string) (*FetchHandle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "value", Message: "please enter some text"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldStepLocked(); err != nil {
		return nil, err
	}
	c.candidate = &text
	return c.startFetchLocked(ctx, true), nil
}

// Advance accepts the current value. It returns the fetch for the next field, or the
// assembled template after the last field. Without a current value nothing changes and
// ErrNoCandidate is returned.
func (c *Controller) Advance(ctx context.Context) (*FetchHandle, *templates.Template, error) {
	c.mu.Lock()
	if err := c.checkFieldStepLocked(); err != nil {
		c.mu.Unlock()
		return nil, nil, err
	}
	if c.candidate == nil {
		c.mu.Unlock()
		return nil, nil, ErrNoCandidate
	}

	fi := FieldSteps[c.step]
	c.accepted[fi.Field] = *c.candidate
	log.Debug().Str("wizard_id", c.WizardID).Str("field", string(fi.Field)).Msg("Field accepted")

	if c.step < StepClarifyingInstructions {
		toPublish := c.enterStepLocked(c.step + 1)
		h := c.startFetchLocked(ctx, false)
		c.mu.Unlock()
		c.publish(ctx, toPublish)
		return h, nil, nil
	}

	c.supersedeLocked()
	c.step = StepDone
	c.candidate = nil
	c.candidates = nil

	t := templates.NewTemplate(c.name)
	for _, f := range templates.Fields {
		t.Set(f, c.accepted[f])
	}
	t.Builtin = false
	c.result = t
	ret := t.Clone()
	c.mu.Unlock()

	log.Info().Str("wizard_id", c.WizardID).Str("template_id", t.ID).Str("name", t.Name).Msg("Template assembled")
	return nil, ret, nil
}

// Cancel abandons the wizard. A pending request is cancelled and no template is produced.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled || c.step == StepDone {
		return
	}
	c.cancelled = true
	c.supersedeLocked()
	log.Debug().Str("wizard_id", c.WizardID).Msg("Wizard cancelled")
}

func (c *Controller) checkActiveLocked() error {
	if c.cancelled {
		return ErrWizardCancelled
	}
	if c.step == StepDone {
		return ErrWizardDone
	}
	return nil
}

func (c *Controller) checkFieldStepLocked() error {
	if err := c.checkActiveLocked(); err != nil {
		return err
	}
	if c.step == StepName {
		return ErrNameNotSubmitted
	}
	return nil
}

// enterStepLocked resets the per-step state and returns the step event to publish once
// the lock is released.
func (c *Controller) enterStepLocked(step Step) events.Event {
	c.step = step
	c.candidate = nil
	c.candidates = nil
	fi := FieldSteps[step]
	return events.NewWizardStepEvent(c.metadata(""), step.Number(), TotalSteps, fi.Field, fi.Label, fi.Description)
}

// supersedeLocked invalidates the pending request so that its result is discarded.
func (c *Controller) supersedeLocked() {
	c.generation++
	if c.pending != nil {
		c.pending.abort()
		c.pending = nil
	}
}

func (c *Controller) startFetchLocked(ctx context.Context, refine bool) *FetchHandle {
	if ctx == nil {
		ctx = context.Background()
	}
	c.supersedeLocked()

	fi := FieldSteps[c.step]
	current := ""
	if refine && c.candidate != nil {
		current = *c.candidate
	} else {
		refine = false
	}

	accepted := make(map[templates.Field]string, len(c.accepted))
	for k, v := range c.accepted {
		accepted[k] = v
	}
	prompt := BuildSuggestionPrompt(SuggestionRequest{
		TemplateName: c.name,
		Field:        fi.Field,
		Accepted:     accepted,
		Current:      current,
	})
	req := &completion.Request{
		System:    SuggestionSystemPrompt,
		Messages:  []conversation.Turn{conversation.NewUserTurn(prompt)},
		Model:     c.settings.Model,
		MaxTokens: c.settings.MaxTokens,
		APIKey:    c.settings.APIKey,
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	h := newFetchHandle(uuid.NewString(), fi.Field, refine, c.step, c.generation, cancel)
	c.pending = h

	log.Debug().
		Str("wizard_id", c.WizardID).
		Str("fetch_id", h.ID).
		Str("field", string(fi.Field)).
		Bool("refine", refine).
		Msg("Fetching suggestions")

	go func() {
		defer cancel()
		text, err := completion.Collect(fetchCtx, c.service, req)
		var suggestions []string
		if err == nil {
			suggestions = parseSuggestions(text)
		}
		c.completeFetch(fetchCtx, h, suggestions, err)
	}()

	return h
}

func (c *Controller) completeFetch(ctx context.Context, h *FetchHandle, suggestions []string, err error) {
	c.mu.Lock()
	if c.cancelled || h.generation != c.generation || h.step != c.step {
		c.mu.Unlock()
		log.Warn().
			Str("wizard_id", c.WizardID).
			Str("fetch_id", h.ID).
			AnErr("fetch_error", err).
			Int("suggestions", len(suggestions)).
			Msg("Discarding superseded suggestions")
		h.setResult(nil, ErrFetchSuperseded)
		return
	}
	if c.pending == h {
		c.pending = nil
	}

	var e events.Event
	if err != nil {
		// the candidate list is left as it was
		log.Debug().Err(err).Str("fetch_id", h.ID).Msg("Suggestion request failed")
		e = events.NewSuggestionsErrorEvent(c.metadata(h.ID), h.Field, err)
	} else {
		c.candidates = suggestions
		e = events.NewSuggestionsUpdatedEvent(c.metadata(h.ID), h.Field, h.Refine, append([]string(nil), suggestions...))
	}
	c.mu.Unlock()

	c.publish(ctx, e)
	h.setResult(suggestions, err)
}

// publish forwards e to the controller sinks and to any sinks attached to ctx.
func (c *Controller) publish(ctx context.Context, e events.Event) {
	events.PublishToSinks(c.sinks, e)
	if ctx != nil {
		events.PublishEventToContext(ctx, e)
	}
}

// EventMetadata returns the metadata carried by this wizard's events.
func (c *Controller) EventMetadata() events.EventMetadata {
	return c.metadata("")
}

func (c *Controller) metadata(streamID string) events.EventMetadata {
	return events.NewEventMetadata(c.WizardID, streamID, c.settings.Model)
}

func parseSuggestions(text string) []string {
	blocks := parse.ExtractTagged(text, parse.TagSuggestion)
	ret := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b != "" {
			ret = append(ret, b)
		}
	}
	return ret
}
