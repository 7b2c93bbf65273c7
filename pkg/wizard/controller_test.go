package wizard

import (
	"context"
	"strings"
	"testing"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/completion/fixtures"
	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestions(values ...string) fixtures.Response {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString("<suggestion>\n" + v + "\n</suggestion>\n")
	}
	return fixtures.Response{Fragments: []string{sb.String()}}
}

func newTestController(t *testing.T, service completion.Service, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(settings.NewSettings().WithAPIKey("sk-test"), service, opts...)
	require.NoError(t, err)
	return c
}

func waitOK(t *testing.T, h *FetchHandle) []string {
	t.Helper()
	require.NotNil(t, h)
	got, err := h.Wait()
	require.NoError(t, err)
	return got
}

func TestWizardCompletion(t *testing.T) {
	service := fixtures.NewScriptedService()
	for _, f := range templates.Fields {
		service.Push(
			suggestions(string(f)+"-1", string(f)+"-2", string(f)+"-3"),
			suggestions(string(f)+"-refined"),
		)
	}
	sink := events.NewCollectingSink()
	c := newTestController(t, service, WithEventSinks(sink))

	h, err := c.SubmitName(context.Background(), "  Foo ")
	require.NoError(t, err)

	var tmpl *templates.Template
	for i, f := range templates.Fields {
		got := waitOK(t, h)
		require.Len(t, got, 3)
		assert.Equal(t, Step(i), c.State().Step)

		refine, err := c.SelectSuggestion(context.Background(), 0)
		require.NoError(t, err)
		assert.True(t, refine.Refine)
		assert.Equal(t, []string{string(f) + "-refined"}, waitOK(t, refine))

		var next *FetchHandle
		next, tmpl, err = c.Advance(context.Background())
		require.NoError(t, err)
		h = next
		if i < len(templates.Fields)-1 {
			require.NotNil(t, next)
			assert.Nil(t, tmpl)
		}
	}

	require.NotNil(t, tmpl)
	assert.Nil(t, h)
	assert.Equal(t, "Foo", tmpl.Name)
	assert.False(t, tmpl.Builtin)
	assert.NotEmpty(t, tmpl.ID)
	assert.NoError(t, tmpl.Validate())
	for _, f := range templates.Fields {
		assert.Equal(t, string(f)+"-1", tmpl.Get(f))
	}
	assert.Equal(t, StepDone, c.State().Step)

	res, ok := c.Result()
	require.True(t, ok)
	assert.Equal(t, tmpl, res)

	var stepNumbers []int
	for _, e := range sink.Events() {
		switch e_ := e.(type) {
		case *events.EventWizardStep:
			stepNumbers = append(stepNumbers, e_.Number)
			assert.Equal(t, TotalSteps, e_.Total)
			assert.Equal(t, c.WizardID, e_.Metadata().SessionID)
		case *events.EventTemplateCreated:
			t.Errorf("wizard announced template %q before it was stored", e_.Template.Name)
		}
	}
	assert.Equal(t, []int{2, 3, 4, 5}, stepNumbers)

	_, _, err = c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrWizardDone)
}

func TestAdvanceRequiresCandidate(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("a", "b"), suggestions("a2"), suggestions("x"))
	c := newTestController(t, service)

	_, _, err := c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNameNotSubmitted)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)

	before := c.State()
	_, _, err = c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, before, c.State())

	h, err = c.SelectSuggestion(context.Background(), 1)
	require.NoError(t, err)
	waitOK(t, h)
	state := c.State()
	require.NotNil(t, state.Candidate)
	assert.Equal(t, "b", *state.Candidate)

	h, _, err = c.Advance(context.Background())
	require.NoError(t, err)
	waitOK(t, h)

	state = c.State()
	assert.Equal(t, StepDomainKnowledge, state.Step)
	assert.Nil(t, state.Candidate)
	assert.Equal(t, map[templates.Field]string{templates.FieldSystemPrompt: "b"}, state.Accepted)

	// the next step starts over
	_, _, err = c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, StepDomainKnowledge, c.State().Step)
}

func TestZeroSuggestionsAllowCustomValue(t *testing.T) {
	service := fixtures.NewScriptedService(fixtures.Response{Fragments: []string{"Sorry, no ideas."}})
	c := newTestController(t, service)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	assert.Empty(t, waitOK(t, h))
	assert.Empty(t, c.State().Candidates)

	_, err = c.SelectSuggestion(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	h, err = c.ProvideCustomValue(context.Background(), "  my own value \n")
	require.NoError(t, err)
	// the script is exhausted, so the refine request returns nothing
	assert.Empty(t, waitOK(t, h))

	h, _, err = c.Advance(context.Background())
	require.NoError(t, err)
	waitOK(t, h)
	assert.Equal(t, "my own value", c.State().Accepted[templates.FieldSystemPrompt])
}

func TestValidationNeverReachesService(t *testing.T) {
	service := fixtures.NewScriptedService()
	c := newTestController(t, service)

	_, err := c.SubmitName(context.Background(), "   ")
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "name", v.Field)

	_, err = c.ProvideCustomValue(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNameNotSubmitted)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)
	require.Len(t, service.Requests(), 1)

	_, err = c.ProvideCustomValue(context.Background(), " \t ")
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "value", v.Field)
	_, err = c.SelectSuggestion(context.Background(), -1)
	assert.True(t, IsValidationError(err))
	_, err = c.SubmitName(context.Background(), "Bar")
	assert.ErrorIs(t, err, ErrNameSubmitted)

	assert.Len(t, service.Requests(), 1)
}

func TestSuggestionRequestContents(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("sp"), suggestions("sp2"), suggestions("dk"))
	c := newTestController(t, service)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)
	h, err = c.SelectSuggestion(context.Background(), 0)
	require.NoError(t, err)
	waitOK(t, h)
	h, _, err = c.Advance(context.Background())
	require.NoError(t, err)
	waitOK(t, h)

	reqs := service.Requests()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, SuggestionSystemPrompt, r.System)
		assert.Equal(t, "sk-test", r.APIKey)
		require.Len(t, r.Messages, 1)
	}
	assert.Contains(t, reqs[0].Messages[0].Content, "from scratch")
	assert.Contains(t, reqs[1].Messages[0].Content, "The user's current value for this field is:\nsp")
	assert.Contains(t, reqs[2].Messages[0].Content, "Field to fill: Domain Knowledge")
	assert.Contains(t, reqs[2].Messages[0].Content, "  System Prompt: sp")
	assert.Contains(t, reqs[2].Messages[0].Content, "from scratch")
}

func TestRefineWithoutCandidateFetchesFromScratch(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("a"), suggestions("b"))
	c := newTestController(t, service)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)

	h, err = c.FetchSuggestions(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, h.Refine)
	assert.Equal(t, []string{"b"}, waitOK(t, h))
	last, ok := service.LastRequest()
	require.True(t, ok)
	assert.Contains(t, last.Messages[0].Content, "from scratch")
}

func TestFetchInFlightAndSupersede(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("same"), suggestions("same"))
	service.Gate = make(chan struct{})
	c := newTestController(t, service)

	h1, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	assert.True(t, c.State().Fetching)

	_, err = c.FetchSuggestions(context.Background(), false)
	assert.ErrorIs(t, err, ErrFetchInFlight)

	h2, err := c.ProvideCustomValue(context.Background(), "custom")
	require.NoError(t, err)

	_, err = h1.Wait()
	assert.ErrorIs(t, err, ErrFetchSuperseded)

	service.Gate <- struct{}{}
	assert.Equal(t, []string{"same"}, waitOK(t, h2))
	assert.Equal(t, []string{"same"}, c.State().Candidates)
	assert.False(t, c.State().Fetching)
}

func TestResultDiscardedAfterStepMoved(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("a"), suggestions("b"), suggestions("b"))
	c := newTestController(t, service)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)

	service.Gate = make(chan struct{})
	refine, err := c.SelectSuggestion(context.Background(), 0)
	require.NoError(t, err)

	next, _, err := c.Advance(context.Background())
	require.NoError(t, err)

	_, err = refine.Wait()
	assert.ErrorIs(t, err, ErrFetchSuperseded)

	service.Gate <- struct{}{}
	got := waitOK(t, next)
	require.Len(t, got, 1)

	state := c.State()
	assert.Equal(t, StepDomainKnowledge, state.Step)
	assert.Equal(t, got, state.Candidates)
	assert.Nil(t, state.Candidate)
}

func TestFetchFailureClassification(t *testing.T) {
	authErr := &completion.AuthenticationError{StatusCode: 401, Message: "invalid x-api-key"}
	transportErr := completion.NewTransportError(nil, "overloaded")
	service := fixtures.NewScriptedService(
		suggestions("a", "b"),
		fixtures.Response{StartErr: authErr},
		fixtures.Response{Fragments: []string{"<suggestion>partial"}, Err: transportErr},
	)
	sink := events.NewCollectingSink()
	c := newTestController(t, service, WithEventSinks(sink))

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)
	waitOK(t, h)

	h, err = c.SelectSuggestion(context.Background(), 1)
	require.NoError(t, err)
	_, err = h.Wait()
	assert.True(t, completion.IsAuthentication(err))
	assert.Equal(t, []string{"a", "b"}, c.State().Candidates)

	h, err = c.FetchSuggestions(context.Background(), true)
	require.NoError(t, err)
	_, err = h.Wait()
	assert.Same(t, transportErr, err)
	assert.Equal(t, []string{"a", "b"}, c.State().Candidates)

	// failures do not change control flow
	_, _, err = c.Advance(context.Background())
	require.NoError(t, err)
	c.Cancel()

	var errs []*events.EventSuggestionsError
	for _, e := range sink.Events() {
		if e_, ok := e.(*events.EventSuggestionsError); ok {
			errs = append(errs, e_)
		}
	}
	require.Len(t, errs, 2)
	assert.Equal(t, completion.FailureAuth, errs[0].Kind)
	assert.Equal(t, "Invalid API key. Please check your settings.", errs[0].UserMessage)
	assert.Equal(t, completion.FailureOther, errs[1].Kind)
	assert.Equal(t, "overloaded", errs[1].UserMessage)
}

func TestCancelAbandonsWizard(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("a"))
	service.Gate = make(chan struct{})
	c := newTestController(t, service)

	h, err := c.SubmitName(context.Background(), "Foo")
	require.NoError(t, err)

	c.Cancel()
	_, err = h.Wait()
	assert.ErrorIs(t, err, ErrFetchSuperseded)

	_, err = c.ProvideCustomValue(context.Background(), "x")
	assert.ErrorIs(t, err, ErrWizardCancelled)
	_, _, err = c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrWizardCancelled)

	_, ok := c.Result()
	assert.False(t, ok)
	assert.True(t, c.State().Cancelled)
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(nil, fixtures.NewScriptedService())
	assert.Error(t, err)
	_, err = NewController(settings.NewSettings(), nil)
	assert.Error(t, err)
}

func TestContextSinksReceiveWizardEvents(t *testing.T) {
	service := fixtures.NewScriptedService(suggestions("a", "b"))
	fromCtx := events.NewCollectingSink()
	c := newTestController(t, service)

	ctx := events.WithEventSinks(context.Background(), fromCtx)
	h, err := c.SubmitName(ctx, "Foo")
	require.NoError(t, err)
	waitOK(t, h)

	assert.ElementsMatch(t, []events.EventType{
		events.EventTypeWizardStep,
		events.EventTypeSuggestionsUpdated,
	}, fromCtx.Types())
}
