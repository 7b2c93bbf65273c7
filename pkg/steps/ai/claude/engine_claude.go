package claude

import (
	"context"
	"errors"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude/api"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/rs/zerolog/log"
)

// ClaudeEngine implements completion.Service on top of the Anthropic Messages API.
type ClaudeEngine struct {
	settings *settings.Settings
}

var _ completion.Service = (*ClaudeEngine)(nil)

// NewClaudeEngine creates a new Claude engine. The settings are cloned.
func NewClaudeEngine(s *settings.Settings) *ClaudeEngine {
	return &ClaudeEngine{settings: s.Clone()}
}

func (e *ClaudeEngine) client(apiKey string) *api.Client {
	opts := []api.ClientOption{api.WithHTTPClient(e.settings.Client.NewHTTPClient())}
	if e.settings.AllowInsecureBaseURL {
		opts = append(opts, api.WithInsecureBaseURL())
	}
	if cs := e.settings.Client; cs != nil && cs.UserAgent != nil {
		opts = append(opts, api.WithUserAgent(*cs.UserAgent))
	}
	return api.NewClient(apiKey, e.settings.BaseURL, opts...)
}

// Stream starts a streaming completion. Text deltas are forwarded as fragments; anything
// else the API sends is only logged.
func (e *ClaudeEngine) Stream(ctx context.Context, req *completion.Request) (<-chan helpers.Result[string], error) {
	apiKey, err := apiKeyFor(e.settings, req)
	if err != nil {
		return nil, &completion.AuthenticationError{Message: err.Error()}
	}

	msgReq, err := MakeMessageRequest(e.settings, req)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("model", msgReq.Model).
		Int("messages", len(msgReq.Messages)).
		Msg("Claude stream started")

	events, err := e.client(apiKey).StreamMessage(ctx, msgReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapError(err)
	}

	c := make(chan helpers.Result[string])
	go func() {
		defer close(c)

		send := func(r helpers.Result[string]) bool {
			return helpers.SendResult(ctx, c, r)
		}

		stopped := false
		fragments := 0
		for event := range events {
			switch event.Type {
			case api.ContentBlockDeltaType:
				text, ok := event.TextDelta()
				if !ok || text == "" {
					continue
				}
				fragments++
				if !send(helpers.NewValueResult(text)) {
					drain(events)
					return
				}
			case api.ErrorType:
				log.Warn().Object("event", event).Msg("Claude stream error event")
				send(helpers.NewErrorResult[string](mapStreamError(event.Error)))
				drain(events)
				return
			case api.MessageStopType:
				stopped = true
			case api.MessageDeltaType:
				if event.Delta != nil && event.Delta.StopReason != "" {
					log.Debug().Str("stop_reason", event.Delta.StopReason).Msg("Claude message delta")
				}
			case api.PingType, api.MessageStartType, api.ContentBlockStartType, api.ContentBlockStopType:
			default:
				log.Trace().Str("type", string(event.Type)).Msg("Ignoring unknown claude event")
			}
		}

		if ctx.Err() != nil {
			return
		}
		if !stopped {
			send(helpers.NewErrorResult[string](completion.NewTransportError(nil, "claude stream ended before message_stop")))
			return
		}
		log.Debug().Int("fragments", fragments).Msg("Claude stream finished")
	}()

	return c, nil
}

func drain(events <-chan api.StreamingEvent) {
	for range events {
	}
}

// ValidateAPIKey checks key with a minimal request against the validation model. It returns
// nil when the key is accepted, a *completion.AuthenticationError when it is rejected, and a
// *completion.TransportError for anything else.
func ValidateAPIKey(ctx context.Context, s *settings.Settings, key string) error {
	if key == "" {
		return &completion.AuthenticationError{Message: "empty API key"}
	}
	e := NewClaudeEngine(s)
	_, err := e.client(key).SendMessage(ctx, &api.MessageRequest{
		Model:     settings.ValidationModel,
		MaxTokens: 1,
		Messages:  []api.Message{api.NewTextMessage("user", "hi")},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return mapError(err)
	}
	return nil
}
