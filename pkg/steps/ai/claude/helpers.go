package claude

import (
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/conversation"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude/api"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

// EmptyTurnPlaceholder stands in for an empty user message on the wire.
const EmptyTurnPlaceholder = "(empty message)"

// turnToClaudeMessage converts a conversation turn to a Claude API message.
func turnToClaudeMessage(t conversation.Turn) api.Message {
	return api.NewTextMessage(string(t.Role), t.Content)
}

// MakeMessageRequest builds a Claude MessageRequest from settings and a completion request.
// Values set on the request take precedence over the settings.
func MakeMessageRequest(s *settings.Settings, req *completion.Request) (*api.MessageRequest, error) {
	if s == nil {
		return nil, errors.New("no claude settings")
	}

	model := req.Model
	if model == "" {
		model = s.Model
	}
	if model == "" {
		return nil, errors.New("no model specified")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.MaxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.Errorf("max tokens must be positive, got %d", maxTokens)
	}

	if len(req.Messages) == 0 {
		return nil, errors.New("no messages to send")
	}

	// The API rejects blank text blocks. Blank turns come from empty user input or from a
	// stream that failed before producing text. A blank trailing user turn is still the
	// message being answered, so it is sent as EmptyTurnPlaceholder; otherwise the request
	// would end on an assistant turn, which the API continues as a prefill.
	msgs := make([]api.Message, 0, len(req.Messages))
	last := len(req.Messages) - 1
	for i, t := range req.Messages {
		if strings.TrimSpace(t.Content) == "" {
			if i != last || t.Role != conversation.RoleUser {
				continue
			}
			t.Content = EmptyTurnPlaceholder
		}
		msgs = append(msgs, turnToClaudeMessage(t))
	}
	if len(msgs) == 0 {
		return nil, errors.New("no non-empty messages to send")
	}

	return &api.MessageRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: maxTokens,
		System:    req.System,
		Stream:    true,
	}, nil
}

// apiKeyFor picks the credential for a request.
func apiKeyFor(s *settings.Settings, req *completion.Request) (string, error) {
	if req.APIKey != "" {
		return req.APIKey, nil
	}
	if s != nil && s.HasAPIKey() {
		return s.APIKey, nil
	}
	return "", settings.ErrMissingAPIKey
}

// mapError converts client failures to the completion failure taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsAuthentication() {
			return &completion.AuthenticationError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return &completion.TransportError{StatusCode: apiErr.StatusCode, Message: apiErr.Message, Err: err}
	}
	return completion.NewTransportError(err, "claude request failed")
}

// mapStreamError converts an in-band error event.
func mapStreamError(e *api.Error) error {
	if e == nil {
		return completion.NewTransportError(nil, "claude stream error")
	}
	switch e.Type {
	case "authentication_error", "permission_error":
		return &completion.AuthenticationError{Message: e.Message}
	}
	return &completion.TransportError{Message: e.Type + ": " + e.Message}
}
