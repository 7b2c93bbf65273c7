package claude

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/conversation"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sse(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "data: %s\n\n", e)
	}
	return b.String()
}

func newTestSettings(t *testing.T, handler http.HandlerFunc) *settings.Settings {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := settings.NewSettings()
	s.BaseURL = srv.URL
	s.AllowInsecureBaseURL = true
	s.APIKey = "sk-settings"
	return s
}

func delta(text string) string {
	return fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text)
}

func userRequest(text string) *completion.Request {
	return &completion.Request{
		System:   "be helpful",
		Messages: []conversation.Turn{conversation.NewUserTurn(text)},
	}
}

func TestStreamForwardsTextDeltas(t *testing.T) {
	var gotKey string
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		_, _ = io.WriteString(w, sse(
			`{"type":"message_start","message":{"id":"m","role":"assistant","content":[]}}`,
			delta("Hello "),
			delta("world"),
			`{"type":"message_stop"}`,
		))
	})

	text, err := completion.Collect(context.Background(), NewClaudeEngine(s), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "sk-settings", gotKey)
}

func TestStreamRequestKeyOverridesSettings(t *testing.T) {
	var gotKey string
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		_, _ = io.WriteString(w, sse(`{"type":"message_stop"}`))
	})
	req := userRequest("hi")
	req.APIKey = "sk-request"

	_, err := completion.Collect(context.Background(), NewClaudeEngine(s), req)
	require.NoError(t, err)
	assert.Equal(t, "sk-request", gotKey)
}

func TestStreamSendsUserAgent(t *testing.T) {
	var gotUA string
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, sse(`{"type":"message_stop"}`))
	})
	ua := "prompt-enhancer/test"
	s.Client.UserAgent = &ua

	_, err := completion.Collect(context.Background(), NewClaudeEngine(s), userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, ua, gotUA)
}

func TestStreamAuthenticationFailure(t *testing.T) {
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := NewClaudeEngine(s).Stream(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, completion.IsAuthentication(err))
	assert.Equal(t, completion.FailureAuth, completion.Classify(err))
}

func TestStreamServerError(t *testing.T) {
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := NewClaudeEngine(s).Stream(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, completion.IsTransport(err))
	assert.Equal(t, completion.FailureOther, completion.Classify(err))
}

func TestStreamInBandErrorKeepsPartialText(t *testing.T) {
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sse(
			delta("partial"),
			`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		))
	})

	text, err := completion.Collect(context.Background(), NewClaudeEngine(s), userRequest("hi"))
	require.Error(t, err)
	assert.Equal(t, "partial", text)
	assert.True(t, completion.IsTransport(err))
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestStreamTruncatedIsTransportError(t *testing.T) {
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sse(delta("cut")))
	})

	text, err := completion.Collect(context.Background(), NewClaudeEngine(s), userRequest("hi"))
	require.Error(t, err)
	assert.Equal(t, "cut", text)
	assert.True(t, completion.IsTransport(err))
}

func TestStreamMissingKey(t *testing.T) {
	s := settings.NewSettings()
	_, err := NewClaudeEngine(s).Stream(context.Background(), userRequest("hi"))
	require.Error(t, err)
	assert.True(t, completion.IsAuthentication(err))
}

func TestMakeMessageRequest(t *testing.T) {
	s := settings.NewSettings()
	req := &completion.Request{
		System: "sys",
		Messages: []conversation.Turn{
			conversation.NewUserTurn("a"),
			conversation.NewAssistantTurn("b"),
		},
		MaxTokens: 12,
	}
	msgReq, err := MakeMessageRequest(s, req)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultModel, msgReq.Model)
	assert.Equal(t, 12, msgReq.MaxTokens)
	assert.Equal(t, "sys", msgReq.System)
	require.Len(t, msgReq.Messages, 2)
	assert.Equal(t, "assistant", msgReq.Messages[1].Role)
	assert.Equal(t, "b", msgReq.Messages[1].Text())

	_, err = MakeMessageRequest(s, &completion.Request{})
	assert.Error(t, err)
}

func TestMakeMessageRequestSkipsBlankTurns(t *testing.T) {
	s := settings.NewSettings()
	msgReq, err := MakeMessageRequest(s, &completion.Request{
		Messages: []conversation.Turn{
			conversation.NewUserTurn("first"),
			conversation.NewAssistantTurn(""),
			conversation.NewUserTurn("second"),
		},
	})
	require.NoError(t, err)
	require.Len(t, msgReq.Messages, 2)
	assert.Equal(t, "second", msgReq.Messages[1].Text())

	_, err = MakeMessageRequest(s, &completion.Request{
		Messages: []conversation.Turn{conversation.NewAssistantTurn("  ")},
	})
	assert.Error(t, err)
}

func TestMakeMessageRequestKeepsEmptyTrailingUserTurn(t *testing.T) {
	s := settings.NewSettings()
	msgReq, err := MakeMessageRequest(s, &completion.Request{
		Messages: []conversation.Turn{
			conversation.NewUserTurn("idea"),
			conversation.NewAssistantTurn("question?"),
			conversation.NewUserTurn(""),
		},
	})
	require.NoError(t, err)
	require.Len(t, msgReq.Messages, 3)
	assert.Equal(t, "user", msgReq.Messages[2].Role)
	assert.Equal(t, EmptyTurnPlaceholder, msgReq.Messages[2].Text())
}

func TestValidateAPIKey(t *testing.T) {
	s := newTestSettings(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), settings.ValidationModel)
		assert.Contains(t, string(body), `"max_tokens":1`)
		_, _ = io.WriteString(w, `{"id":"m","type":"message","role":"assistant","content":[{"type":"text","text":"H"}],"model":"x"}`)
	})

	require.NoError(t, ValidateAPIKey(context.Background(), s, "good"))

	err := ValidateAPIKey(context.Background(), s, "bad")
	require.Error(t, err)
	assert.True(t, completion.IsAuthentication(err))
}

func TestValidateAPIKeyConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s := settings.NewSettings()
	s.BaseURL = srv.URL
	s.AllowInsecureBaseURL = true
	srv.Close()

	err := ValidateAPIKey(context.Background(), s, "good")
	require.Error(t, err)
	assert.True(t, completion.IsTransport(err))
}
