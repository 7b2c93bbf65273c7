package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/security"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	messagesPath      = "/v1/messages"
)

// MessageRequest represents the Messages API request payload.
type MessageRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
}

// MessageResponse represents the Messages API response payload.
type MessageResponse struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         string        `json:"role"`
	Content      []TextContent `json:"content"`
	Model        string        `json:"model"`
	StopReason   string        `json:"stop_reason,omitempty"`
	StopSequence string        `json:"stop_sequence,omitempty"`
	Usage        Usage         `json:"usage"`
}

// Usage represents the billing and rate-limit usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error Error  `json:"error"`
}

// APIError is returned when the API answers with a non-200 status.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("claude api error (%d %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("claude api error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthentication reports whether the credential was rejected.
func (e *APIError) IsAuthentication() bool {
	switch e.Type {
	case "authentication_error", "permission_error":
		return true
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client talks to the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
	UserAgent  string
	urlOptions security.BaseURLOptions
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithAPIVersion(version string) ClientOption {
	return func(client *Client) {
		client.APIVersion = version
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		client.UserAgent = ua
	}
}

// WithInsecureBaseURL allows plain HTTP and local network targets, e.g. a local proxy or a
// test server.
func WithInsecureBaseURL() ClientOption {
	return func(client *Client) {
		client.urlOptions = security.BaseURLOptions{AllowHTTP: true, AllowLocalNetworks: true}
	}
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, baseURL string, options ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIVersion: defaultAPIVersion,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

func (c *Client) post(ctx context.Context, req *MessageRequest) (*http.Response, error) {
	if err := security.ValidateBaseURL(c.BaseURL, c.urlOptions); err != nil {
		return nil, errors.Wrap(err, "invalid claude base URL")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+messagesPath, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	log.Debug().
		Str("model", req.Model).
		Int("max_tokens", req.MaxTokens).
		Int("messages", len(req.Messages)).
		Bool("stream", req.Stream).
		Msg("Sending claude messages request")

	// #nosec G107 -- base URL is validated above.
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

func parseErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	var errorResp ErrorResponse
	if unmarshalErr := json.Unmarshal(respBody, &errorResp); unmarshalErr != nil || errorResp.Error.Message == "" {
		apiErr.Message = strings.TrimSpace(string(respBody))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	apiErr.Type = errorResp.Error.Type
	apiErr.Message = errorResp.Error.Message
	return apiErr
}

// SendMessage sends a non-streaming message request and returns the response.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	var messageResp MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&messageResp); err != nil {
		return nil, errors.Wrap(err, "could not decode claude response")
	}

	return &messageResp, nil
}

// StreamMessage sends a streaming message request. The returned channel is closed when the
// stream ends, when ctx is cancelled, or after an error event has been delivered.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (<-chan StreamingEvent, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamingEvent)
	go func() {
		defer close(events)
		streamEvents(ctx, resp.Body, events)
	}()

	return events, nil
}
