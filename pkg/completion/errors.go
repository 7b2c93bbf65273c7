package completion

import (
	"context"
	stderrors "errors"
	"fmt"
)

// FailureKind classifies a failure for message routing in the UI.
type FailureKind string

const (
	FailureAuth  FailureKind = "auth"
	FailureOther FailureKind = "other"
)

// AuthenticationError means the provider rejected the credential.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// TransportError covers everything else that can go wrong talking to the provider:
// network errors, timeouts, non-auth HTTP errors, malformed or aborted streams.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "transport failure"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransportError(err error, message string) *TransportError {
	return &TransportError{Err: err, Message: message}
}

func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return stderrors.As(err, &authErr)
}

func IsTransport(err error) bool {
	var transportErr *TransportError
	return stderrors.As(err, &transportErr)
}

func Classify(err error) FailureKind {
	if IsAuthentication(err) {
		return FailureAuth
	}
	return FailureOther
}

const authUserMessage = "Invalid API key. Please check your settings."

// UserMessage renders err for display. Authentication failures get an actionable hint,
// everything else is shown unmodified.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsAuthentication(err) {
		return authUserMessage
	}
	if stderrors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	return err.Error()
}
