package completion

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	authErr := &AuthenticationError{StatusCode: 401, Message: "invalid x-api-key"}
	assert.Equal(t, FailureAuth, Classify(authErr))
	assert.Equal(t, FailureAuth, Classify(errors.Wrap(authErr, "streaming")))
	assert.Equal(t, FailureOther, Classify(NewTransportError(errors.New("boom"), "request failed")))
	assert.Equal(t, FailureOther, Classify(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, authUserMessage, UserMessage(&AuthenticationError{}))
	assert.Equal(t, "overloaded", UserMessage(&TransportError{StatusCode: 529, Message: "overloaded"}))
	assert.Equal(t, "Request cancelled.", UserMessage(context.Canceled))
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := NewTransportError(context.DeadlineExceeded, "request failed")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTransport(errors.Wrap(err, "outer")))
	assert.Equal(t, "request failed: context deadline exceeded", err.Error())
}
