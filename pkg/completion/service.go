// Package completion defines the streaming completion contract the enhancement session and
// the template wizard are written against, together with the failure taxonomy shared by
// every implementation.
package completion

import (
	"context"

	"github.com/cosmicshuai/prompt-enhancer/pkg/conversation"
	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
)

// Request is one completion call: a system instruction, the history to continue, and the
// generation parameters.
type Request struct {
	System    string
	Messages  []conversation.Turn
	Model     string
	MaxTokens int
	// APIKey overrides the credential configured on the service when set.
	APIKey string
}

// Service streams a completion as a sequence of text fragments.
//
// Stream returns an error when the request could not be started at all. Otherwise the
// returned channel yields fragments in order and is closed on natural completion. A
// Result carrying an error is the terminal failure: nothing follows it and the channel is
// closed right after. Cancelling ctx stops the stream; implementations then close the
// channel without delivering further fragments.
type Service interface {
	Stream(ctx context.Context, req *Request) (<-chan helpers.Result[string], error)
}

// Collect drains a stream into a single string. The text accumulated before a failure is
// returned together with the error.
func Collect(ctx context.Context, s Service, req *Request) (string, error) {
	c, err := s.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	text := ""
	for r := range c {
		v, err := r.Value()
		if err != nil {
			return text, err
		}
		text += v
	}
	if err := ctx.Err(); err != nil {
		return text, err
	}
	return text, nil
}
