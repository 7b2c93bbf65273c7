// Package fixtures provides a scripted completion.Service for tests and offline demos.
package fixtures

import (
	"context"
	"sync"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/conversation"
	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
)

// Response scripts one Stream call.
type Response struct {
	Fragments []string
	// Err is delivered in-band after all fragments.
	Err error
	// StartErr is returned by Stream itself; no channel is created.
	StartErr error
}

// ScriptedService replays Responses in order, one per Stream call. Once the script is
// exhausted every call completes immediately with no fragments.
type ScriptedService struct {
	// Gate, when non-nil, must be signalled before each fragment is delivered. It lets a
	// test hold a stream open at a precise point.
	Gate chan struct{}

	mu        sync.Mutex
	responses []Response
	requests  []completion.Request
}

var _ completion.Service = (*ScriptedService)(nil)

func NewScriptedService(responses ...Response) *ScriptedService {
	return &ScriptedService{responses: responses}
}

func (s *ScriptedService) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

func (s *ScriptedService) Stream(ctx context.Context, req *completion.Request) (<-chan helpers.Result[string], error) {
	s.mu.Lock()
	recorded := *req
	recorded.Messages = append([]conversation.Turn(nil), req.Messages...)
	s.requests = append(s.requests, recorded)
	var resp Response
	if len(s.responses) > 0 {
		resp = s.responses[0]
		s.responses = s.responses[1:]
	}
	gate := s.Gate
	s.mu.Unlock()

	if resp.StartErr != nil {
		return nil, resp.StartErr
	}

	c := make(chan helpers.Result[string])
	go func() {
		defer close(c)
		for _, f := range resp.Fragments {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return
				}
			}
			if !helpers.SendResult(ctx, c, helpers.NewValueResult(f)) {
				return
			}
		}
		if resp.Err != nil {
			helpers.SendResult(ctx, c, helpers.NewErrorResult[string](resp.Err))
		}
	}()
	return c, nil
}

// Requests returns copies of every request received so far.
func (s *ScriptedService) Requests() []completion.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]completion.Request(nil), s.requests...)
}

func (s *ScriptedService) LastRequest() (completion.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return completion.Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}
