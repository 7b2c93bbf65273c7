package wizard

import (
	"context"
	"sync"

	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/pkg/errors"
)

var ErrFetchHandleNil = errors.New("fetch handle is nil")

// FetchHandle tracks one suggestion request.
type FetchHandle struct {
	ID     string
	Field  templates.Field
	Refine bool

	generation uint64
	step       Step

	done   chan struct{}
	mu     sync.Mutex
	cancel context.CancelFunc

	suggestions []string
	err         error
}

func newFetchHandle(id string, field templates.Field, refine bool, step Step, generation uint64, cancel context.CancelFunc) *FetchHandle {
	return &FetchHandle{
		ID:         id,
		Field:      field,
		Refine:     refine,
		generation: generation,
		step:       step,
		done:       make(chan struct{}),
		cancel:     cancel,
	}
}

// Wait returns the parsed suggestions. A request that was replaced by a newer one, or
// that finished after the wizard moved on, returns ErrFetchSuperseded.
func (h *FetchHandle) Wait() ([]string, error) {
	if h == nil {
		return nil, ErrFetchHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.suggestions...), h.err
}

func (h *FetchHandle) Done() <-chan struct{} {
	return h.done
}

func (h *FetchHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *FetchHandle) abort() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *FetchHandle) setResult(suggestions []string, err error) {
	h.mu.Lock()
	h.suggestions = suggestions
	h.err = err
	h.cancel = nil
	h.mu.Unlock()
	close(h.done)
}
