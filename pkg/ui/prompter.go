// Package ui holds the terminal helpers of the CLI: line prompts, markdown rendering and
// clipboard access.
package ui

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"
)

// ErrInterrupted is returned when the user presses Ctrl-C at a prompt.
var ErrInterrupted = input.ErrInterrupted

type Prompter struct {
	ui      *input.UI
	closer  io.Closer
	canMask bool
}

// NewPrompter prompts on the controlling terminal, or on stdin and stderr when there is none.
func NewPrompter() *Prompter {
	tty, err := OpenTTY()
	if err != nil {
		log.Debug().Err(err).Msg("No tty, prompting on stdin")
		return NewPrompterWithIO(os.Stdin, os.Stderr)
	}
	p := NewPrompterWithIO(tty, tty)
	p.closer = tty
	return p
}

func NewPrompterWithIO(r io.Reader, w io.Writer) *Prompter {
	p := &Prompter{ui: &input.UI{Reader: r, Writer: w}}
	// masking switches the reader into raw mode, which needs a terminal
	if f, ok := r.(*os.File); ok && IsTerminal(f) {
		p.canMask = true
	}
	return p
}

func (p *Prompter) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Ask reads one line. Required questions are repeated until answered.
func (p *Prompter) Ask(query string, required bool) (string, error) {
	answer, err := p.ui.Ask(query, &input.Options{
		Required:  required,
		Loop:      required,
		HideOrder: true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// AskDefault returns def when the answer is empty.
func (p *Prompter) AskDefault(query string, def string) (string, error) {
	answer, err := p.ui.Ask(query, &input.Options{
		Default:   def,
		HideOrder: true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// AskSecret reads a line without echoing it. Input is echoed when not reading from a terminal.
func (p *Prompter) AskSecret(query string) (string, error) {
	answer, err := p.ui.Ask(query, &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      p.canMask,
		HideOrder: true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// AskInt reads a positive integer, def when empty.
func (p *Prompter) AskInt(query string, def int) (int, error) {
	answer, err := p.ui.Ask(query, &input.Options{
		Default:   strconv.Itoa(def),
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n <= 0 {
				return errors.New("please enter a positive number")
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(answer))
}

func (p *Prompter) Confirm(query string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	answer, err := p.ui.Ask(query+" [y/n]", &input.Options{
		Default:   d,
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(s string) error {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "y", "yes", "n", "no":
				return nil
			default:
				return errors.New("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Select lets the user pick one of items and returns its index.
func (p *Prompter) Select(query string, items []string, def string) (int, error) {
	if len(items) == 0 {
		return -1, errors.New("nothing to select from")
	}
	answer, err := p.ui.Select(query, items, &input.Options{
		Default: def,
		Loop:    true,
	})
	if err != nil {
		return -1, err
	}
	for i, item := range items {
		if item == answer {
			return i, nil
		}
	}
	return -1, errors.Errorf("unknown selection %q", answer)
}
