package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

const previewLength = 100

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Preview flattens newlines and cuts s to fit a single list line.
func Preview(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	r := []rune(s)
	if len(r) > previewLength {
		return string(r[:previewLength-3]) + "..."
	}
	return s
}

type printerOptions struct {
	assistantLabel string
	renderMarkdown func(string) (string, error)
}

type PrinterOption func(*printerOptions)

// WithAssistantLabel sets the label printed before the first fragment of each stream.
func WithAssistantLabel(label string) PrinterOption {
	return func(o *printerOptions) {
		o.assistantLabel = label
	}
}

// WithMarkdownRenderer renders the enhanced prompt before it is printed.
func WithMarkdownRenderer(f func(string) (string, error)) PrinterOption {
	return func(o *printerOptions) {
		o.renderMarkdown = f
	}
}

// StepPrinterFunc returns a watermill handler that prints session and wizard events to w.
func StepPrinterFunc(w io.Writer, options ...PrinterOption) func(msg *message.Message) error {
	opts := &printerOptions{assistantLabel: "assistant"}
	for _, o := range options {
		o(opts)
	}
	currentStream := ""

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Could not parse event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if streamID := p_.Metadata().StreamID; streamID != currentStream {
				currentStream = streamID
				if opts.assistantLabel != "" {
					if _, err := fmt.Fprintf(w, "\n%s: ", labelStyle.Render(opts.assistantLabel)); err != nil {
						return err
					}
				}
			}
			if _, err := fmt.Fprint(w, p_.Delta); err != nil {
				return err
			}

		case *EventFinal:
			currentStream = ""
			if !strings.HasSuffix(p_.Text, "\n") {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}

		case *EventError:
			currentStream = ""
			if _, err := fmt.Fprintf(w, "\n%s\n", errorStyle.Render(p_.UserMessage)); err != nil {
				return err
			}

		case *EventPayloadReady:
			text := p_.Prompt
			if opts.renderMarkdown != nil {
				rendered, err := opts.renderMarkdown(text)
				if err != nil {
					log.Warn().Err(err).Msg("Could not render enhanced prompt")
				} else {
					text = rendered
				}
			}
			if _, err := fmt.Fprintf(w, "\n%s\n%s\n", titleStyle.Render("Enhanced prompt"), text); err != nil {
				return err
			}

		case *EventWizardStep:
			if _, err := fmt.Fprintf(w, "\n%s\n%s\n",
				titleStyle.Render(fmt.Sprintf("Step %d of %d: %s", p_.Number, p_.Total, p_.Label)),
				helpStyle.Render(p_.Description),
			); err != nil {
				return err
			}

		case *EventSuggestionsUpdated:
			header := "Suggestions"
			if p_.Refined {
				header = "Refined suggestions"
			}
			if _, err := fmt.Fprintf(w, "\n%s\n", labelStyle.Render(header)); err != nil {
				return err
			}
			if len(p_.Suggestions) == 0 {
				if _, err := fmt.Fprintln(w, helpStyle.Render("  (no suggestions returned)")); err != nil {
					return err
				}
			}
			for i, s := range p_.Suggestions {
				if _, err := fmt.Fprintf(w, "  %d. %s\n", i+1, Preview(s)); err != nil {
					return err
				}
			}

		case *EventSuggestionsError:
			if _, err := fmt.Fprintf(w, "\n%s\n", errorStyle.Render("Error: "+p_.UserMessage)); err != nil {
				return err
			}

		case *EventTemplateCreated:
			name := ""
			if p_.Template != nil {
				name = p_.Template.Name
			}
			if _, err := fmt.Fprintf(w, "\n%s\n", successStyle.Render(fmt.Sprintf("Template %q created.", name))); err != nil {
				return err
			}
		}

		return nil
	}
}
