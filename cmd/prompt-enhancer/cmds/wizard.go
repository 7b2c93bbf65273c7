package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/intents"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude"
	"github.com/cosmicshuai/prompt-enhancer/pkg/ui"
	"github.com/cosmicshuai/prompt-enhancer/pkg/wizard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewWizardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wizard",
		Aliases: []string{"new"},
		Short:   "Create a template field by field from AI suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			printRawEvents, _ := cmd.Flags().GetBool("print-raw-events")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			p := ui.NewPrompter()
			defer func() { _ = p.Close() }()
			stderr := cmd.ErrOrStderr()

			if err := ensureAPIKey(ctx, cfg, p, stderr); err != nil {
				if isQuit(err) {
					return nil
				}
				return err
			}

			store, err := cfg.OpenTemplateStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			service := claude.NewClaudeEngine(cfg.Settings)
			return runWithRouter(ctx, routerOptions{out: os.Stdout, printRawEvents: printRawEvents},
				func(ctx context.Context, sink events.EventSink) error {
					ctrl, err := wizard.NewController(cfg.Settings, service, wizard.WithEventSinks(sink))
					if err != nil {
						return err
					}
					w := &wizardLoop{
						controller: ctrl,
						dispatcher: intents.NewDispatcher(
							intents.WithWizard(ctrl),
							intents.WithTemplateStore(store),
							intents.WithEventSinks(sink),
						),
						prompter:   p,
						w:          stderr,
					}
					err = w.run(ctx, name)
					if isQuit(err) {
						ctrl.Cancel()
						fmt.Fprintln(stderr, helpStyle.Render("Wizard cancelled, nothing was saved."))
						return nil
					}
					return err
				})
		},
	}

	cmd.Flags().String("name", "", "Template name (asks when not set)")
	cmd.Flags().Bool("print-raw-events", false, "Print the raw events to stderr")

	return cmd
}

const wizardChoices = "number to pick, (c) your own, (r) more suggestions, (d) done, (q) quit"

type wizardLoop struct {
	controller *wizard.Controller
	dispatcher *intents.Dispatcher
	prompter   *ui.Prompter
	w          io.Writer
}

func (l *wizardLoop) run(ctx context.Context, name string) error {
	fmt.Fprintln(l.w, titleStyle.Render(fmt.Sprintf("Step 1 of %d: %s", wizard.TotalSteps, wizard.NameLabel)))

	for {
		if name == "" {
			var err error
			name, err = l.prompter.Ask("Template name", true)
			if err != nil {
				return err
			}
		}
		out, err := l.dispatcher.Dispatch(ctx, intents.SubmitName{Name: name})
		if wizard.IsValidationError(err) {
			l.warn(err)
			name = ""
			continue
		}
		if err != nil {
			return err
		}
		l.wait(out.Fetch)
		break
	}

	for {
		choice, err := l.prompter.Ask(wizardChoices, true)
		if err != nil {
			return err
		}

		var intent intents.Intent
		switch c := strings.ToLower(choice); {
		case c == "q" || c == "quit":
			_, err := l.dispatcher.Dispatch(ctx, intents.CancelWizard{})
			if err == nil {
				fmt.Fprintln(l.w, helpStyle.Render("Wizard cancelled, nothing was saved."))
			}
			return err
		case c == "c" || c == "custom":
			text, err := l.prompter.Ask("Your value", true)
			if err != nil {
				return err
			}
			intent = intents.ProvideCustom{Text: text}
		case c == "r" || c == "retry":
			intent = intents.FetchSuggestions{Refine: true}
		case c == "d" || c == "done":
			intent = intents.Advance{}
		default:
			n, err := strconv.Atoi(c)
			if err != nil {
				l.warn(errors.Errorf("unknown choice %q", choice))
				continue
			}
			intent = intents.SelectSuggestion{Index: n - 1}
		}

		out, err := l.dispatcher.Dispatch(ctx, intent)
		if out != nil && out.Template != nil {
			// the printer announces a stored template; a save failure is returned instead
			return err
		}
		if err != nil {
			if wizard.IsValidationError(err) || errors.Is(err, wizard.ErrNoCandidate) || errors.Is(err, wizard.ErrFetchInFlight) {
				l.warn(err)
				continue
			}
			return err
		}

		if _, ok := intent.(intents.Advance); !ok {
			l.showCurrent()
		}
		l.wait(out.Fetch)
	}
}

func (l *wizardLoop) wait(h *wizard.FetchHandle) {
	if h == nil {
		return
	}
	fmt.Fprintln(l.w, helpStyle.Render("Generating suggestions..."))
	// suggestions and failures are printed from the event stream
	if _, err := h.Wait(); err != nil {
		log.Debug().Err(err).Str("fetch_id", h.ID).Msg("Suggestion request ended with error")
	}
}

func (l *wizardLoop) showCurrent() {
	st := l.controller.State()
	if st.Candidate == nil {
		return
	}
	fmt.Fprintf(l.w, "\n%s\n%s\n", labelStyle.Render("Current value:"), *st.Candidate)
}

func (l *wizardLoop) warn(err error) {
	fmt.Fprintln(l.w, errorStyle.Render(err.Error()))
}
