package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/enhancer"
	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/intents"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/cosmicshuai/prompt-enhancer/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const enhanceHelp = "Answer the assistant's questions. Once it shows the enhanced prompt, ask for changes " +
	"or type /copy to copy it, /show to print it again, /quit to leave."

func NewEnhanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhance [rough prompt...]",
		Short: "Turn a rough prompt into a detailed one through a short conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			templateQuery, _ := cmd.Flags().GetString("template")
			autoCopy, _ := cmd.Flags().GetBool("copy")
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

			tmpl, err := chooseTemplate(ctx, store, templateQuery, p)
			if err != nil {
				if isQuit(err) {
					return nil
				}
				return err
			}
			fmt.Fprintf(stderr, "%s %s\n%s\n", labelStyle.Render("Template:"), tmpl.Name, helpStyle.Render(enhanceHelp))

			service := claude.NewClaudeEngine(cfg.Settings)
			return runWithRouter(ctx, routerOptions{out: os.Stdout, printRawEvents: printRawEvents},
				func(ctx context.Context, sink events.EventSink) error {
					session, err := enhancer.NewSession(tmpl, cfg.Settings, service, enhancer.WithEventSinks(sink))
					if err != nil {
						return err
					}
					c := &enhanceLoop{
						dispatcher: intents.NewDispatcher(intents.WithSession(session)),
						session:    session,
						prompter:   p,
						w:          stderr,
						autoCopy:   autoCopy,
					}
					return c.run(ctx, strings.TrimSpace(strings.Join(args, " ")))
				})
		},
	}

	cmd.Flags().StringP("template", "t", "", "Template name or id (asks when not set)")
	cmd.Flags().Bool("copy", false, "Copy every enhanced prompt to the clipboard")
	cmd.Flags().Bool("print-raw-events", false, "Print the raw events to stderr")

	return cmd
}

func chooseTemplate(ctx context.Context, store templates.Store, query string, p *ui.Prompter) (*templates.Template, error) {
	if query != "" {
		t, err := templates.Resolve(ctx, store, query)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, errors.Errorf("no template matches %q", query)
		}
		return t, nil
	}

	ts, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, errors.New("no templates available, create one with the wizard command")
	}
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = templateLabel(t)
	}
	i, err := p.Select("Choose a template", names, "")
	if err != nil {
		return nil, err
	}
	return ts[i], nil
}

func templateLabel(t *templates.Template) string {
	if t.Builtin {
		return t.Name + " (builtin)"
	}
	return t.Name
}

type enhanceLoop struct {
	dispatcher *intents.Dispatcher
	session    *enhancer.Session
	prompter   *ui.Prompter
	w          io.Writer
	autoCopy   bool
}

func (c *enhanceLoop) run(ctx context.Context, text string) error {
	var err error
	if text == "" {
		text, err = c.prompter.Ask("you", true)
		if err != nil {
			return c.quit(err)
		}
	}

	for {
		out, err := c.dispatcher.Dispatch(ctx, intents.SendMessage{Text: text})
		if err != nil {
			return err
		}
		// the printer shows fragments and failures as they arrive
		if _, err := out.Stream.Drain(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Debug().Err(err).Msg("Turn failed")
		}

		if payload, ok := c.session.ExtractLatestPayload(); ok && c.autoCopy {
			c.copy(payload)
		}

		text, err = c.next()
		if err != nil {
			return c.quit(err)
		}
		if text == "" {
			return nil
		}
	}
}

// next reads the next message, handling slash commands locally. An empty string ends the
// conversation.
func (c *enhanceLoop) next() (string, error) {
	for {
		text, err := c.prompter.Ask("you", true)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(text) {
		case "/quit", "/exit":
			return "", nil
		case "/copy":
			if payload, ok := c.session.ExtractLatestPayload(); ok {
				c.copy(payload)
			} else {
				fmt.Fprintln(c.w, helpStyle.Render("No enhanced prompt yet."))
			}
		case "/show":
			if payload, ok := c.session.ExtractLatestPayload(); ok {
				fmt.Fprintf(c.w, "%s\n%s\n", titleStyle.Render("Enhanced prompt"), payload)
			} else {
				fmt.Fprintln(c.w, helpStyle.Render("No enhanced prompt yet."))
			}
		default:
			return text, nil
		}
	}
}

func (c *enhanceLoop) copy(payload string) {
	if err := ui.CopyToClipboard(payload); err != nil {
		fmt.Fprintln(c.w, errorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(c.w, successStyle.Render("Copied to clipboard."))
}

func (c *enhanceLoop) quit(err error) error {
	if isQuit(err) {
		return nil
	}
	return err
}
