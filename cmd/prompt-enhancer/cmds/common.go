package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/config"
	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude"
	"github.com/cosmicshuai/prompt-enhancer/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// AddConfigFlags registers the flags that override config.yaml.
func AddConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config-dir", "", "Configuration directory (default ~/.prompt-enhancer)")
	cmd.PersistentFlags().String("model", "", "Claude model")
	cmd.PersistentFlags().Int("max-tokens", 0, "Maximum tokens per reply")
	cmd.PersistentFlags().String("base-url", "", "Anthropic API base URL")
	cmd.PersistentFlags().String("template-store", "", "Template store: json, sqlite or memory")
}

var configFlagKeys = map[string]string{
	"model":          config.KeyModel,
	"max-tokens":     config.KeyMaxTokens,
	"base-url":       config.KeyBaseURL,
	"template-store": config.KeyTemplateStore,
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var paths config.Paths
	dir, _ := cmd.Flags().GetString("config-dir")
	if dir != "" {
		paths = config.NewPaths(dir)
	} else {
		var err error
		paths, err = config.DefaultPaths()
		if err != nil {
			return nil, err
		}
	}

	v := config.NewViper(paths)
	for flag, key := range configFlagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return config.LoadWithViper(paths, v)
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ensureAPIKey asks for a key when none is configured, validates it and saves it.
func ensureAPIKey(ctx context.Context, cfg *config.Config, p *ui.Prompter, w io.Writer) error {
	if cfg.Settings.HasAPIKey() {
		return nil
	}
	fmt.Fprintln(w, helpStyle.Render("No Anthropic API key configured. Get one at https://console.anthropic.com/."))
	for {
		key, err := p.AskSecret("Anthropic API key")
		if err != nil {
			return err
		}
		if err := claude.ValidateAPIKey(ctx, cfg.Settings, key); err != nil {
			fmt.Fprintln(w, errorStyle.Render(validationMessage(err)))
			if completion.IsAuthentication(err) {
				continue
			}
			return err
		}
		if err := config.SaveAPIKey(cfg.Paths, key); err != nil {
			return err
		}
		cfg.Settings.APIKey = key
		fmt.Fprintln(w, successStyle.Render("API key saved to "+cfg.Paths.EnvFile))
		return nil
	}
}

func validationMessage(err error) string {
	if completion.IsAuthentication(err) {
		return "Invalid API key."
	}
	return "Could not validate the API key: " + err.Error()
}

type routerOptions struct {
	printRawEvents bool
	out            *os.File
}

// runWithRouter starts an event router printing to out and runs fn once it is up. fn
// publishes through the sink it receives. The router stops when fn returns.
func runWithRouter(ctx context.Context, opts routerOptions, fn func(ctx context.Context, sink events.EventSink) error) error {
	routerOpts := []events.EventRouterOption{events.WithDumpWriter(os.Stderr)}
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		routerOpts = append(routerOpts, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOpts...)
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	printerOpts := []events.PrinterOption{}
	if render := ui.MarkdownRenderer(opts.out); render != nil {
		printerOpts = append(printerOpts, events.WithMarkdownRenderer(render))
	}
	router.AddHandler("printer", events.TopicUI, events.StepPrinterFunc(opts.out, printerOpts...))
	if opts.printRawEvents {
		router.AddHandler("raw-events", events.TopicUI, router.DumpRawEvents)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return nil
		}
		return fn(ctx, router.Sink(events.TopicUI))
	})
	return eg.Wait()
}

// isQuit reports whether err means the user stopped answering prompts.
func isQuit(err error) bool {
	return errors.Is(err, ui.ErrInterrupted) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}

// PrintError prints err for the user.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+completion.UserMessage(err)))
}
