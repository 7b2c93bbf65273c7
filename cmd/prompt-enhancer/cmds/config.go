package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/config"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/claude"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/cosmicshuai/prompt-enhancer/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change the configuration",
	}

	cmd.AddCommand(newShowConfigCommand())
	cmd.AddCommand(newSetConfigCommand())
	cmd.AddCommand(newSetKeyCommand())

	return cmd
}

func newShowConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	row := func(k, v string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-15s", k+":")), v)
	}
	row("config dir", cfg.Paths.Dir)
	row("model", cfg.Settings.Model)
	row("max tokens", fmt.Sprintf("%d", cfg.Settings.MaxTokens))
	row("base url", cfg.Settings.BaseURL)
	row("template store", cfg.TemplateStore)
	if cfg.Settings.HasAPIKey() {
		row("api key", maskKey(cfg.Settings.APIKey)+" (from "+cfg.APIKeySource+")")
	} else {
		row("api key", "not set")
	}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 8) + key[len(key)-4:]
}

func newSetConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Save model and max tokens",
		Long: "Save --model, --max-tokens, --base-url and --template-store to config.yaml. " +
			"Without flags the model and max tokens are asked for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			changed := false
			for flag := range configFlagKeys {
				if cmd.Flags().Changed(flag) {
					changed = true
				}
			}
			if !changed {
				p := ui.NewPrompter()
				defer func() { _ = p.Close() }()
				if err := askGeneral(p, cfg.Settings); err != nil {
					if isQuit(err) {
						return nil
					}
					return err
				}
			}

			if !settings.IsKnownModel(cfg.Settings.Model) {
				fmt.Fprintln(cmd.ErrOrStderr(), helpStyle.Render(fmt.Sprintf("Note: %q is not one of the known models.", cfg.Settings.Model)))
			}
			if err := config.SaveGeneral(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("Saved "+cfg.Paths.ConfigFile))
			return nil
		},
	}
}

func askGeneral(p *ui.Prompter, s *settings.Settings) error {
	models := append([]string(nil), settings.KnownModels...)
	if !settings.IsKnownModel(s.Model) {
		models = append(models, s.Model)
	}
	i, err := p.Select("Model", models, s.Model)
	if err != nil {
		return err
	}
	s.Model = models[i]

	n, err := p.AskInt("Max tokens", s.MaxTokens)
	if err != nil {
		return err
	}
	s.MaxTokens = n
	return nil
}

func newSetKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-key [api-key]",
		Short: "Validate and save the Anthropic API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			skipValidation, _ := cmd.Flags().GetBool("skip-validation")
			stderr := cmd.ErrOrStderr()

			key := ""
			if len(args) == 1 {
				key = strings.TrimSpace(args[0])
			} else {
				p := ui.NewPrompter()
				defer func() { _ = p.Close() }()
				key, err = p.AskSecret("Anthropic API key")
				if err != nil {
					if isQuit(err) {
						return nil
					}
					return err
				}
			}

			if !skipValidation {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()
				fmt.Fprintln(stderr, helpStyle.Render("Validating key..."))
				if err := claude.ValidateAPIKey(ctx, cfg.Settings, key); err != nil {
					if completion.IsAuthentication(err) {
						return err
					}
					return errors.Wrap(err, "could not validate the API key")
				}
			}

			if err := config.SaveAPIKey(cfg.Paths, key); err != nil {
				return err
			}
			fmt.Fprintln(stderr, successStyle.Render("API key saved to "+cfg.Paths.EnvFile))
			return nil
		},
	}
	cmd.Flags().Bool("skip-validation", false, "Save without checking the key against the API")
	return cmd
}
