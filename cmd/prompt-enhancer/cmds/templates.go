package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/events"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/cosmicshuai/prompt-enhancer/pkg/ui"
	"github.com/cosmicshuai/prompt-enhancer/pkg/wizard"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage enhancement templates",
	}

	cmd.AddCommand(newListTemplatesCommand())
	cmd.AddCommand(newShowTemplateCommand())
	cmd.AddCommand(newEditTemplateCommand())
	cmd.AddCommand(newDeleteTemplateCommand())

	return cmd
}

// withStore opens the configured template store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store templates.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := cfg.OpenTemplateStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cmd.Context(), store)
}

func resolveTemplate(ctx context.Context, store templates.Store, query string) (*templates.Template, error) {
	t, err := templates.Resolve(ctx, store, query)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Errorf("no template matches %q", query)
	}
	return t, nil
}

func newListTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withStore(cmd, func(ctx context.Context, store templates.Store) error {
				ts, err := store.List(ctx)
				if err != nil {
					return err
				}
				return printTemplates(cmd.OutOrStdout(), ts, output)
			})
		},
	}
	cmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func printTemplates(w io.Writer, ts []*templates.Template, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ts)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(ts)
	case "table", "":
		width := len("NAME")
		for _, t := range ts {
			if len(t.Name) > width {
				width = len(t.Name)
			}
		}
		fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("%-*s  %-9s  %s", width, "NAME", "BUILTIN", "ID")))
		for _, t := range ts {
			builtin := ""
			if t.Builtin {
				builtin = "yes"
			}
			fmt.Fprintf(w, "%-*s  %-9s  %s\n", width, t.Name, builtin, t.ID)
		}
		return nil
	default:
		return errors.Errorf("unknown output format %q", output)
	}
}

func newShowTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Show a template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store templates.Store) error {
				t, err := resolveTemplate(ctx, store, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return showTemplate(cmd.OutOrStdout(), t, ui.MarkdownRenderer(os.Stdout))
			})
		},
	}
}

func showTemplate(w io.Writer, t *templates.Template, render func(string) (string, error)) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", t.Name)
	if t.Builtin {
		sb.WriteString("*builtin template, read-only*\n\n")
	}
	for _, fi := range wizard.FieldSteps {
		v := t.Get(fi.Field)
		if v == "" {
			v = "*(empty)*"
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", fi.Label, v)
	}
	text := sb.String()
	if render != nil {
		if rendered, err := render(text); err == nil {
			text = rendered
		}
	}
	_, err := fmt.Fprint(w, text)
	return err
}

func newEditTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <name-or-id>",
		Short: "Edit a template you created",
		Long: "Edit the fields of a template. With --field and --value a single field is set, " +
			"otherwise every field is asked for in turn; an empty answer keeps the current value. " +
			"Builtin templates cannot be edited.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawField, _ := cmd.Flags().GetString("field")
			value, _ := cmd.Flags().GetString("value")
			newName, _ := cmd.Flags().GetString("name")

			return withStore(cmd, func(ctx context.Context, store templates.Store) error {
				t, err := resolveTemplate(ctx, store, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if t.Builtin {
					return templates.ErrBuiltinTemplate
				}

				switch {
				case rawField != "":
					f, ok := templates.ParseField(rawField)
					if !ok {
						return errors.Errorf("unknown field %q", rawField)
					}
					if strings.TrimSpace(value) == "" {
						return errors.New("--value must not be empty")
					}
					t.Set(f, value)
				case newName == "":
					p := ui.NewPrompter()
					defer func() { _ = p.Close() }()
					if err := editInteractively(cmd.ErrOrStderr(), p, t); err != nil {
						if isQuit(err) {
							return nil
						}
						return err
					}
				}
				if newName != "" {
					t.Name = strings.TrimSpace(newName)
				}

				saved, err := store.Save(ctx, t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("Template %q saved.", saved.Name)))
				return nil
			})
		},
	}
	cmd.Flags().String("field", "", "Field to set (system_prompt, domain_knowledge, thinking_steps, clarifying_instructions)")
	cmd.Flags().String("value", "", "New value for --field")
	cmd.Flags().String("name", "", "Rename the template")
	return cmd
}

func editInteractively(w io.Writer, p *ui.Prompter, t *templates.Template) error {
	for _, fi := range wizard.FieldSteps {
		fmt.Fprintf(w, "\n%s\n%s\n", labelStyle.Render(fi.Label), helpStyle.Render(events.Preview(t.Get(fi.Field))))
		v, err := p.Ask("New value (empty keeps the current one)", false)
		if err != nil {
			return err
		}
		if v != "" {
			t.Set(fi.Field, v)
		}
	}
	return nil
}

func newDeleteTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name-or-id>",
		Short: "Delete a template you created",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			return withStore(cmd, func(ctx context.Context, store templates.Store) error {
				t, err := resolveTemplate(ctx, store, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if t.Builtin {
					return templates.ErrBuiltinTemplate
				}
				if !yes {
					p := ui.NewPrompter()
					defer func() { _ = p.Close() }()
					ok, err := p.Confirm(fmt.Sprintf("Delete template %q?", t.Name), false)
					if err != nil || !ok {
						return nil
					}
				}
				deleted, err := store.Delete(ctx, t.ID)
				if err != nil {
					return err
				}
				if !deleted {
					return errors.Errorf("template %q no longer exists", t.Name)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("Template %q deleted.", t.Name)))
				return nil
			})
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}
