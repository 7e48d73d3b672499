// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/prompt"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Long: `Show or change the configuration.

Changes are written to the config file immediately. Environment variables
(LETTERSCRIBE_OLLAMA_URL, LETTERSCRIBE_MODEL, LETTERSCRIBE_PROMPT_FILE,
LETTERSCRIBE_DATA_DIR, LETTERSCRIBE_STORAGE, LETTERSCRIBE_LOG_LEVEL) override
the file for a single run.`,
	}
	cmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetEndpointCmd(app),
		newConfigSetModelCmd(app),
		newConfigSetPromptCmd(app),
	)
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			cfg := store.Config()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, cfg)
			}
			var buf bytes.Buffer
			if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprintln(out, DimStyle.Render("# "+store.Path()))
			fmt.Fprint(out, highlight(buf.String(), "toml"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newConfigSetEndpointCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "set-endpoint <url>",
		Short:   "Set the Ollama URL",
		Example: "  letterscribe config set-endpoint http://127.0.0.1:11434",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			if err := store.SetEndpoint(args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, SuccessStyle.Render("Endpoint set to ")+store.Endpoint())
			app.checkConnectivity(cmd.Context())
			return nil
		},
	}
}

func newConfigSetModelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <model>",
		Short: "Set the model without checking that it is installed",
		Long: `Set the model without checking that it is installed.

Use 'letterscribe models use' to pick from the installed models instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			if err := store.SetModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Model set to ")+store.Model())
			return nil
		},
	}
}

func newConfigSetPromptCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-prompt <name>",
		Short: "Set the template used for the first letter",
		Long: `Set the template used for the first letter.

The name is looked up in the prompts directory (name.txt, name.md or
name.toml) and then among the built-in templates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			composer, err := app.Composer()
			if err != nil {
				return err
			}
			if _, err := composer.Template(args[0]); err != nil {
				if prompt.IsNotFound(err) {
					return fmt.Errorf("no template named %q (built-in: %v)", args[0], prompt.BuiltinNames())
				}
				return err
			}
			if err := store.SetPromptFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Letter template set to ")+store.PromptFile())
			return nil
		},
	}
}
