// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/detect"
	"github.com/jeranaias/letterscribe/internal/ollama"
)

func newModelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "List, check and select Ollama models",
	}
	cmd.AddCommand(
		newModelsListCmd(app),
		newModelsUseCmd(app),
		newModelsCheckCmd(app),
	)
	return cmd
}

// modelRow is one line of "models list".
type modelRow struct {
	detect.CompatibilityResult
	Size    int64 `json:"size_bytes"`
	Current bool  `json:"current"`
}

func newModelsListCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed models ranked by how well they fit this computer",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.Gateway()
			if err != nil {
				return err
			}
			infos, err := gw.ListModelInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s", ollama.UserMessage(err))
			}

			hw := detect.DetectHardware(cmd.Context())
			sizes := make(map[string]int64, len(infos))
			names := make([]string, 0, len(infos))
			for _, m := range infos {
				sizes[m.Name] = m.Size
				names = append(names, m.Name)
			}

			current := gw.Model()
			var rows []modelRow
			for _, r := range detect.RankModels(names, hw) {
				rows = append(rows, modelRow{
					CompatibilityResult: r,
					Size:                sizes[r.ModelID],
					Current:             r.ModelID == current,
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No models installed. Pull one with: ollama pull llama3.1:8b"))
				return nil
			}
			printHardware(out, hw)
			fmt.Fprintln(out, renderModelTable(rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderModelTable(rows []modelRow) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SeparatorStyle).
		Headers("", "MODEL", "PARAMS", "SIZE", "FIT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return SectionStyle.MarginTop(0).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		marker := ""
		if r.Current {
			marker = "*"
		}
		size := "-"
		if r.Size > 0 {
			size = humanize.Bytes(uint64(r.Size))
		}
		t.Row(marker, r.ModelID, fmt.Sprintf("%.1fB", r.ParamsB), size, RenderLevel(r.Level))
	}
	return t.String()
}

func newModelsUseCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "use [model]",
		Short: "Select the model used for new letters",
		Long: `Select the model used for new letters.

Without an argument, pick from the installed models interactively. A model
that is not installed is refused unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			gw, err := app.Gateway()
			if err != nil {
				return err
			}

			installed, listErr := gw.ListModels(cmd.Context())
			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				if listErr != nil {
					return fmt.Errorf("%s", ollama.UserMessage(listErr))
				}
				if err := RequiresTTY("choose a model"); err != nil {
					return err
				}
				if len(installed) == 0 {
					return fmt.Errorf("no models installed")
				}
				name, err = askSelect("Model for new letters:", installed, store.Model())
				if err != nil {
					return err
				}
			}

			if !force {
				if listErr != nil {
					return fmt.Errorf("cannot verify model: %s (use --force to set it anyway)", ollama.UserMessage(listErr))
				}
				if !slices.Contains(installed, name) {
					return fmt.Errorf("model %q is not installed (pull it with 'ollama pull %s' or use --force)", name, name)
				}
			}

			if err := store.SetModel(name); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, SuccessStyle.Render("Model set to ")+name)
			printCompatibility(out, detect.EvaluateCompatibility(name, detect.DetectHardware(cmd.Context())))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "set the model even if it is not installed")
	return cmd
}

func newModelsCheckCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check [model]...",
		Short: "Estimate whether models will run on this computer",
		Long: `Estimate whether models will run on this computer.

The estimate uses the parameter count implied by the model name and the
total system RAM. It does not need Ollama to be running. Without arguments
the configured model is checked.`,
		Example: `  letterscribe models check
  letterscribe models check llama3.1:70b qwen2.5:7b`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				store, err := app.Config()
				if err != nil {
					return err
				}
				args = []string{store.Model()}
			}

			hw := detect.DetectHardware(cmd.Context())
			results := make([]detect.CompatibilityResult, 0, len(args))
			for _, id := range args {
				results = append(results, detect.EvaluateCompatibility(id, hw))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, map[string]interface{}{
					"hardware": hw,
					"results":  results,
				})
			}
			printHardware(out, hw)
			for _, r := range results {
				fmt.Fprintln(out)
				printCompatibility(out, r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// unknownRAMWarning explains estimates made without a RAM figure.
const unknownRAMWarning = "Could not detect system RAM; fit estimates assume the smallest machine."

func printHardware(out io.Writer, hw detect.HardwareFacts) {
	fmt.Fprintln(out, RenderField("Hardware", hw.String()))
	if !hw.RAMKnown() {
		fmt.Fprintln(out, WarningStyle.Render(unknownRAMWarning))
	}
}

func printCompatibility(out io.Writer, r detect.CompatibilityResult) {
	fmt.Fprintln(out, RenderField("Model", r.ModelID))
	fmt.Fprintln(out, RenderField("Parameters", fmt.Sprintf("~%.1f billion", r.ParamsB)))
	fmt.Fprintln(out, LabelStyle.Render("Fit")+RenderLevel(r.Level))
	fmt.Fprintln(out, DimStyle.Render(r.Message))
	if r.LongWaitMessage != "" {
		fmt.Fprintln(out, WarningStyle.Render(r.LongWaitMessage))
	}
}
