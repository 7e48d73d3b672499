// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/detect"
)

// statusReport is the JSON form of "status".
type statusReport struct {
	Endpoint       string                     `json:"endpoint"`
	Connected      bool                       `json:"connected"`
	Model          string                     `json:"model"`
	ModelInstalled bool                       `json:"model_installed"`
	InstalledCount int                        `json:"installed_models"`
	Hardware       detect.HardwareFacts       `json:"hardware"`
	Compatibility  detect.CompatibilityResult `json:"compatibility"`
	Storage        string                     `json:"storage_backend"`
	DataDir        string                     `json:"data_dir"`
	Sessions       int                        `json:"sessions"`
	PromptsDir     string                     `json:"prompts_dir"`
}

func newStatusCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s", "info"},
		Short:   "Show Ollama, model, hardware and storage status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Config()
			if err != nil {
				return err
			}
			gw, err := app.Gateway()
			if err != nil {
				return err
			}
			cfg := store.Config()
			ctx := cmd.Context()

			report := statusReport{
				Endpoint:   gw.Endpoint(),
				Model:      gw.Model(),
				Hardware:   detect.DetectHardware(ctx),
				Storage:    cfg.Storage.Backend,
				DataDir:    cfg.Storage.Dir,
				PromptsDir: cfg.Prompts.Dir,
			}
			report.Compatibility = detect.EvaluateCompatibility(report.Model, report.Hardware)

			if gw.CheckConnectivity(ctx) {
				report.Connected = true
				if names, err := gw.ListModels(ctx); err == nil {
					report.InstalledCount = len(names)
					report.ModelInstalled = slices.Contains(names, report.Model)
				}
			}

			if sessions, err := app.Sessions(); err == nil {
				if list, err := sessions.List(); err == nil {
					report.Sessions = len(list)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, report)
			}

			fmt.Fprintln(out, TitleStyle.Render("letterscribe status"))

			fmt.Fprintln(out, SectionStyle.Render("Ollama"))
			fmt.Fprintln(out, RenderField("Endpoint", report.Endpoint))
			if report.Connected {
				fmt.Fprintln(out, LabelStyle.Render("Connection")+RenderStatus("ok"))
				fmt.Fprintln(out, RenderField("Installed", strconv.Itoa(report.InstalledCount)+" model(s)"))
			} else {
				fmt.Fprintln(out, LabelStyle.Render("Connection")+RenderStatus("fail"))
				fmt.Fprintln(out, DimStyle.Render("Could not reach Ollama. Check that it is running and the endpoint is correct."))
			}

			fmt.Fprintln(out, SectionStyle.Render("Model"))
			fmt.Fprintln(out, RenderField("Selected", report.Model))
			if report.Connected && !report.ModelInstalled {
				fmt.Fprintln(out, WarningStyle.Render("Not installed. Pull it with: ollama pull "+report.Model))
			}
			fmt.Fprintln(out, LabelStyle.Render("Fit")+RenderLevel(report.Compatibility.Level))

			fmt.Fprintln(out, SectionStyle.Render("Host"))
			printHardware(out, report.Hardware)

			fmt.Fprintln(out, SectionStyle.Render("Storage"))
			fmt.Fprintln(out, RenderField("Backend", report.Storage))
			fmt.Fprintln(out, RenderField("Data dir", report.DataDir))
			fmt.Fprintln(out, RenderField("Sessions", strconv.Itoa(report.Sessions)))
			fmt.Fprintln(out, RenderField("Prompts dir", report.PromptsDir))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
