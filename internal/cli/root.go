// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// BuildInfo is set by main from linker flags.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd(app *App, info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:   "letterscribe",
		Short: "Draft clinical referral letters with a local model",
		Long: `letterscribe turns clinical notes into referral letters using a model
served by a local Ollama instance. Nothing leaves the machine.

Start an interactive drafting session with "letterscribe chat".`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("letterscribe %s (commit %s, built %s)\n",
		info.Version, info.GitCommit, info.BuildDate))

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "",
		"config file (default is $HOME/.letterscribe/config.toml)")
	root.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newChatCmd(app),
		newGenerateCmd(app),
		newSessionsCmd(app),
		newModelsCmd(app),
		newStatusCmd(app),
		newConfigCmd(app),
		newPipelineCmd(app),
		newEvalCmd(app),
		newVersionCmd(info),
	)
	return root
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("letterscribe"))
			fmt.Fprintln(out, RenderField("Version", info.Version))
			fmt.Fprintln(out, RenderField("Commit", info.GitCommit))
			fmt.Fprintln(out, RenderField("Built", info.BuildDate))
		},
	}
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	root := NewRootCmd(app, info)
	if err := root.ExecuteContext(ctx); err != nil {
		// PersistentPostRunE is skipped when RunE fails.
		_ = app.Close()
		if errors.Is(err, ErrCancelled) {
			fmt.Fprintln(os.Stderr, DimStyle.Render("Cancelled."))
			return 1
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}
