package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/internal/cli"
)

var version = "dev"

type app struct {
	cli.Globals
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:     "reviewbot",
		Short:   "Slack bot that deploys pull request preview environments",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.Bind(cmd)

	cmd.AddCommand(newCmdServe(a))
	cmd.AddCommand(newCmdNotify(a))
	cmd.AddCommand(newCmdTeardown(a))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetContext(ctx)
	executed, err := root.ExecuteC()
	if err != nil {
		name := root.Name()
		if executed != nil {
			name = executed.Name()
		}
		slog.Error("failed", "command", name, "error", err)
		os.Exit(1)
	}
}
