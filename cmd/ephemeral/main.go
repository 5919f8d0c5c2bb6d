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
	project string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:     "ephemeral",
		Short:   "Provision and tear down pull request preview environments",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.Bind(cmd)
	cmd.PersistentFlags().StringVar(&a.project, "project", "", "project name from the configuration (default: all projects for destroy, the only project for create)")

	cmd.AddCommand(newCmdCreate(a))
	cmd.AddCommand(newCmdDestroy(a))
	cmd.AddCommand(newCmdRender(a))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetContext(ctx)
	executed, err := root.ExecuteC()
	if err != nil {
		// PersistentPreRunE installs the configured logger as the default
		name := root.Name()
		if executed != nil {
			name = executed.Name()
		}
		slog.Error("failed", "command", name, "error", err)
		os.Exit(1)
	}
}
