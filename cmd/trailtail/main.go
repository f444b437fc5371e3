package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRoot(newCommand(os.Stdout, os.Stderr))
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildRoot creates the root command. Running it without a subcommand tails.
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(c, globalFlags)
	root.AddCommand(
		createTailCommand(c, globalFlags),
		createStatusCommand(c),
		createVersionCommand(c),
	)
	return root
}

// createRootCommand creates the root command with the tail flags as
// persistent flags so "trailtail" and "trailtail tail" accept the same set.
func createRootCommand(c command, flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "trailtail",
		Short: "Live tail of AWS CloudTrail events",
		Long: `Trailtail polls CloudTrail LookupEvents and prints every new event once,
as one aligned line with a short annotation of what happened.

Examples:
  trailtail --profile=dev --region=eu-west-1
  trailtail tail --lookback=10m --simple
  trailtail --config=trailtail.toml --archive=sqlite:///var/lib/trailtail/audit.db
  trailtail --listen=127.0.0.1:9464     # /healthz, /status, /metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Tail(cmd.Context(), flags.ConfigPath, cmd.Flags())
		},
	}
	addTailFlags(root.PersistentFlags(), flags)
	return root
}

// createTailCommand creates the tail subcommand
func createTailCommand(c command, flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Follow CloudTrail events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Tail(cmd.Context(), flags.ConfigPath, cmd.Flags())
		},
	}
}

// createVersionCommand creates the version subcommand
func createVersionCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.stdout, "trailtail %s\n", version)
			return err
		},
	}
}
