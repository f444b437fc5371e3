package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/trailtail/pkg/client"
)

// StatusFlags holds flags for the status command
type StatusFlags struct {
	URL      string
	Timeout  time.Duration
	Insecure bool
}

// createStatusCommand creates the status subcommand
func createStatusCommand(c command) *cobra.Command {
	flags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of a running tail",
		Long: `Query the status server of a tail started with --listen.

Examples:
  trailtail status --url=http://127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.URL, "url", client.DefaultConfig().BaseURL, "status server base URL")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().BoolVar(&flags.Insecure, "insecure", false, "skip TLS verification")
	return cmd
}

// Status prints the health and snapshot of a running tail. A failed tail is
// reported as an error.
func (c command) Status(cmd *cobra.Command, flags StatusFlags) error {
	cl := client.New(client.Config{BaseURL: flags.URL, Timeout: flags.Timeout, Insecure: flags.Insecure})
	ctx := cmd.Context()

	h, err := cl.Health(ctx)
	if err != nil {
		return fmt.Errorf("status server %s: %w", flags.URL, err)
	}
	st, err := cl.Status(ctx)
	if err != nil {
		return fmt.Errorf("status server %s: %w", flags.URL, err)
	}

	w := c.stdout
	_, _ = fmt.Fprintf(w, "Session:      %s\n", st.SessionID)
	_, _ = fmt.Fprintf(w, "State:        %s\n", st.State)
	_, _ = fmt.Fprintf(w, "Started:      %s\n", st.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Window start: %s\n", st.WindowStart.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Polls:        %d (consecutive failures %d)\n", st.Polls, st.ConsecutiveFailures)
	_, _ = fmt.Fprintf(w, "Rendered:     %d (duplicates %d, stale %d)\n", st.Rendered, st.Duplicates, st.Stale)
	if !st.LastPoll.IsZero() {
		_, _ = fmt.Fprintf(w, "Last poll:    %s\n", st.LastPoll.Format(time.RFC3339))
	}
	if st.LastError != "" {
		_, _ = fmt.Fprintf(w, "Last error:   %s\n", st.LastError)
	}
	if !h.OK() {
		return fmt.Errorf("tail %s: %s", h.State, h.Error)
	}
	return nil
}
