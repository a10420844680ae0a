package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/thunk/internal/canonical"
	"github.com/roach88/thunk/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Action   string // optional - filter to one action type
}

// TraceResult is the journal content for one session.
type TraceResult struct {
	Session string          `json:"session"`
	Entries []journal.Entry `json:"entries"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled actions",
		Long: `Show the actions recorded in a dispatch journal.

Without --session, lists every session with its entry count and last
sequence number. With --session, prints that session's entries in
sequence order.

Examples:
  thunk trace --db ./journal.db
  thunk trace --db ./journal.db --session test-session-001
  thunk trace --db ./journal.db --session test-session-001 --action set --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to print")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Session == "" {
		return listSessions(ctx, j, out)
	}

	entries, err := j.Entries(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	filtered := make([]journal.Entry, 0, len(entries))
	for _, e := range entries {
		if opts.Action == "" || e.ActionType == opts.Action {
			filtered = append(filtered, e)
		}
	}

	if opts.Format == "json" {
		return out.Result(TraceResult{Session: opts.Session, Entries: filtered}, false, "", "")
	}

	if len(filtered) == 0 {
		out.Textf("No entries found for session: %s", opts.Session)
		return nil
	}

	out.Textf("Session: %s", opts.Session)
	for _, e := range filtered {
		payload, err := canonical.Marshal(e.Payload)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode payload", err)
		}
		out.Textf("  [%d] %s %s", e.Seq, e.ActionType, payload)
		out.VerboseLog("      id %s", e.ID)
	}
	out.Textf("\n%d entries", len(filtered))
	return nil
}

func listSessions(ctx context.Context, j *journal.Journal, out *OutputFormatter) error {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if sessions == nil {
		sessions = []journal.SessionSummary{}
	}

	if out.Format == "json" {
		return out.Result(sessions, false, "", "")
	}

	if len(sessions) == 0 {
		out.Textf("No sessions in journal.")
		return nil
	}
	for _, s := range sessions {
		out.Textf("%s  %s", s.Session, fmt.Sprintf("%d entries, last seq %d", s.Entries, s.LastSeq))
	}
	return nil
}
