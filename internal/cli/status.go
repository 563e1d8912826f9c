package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/journal"
	"github.com/roach88/keystone/internal/network"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Network string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List journal entries for a network",
		Long: `Print every journaled future of a network's namespace with its status,
result and in-flight transaction, plus the current lock holder.

Example:
  keystone status --network op
  keystone status --network base --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Network, "network", "n", "", "network identifier (required)")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

// StatusEntry is one journaled future.
type StatusEntry struct {
	Ref    string    `json:"ref"`
	Kind   ir.Kind   `json:"kind"`
	Status ir.Status `json:"status"`
	Result string    `json:"result,omitempty"`
	TxHash string    `json:"tx_hash,omitempty"`
	RunID  string    `json:"run_id"`
	Seq    int64     `json:"seq"`
	Error  string    `json:"error,omitempty"`
}

// StatusReport is the content of a namespace's journal.
type StatusReport struct {
	Network   string        `json:"network"`
	Namespace string        `json:"namespace"`
	Lock      *journal.Lock `json:"lock,omitempty"`
	Entries   []StatusEntry `json:"entries"`
}

// RenderText implements textRenderer.
func (r *StatusReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%s (%s)\n", r.Network, r.Namespace)
	if r.Lock != nil {
		fmt.Fprintf(w, "locked by %s since %s\n", r.Lock.Holder, r.Lock.AcquiredAt)
	}
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "no journal entries")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUTURE\tSTATUS\tRESULT\tRUN")
	for _, e := range r.Entries {
		detail := e.Result
		switch {
		case e.Error != "":
			detail = e.Error
		case detail == "" && e.TxHash != "":
			detail = "tx " + e.TxHash
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Ref, e.Status, detail, e.RunID)
	}
	return tw.Flush()
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	ns, err := network.Namespace(opts.Network, env.source())
	if err != nil {
		return formatter.Fail("failed to resolve network", err, nil)
	}

	report := &StatusReport{Network: opts.Network, Namespace: ns, Entries: []StatusEntry{}}
	j, err := openExistingJournal(env.cfg, ns)
	if err != nil {
		return formatter.Fail("failed to open journal", err, nil)
	}
	if j == nil {
		return formatter.Success(report)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if report.Lock, err = j.LockHolder(ctx, ns); err != nil {
		return formatter.Fail("failed to read lock", err, nil)
	}
	entries, err := j.List(ctx, ns)
	if err != nil {
		return formatter.Fail("failed to read journal", err, nil)
	}
	for _, e := range entries {
		se := StatusEntry{
			Ref:    e.Ref.String(),
			Kind:   e.Kind,
			Status: e.Status,
			RunID:  e.RunID,
			Seq:    e.Seq,
			Error:  e.Error,
		}
		if e.Result != nil {
			se.Result = ir.Format(e.Result)
		}
		if e.Pending != nil {
			se.TxHash = e.Pending.TxHash
		}
		report.Entries = append(report.Entries, se)
	}
	return formatter.Success(report)
}
