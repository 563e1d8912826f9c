package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/network"
)

// WipeOptions holds flags for the wipe command.
type WipeOptions struct {
	*RootOptions
	Network string
}

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wipe <Module#id>",
		Short: "Forget a failed or interrupted future",
		Long: `Delete a future's journal entry so the next deploy executes it again.

Only failed and executing entries can be wiped. Confirmed entries are
permanent. Wipe an executing entry only after checking that its
transaction was never mined.

Example:
  keystone wipe Market#MarketCore --network op`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWipe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Network, "network", "n", "", "network identifier (required)")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

// WipeReport describes a wiped entry.
type WipeReport struct {
	Ref       string    `json:"ref"`
	Namespace string    `json:"namespace"`
	Previous  ir.Status `json:"previous"`
}

func (r *WipeReport) String() string {
	return fmt.Sprintf("Wiped %s entry %s in %s", r.Previous, r.Ref, r.Namespace)
}

func runWipe(opts *WipeOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ref, err := ir.ParseFutureRef(arg)
	if err != nil {
		return formatter.Fail("invalid future", err, nil)
	}
	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	ns, err := network.Namespace(opts.Network, env.source())
	if err != nil {
		return formatter.Fail("failed to resolve network", err, nil)
	}
	j, err := openJournal(env.cfg, ns)
	if err != nil {
		return formatter.Fail("failed to open journal", err, nil)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	holder := runIDs.Generate()

	if err := j.Lock(ctx, ns, holder); err != nil {
		return formatter.Fail("failed to lock journal", err, nil)
	}
	defer func() {
		if err := j.Unlock(context.WithoutCancel(ctx), ns, holder); err != nil {
			env.logger.Error("unlock failed", "namespace", ns, "error", err)
		}
	}()

	prev, err := j.Get(ctx, ns, ref)
	if err != nil {
		return formatter.Fail("cannot wipe "+ref.String(), err, nil)
	}
	last, err := j.LastSeq(ctx, ns)
	if err != nil {
		return formatter.Fail("failed to read journal", err, nil)
	}
	if err := j.Wipe(ctx, ns, ref, holder, last+1); err != nil {
		return formatter.Fail("cannot wipe "+ref.String(), err, nil)
	}
	env.logger.Info("wiped entry", "ref", ref.String(), "namespace", ns, "previous", string(prev.Status))

	return formatter.Success(&WipeReport{Ref: ref.String(), Namespace: ns, Previous: prev.Status})
}
