package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/network"
)

// UnlockOptions holds flags for the unlock command.
type UnlockOptions struct {
	*RootOptions
	Network string
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnlockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release a namespace lock left by a crashed deploy",
		Long: `Force-release the single-writer lock on a network's journal.

Only use this when no deploy is running against the network.

Example:
  keystone unlock --network op`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Network, "network", "n", "", "network identifier (required)")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

// UnlockReport names the released holder, if there was one.
type UnlockReport struct {
	Namespace string `json:"namespace"`
	Holder    string `json:"holder,omitempty"`
}

func (r *UnlockReport) String() string {
	if r.Holder == "" {
		return fmt.Sprintf("%s was not locked", r.Namespace)
	}
	return fmt.Sprintf("Released lock on %s held by %s", r.Namespace, r.Holder)
}

func runUnlock(opts *UnlockOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	ns, err := network.Namespace(opts.Network, env.source())
	if err != nil {
		return formatter.Fail("failed to resolve network", err, nil)
	}

	report := &UnlockReport{Namespace: ns}
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
	lock, err := j.LockHolder(ctx, ns)
	if err != nil {
		return formatter.Fail("failed to read lock", err, nil)
	}
	if lock == nil {
		return formatter.Success(report)
	}
	if err := j.Unlock(ctx, ns, ""); err != nil {
		return formatter.Fail("failed to unlock", err, nil)
	}
	report.Holder = lock.Holder
	env.logger.Warn("released lock", "namespace", ns, "holder", lock.Holder, "acquired_at", lock.AcquiredAt)
	return formatter.Success(report)
}
