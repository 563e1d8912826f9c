package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/network"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Network    string
	Parameters string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <module>",
		Short: "Show the execution order of a module",
		Long: `Build a module and print its futures in execution order.

With --network, each future is annotated with its status in that
network's journal. Nothing is sent and no secrets are needed.

Example:
  keystone plan IPMarket
  keystone plan IPMarket --network op`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Network, "network", "n", "", "annotate with this network's journal")
	cmd.Flags().StringVarP(&opts.Parameters, "parameters", "p", "", "module parameters file (default from config)")

	return cmd
}

// PlanStep is one future of a plan.
type PlanStep struct {
	Ref          string    `json:"ref"`
	Kind         ir.Kind   `json:"kind"`
	Description  string    `json:"description"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Status       ir.Status `json:"status,omitempty"`
}

// PlanReport is the resolved plan of a module.
type PlanReport struct {
	Module    string     `json:"module"`
	Namespace string     `json:"namespace,omitempty"`
	Steps     []PlanStep `json:"steps"`

	order    []*ir.Future
	statuses map[ir.FutureRef]ir.Status
}

// RenderText implements textRenderer.
func (r *PlanReport) RenderText(w io.Writer) error {
	return graph.FormatPlan(w, r.order, r.statuses)
}

func runPlan(opts *PlanOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	session, err := opts.build(env, name, opts.Parameters)
	if err != nil {
		return formatter.Fail("failed to build module", err, nil)
	}
	g, err := graph.New(session.Futures())
	if err != nil {
		return formatter.Fail("invalid graph", err, nil)
	}
	order, err := g.Resolve()
	if err != nil {
		return formatter.Fail("invalid graph", err, nil)
	}

	report := &PlanReport{Module: name, order: order}
	if opts.Network != "" {
		ns, err := network.Namespace(opts.Network, env.source())
		if err != nil {
			return formatter.Fail("failed to resolve network", err, nil)
		}
		statuses, err := journalStatuses(cmd.Context(), env, ns)
		if err != nil {
			return formatter.Fail("failed to read journal", err, nil)
		}
		report.Namespace = ns
		report.statuses = statuses
	}

	for _, f := range order {
		step := PlanStep{
			Ref:          f.Ref.String(),
			Kind:         f.Kind,
			Description:  f.Describe(),
			Dependencies: refStrings(g.Dependencies(f.Ref)),
		}
		if report.statuses != nil {
			step.Status = ir.StatusPending
			if s, ok := report.statuses[f.Ref]; ok {
				step.Status = s
			}
		}
		report.Steps = append(report.Steps, step)
	}
	return formatter.Success(report)
}

// journalStatuses returns the journaled status of every future in the
// namespace. A journal that does not exist yet yields an empty map.
func journalStatuses(ctx context.Context, env *environment, ns string) (map[ir.FutureRef]ir.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	statuses := make(map[ir.FutureRef]ir.Status)
	j, err := openExistingJournal(env.cfg, ns)
	if err != nil || j == nil {
		return statuses, err
	}
	defer j.Close()

	entries, err := j.List(ctx, ns)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		statuses[e.Ref] = e.Status
	}
	return statuses, nil
}
