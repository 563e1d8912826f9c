package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/network"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	Network    string
	Parameters string
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy <module>",
		Short: "Deploy a module and everything it uses",
		Long: `Deploy a module's futures to a network.

Futures already confirmed in the network's journal are skipped and their
results reused. A future interrupted mid-transaction by an earlier run is
reconciled with the network before anything else happens.

Exit codes: 0 when every future is confirmed, 1 when a future failed or
could not be reconciled, 2 for configuration and definition errors.

Example:
  keystone deploy IPMarket --network op
  keystone deploy DolphinIPMarket --network base --parameters ./base.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Network, "network", "n", "", "network identifier (required)")
	cmd.Flags().StringVarP(&opts.Parameters, "parameters", "p", "", "module parameters file (default from config)")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

// DeployReport is the outcome of a deploy.
type DeployReport struct {
	Module     string            `json:"module"`
	Network    string            `json:"network"`
	Namespace  string            `json:"namespace"`
	RunID      string            `json:"run_id"`
	Executed   []string          `json:"executed"`
	Skipped    []string          `json:"skipped"`
	Reconciled []string          `json:"reconciled,omitempty"`
	Outputs    map[string]string `json:"outputs,omitempty"`
	Failed     string            `json:"failed,omitempty"`
	Blocked    []string          `json:"blocked,omitempty"`
}

// RenderText implements textRenderer.
func (r *DeployReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Deployed %s to %s (%s)\n", r.Module, r.Network, r.Namespace)
	fmt.Fprintf(w, "  executed %d, skipped %d, reconciled %d\n", len(r.Executed), len(r.Skipped), len(r.Reconciled))
	if len(r.Blocked) > 0 {
		fmt.Fprintf(w, "  blocked: %s\n", strings.Join(r.Blocked, ", "))
	}
	if len(r.Outputs) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, 0, len(r.Outputs))
	for name := range r.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, r.Outputs[name])
	}
	return tw.Flush()
}

func runDeploy(opts *DeployOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	logger := env.logger

	// Everything that can fail without the network fails first.
	profile, err := network.Resolve(opts.Network, env.source())
	if err != nil {
		return formatter.Fail("failed to resolve network", err, nil)
	}
	session, err := opts.build(env, name, opts.Parameters)
	if err != nil {
		return formatter.Fail("failed to build module", err, nil)
	}
	formatter.VerboseLog("Built %s: %d futures from modules %v", name, len(session.Futures()), session.Modules())
	g, err := graph.New(session.Futures())
	if err == nil {
		_, err = g.Resolve()
	}
	if err != nil {
		return formatter.Fail("invalid deployment graph", err, nil)
	}

	j, err := openJournal(env.cfg, profile.Namespace())
	if err != nil {
		return formatter.Fail("failed to open journal", err, nil)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping after the current future", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	transport, closeTransport, err := opts.transport(ctx, profile, env.cfg, logger)
	if err != nil {
		return formatter.Fail("failed to connect", err, nil)
	}
	if closeTransport != nil {
		defer closeTransport()
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger.With("network", profile.ID)),
		engine.WithOperationTimeout(env.cfg.Deploy.ConfirmTimeout),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(j, transport, profile.Namespace(), engineOpts...)

	logger.Info("deploying", "module", name, "network", profile.String())
	result, runErr := eng.Run(ctx, session.Futures())
	report := newDeployReport(name, profile, session, g, result)

	if runErr != nil {
		msg := "deploy failed"
		if report.Failed != "" {
			msg = "deploy failed at " + report.Failed
		}
		return formatter.Fail(msg, runErr, report)
	}
	logger.Info("deploy finished", slog.Int("executed", len(report.Executed)), slog.Int("skipped", len(report.Skipped)))
	return formatter.Success(report)
}

func newDeployReport(name string, p *network.Profile, s *module.Session, g *graph.Graph, res *engine.Result) *DeployReport {
	report := &DeployReport{
		Module:    name,
		Network:   p.ID,
		Namespace: p.Namespace(),
		Executed:  []string{},
		Skipped:   []string{},
	}
	if res == nil {
		return report
	}
	report.RunID = res.RunID
	report.Executed = refStrings(res.Executed)
	report.Skipped = refStrings(res.Skipped)
	report.Reconciled = refStrings(res.Reconciled)
	if res.Failed != nil {
		report.Failed = res.Failed.String()
		report.Blocked = refStrings(g.Downstream(*res.Failed))
	}

	outputs, _ := s.Outputs(name)
	for out, ref := range outputs {
		if v, ok := res.Results[ref]; ok {
			if report.Outputs == nil {
				report.Outputs = make(map[string]string)
			}
			report.Outputs[out] = ir.Format(v)
		}
	}
	return report
}

func refStrings(refs []ir.FutureRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
