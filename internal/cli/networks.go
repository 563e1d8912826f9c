package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/network"
)

// NewNetworksCommand creates the networks command.
func NewNetworksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List configured networks",
		Long: `Resolve every configured network and report which ones are ready to
deploy to. Secret values are never printed; a network whose signer or
verification secret is missing is listed with the problem.

Example:
  keystone networks
  keystone networks --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworks(rootOpts, cmd)
		},
	}
}

// NetworkInfo is one configured network.
type NetworkInfo struct {
	ID        string   `json:"id"`
	ChainID   int64    `json:"chain_id,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Compilers []string `json:"compilers,omitempty"`
	Problem   string   `json:"problem,omitempty"`
}

// NetworksReport lists every configured network.
type NetworksReport struct {
	Networks []NetworkInfo `json:"networks"`
}

// RenderText implements textRenderer.
func (r *NetworksReport) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NETWORK\tCHAIN\tENDPOINT\tCOMPILERS\tSTATUS")
	for _, n := range r.Networks {
		status := "ready"
		if n.Problem != "" {
			status = n.Problem
		}
		chain := "-"
		if n.ChainID > 0 {
			chain = fmt.Sprint(n.ChainID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, chain, n.Endpoint, strings.Join(n.Compilers, ","), status)
	}
	return tw.Flush()
}

func runNetworks(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	src := env.source()
	profiles, problems := network.Check(src)

	failed := make(map[string]error, len(problems))
	for _, p := range problems {
		failed[p.Network] = p.Err
	}

	report := &NetworksReport{Networks: []NetworkInfo{}}
	for _, id := range network.Names(src) {
		info := NetworkInfo{ID: id}
		if p, ok := profiles[id]; ok {
			info.ChainID = p.ChainID
			info.Namespace = p.Namespace()
			info.Endpoint = p.Endpoint()
			info.Compilers = p.CompilerVersions()
		} else {
			info.Problem = failed[id].Error()
			if settings, ok := src.Networks[id]; ok && settings.ChainID > 0 {
				info.ChainID = settings.ChainID
			}
		}
		report.Networks = append(report.Networks, info)
	}
	formatter.VerboseLog("%d networks, %d not ready", len(report.Networks), len(problems))
	return formatter.Success(report)
}
