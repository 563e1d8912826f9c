package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/compiler"
	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/module"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Parameters string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [modules-dir]",
		Short: "Check module definitions without deploying",
		Long: `Compile every module, build it with the configured parameters and
resolve its graph. Every module is checked; all problems are reported.

The directory defaults to modules.dir from the configuration.

Example:
  keystone validate
  keystone validate ./modules --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Parameters, "parameters", "p", "", "module parameters file (default from config)")

	return cmd
}

// ModuleCheck is the validation outcome of one module.
type ModuleCheck struct {
	Module  string `json:"module"`
	Futures int    `json:"futures"`
	Error   string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Modules []ModuleCheck `json:"modules"`
}

// RenderText implements textRenderer.
func (r *ValidationResult) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range r.Modules {
		if m.Error != "" {
			fmt.Fprintf(tw, "FAIL\t%s\t%s\n", m.Module, m.Error)
			continue
		}
		fmt.Fprintf(tw, "ok\t%s\t%d futures\n", m.Module, m.Futures)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Valid {
		_, err := fmt.Fprintf(w, "All %d modules valid\n", len(r.Modules))
		return err
	}
	return nil
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	env, err := opts.load(cmd)
	if err != nil {
		return formatter.Fail("failed to load configuration", err, nil)
	}
	if dir == "" {
		dir = env.cfg.Modules.Dir
	}

	r, err := opts.registry(dir)
	if err != nil {
		return formatter.Fail("failed to compile modules", err, nil)
	}
	paramsPath := opts.Parameters
	if paramsPath == "" {
		paramsPath = existingFile(env.cfg.Modules.Parameters)
	}
	params, err := compiler.LoadParameters(paramsPath)
	if err != nil {
		return formatter.Fail("failed to load parameters", err, nil)
	}

	result := &ValidationResult{Valid: true, Modules: []ModuleCheck{}}
	for _, name := range r.Names() {
		formatter.VerboseLog("Validating module: %s", name)
		check := ModuleCheck{Module: name}
		n, err := checkModule(r, name, params)
		if err != nil {
			check.Error = err.Error()
			result.Valid = false
		}
		check.Futures = n
		result.Modules = append(result.Modules, check)
	}

	if !result.Valid {
		if err := formatter.Error(ErrCodeModule, "module validation failed", result); err != nil {
			return err
		}
		if formatter.Format != "json" {
			if err := result.RenderText(formatter.Writer); err != nil {
				return err
			}
		}
		return NewExitError(ExitCommandError, "module validation failed")
	}
	return formatter.Success(result)
}

// checkModule builds name on its own and resolves its graph, returning the
// number of futures.
func checkModule(r *module.Registry, name string, params module.Parameters) (int, error) {
	session, err := r.Build(name, params)
	if err != nil {
		return 0, err
	}
	g, err := graph.New(session.Futures())
	if err != nil {
		return 0, err
	}
	if _, err := g.Resolve(); err != nil {
		return 0, err
	}
	return g.Len(), nil
}
