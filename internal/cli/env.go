package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/chain"
	"github.com/roach88/keystone/internal/compiler"
	"github.com/roach88/keystone/internal/config"
	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/journal"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/network"
)

// environment is what every command loads before doing its work.
type environment struct {
	cfg     *config.Config
	secrets network.Secrets
	logger  *slog.Logger
}

func (o *RootOptions) load(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	environ := os.Environ
	if o.Environ != nil {
		environ = o.Environ
	}
	secrets, err := network.LoadSecrets(o.EnvFile, environ())
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:     cfg,
		secrets: secrets,
		logger:  config.SetupLogger(cfg.Log, cmd.ErrOrStderr(), o.Verbose),
	}, nil
}

func (e *environment) source() network.Source {
	return e.cfg.Source(e.secrets)
}

// registry returns the Go-defined modules plus every CUE module in the
// modules directory. A missing or empty directory contributes nothing.
func (o *RootOptions) registry(dir string) (*module.Registry, error) {
	r := module.NewRegistry()
	if o.Registry != nil {
		r = o.Registry.Clone()
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return r, nil
	}
	defs, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := compiler.Register(r, defs); err != nil {
		return nil, err
	}
	return r, nil
}

// build builds name with the parameters file, falling back to the
// configured one.
func (o *RootOptions) build(env *environment, name, paramsPath string) (*module.Session, error) {
	r, err := o.registry(env.cfg.Modules.Dir)
	if err != nil {
		return nil, err
	}
	if paramsPath == "" {
		paramsPath = existingFile(env.cfg.Modules.Parameters)
	}
	params, err := compiler.LoadParameters(paramsPath)
	if err != nil {
		return nil, err
	}
	return r.Build(name, params)
}

// existingFile returns path, or "" when nothing exists there.
func existingFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

func openJournal(cfg *config.Config, namespace string) (*journal.Journal, error) {
	return journal.Open(journal.Locate(cfg.Journal.DSN, cfg.Journal.Dir, namespace))
}

// openExistingJournal opens the namespace's journal for reading. A SQLite
// journal that was never written returns nil without creating the file.
func openExistingJournal(cfg *config.Config, namespace string) (*journal.Journal, error) {
	dsn := journal.Locate(cfg.Journal.DSN, cfg.Journal.Dir, namespace)
	if !journal.IsPostgres(dsn) {
		if _, err := os.Stat(dsn); errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
	}
	return journal.Open(dsn)
}

func (o *RootOptions) transport(ctx context.Context, p *network.Profile, cfg *config.Config, logger *slog.Logger) (engine.Transport, func(), error) {
	if o.TransportFactory != nil {
		return o.TransportFactory(ctx, p, cfg, logger)
	}
	return DialTransport(ctx, p, cfg, logger)
}

// DialTransport connects to the profile's endpoint with the configured
// artifacts.
func DialTransport(ctx context.Context, p *network.Profile, cfg *config.Config, logger *slog.Logger) (engine.Transport, func(), error) {
	artifacts, err := chain.LoadArtifacts(cfg.Artifacts.Dir)
	if err != nil {
		return nil, nil, err
	}
	t, err := chain.Dial(ctx, p, artifacts,
		chain.WithGasMargin(cfg.Deploy.GasMargin),
		chain.WithLogger(logger.With("network", p.ID)))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", p.ID, err)
	}
	return t, t.Close, nil
}
