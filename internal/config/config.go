// Package config loads keystone's static configuration: known networks,
// shared compiler versions, journal location, module and artifact
// directories, and logging. Secrets are not configuration; they are read
// separately by network.LoadSecrets.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/keystone/internal/network"
)

// EnvPrefix prefixes environment overrides, e.g. KEYSTONE_JOURNAL_DSN.
const EnvPrefix = "KEYSTONE"

// Config holds all application configuration.
type Config struct {
	Networks  map[string]network.Settings `mapstructure:"networks"`
	Compilers []network.Compiler          `mapstructure:"compilers"`
	Journal   JournalConfig               `mapstructure:"journal"`
	Modules   ModulesConfig               `mapstructure:"modules"`
	Artifacts ArtifactsConfig             `mapstructure:"artifacts"`
	Deploy    DeployConfig                `mapstructure:"deploy"`
	Log       LogConfig                   `mapstructure:"log"`
}

// JournalConfig locates the deployment journal.
type JournalConfig struct {
	// Dir holds one SQLite file per namespace.
	Dir string `mapstructure:"dir"`

	// DSN, when set, overrides Dir. A postgres:// URL selects Postgres.
	DSN string `mapstructure:"dsn"`
}

// ModulesConfig locates module definitions and their parameters.
type ModulesConfig struct {
	Dir        string `mapstructure:"dir"`
	Parameters string `mapstructure:"parameters"`
}

// ArtifactsConfig locates compiled contract artifacts.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DeployConfig tunes transaction submission.
type DeployConfig struct {
	// ConfirmTimeout bounds the wait for one transaction's receipt.
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`

	// GasMargin is the percentage added to every gas estimate.
	GasMargin int `mapstructure:"gas_margin"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type defaultNetwork struct {
	name         string
	url          string
	chainID      int64
	verification string
	explorer     string
}

var defaultNetworks = []defaultNetwork{
	{"op", "https://mainnet.optimism.io", 10, "OPSCAN_API_KEY", "https://api-optimistic.etherscan.io/api"},
	{"arb", "https://arb1.arbitrum.io/rpc", 42161, "ARBSCAN_API_KEY", "https://api.arbiscan.io/api"},
	{"base", "https://mainnet.base.org", 8453, "BASESCAN_API_KEY", "https://api.basescan.org/api"},
	{"polygon", "https://polygon-rpc.com", 137, "POLYGONSCAN_API_KEY", "https://api.polygonscan.com/api"},
	{"sepolia", "https://rpc.sepolia.org", 11155111, "ETHERSCAN_API_KEY", "https://api-sepolia.etherscan.io/api"},
}

// Load reads configuration from defaults, the optional file at path, and
// KEYSTONE_* environment overrides, in increasing precedence. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	for _, n := range defaultNetworks {
		key := "networks." + n.name + "."
		v.SetDefault(key+"url", n.url)
		v.SetDefault(key+"chain_id", n.chainID)
		v.SetDefault(key+"signer_ref", "DEPLOYER_PRIVATE_KEY")
		v.SetDefault(key+"verification_ref", n.verification)
		v.SetDefault(key+"explorer", n.explorer)
	}
	v.SetDefault("compilers", []map[string]any{
		{"version": "0.8.19", "optimizer_runs": 200},
		{"version": "0.8.24", "optimizer_runs": 200},
	})
	v.SetDefault("journal.dir", "./deployments")
	v.SetDefault("journal.dsn", "")
	v.SetDefault("modules.dir", "./modules")
	v.SetDefault("modules.parameters", "")
	v.SetDefault("artifacts.dir", "./out")
	v.SetDefault("deploy.confirm_timeout", "5m")
	v.SetDefault("deploy.gas_margin", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Source combines the static network settings with secrets for the
// resolver.
func (c *Config) Source(secrets network.Secrets) network.Source {
	return network.Source{
		Networks:  c.Networks,
		Compilers: c.Compilers,
		Secrets:   secrets,
	}
}

// SetupLogger creates a logger with the configured level and format.
// verbose forces debug level.
func SetupLogger(cfg LogConfig, w io.Writer, verbose bool) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
