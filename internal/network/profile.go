package network

import (
	"fmt"
	"sort"
	"strings"
)

// Compiler is one compiler version the network's artifacts may be built
// with, plus its optimizer setting.
type Compiler struct {
	Version       string `mapstructure:"version" json:"version"`
	OptimizerRuns int    `mapstructure:"optimizer_runs" json:"optimizer_runs"`
}

// Settings are the static, non-secret settings of one network. Secret
// values are never stored here, only the names they are looked up by.
type Settings struct {
	URL             string     `mapstructure:"url"`
	ChainID         int64      `mapstructure:"chain_id"`
	SignerRef       string     `mapstructure:"signer_ref"`
	VerificationRef string     `mapstructure:"verification_ref"`
	Explorer        string     `mapstructure:"explorer"`
	Compilers       []Compiler `mapstructure:"compilers"`
}

// Secrets maps secret names (e.g. DEPLOYER_PRIVATE_KEY) to values.
type Secrets map[string]string

// Source is everything the resolver reads.
type Source struct {
	Networks map[string]Settings

	// Compilers apply to every network that does not list its own.
	Compilers []Compiler

	Secrets Secrets
}

// Profile is the resolved connection, signing and versioning parameters of
// one network. It is immutable once resolved.
type Profile struct {
	ID              string
	URL             string
	ChainID         int64
	SignerKey       string
	VerificationKey string
	Explorer        string
	Compilers       []Compiler
}

// Namespace is the default deployment namespace for the profile's chain.
func (p *Profile) Namespace() string {
	return fmt.Sprintf("chain-%d", p.ChainID)
}

// CompilerVersions returns the configured versions in declaration order.
func (p *Profile) CompilerVersions() []string {
	versions := make([]string, len(p.Compilers))
	for i, c := range p.Compilers {
		versions[i] = c.Version
	}
	return versions
}

// String describes the profile without revealing secrets.
func (p *Profile) String() string {
	return fmt.Sprintf("%s (chain %d, %s, compilers %s)",
		p.ID, p.ChainID, p.Endpoint(), strings.Join(p.CompilerVersions(), ","))
}

// Endpoint returns the RPC URL with its path removed.
func (p *Profile) Endpoint() string {
	return redactURL(p.URL)
}

// redactURL drops the path of an RPC URL; provider URLs commonly embed an
// API key there.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

// Names returns the configured network identifiers, sorted.
func Names(src Source) []string {
	names := make([]string, 0, len(src.Networks))
	for name := range src.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
