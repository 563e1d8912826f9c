package network

import (
	"net/url"
	"strings"
)

// Resolve maps a network identifier to its Profile.
//
// It fails with *ConfigurationError when the identifier is unknown, a
// required setting is missing, or a referenced secret is absent or empty.
// Identifiers are matched case-insensitively because configuration keys
// are case-folded when loaded.
func Resolve(id string, src Source) (*Profile, error) {
	settings, ok := lookup(id, src.Networks)
	if !ok {
		return nil, &ConfigurationError{Network: id, Message: "unknown network identifier"}
	}

	if settings.URL == "" {
		return nil, &ConfigurationError{Network: id, Field: "url", Message: "endpoint URL is required"}
	}
	if u, err := url.Parse(settings.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Network: id, Field: "url", Message: "endpoint URL is not an absolute URL"}
	}
	if settings.ChainID <= 0 {
		return nil, &ConfigurationError{Network: id, Field: "chain_id", Message: "chain id must be a positive integer"}
	}
	if settings.SignerRef == "" {
		return nil, &ConfigurationError{Network: id, Field: "signer_ref", Message: "signer credential reference is required"}
	}
	if settings.VerificationRef == "" {
		return nil, &ConfigurationError{Network: id, Field: "verification_ref", Message: "verification credential reference is required"}
	}

	compilers := settings.Compilers
	if len(compilers) == 0 {
		compilers = src.Compilers
	}
	if len(compilers) == 0 {
		return nil, &ConfigurationError{Network: id, Field: "compilers", Message: "at least one compiler version is required"}
	}
	for _, c := range compilers {
		if c.Version == "" {
			return nil, &ConfigurationError{Network: id, Field: "compilers", Message: "compiler version must not be empty"}
		}
	}

	signer, err := secret(id, settings.SignerRef, src.Secrets)
	if err != nil {
		return nil, err
	}
	verification, err := secret(id, settings.VerificationRef, src.Secrets)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:              id,
		URL:             settings.URL,
		ChainID:         settings.ChainID,
		SignerKey:       signer,
		VerificationKey: verification,
		Explorer:        settings.Explorer,
		Compilers:       append([]Compiler(nil), compilers...),
	}, nil
}

// Namespace returns the deployment namespace of a configured network
// without resolving its secrets, for commands that only read or repair the
// journal.
func Namespace(id string, src Source) (string, error) {
	settings, ok := lookup(id, src.Networks)
	if !ok {
		return "", &ConfigurationError{Network: id, Message: "unknown network identifier"}
	}
	if settings.ChainID <= 0 {
		return "", &ConfigurationError{Network: id, Field: "chain_id", Message: "chain id must be a positive integer"}
	}
	return (&Profile{ChainID: settings.ChainID}).Namespace(), nil
}

// Problem is one network that failed to resolve.
type Problem struct {
	Network string
	Err     error
}

// Check resolves every configured network and collects the failures
// instead of stopping at the first one.
func Check(src Source) (map[string]*Profile, []Problem) {
	profiles := make(map[string]*Profile)
	var problems []Problem
	for _, name := range Names(src) {
		p, err := Resolve(name, src)
		if err != nil {
			problems = append(problems, Problem{Network: name, Err: err})
			continue
		}
		profiles[name] = p
	}
	return profiles, problems
}

func lookup(id string, networks map[string]Settings) (Settings, bool) {
	if s, ok := networks[id]; ok {
		return s, true
	}
	for name, s := range networks {
		if strings.EqualFold(name, id) {
			return s, true
		}
	}
	return Settings{}, false
}

func secret(network, ref string, secrets Secrets) (string, error) {
	v, ok := secrets[ref]
	if !ok {
		return "", &ConfigurationError{Network: network, Field: ref, Message: "secret is not set"}
	}
	if strings.TrimSpace(v) == "" {
		return "", &ConfigurationError{Network: network, Field: ref, Message: "secret is empty"}
	}
	return v, nil
}
