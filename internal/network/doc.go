// Package network resolves a network identifier into a fully populated
// Profile: RPC endpoint, chain id, signer credential, compiler versions and
// explorer verification credential.
//
// Resolution is pure. Static settings and secrets arrive in an explicitly
// constructed Source; the resolver never reads the process environment, so
// tests do not need to mutate it. LoadSecrets is the one place that reads
// the environment and a dotenv file, and it is called by the CLI.
package network
