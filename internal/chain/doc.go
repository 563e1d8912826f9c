// Package chain implements the engine's Transport on an EVM JSON-RPC
// endpoint using go-ethereum.
//
// Contracts are described by Hardhat or Foundry artifacts (ABI plus
// creation bytecode) found under an artifacts directory. Arguments arrive
// as IR values and are converted to the Go types the ABI encoder expects.
//
// Transactions are legacy-priced, signed with the network profile's signer
// key and built in two steps: Prepare signs without broadcasting, Send
// broadcasts and waits for the receipt. Reconcile settles a transaction
// whose receipt an interrupted run never observed, using the receipt, the
// transaction pool and the sender's mined nonce.
package chain
