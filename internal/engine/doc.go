// Package engine executes a resolved future graph against a network,
// recording every outcome in a deployment journal.
//
// For each future, in resolved order, the engine:
//   - adopts a confirmed journal entry instead of executing again
//   - refuses to continue past a failed entry until it is wiped
//   - reconciles an executing entry, left by an interrupted run, with the
//     network before doing anything else
//   - otherwise substitutes references with confirmed results and performs
//     the primitive through a Transport
//
// Deploys and calls journal an executing marker carrying the signed
// transaction's hash and nonce before broadcast, so a crash between send
// and confirmation never leads to a blind resend.
//
// Each run holds the namespace lock for its duration. Journal writes carry a
// seq from a logical Clock resumed from the journal, and a run id from a
// RunIDGenerator.
package engine
