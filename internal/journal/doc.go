// Package journal is the durable record of deployment outcomes.
//
// A journal holds, per deployment namespace, one entry for every future that
// has been attempted, keyed by (namespace, module, future id):
//
//   - entries: current status, result, pending transaction marker,
//     definition hash, run id and seq of each future
//   - events: append-only log of every entry write, for audit
//   - locks: the advisory single-writer lock per namespace
//   - meta: schema version
//
// # Invariants
//
// A confirmed entry is never overwritten. Put checks and writes in a single
// upsert statement guarded by a status predicate, so a concurrent writer
// cannot slip a change between the check and the write.
//
// Each Put is atomic: the entry and its event commit together or not at all.
//
// All ordering uses seq (the engine's logical clock), never timestamps.
//
// # Backends
//
// A plain path or file: DSN opens SQLite (WAL mode, NORMAL synchronous,
// 5-second busy timeout, one connection). A postgres:// or postgresql://
// URL opens Postgres through the pgx database/sql driver.
package journal
