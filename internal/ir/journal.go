package ir

// JournalEntry is the durable outcome record of one future within a
// deployment namespace. Entries are keyed by (Namespace, Ref).
type JournalEntry struct {
	Namespace string    `json:"namespace"`
	Ref       FutureRef `json:"ref"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`

	// Result is set only when Status is confirmed.
	Result IRValue `json:"result,omitempty"`

	// Pending is set while a transaction is in flight (executing) and kept
	// afterwards for audit.
	Pending *PendingTx `json:"pending,omitempty"`

	// DefinitionHash fingerprints the future's definition at execution time.
	DefinitionHash string `json:"definition_hash,omitempty"`

	RunID string `json:"run_id"`
	Seq   int64  `json:"seq"`
	Error string `json:"error,omitempty"`
}

// PendingTx describes a signed transaction that may have been broadcast.
// It is what the engine uses to reconcile an interrupted future.
type PendingTx struct {
	TxHash string `json:"tx_hash"`
	From   string `json:"from"`
	Nonce  uint64 `json:"nonce"`

	// RawTx is the encoded signed transaction. It is not persisted.
	RawTx []byte `json:"-"`
}

// JournalEvent is one record of the append-only journal log.
type JournalEvent struct {
	Seq    int64     `json:"seq"`
	RunID  string    `json:"run_id"`
	Ref    FutureRef `json:"ref"`
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}
