package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/ir"
)

func TestOpen_CreatesDirectoryAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deployments", "chain-10.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.db.Exec(`UPDATE meta SET value = '99' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestLocate(t *testing.T) {
	assert.Equal(t, filepath.Join("deployments", "chain-10.db"), Locate("", "deployments", "chain-10"))
	assert.Equal(t, "postgres://db/keystone", Locate("postgres://db/keystone", "deployments", "chain-10"))
	assert.True(t, IsPostgres("postgresql://db"))
	assert.False(t, IsPostgres("deployments/chain-10.db"))
}

func TestRebind(t *testing.T) {
	pg := &Journal{dialect: dialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &Journal{dialect: dialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPutGet_RoundTrip(t *testing.T) {
	for name, j := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := uniqueNamespace(t)

			e := entry(ns, "Market#MarketCore", ir.StatusConfirmed, 3)
			e.Result = ir.IRString("0x5FbDB2315678afecb367f032d93F642f64180aa3")
			e.Pending = &ir.PendingTx{TxHash: "0xabc", From: "0xf39f", Nonce: 7}
			require.NoError(t, j.Put(ctx, e))

			got, err := j.Get(ctx, ns, e.Ref)
			require.NoError(t, err)
			assert.Equal(t, ir.StatusConfirmed, got.Status)
			assert.Equal(t, ir.KindDeploy, got.Kind)
			assert.Equal(t, e.Result, got.Result)
			assert.Equal(t, "hash-MarketCore", got.DefinitionHash)
			assert.Equal(t, int64(3), got.Seq)
			require.NotNil(t, got.Pending)
			assert.Equal(t, ir.PendingTx{TxHash: "0xabc", From: "0xf39f", Nonce: 7}, *got.Pending)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	j := createTestJournal(t)
	_, err := j.Get(context.Background(), testNamespace, ir.FutureRef{Module: "M", ID: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_CompositeResult(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	e := entry(testNamespace, "M#M.getTiers", ir.StatusConfirmed, 1)
	e.Kind = ir.KindStaticCall
	e.Result = ir.IRObject{"tiers": ir.IRArray{ir.IRInt(1), ir.IRString("1000000000000000000000")}}
	require.NoError(t, j.Put(ctx, e))

	got, err := j.Get(ctx, testNamespace, e.Ref)
	require.NoError(t, err)
	assert.Equal(t, e.Result, got.Result)
}

func TestPut_ConfirmedIsNeverOverwritten(t *testing.T) {
	for name, j := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := uniqueNamespace(t)

			confirmed := entry(ns, "Price#PriceModel", ir.StatusConfirmed, 1)
			confirmed.Result = ir.IRString("0x1111")
			require.NoError(t, j.Put(ctx, confirmed))

			overwrite := entry(ns, "Price#PriceModel", ir.StatusFailed, 2)
			overwrite.Error = "boom"
			err := j.Put(ctx, overwrite)
			assert.ErrorIs(t, err, ErrConfirmed)

			got, err := j.Get(ctx, ns, confirmed.Ref)
			require.NoError(t, err)
			assert.Equal(t, ir.StatusConfirmed, got.Status)
			assert.Equal(t, ir.IRString("0x1111"), got.Result)

			events, err := j.Events(ctx, ns)
			require.NoError(t, err)
			assert.Len(t, events, 1, "a refused write appends no event")
		})
	}
}

func TestPut_ExecutingThenConfirmed(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	executing := entry(testNamespace, "M#A", ir.StatusExecuting, 1)
	executing.Pending = &ir.PendingTx{TxHash: "0xaaa", From: "0xf39f", Nonce: 0}
	require.NoError(t, j.Put(ctx, executing))

	confirmed := entry(testNamespace, "M#A", ir.StatusConfirmed, 2)
	confirmed.Pending = executing.Pending
	confirmed.Result = ir.IRString("0xA")
	require.NoError(t, j.Put(ctx, confirmed))

	got, err := j.Get(ctx, testNamespace, confirmed.Ref)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Seq)

	events, err := j.Events(ctx, testNamespace)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ir.StatusExecuting, events[0].Status)
	assert.Equal(t, "tx 0xaaa", events[0].Detail)
	assert.Equal(t, ir.StatusConfirmed, events[1].Status)
}

func TestList_OrderedBySeqAndScopedToNamespace(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Put(ctx, entry(testNamespace, "M#B", ir.StatusConfirmed, 2)))
	require.NoError(t, j.Put(ctx, entry(testNamespace, "M#A", ir.StatusConfirmed, 1)))
	require.NoError(t, j.Put(ctx, entry("chain-42161", "M#C", ir.StatusConfirmed, 1)))

	entries, err := j.List(ctx, testNamespace)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "M#A", entries[0].Ref.String())
	assert.Equal(t, "M#B", entries[1].Ref.String())

	empty, err := j.List(ctx, "chain-1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestWipe(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	failed := entry(testNamespace, "M#Failed", ir.StatusFailed, 1)
	failed.Error = "reverted"
	require.NoError(t, j.Put(ctx, failed))
	require.NoError(t, j.Put(ctx, entry(testNamespace, "M#Done", ir.StatusConfirmed, 2)))

	require.NoError(t, j.Wipe(ctx, testNamespace, failed.Ref, "run-2", 3))
	_, err := j.Get(ctx, testNamespace, failed.Ref)
	assert.ErrorIs(t, err, ErrNotFound)

	err = j.Wipe(ctx, testNamespace, ir.FutureRef{Module: "M", ID: "Done"}, "run-2", 4)
	assert.ErrorIs(t, err, ErrConfirmed)

	err = j.Wipe(ctx, testNamespace, ir.FutureRef{Module: "M", ID: "Missing"}, "run-2", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := j.Events(ctx, testNamespace)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "wiped failed entry", events[2].Detail)
	assert.Equal(t, ir.StatusPending, events[2].Status)
}

func TestLastSeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	seq, err := j.LastSeq(ctx, testNamespace)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, j.Put(ctx, entry(testNamespace, "M#A", ir.StatusExecuting, 4)))
	require.NoError(t, j.Put(ctx, entry(testNamespace, "M#A", ir.StatusConfirmed, 5)))
	require.NoError(t, j.Put(ctx, entry("other", "M#A", ir.StatusConfirmed, 9)))

	seq, err = j.LastSeq(ctx, testNamespace)
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)
}

func TestLock(t *testing.T) {
	for name, j := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := uniqueNamespace(t)

			require.NoError(t, j.Lock(ctx, ns, "run-1"))
			require.NoError(t, j.Lock(ctx, ns, "run-1"), "re-entrant for the same holder")

			err := j.Lock(ctx, ns, "run-2")
			require.Error(t, err)
			assert.True(t, IsLockedError(err))
			var le *LockedError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, "run-1", le.Holder)

			require.NoError(t, j.Unlock(ctx, ns, "run-2"), "unlocking someone else's lock is a no-op")
			holder, err := j.LockHolder(ctx, ns)
			require.NoError(t, err)
			require.NotNil(t, holder)
			assert.Equal(t, "run-1", holder.Holder)

			require.NoError(t, j.Unlock(ctx, ns, "run-1"))
			require.NoError(t, j.Lock(ctx, ns, "run-2"))

			require.NoError(t, j.Unlock(ctx, ns, ""), "empty holder force-unlocks")
			holder, err = j.LockHolder(ctx, ns)
			require.NoError(t, err)
			assert.Nil(t, holder)
		})
	}
}

func TestConcurrentReaders(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	for i := int64(1); i <= 20; i++ {
		require.NoError(t, j.Put(ctx, entry(testNamespace, "M#F"+string(rune('a'+i)), ir.StatusConfirmed, i)))
	}

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			entries, err := j.List(ctx, testNamespace)
			if err == nil && len(entries) != 20 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}
