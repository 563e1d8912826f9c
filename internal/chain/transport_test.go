package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/network"
)

// newSimulated starts an in-memory chain that mines a block every 50ms and
// returns a Transport signing with a funded key.
func newSimulated(t *testing.T) (*Transport, *network.Profile) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	backend := simulated.NewBackend(types.GenesisAlloc{
		from: {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))},
	})
	t.Cleanup(func() { backend.Close() })

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		wg.Wait()
	})

	ctx := context.Background()
	chainID, err := backend.Client().ChainID(ctx)
	require.NoError(t, err)

	profile := &network.Profile{
		ID:        "sim",
		ChainID:   chainID.Int64(),
		SignerKey: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
	}
	artifacts, err := LoadArtifacts("testdata/hardhat")
	require.NoError(t, err)

	tr, err := New(ctx, backend.Client(), profile, artifacts)
	require.NoError(t, err)
	return tr, profile
}

func deployAnswer(t *testing.T, tr *Transport) (engine.Operation, *ir.PendingTx, ir.IRValue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	op := engine.Operation{Ref: ir.FutureRef{Module: "Answer", ID: "Answer"}, Kind: ir.KindDeploy, Artifact: "Answer"}
	tx, err := tr.Prepare(ctx, op)
	require.NoError(t, err)
	addr, err := tr.Send(ctx, op, tx)
	require.NoError(t, err)
	return op, tx, addr
}

func TestTransport_DeployCallAndRead(t *testing.T) {
	tr, _ := newSimulated(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, tx, addr := deployAnswer(t, tr)
	assert.Equal(t, uint64(0), tx.Nonce)
	assert.Equal(t, tr.From(), tx.From)
	want := crypto.CreateAddress(crypto.PubkeyToAddress(tr.key.PublicKey), 0)
	assert.Equal(t, ir.IRString(want.Hex()), addr)

	read := engine.Operation{
		Ref:      ir.FutureRef{Module: "Answer", ID: "Answer.answer"},
		Kind:     ir.KindStaticCall,
		Artifact: "Answer",
		Method:   "answer",
		Target:   string(addr.(ir.IRString)),
	}
	got, err := tr.StaticCall(ctx, read)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(42), got)

	call := engine.Operation{
		Ref:      ir.FutureRef{Module: "Answer", ID: "Answer.setAnswer"},
		Kind:     ir.KindCall,
		Artifact: "Answer",
		Method:   "setAnswer",
		Target:   string(addr.(ir.IRString)),
		Args:     []ir.IRValue{ir.IRInt(7)},
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel2()
	callTx, err := tr.Prepare(ctx2, call)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), callTx.Nonce)
	res, err := tr.Send(ctx2, call, callTx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString(callTx.TxHash), res)
}

func TestTransport_ReconcileNotSentThenMined(t *testing.T) {
	tr, _ := newSimulated(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	op := engine.Operation{Ref: ir.FutureRef{Module: "Answer", ID: "Answer"}, Kind: ir.KindDeploy, Artifact: "Answer"}
	tx, err := tr.Prepare(ctx, op)
	require.NoError(t, err)

	// Journaled but never broadcast.
	rec, err := tr.Reconcile(ctx, op, *tx)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeNotSent, rec.Outcome)

	addr, err := tr.Send(ctx, op, tx)
	require.NoError(t, err)

	rec, err = tr.Reconcile(ctx, op, *tx)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeConfirmed, rec.Outcome)
	assert.Equal(t, addr, rec.Result)
}

func TestTransport_ReconcileNonceConsumed(t *testing.T) {
	tr, _ := newSimulated(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	op := engine.Operation{Ref: ir.FutureRef{Module: "Answer", ID: "Answer"}, Kind: ir.KindDeploy, Artifact: "Answer"}
	lost, err := tr.Prepare(ctx, op)
	require.NoError(t, err)

	// A different transaction takes the same nonce.
	tr.gasMargin = 50
	deployAnswer(t, tr)

	rec, err := tr.Reconcile(ctx, op, *lost)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUnknown, rec.Outcome)
	assert.Contains(t, rec.Reason, "nonce 0")
}

func TestTransport_ReconcileDifferentSigner(t *testing.T) {
	tr, _ := newSimulated(t)
	op := engine.Operation{Ref: ir.FutureRef{Module: "Answer", ID: "Answer"}, Kind: ir.KindDeploy, Artifact: "Answer"}

	rec, err := tr.Reconcile(context.Background(), op, ir.PendingTx{
		TxHash: "0x" + hex.EncodeToString(make([]byte, 32)),
		From:   "0x00000000000000000000000000000000000000a1",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUnknown, rec.Outcome)
	assert.Contains(t, rec.Reason, "signed by")
}

func TestTransport_EncodeErrors(t *testing.T) {
	tr, _ := newSimulated(t)
	ctx := context.Background()

	_, err := tr.Prepare(ctx, engine.Operation{Kind: ir.KindDeploy, Artifact: "IAnswer"})
	assert.ErrorContains(t, err, "no creation bytecode")

	_, err = tr.Prepare(ctx, engine.Operation{Kind: ir.KindCall, Artifact: "Answer", Method: "missing", Target: tr.From()})
	assert.ErrorContains(t, err, "has no method missing")

	_, err = tr.Prepare(ctx, engine.Operation{Kind: ir.KindDeploy, Artifact: "Nope"})
	assert.ErrorContains(t, err, "artifact Nope not found")
}

func TestNew_ChainIDMismatch(t *testing.T) {
	_, profile := newSimulated(t)
	backend := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { backend.Close() })

	wrong := *profile
	wrong.ChainID = profile.ChainID + 1
	_, err := New(context.Background(), backend.Client(), &wrong, &Artifacts{})
	require.Error(t, err)
	assert.True(t, network.IsConfigurationError(err))
	assert.ErrorContains(t, err, "chain_id")
}

func TestNew_BadSignerKey(t *testing.T) {
	backend := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { backend.Close() })

	_, err := New(context.Background(), backend.Client(), &network.Profile{ID: "sim", SignerKey: "not-a-key"}, &Artifacts{})
	require.Error(t, err)
	assert.True(t, network.IsConfigurationError(err))
	assert.NotContains(t, err.Error(), "not-a-key")
}
