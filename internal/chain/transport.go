package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/network"
)

// DefaultGasMargin is the percentage added to gas estimates.
const DefaultGasMargin = 20

// Backend is the subset of an Ethereum JSON-RPC client the transport uses.
// *ethclient.Client implements it.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Transport performs deploys and calls for one network profile.
type Transport struct {
	backend   Backend
	artifacts *Artifacts
	key       *ecdsa.PrivateKey
	from      common.Address
	signer    types.Signer
	gasMargin int
	logger    *slog.Logger
	close     func()
}

var _ engine.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithGasMargin sets the percentage added to gas estimates.
func WithGasMargin(percent int) Option {
	return func(t *Transport) {
		t.gasMargin = percent
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// Dial connects to the profile's endpoint and returns a Transport for it.
func Dial(ctx context.Context, p *network.Profile, artifacts *Artifacts, opts ...Option) (*Transport, error) {
	client, err := ethclient.DialContext(ctx, p.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.ID, err)
	}
	t, err := New(ctx, client, p, artifacts, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	t.close = client.Close
	return t, nil
}

// New creates a Transport on backend after checking that the endpoint
// serves the profile's chain.
func New(ctx context.Context, backend Backend, p *network.Profile, artifacts *Artifacts, opts ...Option) (*Transport, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(p.SignerKey), "0x"))
	if err != nil {
		return nil, &network.ConfigurationError{Network: p.ID, Field: "signer_ref", Message: "not a valid secp256k1 private key"}
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: chain id: %w", p.ID, err)
	}
	if chainID.Cmp(big.NewInt(p.ChainID)) != 0 {
		return nil, &network.ConfigurationError{
			Network: p.ID,
			Field:   "chain_id",
			Message: fmt.Sprintf("configured %d but the endpoint serves chain %s", p.ChainID, chainID),
		}
	}

	t := &Transport{
		backend:   backend,
		artifacts: artifacts,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		signer:    types.LatestSignerForChainID(chainID),
		gasMargin: DefaultGasMargin,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// From returns the signer address.
func (t *Transport) From() string {
	return t.from.Hex()
}

// Close releases the RPC connection opened by Dial.
func (t *Transport) Close() {
	if t.close != nil {
		t.close()
	}
}

// encoded is an operation ready for the wire.
type encoded struct {
	to     *common.Address
	data   []byte
	method *abi.Method
}

func (t *Transport) encode(op engine.Operation) (*encoded, error) {
	if op.Artifact == "" {
		return nil, fmt.Errorf("%s: no artifact", op.Ref)
	}
	art, err := t.artifacts.Get(op.Artifact)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Ref, err)
	}

	switch op.Kind {
	case ir.KindDeploy:
		if len(art.Bytecode) == 0 {
			return nil, fmt.Errorf("%s: artifact %s has no creation bytecode", op.Ref, art.Name)
		}
		args, err := packArgs(art.ABI.Constructor.Inputs, op.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: constructor: %w", op.Ref, err)
		}
		packed, err := art.ABI.Pack("", args...)
		if err != nil {
			return nil, fmt.Errorf("%s: constructor: %w", op.Ref, err)
		}
		return &encoded{data: append(bytes.Clone(art.Bytecode), packed...)}, nil

	case ir.KindCall, ir.KindStaticCall:
		method, ok := art.ABI.Methods[op.Method]
		if !ok {
			return nil, fmt.Errorf("%s: artifact %s has no method %s", op.Ref, art.Name, op.Method)
		}
		if !common.IsHexAddress(op.Target) {
			return nil, fmt.Errorf("%s: target %q is not an address", op.Ref, op.Target)
		}
		args, err := packArgs(method.Inputs, op.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op.Ref, op.Method, err)
		}
		packed, err := art.ABI.Pack(op.Method, args...)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op.Ref, op.Method, err)
		}
		to := common.HexToAddress(op.Target)
		return &encoded{to: &to, data: packed, method: &method}, nil
	}
	return nil, fmt.Errorf("%s: kind %s is not a network operation", op.Ref, op.Kind)
}

// Prepare implements engine.Transport. The nonce is the sender's next
// pending nonce.
func (t *Transport) Prepare(ctx context.Context, op engine.Operation) (*ir.PendingTx, error) {
	enc, err := t.encode(op)
	if err != nil {
		return nil, err
	}

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     t.from,
		To:       enc.to,
		GasPrice: gasPrice,
		Data:     enc.data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * uint64(t.gasMargin) / 100

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       enc.to,
		Data:     enc.data,
	}), t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	t.logger.Debug("prepared transaction", "future", op.Ref.String(), "tx", tx.Hash().Hex(), "nonce", nonce, "gas", gas)
	return &ir.PendingTx{
		TxHash: tx.Hash().Hex(),
		From:   t.from.Hex(),
		Nonce:  nonce,
		RawTx:  raw,
	}, nil
}

// Send implements engine.Transport. A node rejecting the transaction is a
// failure; losing the connection or the context after broadcast is an
// unknown outcome.
func (t *Transport) Send(ctx context.Context, op engine.Operation, p *ir.PendingTx) (ir.IRValue, error) {
	if p == nil || len(p.RawTx) == 0 {
		return nil, fmt.Errorf("%s: no signed transaction", op.Ref)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(p.RawTx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, tx); err != nil && !alreadyKnown(err) {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && ctx.Err() == nil {
			return nil, fmt.Errorf("send %s: %w", p.TxHash, err)
		}
		return nil, fmt.Errorf("send %s: %w: %w", p.TxHash, engine.ErrOutcomeUnknown, err)
	}
	t.logger.Debug("broadcast transaction", "future", op.Ref.String(), "tx", p.TxHash)

	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w: %w", p.TxHash, engine.ErrOutcomeUnknown, err)
	}
	rec := settle(op, receipt)
	if rec.Outcome == engine.OutcomeFailed {
		return nil, errors.New(rec.Reason)
	}
	return rec.Result, nil
}

// StaticCall implements engine.Transport.
func (t *Transport) StaticCall(ctx context.Context, op engine.Operation) (ir.IRValue, error) {
	enc, err := t.encode(op)
	if err != nil {
		return nil, err
	}
	out, err := t.backend.CallContract(ctx, ethereum.CallMsg{From: t.from, To: enc.to, Data: enc.data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: call %s: %w", op.Ref, op.Method, err)
	}
	return unpackResult(*enc.method, out)
}

// Reconcile implements engine.Transport.
//
// A receipt settles the transaction. A transaction still known to the node
// is waited for. Otherwise the sender's mined nonce decides: if it has not
// reached the journaled nonce, nothing was mined and the future can be sent
// again; if it has, some other transaction used the nonce and the outcome is
// unknown.
func (t *Transport) Reconcile(ctx context.Context, op engine.Operation, p ir.PendingTx) (engine.Reconciliation, error) {
	if !strings.EqualFold(p.From, t.from.Hex()) {
		return engine.Reconciliation{
			Outcome: engine.OutcomeUnknown,
			Reason:  fmt.Sprintf("signed by %s but the signer is now %s", p.From, t.from.Hex()),
		}, nil
	}
	hash := common.HexToHash(p.TxHash)

	receipt, err := t.backend.TransactionReceipt(ctx, hash)
	if err == nil {
		return settle(op, receipt), nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return engine.Reconciliation{}, fmt.Errorf("receipt %s: %w", p.TxHash, err)
	}

	tx, _, err := t.backend.TransactionByHash(ctx, hash)
	switch {
	case err == nil:
		t.logger.Info("waiting for interrupted transaction", "future", op.Ref.String(), "tx", p.TxHash)
		receipt, err := bind.WaitMined(ctx, t.backend, tx)
		if err != nil {
			return engine.Reconciliation{}, fmt.Errorf("wait %s: %w", p.TxHash, err)
		}
		return settle(op, receipt), nil
	case !errors.Is(err, ethereum.NotFound):
		return engine.Reconciliation{}, fmt.Errorf("lookup %s: %w", p.TxHash, err)
	}

	mined, err := t.backend.NonceAt(ctx, t.from, nil)
	if err != nil {
		return engine.Reconciliation{}, fmt.Errorf("nonce: %w", err)
	}
	if mined <= p.Nonce {
		return engine.Reconciliation{Outcome: engine.OutcomeNotSent}, nil
	}
	return engine.Reconciliation{
		Outcome: engine.OutcomeUnknown,
		Reason:  fmt.Sprintf("transaction is unknown but nonce %d of %s has been used", p.Nonce, p.From),
	}, nil
}

// settle maps a receipt to a reconciliation outcome. Deploys yield the
// created address, calls their transaction hash.
func settle(op engine.Operation, r *types.Receipt) engine.Reconciliation {
	if r.Status != types.ReceiptStatusSuccessful {
		return engine.Reconciliation{
			Outcome: engine.OutcomeFailed,
			Reason:  fmt.Sprintf("transaction %s reverted in block %s", r.TxHash.Hex(), r.BlockNumber),
		}
	}
	if op.Kind == ir.KindDeploy {
		return engine.Reconciliation{Outcome: engine.OutcomeConfirmed, Result: ir.IRString(r.ContractAddress.Hex())}
	}
	return engine.Reconciliation{Outcome: engine.OutcomeConfirmed, Result: ir.IRString(r.TxHash.Hex())}
}

func alreadyKnown(err error) bool {
	return strings.Contains(err.Error(), "already known")
}
