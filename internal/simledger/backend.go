// Package simledger runs the DigitalWillFactory rules in process. It speaks
// calldata, ABI-encoded logs and revert payloads so callers exercise the same
// encode and decode paths as against a node.
package simledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"hera/internal/contracts"
	"hera/internal/ledger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultChainID matches Arbitrum One.
var DefaultChainID = big.NewInt(42161)

// DefaultContract is the address the simulated contract lives at.
var DefaultContract = common.HexToAddress("0x68eCEac93e1d8AB3c9082D1d7b4f7A768200F129")

const gasPerTx = 90_000

// ErrUnavailable is returned by every call while the backend is offline.
var ErrUnavailable = errors.New("simledger: ledger unavailable")

// Clock is a settable time source shared by the backend and its clients.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.Truncate(time.Second)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// revertError mimics the JSON-RPC error a node returns for a revert.
type revertError struct {
	data []byte
}

func (e *revertError) Error() string          { return "execution reverted" }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return hexutil.Encode(e.data) }

// Backend is the simulated chain holding one DigitalWillFactory instance.
type Backend struct {
	mu       sync.Mutex
	desc     *contracts.Descriptor
	address  common.Address
	owner    common.Address
	chainID  *big.Int
	now      func() time.Time
	block    uint64
	state    *chainState
	receipts map[common.Hash]*types.Receipt
	nonces   map[common.Address]uint64
	offline  bool
	stalled  bool
}

type Option func(*Backend)

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithOwner(owner common.Address) Option {
	return func(b *Backend) { b.owner = owner }
}

func WithChainID(id *big.Int) Option {
	return func(b *Backend) { b.chainID = id }
}

func WithAddress(addr common.Address) Option {
	return func(b *Backend) { b.address = addr }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		desc:     contracts.MustLoad(),
		address:  DefaultContract,
		chainID:  DefaultChainID,
		now:      time.Now,
		state:    newChainState(),
		receipts: make(map[common.Hash]*types.Receipt),
		nonces:   make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Address() common.Address { return b.address }

func (b *Backend) Owner() common.Address { return b.owner }

func (b *Backend) ChainID() *big.Int { return new(big.Int).Set(b.chainID) }

// SetOffline makes every call fail with ErrUnavailable.
func (b *Backend) SetOffline(offline bool) {
	b.mu.Lock()
	b.offline = offline
	b.mu.Unlock()
}

// SetStalled keeps submitted transactions from ever being included.
func (b *Backend) SetStalled(stalled bool) {
	b.mu.Lock()
	b.stalled = stalled
	b.mu.Unlock()
}

// CallContract executes a view against the current state.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return nil, ErrUnavailable
	}
	if call.To == nil || *call.To != b.address {
		return nil, nil
	}
	op, args, err := b.desc.DecodeCall(call.Data)
	if err != nil {
		return nil, &revertError{data: contracts.EncodeReason(err.Error())}
	}
	if op.Mutates() {
		// eth_call of a write: run on a scratch copy to surface reverts.
		tx := b.newTx(call.From, call.Value, b.state.clone())
		if err := tx.run(op.Name, args); err != nil {
			return nil, err
		}
		return nil, nil
	}
	out, err := b.view(call.From, op.Name, args)
	if err != nil {
		return nil, err
	}
	return b.desc.PackOutputs(op.Name, out...)
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return 0, ErrUnavailable
	}
	return b.block, nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return nil, ErrUnavailable
	}
	r, ok := b.receipts[hash]
	if !ok || b.stalled {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// Wallet returns a signer for addr on this backend's network.
func (b *Backend) Wallet(addr common.Address) *Wallet {
	return &Wallet{backend: b, address: addr, chainID: b.ChainID()}
}

// Client returns a ledger client bound to a wallet for addr. A zero addr
// yields a read-only client.
func (b *Backend) Client(addr common.Address, opts ...ledger.Option) *ledger.Client {
	base := []ledger.Option{ledger.WithChainID(b.ChainID())}
	if addr != (common.Address{}) {
		base = append(base, ledger.WithWallet(b.Wallet(addr)))
	}
	c, err := ledger.NewClient(b, b.address, append(base, opts...)...)
	if err != nil {
		panic(fmt.Sprintf("simledger: %v", err))
	}
	return c
}

// submit executes a transaction atomically. Reverts are reported the way a
// node reports them during gas estimation: nothing is recorded.
func (b *Backend) submit(from common.Address, req ledger.TxRequest) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return common.Hash{}, ErrUnavailable
	}
	if req.To != b.address {
		return common.Hash{}, fmt.Errorf("simledger: no contract at %s", req.To.Hex())
	}
	op, args, err := b.desc.DecodeCall(req.Data)
	if err != nil {
		return common.Hash{}, &revertError{data: contracts.EncodeReason(err.Error())}
	}

	scratch := b.state.clone()
	tx := b.newTx(from, req.Value, scratch)
	if err := tx.run(op.Name, args); err != nil {
		return common.Hash{}, err
	}
	b.state = scratch

	nonce := b.nonces[from]
	b.nonces[from] = nonce + 1
	b.block++
	hash := crypto.Keccak256Hash(from.Bytes(), new(big.Int).SetUint64(nonce).Bytes(), req.Data)

	for i, l := range tx.logs {
		l.TxHash = hash
		l.BlockNumber = b.block
		l.Index = uint(i)
	}
	b.receipts[hash] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     gasPerTx,
		Logs:        tx.logs,
	}
	return hash, nil
}

func (b *Backend) newTx(from common.Address, value *big.Int, st *chainState) *txn {
	if value == nil {
		value = new(big.Int)
	}
	return &txn{
		desc:     b.desc,
		contract: b.address,
		owner:    b.owner,
		from:     from,
		value:    new(big.Int).Set(value),
		now:      uint64(b.now().Unix()),
		st:       st,
	}
}

// Wallet is a simulated signer.
type Wallet struct {
	backend *Backend
	address common.Address
	chainID *big.Int
}

func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) NetworkID() *big.Int {
	if w.chainID == nil {
		return nil
	}
	return new(big.Int).Set(w.chainID)
}

// OnNetwork returns a copy of the wallet reporting a different network.
func (w *Wallet) OnNetwork(id *big.Int) *Wallet {
	cp := *w
	cp.chainID = id
	return &cp
}

func (w *Wallet) Submit(ctx context.Context, req ledger.TxRequest) (*ledger.PendingTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := w.backend.submit(w.address, req)
	if err != nil {
		return nil, err
	}
	return &ledger.PendingTx{Hash: hash, Request: req}, nil
}

func (w *Wallet) AwaitInclusion(ctx context.Context, pending *ledger.PendingTx) (*types.Receipt, error) {
	return ledger.WaitForReceipt(ctx, w.backend, pending.Hash, 5*time.Millisecond)
}
