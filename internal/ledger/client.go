package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"hera/internal/contracts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Caller performs view calls against the latest confirmed ledger state.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Identity is the connected signer and its network.
type Identity interface {
	Address() common.Address
	NetworkID() *big.Int
}

// Wallet is the narrow signing capability the ledger layer depends on.
type Wallet interface {
	Identity
	Submit(ctx context.Context, req TxRequest) (*PendingTx, error)
	AwaitInclusion(ctx context.Context, pending *PendingTx) (*types.Receipt, error)
}

// TxRequest is a state transition ready to be signed.
type TxRequest struct {
	Op    string
	To    common.Address
	Data  []byte
	Value *big.Int
}

// PendingTx references a submitted transition.
type PendingTx struct {
	Hash    common.Hash
	Request TxRequest
	Tx      *types.Transaction
}

// Receipt references a transition that is durably included.
type Receipt struct {
	Op          string
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Signer      common.Address
	Events      []contracts.Event
}

// Client reads from and writes to the will contract.
type Client struct {
	caller       Caller
	wallet       Wallet
	contract     common.Address
	chainID      *big.Int
	desc         *contracts.Descriptor
	readTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*Client)

func WithWallet(w Wallet) Option {
	return func(c *Client) { c.wallet = w }
}

// WithChainID pins the network a wallet must be connected to.
func WithChainID(id *big.Int) Option {
	return func(c *Client) { c.chainID = id }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithWriteTimeout bounds submission plus inclusion.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

func WithDescriptor(d *contracts.Descriptor) Option {
	return func(c *Client) { c.desc = d }
}

func NewClient(caller Caller, contract common.Address, opts ...Option) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("ledger caller is required")
	}
	if contract == (common.Address{}) {
		return nil, fmt.Errorf("will contract address is required")
	}
	c := &Client{caller: caller, contract: contract}
	for _, opt := range opts {
		opt(c)
	}
	if c.desc == nil {
		desc, err := contracts.Load()
		if err != nil {
			return nil, err
		}
		c.desc = desc
	}
	return c, nil
}

// Bind returns a copy of the client acting for w.
func (c *Client) Bind(w Wallet) *Client {
	cp := *c
	cp.wallet = w
	return &cp
}

func (c *Client) Contract() common.Address { return c.contract }

func (c *Client) Descriptor() *contracts.Descriptor { return c.desc }

// Ready reports whether a signer on the expected network is connected.
func (c *Client) Ready() error {
	if c.wallet == nil || c.wallet.Address() == (common.Address{}) {
		return ErrNotReady
	}
	id := c.wallet.NetworkID()
	if id == nil {
		return ErrNotReady
	}
	if c.chainID != nil && id.Cmp(c.chainID) != 0 {
		return fmt.Errorf("%w: want %s, got %s", ErrWrongNetwork, c.chainID, id)
	}
	return nil
}

// Signer returns the connected signer address.
func (c *Client) Signer() (common.Address, error) {
	if err := c.Ready(); err != nil {
		return common.Address{}, err
	}
	return c.wallet.Address(), nil
}

// Read performs a side-effect free view call.
func (c *Client) Read(ctx context.Context, name string, args ...interface{}) ([]interface{}, error) {
	op, err := c.desc.Operation(name)
	if err != nil {
		return nil, err
	}
	if op.Mutates() {
		return nil, Invalid("operation", "%s mutates state and cannot be read", name)
	}
	data, err := c.desc.Pack(name, args...)
	if err != nil {
		return nil, err
	}

	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}

	to := c.contract
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.Ready() == nil {
		msg.From = c.wallet.Address()
	}
	raw, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		if rej, ok := asRejection(c.desc, name, common.Hash{}, err, false); ok {
			return nil, &ReadError{Op: name, Err: rej}
		}
		return nil, &ReadError{Op: name, Err: err}
	}
	out, err := c.desc.Unpack(name, raw)
	if err != nil {
		return nil, &ReadError{Op: name, Err: err}
	}
	return out, nil
}

// Write submits a state transition and blocks until it is durably
// included. A nil error means every later Read observes the effect.
func (c *Client) Write(ctx context.Context, name string, value *big.Int, args ...interface{}) (*Receipt, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	op, err := c.desc.Operation(name)
	if err != nil {
		return nil, err
	}
	if !op.Mutates() {
		return nil, Invalid("operation", "%s is a read-only operation", name)
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, Invalid("value", "must not be negative")
	}
	if value.Sign() > 0 && !op.Payable() {
		return nil, Invalid("value", "%s does not accept value", name)
	}
	data, err := c.desc.Pack(name, args...)
	if err != nil {
		return nil, err
	}

	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}

	signer := c.wallet.Address()
	pending, err := c.wallet.Submit(ctx, TxRequest{Op: name, To: c.contract, Data: data, Value: value})
	if err != nil {
		if rej, ok := asRejection(c.desc, name, common.Hash{}, err, true); ok {
			return nil, rej
		}
		return nil, &ConnectivityError{Op: name, Err: err}
	}

	receipt, err := c.wallet.AwaitInclusion(ctx, pending)
	if err != nil {
		if rej, ok := asRejection(c.desc, name, pending.Hash, err, false); ok {
			return nil, rej
		}
		return nil, &DurabilityError{Op: name, TxHash: pending.Hash, Err: err}
	}
	if receipt == nil {
		return nil, &DurabilityError{Op: name, TxHash: pending.Hash, Err: errors.New("no receipt")}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &RejectionError{Op: name, TxHash: receipt.TxHash, Revert: &contracts.Revert{}}
	}

	out := &Receipt{
		Op:      name,
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Signer:  signer,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, l := range receipt.Logs {
		if l.Address != c.contract {
			continue
		}
		ev, err := c.desc.DecodeLog(l)
		if err != nil {
			continue
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// Ping checks the read transport when it can report a block height.
func (c *Client) Ping(ctx context.Context) error {
	checker, ok := c.caller.(interface {
		BlockNumber(context.Context) (uint64, error)
	})
	if !ok {
		return nil
	}
	_, err := checker.BlockNumber(ctx)
	return err
}
