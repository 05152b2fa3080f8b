package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultPollInterval = 2 * time.Second

// Dial connects to a JSON-RPC endpoint. The returned client satisfies Caller.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return cli, nil
}

// KeyedWallet signs with a local private key.
type KeyedWallet struct {
	client    *ethclient.Client
	address   common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
	poll      time.Duration
}

type KeyedWalletConfig struct {
	PrivateKeyHex string
	PollInterval  time.Duration
}

func NewKeyedWallet(ctx context.Context, cli *ethclient.Client, cfg KeyedWalletConfig) (*KeyedWallet, error) {
	if cli == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for signing")
	}
	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &KeyedWallet{
		client:    cli,
		address:   crypto.PubkeyToAddress(pk.PublicKey),
		chainID:   chainID,
		transacts: txOpts,
		poll:      poll,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (w *KeyedWallet) Address() common.Address { return w.address }

func (w *KeyedWallet) NetworkID() *big.Int { return new(big.Int).Set(w.chainID) }

// Submit signs and broadcasts req. Gas estimation surfaces reverts here,
// before anything is broadcast.
func (w *KeyedWallet) Submit(ctx context.Context, req TxRequest) (*PendingTx, error) {
	opts := *w.transacts
	opts.Context = ctx
	opts.Value = req.Value

	bound := bind.NewBoundContract(req.To, abi.ABI{}, w.client, w.client, w.client)
	tx, err := bound.RawTransact(&opts, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%s tx: %w", req.Op, err)
	}
	return &PendingTx{Hash: tx.Hash(), Request: req, Tx: tx}, nil
}

// AwaitInclusion blocks until the transaction is mined. For a reverted
// transaction it replays the call against the parent block to recover the
// revert payload and returns it as the error.
func (w *KeyedWallet) AwaitInclusion(ctx context.Context, pending *PendingTx) (*types.Receipt, error) {
	receipt, err := WaitForReceipt(ctx, w.client, pending.Hash, w.poll)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return receipt, nil
	}

	req := pending.Request
	msg := ethereum.CallMsg{From: w.address, To: &req.To, Data: req.Data, Value: req.Value}
	if pending.Tx != nil {
		msg.Gas = pending.Tx.Gas()
	}
	var at *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		at = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}
	if _, callErr := w.client.CallContract(ctx, msg, at); callErr != nil {
		if _, ok := revertData(callErr); ok {
			return receipt, callErr
		}
	}
	return receipt, nil
}

type receiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt polls until the transaction is mined or context cancelled.
func WaitForReceipt(ctx context.Context, client receiptSource, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
