package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"hera/internal/config"
	"hera/internal/idempotency"
	"hera/internal/ledger"
	"hera/internal/server"
	"hera/internal/simledger"
	"hera/internal/will"

	"github.com/ethereum/go-ethereum/common"
)

// devSigner is the account the in-process ledger acts for. It also owns the
// simulated contract so the admin endpoints work locally.
var devSigner = common.HexToAddress("0x9F2d2bF1a5cA7D1b7D2E0E3cA1b6B8b9A0d4C3e1")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	client := openLedger(ctx, cfg)
	logger := log.New(os.Stderr, "will: ", log.LstdFlags)
	svc := will.NewService(client, will.WithLogger(logger))

	apiServer := server.NewServer(cfg, svc, store, nil)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.HMACClockSkew)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.AppConfig) (idempotency.Store, func()) {
	if cfg.Service.PostgresDSN != "" {
		pg, err := idempotency.NewPostgresStore(ctx, cfg.Service.PostgresDSN)
		if err != nil {
			log.Fatalf("idempotency store error: %v", err)
		}
		log.Printf("idempotency records in postgres")
		return pg, pg.Close
	}
	fs, err := idempotency.NewFileStore(cfg.Service.IdempotencyStorePath)
	if err != nil {
		log.Fatalf("idempotency store error: %v", err)
	}
	log.Printf("idempotency records in %s", cfg.Service.IdempotencyStorePath)
	return fs, func() {}
}

func openLedger(ctx context.Context, cfg *config.AppConfig) *ledger.Client {
	chainID := big.NewInt(cfg.Chain.ChainID)
	opts := []ledger.Option{
		ledger.WithChainID(chainID),
		ledger.WithReadTimeout(cfg.Chain.ReadTimeout),
		ledger.WithWriteTimeout(cfg.Chain.WriteTimeout),
	}

	if cfg.Chain.Simulated() {
		backend := simledger.New(simledger.WithChainID(chainID), simledger.WithOwner(devSigner))
		backend.Fund(devSigner, new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)))
		cfg.Chain.ContractAddress = backend.Address().Hex()
		log.Printf("no live ledger configured; using in-process ledger at %s for %s", backend.Address().Hex(), devSigner.Hex())
		return backend.Client(devSigner, opts...)
	}

	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		log.Fatalf("WILL_CONTRACT_ADDRESS %q is not an address", cfg.Chain.ContractAddress)
	}
	eth, err := ledger.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("ledger dial error: %v", err)
	}
	wallet, err := ledger.NewKeyedWallet(ctx, eth, ledger.KeyedWalletConfig{
		PrivateKeyHex: cfg.Chain.PrivateKey,
		PollInterval:  cfg.Chain.ReceiptPoll,
	})
	if err != nil {
		log.Fatalf("wallet error: %v", err)
	}
	client, err := ledger.NewClient(eth, common.HexToAddress(cfg.Chain.ContractAddress), append(opts, ledger.WithWallet(wallet))...)
	if err != nil {
		log.Fatalf("ledger client error: %v", err)
	}
	if err := client.Ready(); err != nil {
		log.Fatalf("ledger not ready: %v", err)
	}
	log.Printf("signer %s on chain %s, contract %s", wallet.Address().Hex(), chainID, cfg.Chain.ContractAddress)
	return client
}
