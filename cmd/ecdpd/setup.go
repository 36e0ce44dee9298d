package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/config"
	"ecdpchain/core"
	"ecdpchain/crypto"
	"ecdpchain/indexer"
	"ecdpchain/observability/logging"
	"ecdpchain/offchain"
	"ecdpchain/storage"
)

// loadOperatorKey reads the hex key named by OperatorKeyEnv, or the keystore.
func loadOperatorKey(cfg *config.Config, passphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if env := strings.TrimSpace(cfg.OperatorKeyEnv); env != "" {
		raw := strings.TrimSpace(os.Getenv(env))
		if raw == "" {
			return nil, fmt.Errorf("%s is not set", env)
		}
		key, err := crypto.PrivateKeyFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env, err)
		}
		return key, nil
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(cfg.OperatorKeystorePath, pass)
}

// resolveGenesis loads the genesis file named by override or the config. With
// neither set a devnet genesis administered by the operator is used.
func resolveGenesis(cfg *config.Config, override string, operator common.Address) (*config.Genesis, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = strings.TrimSpace(cfg.GenesisFile)
	}
	if path == "" {
		return config.DefaultGenesis(cfg.NetworkName, operator), nil
	}
	g, err := config.LoadGenesis(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", path, err)
	}
	return g, nil
}

func openState(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StateBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "", "leveldb":
		path := filepath.Join(cfg.DataDir, "chain")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("prepare state directory: %w", err)
		}
		db, err := storage.NewLevelDB(path)
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

func openIndexer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*indexer.Indexer, func(), error) {
	dsn, err := indexer.StoreDSN(cfg.Indexer.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Indexer.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("prepare index directory: %w", err)
	}
	store, err := indexer.OpenStore(dsn)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{store.Close}

	var publisher indexer.Publisher
	if url := strings.TrimSpace(cfg.Indexer.NATSURL); url != "" {
		nats, err := indexer.ConnectNATS(ctx, url, cfg.Indexer.Subject)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		publisher = nats
		closers = append(closers, nats.Close)
		logger.Info("ecdpd: publishing events", logging.MaskField("nats_url", url), slog.String("subject", cfg.Indexer.Subject))
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("ecdpd: close indexer", slog.Any("error", err))
			}
		}
	}
	return indexer.New(store, publisher, logger), closeAll, nil
}

// openScanner wires the liquidation scanner to the node: its cursor and lock
// live in BoltDB, its submissions in the SQLite journal.
func openScanner(cfg *config.Config, node *core.Node, logger *slog.Logger) (*offchain.Scanner, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Scanner.StoragePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("prepare scanner directory: %w", err)
	}
	local, err := storage.NewBoltDB(cfg.Scanner.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open scanner storage: %w", err)
	}
	dsn, err := offchain.JournalDSN(cfg.Scanner.JournalPath)
	if err != nil {
		local.Close()
		return nil, nil, err
	}
	journal, err := offchain.OpenJournal(dsn)
	if err != nil {
		local.Close()
		return nil, nil, err
	}
	scanner, err := offchain.New(node.ScannerChain(), node, local, cfg.Scanner,
		offchain.WithJournal(journal),
		offchain.WithLogger(logger))
	if err != nil {
		_ = journal.Close()
		local.Close()
		return nil, nil, err
	}
	closeAll := func() {
		if err := journal.Close(); err != nil {
			logger.Warn("ecdpd: close journal", slog.Any("error", err))
		}
		local.Close()
	}
	return scanner, closeAll, nil
}
