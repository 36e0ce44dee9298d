package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecdpchain/cmd/internal/passphrase"
	"ecdpchain/config"
	"ecdpchain/core"
	"ecdpchain/observability/logging"
	telemetry "ecdpchain/observability/otel"
	"ecdpchain/offchain"
	"ecdpchain/rpc"
)

const (
	serviceName     = "ecdpd"
	operatorPassEnv = "ECDP_OPERATOR_PASS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis file (overrides config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		slog.Error("ecdpd: fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, genesisOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("ecdpd: flush telemetry", slog.Any("error", err))
		}
	}()

	key, err := loadOperatorKey(cfg, passphrase.NewSource(operatorPassEnv).Get)
	if err != nil {
		return fmt.Errorf("load operator key: %w", err)
	}
	operator := key.PubKey().Address()

	genesis, err := resolveGenesis(cfg, genesisOverride, operator)
	if err != nil {
		return err
	}
	db, err := openState(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	node, err := core.NewNode(db, genesis, operator, core.NodeConfig{
		MaxTxs:                  cfg.Blocks.MaxTxs,
		ReservedUnsignedPercent: cfg.Blocks.ReservedUnsignedPercent,
		MempoolLimit:            cfg.Mempool.Limit,
		Logger:                  logger,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	if cfg.Indexer.Enabled {
		ix, closeIndexer, err := openIndexer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeIndexer()
		node.OnBlock(ix.HandleBlock)
	}

	scanner, closeScanner, err := openScanner(cfg, node, logger)
	if err != nil {
		return err
	}
	defer closeScanner()

	server := rpc.NewServer(node, rpc.ServerConfig{
		JWTSecret:          os.Getenv(cfg.RPC.JWTSecretEnv),
		JWTIssuer:          cfg.RPC.JWTIssuer,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		ReadHeaderTimeout:  cfg.RPC.ReadHeaderTimeout,
		WriteTimeout:       cfg.RPC.WriteTimeout,
		Logger:             logger,
	})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.RPC.Address)
	}()

	logger.Info("ecdpd: started",
		slog.String("network", cfg.NetworkName),
		slog.String("operator", key.PubKey().Account()),
		slog.Uint64("height", node.GetHeight()),
		slog.String("rpc", cfg.RPC.Address),
		slog.Duration("block_interval", cfg.Blocks.Interval))

	loopErr := produceBlocks(ctx, node, scanner, cfg.Blocks.Interval, serveErr, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ecdpd: rpc shutdown", slog.Any("error", err))
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	logger.Info("ecdpd: stopped", slog.Uint64("height", node.GetHeight()))
	return nil
}

// produceBlocks seals a block every interval and runs the scanner against
// the new state, until ctx ends or the RPC server fails.
func produceBlocks(ctx context.Context, node *core.Node, scanner *offchain.Scanner, interval time.Duration, serveErr <-chan error, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("rpc server: %w", err)
			}
			return nil
		case <-ticker.C:
		}

		result, err := node.ProduceBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("ecdpd: produce block", slog.Any("error", err))
			continue
		}
		height := result.Block.Header.Height
		report, err := scanner.Run(ctx, height)
		switch {
		case errors.Is(err, offchain.ErrLocked):
			logger.Debug("ecdpd: scanner still locked", slog.Uint64("height", height))
		case err != nil && !errors.Is(err, context.Canceled):
			logger.Warn("ecdpd: scanner run", slog.Uint64("height", height), slog.Any("error", err))
		case report.Submitted > 0:
			logger.Info("ecdpd: scanner submitted calls",
				slog.Uint64("height", height),
				slog.String("currency", string(report.Currency)),
				slog.Int("checked", report.Checked),
				slog.Int("submitted", report.Submitted))
		}
	}
}
