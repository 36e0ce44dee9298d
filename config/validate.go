package config

import (
	"fmt"
	"strings"
)

func (cfg *Config) validate() error {
	switch cfg.StateBackend {
	case "leveldb", "memory":
	default:
		return fmt.Errorf("config: unknown state backend %q", cfg.StateBackend)
	}
	if cfg.Blocks.ReservedUnsignedPercent > 100 {
		return fmt.Errorf("blocks: reserved_unsigned_percent > 100")
	}
	if cfg.Scanner.SubmitRate < 0 {
		return fmt.Errorf("scanner: submit_rate < 0")
	}
	if cfg.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: rate_limit_burst <= 0")
	}
	if cfg.Indexer.Enabled && strings.TrimSpace(cfg.Indexer.NATSURL) != "" && strings.TrimSpace(cfg.Indexer.Subject) == "" {
		return fmt.Errorf("indexer: nats subject required when publishing")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	return nil
}
