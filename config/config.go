package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecdpchain/crypto"
	"ecdpchain/offchain"

	"github.com/BurntSushi/toml"
)

const (
	DefaultNetworkName = "ecdp-devnet"
	defaultEnvVar      = "ECDP_ENV"
)

// Config is the node configuration. StateBackend selects the chain state
// store: "leveldb" or "memory".
type Config struct {
	DataDir              string `toml:"DataDir"`
	GenesisFile          string `toml:"GenesisFile"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`
	OperatorKeyEnv       string `toml:"OperatorKeyEnv"`
	NetworkName          string `toml:"NetworkName"`
	Environment          string `toml:"Environment"`
	StateBackend         string `toml:"StateBackend"`

	Blocks    Blocks          `toml:"blocks"`
	Mempool   Mempool         `toml:"mempool"`
	Scanner   offchain.Config `toml:"scanner"`
	RPC       RPC             `toml:"rpc"`
	Indexer   Indexer         `toml:"indexer"`
	Logging   Logging         `toml:"logging"`
	Telemetry Telemetry       `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// and operator keystore when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	if cfg.OperatorKeyEnv == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults(path)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults(configPath string) {
	defaults := Default()
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaults.NetworkName
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = os.Getenv(defaultEnvVar)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = defaults.StateBackend
	}
	if cfg.Blocks.Interval <= 0 {
		cfg.Blocks.Interval = defaults.Blocks.Interval
	}
	if cfg.Blocks.MaxTxs <= 0 {
		cfg.Blocks.MaxTxs = defaults.Blocks.MaxTxs
	}
	if cfg.Mempool.Limit <= 0 {
		cfg.Mempool.Limit = defaults.Mempool.Limit
	}
	if cfg.Scanner.MaxIterations == 0 {
		cfg.Scanner.MaxIterations = offchain.DefaultMaxIterations
	}
	if cfg.Scanner.LockDuration <= 0 {
		cfg.Scanner.LockDuration = offchain.DefaultLockDuration
	}
	if cfg.Scanner.StoragePath == "" {
		cfg.Scanner.StoragePath = filepath.Join(cfg.DataDir, "offchain.db")
	}
	if cfg.Scanner.JournalPath == "" {
		cfg.Scanner.JournalPath = filepath.Join(cfg.DataDir, "submissions.sqlite")
	}
	if cfg.RPC.Address == "" {
		cfg.RPC.Address = defaults.RPC.Address
	}
	if cfg.RPC.JWTSecretEnv == "" {
		cfg.RPC.JWTSecretEnv = defaults.RPC.JWTSecretEnv
	}
	if cfg.RPC.JWTIssuer == "" {
		cfg.RPC.JWTIssuer = defaults.RPC.JWTIssuer
	}
	if cfg.RPC.RateLimitPerSecond <= 0 {
		cfg.RPC.RateLimitPerSecond = defaults.RPC.RateLimitPerSecond
	}
	if cfg.RPC.RateLimitBurst <= 0 {
		cfg.RPC.RateLimitBurst = defaults.RPC.RateLimitBurst
	}
	if cfg.RPC.ReadHeaderTimeout <= 0 {
		cfg.RPC.ReadHeaderTimeout = defaults.RPC.ReadHeaderTimeout
	}
	if cfg.RPC.WriteTimeout <= 0 {
		cfg.RPC.WriteTimeout = defaults.RPC.WriteTimeout
	}
	if cfg.Indexer.Path == "" {
		cfg.Indexer.Path = filepath.Join(cfg.DataDir, "events.sqlite")
	}
	if cfg.Indexer.Subject == "" {
		cfg.Indexer.Subject = defaults.Indexer.Subject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.OperatorKeystorePath == "" && cfg.OperatorKeyEnv == "" {
		cfg.OperatorKeystorePath = defaultKeystorePath(configPath)
	}
}

// Default returns the devnet configuration.
func Default() *Config {
	return &Config{
		DataDir:      "./ecdp-data",
		NetworkName:  DefaultNetworkName,
		StateBackend: "leveldb",
		Blocks: Blocks{
			Interval:                2 * time.Second,
			MaxTxs:                  500,
			ReservedUnsignedPercent: 20,
		},
		Mempool: Mempool{Limit: 4096},
		Scanner: offchain.Config{
			MaxIterations: offchain.DefaultMaxIterations,
			LockDuration:  offchain.DefaultLockDuration,
			SubmitRate:    200,
			SubmitBurst:   50,
		},
		RPC: RPC{
			Address:            ":8080",
			JWTSecretEnv:       "ECDP_RPC_JWT_SECRET",
			JWTIssuer:          "ecdpchain",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			ReadHeaderTimeout:  5 * time.Second,
			WriteTimeout:       15 * time.Second,
		},
		Indexer: Indexer{
			Enabled: true,
			Subject: "ecdp.events",
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeystorePath = keystorePath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults(path)
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
