package config

import "time"

// Blocks captures block production limits. ReservedUnsignedPercent is the
// share of each block kept for liquidate and settle calls.
type Blocks struct {
	Interval                time.Duration `toml:"Interval"`
	MaxTxs                  int           `toml:"MaxTxs"`
	ReservedUnsignedPercent uint32        `toml:"ReservedUnsignedPercent"`
}

// Mempool controls transaction admission limits.
type Mempool struct {
	Limit int `toml:"Limit"`
}

// RPC configures the HTTP and WebSocket API.
type RPC struct {
	Address            string        `toml:"Address"`
	JWTSecretEnv       string        `toml:"JWTSecretEnv"`
	JWTIssuer          string        `toml:"JWTIssuer"`
	RateLimitPerSecond float64       `toml:"RateLimitPerSecond"`
	RateLimitBurst     int           `toml:"RateLimitBurst"`
	ReadHeaderTimeout  time.Duration `toml:"ReadHeaderTimeout"`
	WriteTimeout       time.Duration `toml:"WriteTimeout"`
}

// Indexer configures the event index and its NATS fan-out. An empty NATSURL
// disables publishing.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Path    string `toml:"Path"`
	NATSURL string `toml:"NATSURL"`
	Subject string `toml:"Subject"`
}

// Logging selects the log sink. An empty File logs to stdout.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
