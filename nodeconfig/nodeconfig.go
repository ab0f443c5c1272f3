// Package nodeconfig loads and validates ionova's TOML node
// configuration (§6 "Configuration").
package nodeconfig

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// NetworkConfig is the §6 `network` section.
type NetworkConfig struct {
	ChainID      uint64 `toml:"chain_id"`
	RPCPort      uint16 `toml:"rpc_port"`
	MetricsPort  uint16 `toml:"metrics_port"`
	ShardCount   uint8  `toml:"shard_count"`
	MaxBlockSize uint64 `toml:"max_block_size"`
}

// GasConfig is the §6 `gas` section.
type GasConfig struct {
	BaseTransaction     uint64  `toml:"base_transaction"`
	ECDSASignature      uint64  `toml:"ecdsa_signature"`
	DilithiumSignature  uint64  `toml:"dilithium_signature"`
	SPHINCSSignature    uint64  `toml:"sphincs_signature"`
	HybridSignature     uint64  `toml:"hybrid_signature"`
	DataPerByte         uint64  `toml:"data_per_byte"`
	SubsidyEnabled      bool    `toml:"subsidy_enabled"`
	SubsidyRate         float64 `toml:"subsidy_rate"`
}

// RateLimitConfig is the §6 `rate_limit` section.
type RateLimitConfig struct {
	GlobalRequestsPerSecond uint32 `toml:"global_requests_per_second"`
	PerIPRequestsPerSecond  uint32 `toml:"per_ip_requests_per_second"`
	MaxTrackedIPs           int    `toml:"max_tracked_ips"`
}

// Config is the complete node configuration (§6).
type Config struct {
	Network   NetworkConfig   `toml:"network"`
	Gas       GasConfig       `toml:"gas"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// Default matches §6's documented defaults.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			ChainID:      31337,
			RPCPort:      27000,
			MetricsPort:  9100,
			ShardCount:   100,
			MaxBlockSize: 10_000_000,
		},
		Gas: GasConfig{
			BaseTransaction:    21_000,
			ECDSASignature:     3_000,
			DilithiumSignature: 50_000,
			SPHINCSSignature:   70_000,
			HybridSignature:    28_000,
			DataPerByte:        16,
			SubsidyEnabled:     true,
			SubsidyRate:        0.5,
		},
		RateLimit: RateLimitConfig{
			GlobalRequestsPerSecond: 100,
			PerIPRequestsPerSecond:  10,
			MaxTrackedIPs:           10_000,
		},
	}
}

var (
	ErrShardCountZero    = errors.New("nodeconfig: shard_count must be > 0")
	ErrSubsidyRateRange  = errors.New("nodeconfig: subsidy_rate must be in [0, 1]")
	ErrGlobalRateLimit   = errors.New("nodeconfig: global_requests_per_second must be > 0")
)

// Validate enforces §6's listed validation rules.
func (c Config) Validate() error {
	if c.Network.ShardCount == 0 {
		return ErrShardCountZero
	}
	if c.Gas.SubsidyRate < 0 || c.Gas.SubsidyRate > 1 {
		return ErrSubsidyRateRange
	}
	if c.RateLimit.GlobalRequestsPerSecond == 0 {
		return ErrGlobalRateLimit
	}
	return nil
}

// Load reads and parses a TOML configuration file, validating it before
// returning.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("nodeconfig: reading %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("nodeconfig: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save serializes the configuration to a TOML file.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("nodeconfig: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("nodeconfig: writing %s: %w", path, err)
	}
	return nil
}
