// Package config loads node configuration and builds the genesis block.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string `mapstructure:"chain_id" json:"chain_id"`
	// Authority is the pubkey hex allowed to attest battle outcomes.
	// Empty → defaults to the genesis proposer.
	Authority string            `mapstructure:"authority" json:"authority"`
	Alloc     map[string]uint64 `mapstructure:"alloc" json:"alloc"` // pubkey hex → initial balance
}

// TLSConfig holds PEM file paths for mutual-TLS P2P connections.
type TLSConfig struct {
	CACert   string `mapstructure:"ca_cert" json:"ca_cert"`
	NodeCert string `mapstructure:"node_cert" json:"node_cert"`
	NodeKey  string `mapstructure:"node_key" json:"node_key"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `mapstructure:"node_id" json:"node_id"`
	DataDir      string        `mapstructure:"data_dir" json:"data_dir"`
	RPCPort      int           `mapstructure:"rpc_port" json:"rpc_port"`
	P2PPort      int           `mapstructure:"p2p_port" json:"p2p_port"`
	RPCAuthToken string        `mapstructure:"rpc_auth_token" json:"rpc_auth_token"` // empty → open RPC
	MaxBlockTxs  int           `mapstructure:"max_block_txs" json:"max_block_txs"`   // 0 → 500
	Validators   []string      `mapstructure:"validators" json:"validators"`         // authorised proposer pubkey hexes
	SeedPeers    []string      `mapstructure:"seed_peers" json:"seed_peers"`         // "id@host:port"
	TLS          *TLSConfig    `mapstructure:"tls" json:"tls,omitempty"`
	Genesis      GenesisConfig `mapstructure:"genesis" json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "arenachain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads configuration from path (JSON, YAML or TOML, by extension).
// Environment variables prefixed ARENA_ override file values, with dots
// replaced by underscores (ARENA_RPC_PORT, ARENA_GENESIS_CHAIN_ID, ...).
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("rpc_port", cfg.RPCPort)
	v.SetDefault("p2p_port", cfg.P2PPort)
	v.SetDefault("max_block_txs", cfg.MaxBlockTxs)
	v.SetDefault("genesis.chain_id", cfg.Genesis.ChainID)

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	out := &Config{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if out.Genesis.ChainID == "" {
		return nil, fmt.Errorf("genesis.chain_id must not be empty")
	}
	return out, nil
}
