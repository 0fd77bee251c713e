package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
)

// Config holds all server configuration.
type Config struct {
	NodeID        string          `json:"node_id"`
	DataDir       string          `json:"data_dir"`
	RPCPort       int             `json:"rpc_port"`
	Operator      string          `json:"operator"`       // bootstrap operator address (hex)
	OperatorToken string          `json:"operator_token"` // bearer token for operator RPC; empty → open
	Game          core.GameConfig `json:"game"`
}

// DefaultConfig returns a single-node development configuration: a small
// 8x8 map, a 24h game window starting now, and generous reward levels.
func DefaultConfig() *Config {
	now := time.Now().Unix()
	return &Config{
		NodeID:  "caves0",
		DataDir: "./data",
		RPCPort: 8545,
		Game: core.GameConfig{
			General: core.GeneralParams{
				SizeX:               8,
				SizeY:               8,
				EnergyCap:           50,
				EnergyResetInterval: 3600,
				StartTime:           now,
				Duration:            24 * 3600,
				GameID:              "crystal-caves-dev",
			},
			Defog: core.DefogParams{
				MaxRounds:    1 << 16,
				RepeatRounds: 4,
				Thresholds:   [3]uint64{6000, 8500, 9700},
			},
			Mining: core.MiningParams{
				BaseDifficulty: [core.NumBlockTypes]uint64{0, 4, 8, 12, 16},
				TargetTime:     [core.NumBlockTypes]int64{0, 5, 15, 45, 120},
			},
			Reward: core.RewardParams{
				Token:           "CAVE",
				DailyCap:        100_000,
				HourlyCap:       10_000,
				UserDailyCap:    1_000,
				UserLifetimeCap: 20_000,
				Levels: [core.NumBlockTypes]core.RewardLevel{
					core.BlockDirt:    {TriggerProb: 20_000, MinAmount: 1, MaxAmount: 5},
					core.BlockStone:   {TriggerProb: 60_000, MinAmount: 2, MaxAmount: 20},
					core.BlockGold:    {TriggerProb: 250_000, MinAmount: 10, MaxAmount: 100},
					core.BlockDiamond: {TriggerProb: 500_000, MinAmount: 50, MaxAmount: 500},
				},
			},
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
