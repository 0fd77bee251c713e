// Package core defines the domain types shared by every component of the
// mining game engine: configuration, global state, per-user state, and the
// persistent store interface.
package core

import "fmt"

// BlockType is the hidden kind of a map cell. Unknown is the sentinel for
// cells whose type has not been revealed; it is never mineable.
type BlockType uint8

const (
	BlockUnknown BlockType = iota
	BlockDirt
	BlockStone
	BlockGold
	BlockDiamond

	// NumBlockTypes sizes per-type arrays (index 0 stays unused).
	NumBlockTypes = 5
)

// Mineable reports whether t is a revealed, claimable block type.
func (t BlockType) Mineable() bool {
	return t >= BlockDirt && t <= BlockDiamond
}

func (t BlockType) String() string {
	switch t {
	case BlockDirt:
		return "dirt"
	case BlockStone:
		return "stone"
	case BlockGold:
		return "gold"
	case BlockDiamond:
		return "diamond"
	default:
		return "unknown"
	}
}

// DefogDivisor scales the three defog thresholds: a threshold of 2500 cuts
// the sample space at maxRounds*2500/10000.
const DefogDivisor = 10000

// RewardDividend scales reward trigger probabilities: a trigger of 10000
// fires on roughly 1% of draws.
const RewardDividend = 1_000_000

// GeneralParams holds the map geometry, energy budget and game window.
type GeneralParams struct {
	SizeX               uint64 `json:"size_x"` // cells per depth, X axis
	SizeY               uint64 `json:"size_y"` // cells per depth, Y axis
	EnergyCap           uint64 `json:"energy_cap"`
	EnergyResetInterval int64  `json:"energy_reset_interval"` // seconds
	StartTime           int64  `json:"start_time"`            // unix seconds
	Duration            int64  `json:"duration"`              // seconds
	GameID              string `json:"game_id"`               // admission domain separator
	AdmissionKey        string `json:"admission_key"`         // hex ed25519 pubkey
}

// DefogParams configures the probabilistic reveal check.
type DefogParams struct {
	MaxRounds    uint64    `json:"max_rounds"`
	RepeatRounds uint64    `json:"repeat_rounds"`
	Thresholds   [3]uint64 `json:"thresholds"` // out of DefogDivisor, ascending
}

// MiningParams configures the PoW fallback, per block type.
type MiningParams struct {
	BaseDifficulty [NumBlockTypes]uint64 `json:"base_difficulty"` // leading-zero bits
	TargetTime     [NumBlockTypes]int64  `json:"target_time"`     // seconds per block
}

// RewardLevel is one block type's reward distribution.
type RewardLevel struct {
	TriggerProb uint64 `json:"trigger_prob"` // out of RewardDividend
	MinAmount   uint64 `json:"min_amount"`
	MaxAmount   uint64 `json:"max_amount"` // exclusive
}

// RewardParams configures the multi-window reward ledger.
type RewardParams struct {
	Token           string                     `json:"token"` // external token identity
	DailyCap        uint64                     `json:"daily_cap"`
	HourlyCap       uint64                     `json:"hourly_cap"`
	UserDailyCap    uint64                     `json:"user_daily_cap"`
	UserLifetimeCap uint64                     `json:"user_lifetime_cap"`
	Levels          [NumBlockTypes]RewardLevel `json:"levels"`
}

// GameConfig is the immutable-per-epoch rule set. Operators replace it
// wholesale; individual fields are never patched in place.
type GameConfig struct {
	General GeneralParams `json:"general"`
	Defog   DefogParams   `json:"defog"`
	Mining  MiningParams  `json:"mining"`
	Reward  RewardParams  `json:"reward"`
}

// EndTime returns the unix second after which the game rejects mutations.
func (c *GameConfig) EndTime() int64 {
	return c.General.StartTime + c.General.Duration
}

// DepthQuota returns the number of cells that clears one depth.
func (c *GameConfig) DepthQuota() uint64 {
	return c.General.SizeX * c.General.SizeY
}

// Validate rejects configurations the engine cannot operate under.
func (c *GameConfig) Validate() error {
	if c.General.SizeX == 0 || c.General.SizeY == 0 {
		return fmt.Errorf("map size must be non-zero, got %dx%d", c.General.SizeX, c.General.SizeY)
	}
	if c.General.EnergyCap == 0 {
		return fmt.Errorf("energy cap must be non-zero")
	}
	if c.General.EnergyResetInterval <= 0 {
		return fmt.Errorf("energy reset interval must be positive")
	}
	if c.General.Duration <= 0 {
		return fmt.Errorf("game duration must be positive")
	}
	if c.Defog.MaxRounds == 0 || c.Defog.RepeatRounds == 0 {
		return fmt.Errorf("defog rounds must be non-zero")
	}
	if c.Defog.RepeatRounds >= c.Defog.MaxRounds {
		return fmt.Errorf("defog repeat rounds %d must be below max rounds %d",
			c.Defog.RepeatRounds, c.Defog.MaxRounds)
	}
	prev := uint64(0)
	for i, t := range c.Defog.Thresholds {
		if t < prev || t > DefogDivisor {
			return fmt.Errorf("defog threshold %d out of order or above divisor: %d", i, t)
		}
		prev = t
	}
	for t := BlockDirt; t <= BlockDiamond; t++ {
		lv := c.Reward.Levels[t]
		if lv.TriggerProb > RewardDividend {
			return fmt.Errorf("%s trigger probability %d exceeds dividend", t, lv.TriggerProb)
		}
		if lv.MaxAmount < lv.MinAmount {
			return fmt.Errorf("%s reward range inverted: [%d,%d)", t, lv.MinAmount, lv.MaxAmount)
		}
	}
	return nil
}

// RewardWindow is one rolling day- or hour-scoped budget counter. Number is
// the wall-clock period index it was last observed in; Total resets to zero
// lazily when a later period is first seen.
type RewardWindow struct {
	Number int64  `json:"number"`
	Total  uint64 `json:"total"`
}

// GameState is the singleton global state, mutated by every mining and
// reward operation.
type GameState struct {
	UserCount   uint64                `json:"user_count"`
	MinedByType [NumBlockTypes]uint64 `json:"mined_by_type"`
	TotalMined  uint64                `json:"total_mined"`

	// SiteHashKey is fixed at initialization and domain-separates all
	// defog/flags hashing for this deployment. Hex, 32 bytes.
	SiteHashKey string `json:"site_hash_key"`

	TotalReward     uint64 `json:"total_reward"`
	RemainingReward uint64 `json:"remaining_reward"`
	PendingReward   uint64 `json:"pending_reward"`
	ClaimedReward   uint64 `json:"claimed_reward"`

	Day  RewardWindow `json:"day"`
	Hour RewardWindow `json:"hour"`
}

// CheckInvariant verifies the pool partition identity. A failure is an
// operator/accounting fault, never a user error.
func (s *GameState) CheckInvariant() error {
	if s.TotalReward != s.RemainingReward+s.PendingReward+s.ClaimedReward {
		return fmt.Errorf("%w: total %d != remaining %d + pending %d + claimed %d",
			ErrLedgerInconsistent, s.TotalReward, s.RemainingReward, s.PendingReward, s.ClaimedReward)
	}
	return nil
}

// UserState is one participant's full progress record. Created on first
// admission, mutated by every mining call, never deleted.
type UserState struct {
	Address          string `json:"address"` // hex ed25519-derived address
	InitTime         int64  `json:"init_time"`
	DifficultyOffset uint64 `json:"difficulty_offset"`
	Depth            uint64 `json:"depth"`
	MinedInDepth     uint64 `json:"mined_in_depth"`
	DepthBlockHash   string `json:"depth_block_hash"` // opening block of current depth
	Energy           uint64 `json:"energy"`
	LastMineTime     int64  `json:"last_mine_time"`
	PowSeed          string `json:"pow_seed"` // hex, reseeded every action

	MinedByType [NumBlockTypes]uint64 `json:"mined_by_type"`

	EarnedReward  uint64 `json:"earned_reward"`
	Balance       uint64 `json:"balance"`
	ClaimedReward uint64 `json:"claimed_reward"`
	LastEarnDay   int64  `json:"last_earn_day"`
	DayEarned     uint64 `json:"day_earned"`
}

// TotalMined returns the user's lifetime mined-block count across all types.
func (u *UserState) TotalMined() uint64 {
	var sum uint64
	for _, n := range u.MinedByType {
		sum += n
	}
	return sum
}

// CheckInvariant verifies the per-user ledger identity.
func (u *UserState) CheckInvariant() error {
	if u.Balance != u.EarnedReward-u.ClaimedReward {
		return fmt.Errorf("%w: user %s balance %d != earned %d - claimed %d",
			ErrLedgerInconsistent, u.Address, u.Balance, u.EarnedReward, u.ClaimedReward)
	}
	return nil
}

// Store is the persistent game state interface. Implementations must be
// snapshot-able so the engine can roll back failed batches atomically.
// Implementations live in the storage package.
type Store interface {
	GetConfig() (*GameConfig, error)
	SetConfig(cfg *GameConfig) error

	GetGameState() (*GameState, error)
	SetGameState(s *GameState) error

	GetUser(address string) (*UserState, error)
	SetUser(u *UserState) error
	HasUser(address string) (bool, error)

	// Mined markers are per-user scoped and monotonic: set-only, never cleared.
	IsMined(address, blockHash string) (bool, error)
	MarkMined(address, blockHash string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic hash of the full game state from
	// the current write buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
