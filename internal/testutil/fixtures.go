package testutil

import (
	"errors"
	"sync"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
)

// FixedEnv is a deterministic engine.Env: the clock only moves when a test
// advances it, and entropy is a fixed 32-byte pattern, so every hash-derived
// decision (weights, seeds, defog samples, reward draws) replays exactly.
type FixedEnv struct {
	mu      sync.Mutex
	now     int64
	entropy [32]byte
}

// NewFixedEnv creates a FixedEnv starting at now with entropy filled with
// the given byte.
func NewFixedEnv(now int64, fill byte) *FixedEnv {
	e := &FixedEnv{now: now}
	for i := range e.entropy {
		e.entropy[i] = fill
	}
	return e
}

func (e *FixedEnv) Now() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *FixedEnv) Entropy() []byte {
	cp := make([]byte, 32)
	copy(cp, e.entropy[:])
	return cp
}

// Advance moves the clock forward by d seconds.
func (e *FixedEnv) Advance(d int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now += d
}

// SetNow pins the clock to now.
func (e *FixedEnv) SetNow(now int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// RecordingVault captures transfers for assertions.
type RecordingVault struct {
	mu        sync.Mutex
	Transfers []VaultTransfer
	Fail      bool // when set, Transfer returns an error
}

// VaultTransfer is one recorded external transfer.
type VaultTransfer struct {
	To     string
	Amount uint64
}

func (v *RecordingVault) Transfer(to string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Fail {
		return errTransferFailed
	}
	v.Transfers = append(v.Transfers, VaultTransfer{To: to, Amount: amount})
	return nil
}

var errTransferFailed = errors.New("vault transfer rejected")

// GameConfig returns a small, deterministic game configuration for engine
// tests: a 3x3 map, zero base PoW difficulty, always-triggering rewards with
// a fixed amount, and caps high enough not to interfere unless a test
// lowers them.
func GameConfig(start int64) *core.GameConfig {
	return &core.GameConfig{
		General: core.GeneralParams{
			SizeX:               3,
			SizeY:               3,
			EnergyCap:           20,
			EnergyResetInterval: 600,
			StartTime:           start,
			Duration:            86400 * 30,
			GameID:              "caves-test",
		},
		Defog: core.DefogParams{
			MaxRounds:    1 << 12,
			RepeatRounds: 2,
			Thresholds:   [3]uint64{2500, 5000, 7500},
		},
		Mining: core.MiningParams{
			BaseDifficulty: [core.NumBlockTypes]uint64{0, 0, 0, 0, 0},
			TargetTime:     [core.NumBlockTypes]int64{0, 10, 10, 10, 10},
		},
		Reward: core.RewardParams{
			Token:           "TCAVE",
			DailyCap:        1 << 40,
			HourlyCap:       1 << 40,
			UserDailyCap:    1 << 40,
			UserLifetimeCap: 1 << 40,
			Levels: [core.NumBlockTypes]core.RewardLevel{
				// TriggerProb == dividend → every draw triggers; min==max-1
				// pins the amount so ledger tests are exact.
				core.BlockDirt:    {TriggerProb: core.RewardDividend, MinAmount: 3, MaxAmount: 4},
				core.BlockStone:   {TriggerProb: core.RewardDividend, MinAmount: 3, MaxAmount: 4},
				core.BlockGold:    {TriggerProb: core.RewardDividend, MinAmount: 3, MaxAmount: 4},
				core.BlockDiamond: {TriggerProb: core.RewardDividend, MinAmount: 3, MaxAmount: 4},
			},
		},
	}
}
