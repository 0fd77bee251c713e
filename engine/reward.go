package engine

import (
	"math/big"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

const (
	secondsPerDay  = 86400
	secondsPerHour = 3600
)

// rollWindows lazily resets the day/hour window counters the first time a
// later period is observed. There is no background timer: the reset happens
// on the next grant inside the new period, and exactly once per period.
func rollWindows(gs *core.GameState, user *core.UserState, now int64) {
	day := now / secondsPerDay
	hour := now / secondsPerHour
	if day > gs.Day.Number {
		gs.Day = core.RewardWindow{Number: day}
	}
	if hour > gs.Hour.Number {
		gs.Hour = core.RewardWindow{Number: hour}
	}
	if day > user.LastEarnDay {
		user.LastEarnDay = day
		user.DayEarned = 0
	}
}

// remainingBudget returns cap-used, saturating at zero.
func remainingBudget(cap, used uint64) uint64 {
	if used >= cap {
		return 0
	}
	return cap - used
}

// grantReward rolls the reward draw for one successfully mined block and
// credits the result. The draw is seeded by (time, entropy, blockHash,
// user); its low digits decide whether the block type's level triggers, the
// quotient picks the amount uniformly in [min, max). Before crediting, the
// nominal amount is clamped to the minimum of five independently tracked
// remaining budgets, so no window or pool can ever be over-allocated. Runs
// once per block, not per batch: blocks in one call compete for the same
// shrinking budgets.
//
// Returns the credited amount (possibly zero).
func grantReward(cfg *core.GameConfig, gs *core.GameState, user *core.UserState,
	blockHash string, t core.BlockType, now int64, entropy []byte) uint64 {

	rollWindows(gs, user, now)

	lv := cfg.Reward.Levels[t]
	draw := crypto.HashInt(crypto.Uint64Bytes(uint64(now)), entropy,
		crypto.HexBytes(blockHash), crypto.HexBytes(user.Address))

	dividend := new(big.Int).SetUint64(core.RewardDividend)
	trigger := new(big.Int).Mod(draw, dividend)
	if trigger.Uint64() >= lv.TriggerProb {
		return 0
	}

	amount := lv.MinAmount
	if span := lv.MaxAmount - lv.MinAmount; span > 0 {
		q := new(big.Int).Div(draw, dividend)
		amount += q.Mod(q, new(big.Int).SetUint64(span)).Uint64()
	}

	for _, budget := range [5]uint64{
		gs.RemainingReward,
		remainingBudget(cfg.Reward.DailyCap, gs.Day.Total),
		remainingBudget(cfg.Reward.HourlyCap, gs.Hour.Total),
		remainingBudget(cfg.Reward.UserDailyCap, user.DayEarned),
		remainingBudget(cfg.Reward.UserLifetimeCap, user.EarnedReward),
	} {
		if budget < amount {
			amount = budget
		}
	}
	if amount == 0 {
		return 0
	}

	user.Balance += amount
	user.EarnedReward += amount
	user.DayEarned += amount
	gs.Day.Total += amount
	gs.Hour.Total += amount
	gs.PendingReward += amount
	gs.RemainingReward -= amount
	return amount
}
