package engine

import (
	"errors"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
)

// Status is the read-only game summary.
type Status struct {
	Started    bool            `json:"started"`
	Ended      bool            `json:"ended"`
	Paused     bool            `json:"paused"`
	ZKBypassed bool            `json:"zk_bypassed"`
	Now        int64           `json:"now"`
	State      *core.GameState `json:"state"`
	StateRoot  string          `json:"state_root"`
}

// PowInfo describes the proof-of-work a user would have to solve for a
// prospective block right now.
type PowInfo struct {
	Seed       string `json:"seed"`
	Difficulty uint64 `json:"difficulty"`
}

// Status reports the game clock, flags, global state and deterministic
// state root.
func (e *Engine) Status() (*Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, gs, err := e.loadActive()
	if err != nil {
		return nil, err
	}
	now := e.env.Now()
	return &Status{
		Started:    now >= cfg.General.StartTime,
		Ended:      now >= cfg.EndTime(),
		Paused:     e.paused,
		ZKBypassed: e.zkBypassed,
		Now:        now,
		State:      gs,
		StateRoot:  e.store.ComputeRoot(),
	}, nil
}

// User returns a copy of the user's state with energy shown as it would be
// after the lazy reset-round replenishment, without mutating the store.
func (e *Engine) User(address string) (*core.UserState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, _, err := e.loadActive()
	if err != nil {
		return nil, err
	}
	user, err := e.store.GetUser(address)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotAdmitted
	}
	if err != nil {
		return nil, err
	}
	replenishEnergy(cfg, user, e.env.Now())
	return user, nil
}

// IsMined reports whether the (user, blockHash) pair is marked mined.
func (e *Engine) IsMined(address, blockHash string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.IsMined(address, blockHash)
}

// Pow returns the user's current PoW seed and the effective difficulty for
// a prospective block of type t.
func (e *Engine) Pow(address string, t core.BlockType) (*PowInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, _, err := e.loadActive()
	if err != nil {
		return nil, err
	}
	user, err := e.store.GetUser(address)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotAdmitted
	}
	if err != nil {
		return nil, err
	}
	return &PowInfo{
		Seed:       user.PowSeed,
		Difficulty: powDifficulty(&cfg.Mining, t, user.DifficultyOffset),
	}, nil
}

// DefogLayout returns the four sample bands of the active configuration.
func (e *Engine) DefogLayout() ([4]DefogBand, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, _, err := e.loadActive()
	if err != nil {
		return [4]DefogBand{}, err
	}
	return DefogBands(&cfg.Defog), nil
}
