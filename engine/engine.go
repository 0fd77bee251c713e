package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
	"github.com/MatrixLabsTech/crystal-caves-zk/events"
	"github.com/MatrixLabsTech/crystal-caves-zk/zk"
)

// Engine owns the authoritative game state. Every mutating operation runs
// to completion under an exclusive lock against the shared store; read-only
// queries share a read lock and never block each other. Batches are atomic:
// any failing block reverts the store to the pre-call snapshot.
type Engine struct {
	mu      sync.RWMutex
	store   core.Store
	emitter *events.Emitter
	env     Env
	vault   Vault
	access  *AccessList

	paused     bool
	zkBypassed bool
	mineVK     *zk.VerifyingKey
	unlockVK   *zk.VerifyingKey
}

// New creates an Engine over store with operator as the bootstrap
// RoleOperator holder.
func New(store core.Store, emitter *events.Emitter, env Env, vault Vault, operator string) *Engine {
	return &Engine{
		store:   store,
		emitter: emitter,
		env:     env,
		vault:   vault,
		access:  NewAccessList(operator),
	}
}

// Access exposes the capability layer for grant/revoke and queries.
func (e *Engine) Access() *AccessList { return e.access }

// ---- requests ----

// BlockClaim is one block in a mine batch.
type BlockClaim struct {
	Block      string         `json:"block"`     // per-user-scoped block hash, hex
	Neighbour  string         `json:"neighbour"` // already-mined adjacent block, hex
	Type       core.BlockType `json:"type"`
	DefogNonce uint64         `json:"defog_nonce"`
	PowNonce   uint64         `json:"pow_nonce"`
}

// ProofBatch is the wire form of N proofs with their public-input vectors,
// aligned index-for-index with the claims they cover.
type ProofBatch struct {
	Proofs []zk.ProofData `json:"proofs"`
	Inputs [][]string     `json:"inputs"` // hex field elements
}

// AdmitRequest admits a caller and unlocks depth 0.
type AdmitRequest struct {
	OpeningBlock string      `json:"opening_block"` // depth 0 opening block hash, hex
	Proof        *ProofBatch `json:"proof,omitempty"`
	Signature    string      `json:"signature"` // admission authority over (game, user, nonce)
	Nonce        uint64      `json:"nonce"`
}

// MineRequest mines a batch of blocks that does not complete the depth.
type MineRequest struct {
	Claims []BlockClaim `json:"claims"`
	Proof  *ProofBatch  `json:"proof,omitempty"`
}

// UnlockRequest mines a batch that completes the depth, then unlocks the
// next one.
type UnlockRequest struct {
	Mine             MineRequest `json:"mine"`
	NextOpeningBlock string      `json:"next_opening_block"`
	UnlockProof      *ProofBatch `json:"unlock_proof,omitempty"`
}

// ---- lifecycle ----

// Initialize installs the active configuration and, on first run, creates
// the global game state with a site hash key drawn once from environment
// entropy. Operators may call it again to replace the configuration
// wholesale; the site key and all accounting survive.
func (e *Engine) Initialize(caller string, cfg *core.GameConfig) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}
	if err := e.store.SetConfig(cfg); err != nil {
		return e.revert(snap, err)
	}
	if _, err := e.store.GetGameState(); errors.Is(err, core.ErrNotFound) {
		gs := &core.GameState{
			SiteHashKey: crypto.Hash([]byte("site-hash-key"), e.env.Entropy()),
		}
		if err := e.store.SetGameState(gs); err != nil {
			return e.revert(snap, err)
		}
	} else if err != nil {
		return e.revert(snap, err)
	}
	return e.store.Commit()
}

// ---- player operations ----

// Admit verifies the admission signature and, when zk proofs are enabled,
// the depth-0 opening proof, then creates the caller's user state with full
// energy and depth 0 unlocked. A second admission for the same user fails.
func (e *Engine) Admit(caller string, req *AdmitRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, gs, err := e.loadActive()
	if err != nil {
		return err
	}
	now := e.env.Now()
	if err := e.checkLive(cfg, now); err != nil {
		return err
	}
	if has, err := e.store.HasUser(caller); err != nil {
		return err
	} else if has {
		return core.ErrAlreadyAdmitted
	}
	if req.OpeningBlock == "" {
		return fmt.Errorf("%w: opening block required", core.ErrBadBatchShape)
	}

	pub, err := crypto.PubKeyFromHex(cfg.General.AdmissionKey)
	if err != nil {
		return fmt.Errorf("admission key misconfigured: %w", err)
	}
	msg := crypto.AdmissionMessage(cfg.General.GameID, caller, req.Nonce)
	if err := crypto.Verify(pub, msg, req.Signature); err != nil {
		return fmt.Errorf("%w: %v", core.ErrBadAdmissionSig, err)
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}

	user := &core.UserState{
		Address:        caller,
		InitTime:       now,
		LastMineTime:   now,
		Energy:         cfg.General.EnergyCap,
		Depth:          0,
		MinedInDepth:   1,
		DepthBlockHash: req.OpeningBlock,
		LastEarnDay:    now / secondsPerDay,
		PowSeed:        reseedPow("", req.OpeningBlock, caller, e.env.Entropy()),
	}

	if !e.zkBypassed {
		opening := []BlockClaim{{Block: req.OpeningBlock, Type: core.BlockDirt}}
		if err := e.verifyProofBatch(cfg, gs, user, opening, req.Proof, 0, e.unlockVK); err != nil {
			return e.revert(snap, err)
		}
	}

	if err := e.store.MarkMined(caller, req.OpeningBlock); err != nil {
		return e.revert(snap, err)
	}
	gs.UserCount++
	if err := e.persist(gs, user); err != nil {
		return e.revert(snap, err)
	}
	if err := e.store.Commit(); err != nil {
		return e.revert(snap, err)
	}

	e.emitter.Emit(events.Event{
		Type: events.EventUserAdmitted, User: caller, Time: now,
		Data: map[string]any{"opening_block": req.OpeningBlock},
	})
	return nil
}

// MineBatch mines a batch that must not cross the current depth's quota.
func (e *Engine) MineBatch(caller string, req *MineRequest) error {
	return e.mine(caller, req, nil)
}

// MineBatchAndUnlock mines a batch that must complete the current depth,
// then unlocks the next depth with its own proof.
func (e *Engine) MineBatchAndUnlock(caller string, req *UnlockRequest) error {
	return e.mine(caller, &req.Mine, req)
}

func (e *Engine) mine(caller string, req *MineRequest, unlock *UnlockRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, gs, err := e.loadActive()
	if err != nil {
		return err
	}
	now := e.env.Now()
	if err := e.checkLive(cfg, now); err != nil {
		return err
	}
	user, err := e.store.GetUser(caller)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotAdmitted
	}
	if err != nil {
		return err
	}

	n := uint64(len(req.Claims))
	if n == 0 {
		return fmt.Errorf("%w: empty batch", core.ErrBadBatchShape)
	}

	// Exactly one of the two entry points is valid per call, decided by
	// whether the batch completes the depth quota.
	completes := user.MinedInDepth+n >= cfg.DepthQuota()
	if unlock == nil && completes {
		return core.ErrMustUnlockDepth
	}
	if unlock != nil && !completes {
		return core.ErrMustNotUnlockDepth
	}

	replenishEnergy(cfg, user, now)
	if user.Energy < n {
		return fmt.Errorf("%w: have %d, need %d", core.ErrInsufficientEnergy, user.Energy, n)
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}

	if !e.zkBypassed {
		if err := e.verifyProofBatch(cfg, gs, user, req.Claims, req.Proof, user.Depth, e.mineVK); err != nil {
			return e.revert(snap, err)
		}
	}

	siteKey := crypto.HexBytes(gs.SiteHashKey)
	var targetSum int64
	var pending []events.Event
	for _, c := range req.Claims {
		if !c.Type.Mineable() {
			return e.revert(snap, fmt.Errorf("%w: %s", core.ErrBadBlockType, c.Type))
		}
		if ok, err := e.store.IsMined(caller, c.Neighbour); err != nil {
			return e.revert(snap, err)
		} else if !ok {
			return e.revert(snap, fmt.Errorf("%w: %s", core.ErrNeighbourNotMined, c.Neighbour))
		}
		if ok, err := e.store.IsMined(caller, c.Block); err != nil {
			return e.revert(snap, err)
		} else if ok {
			return e.revert(snap, fmt.Errorf("%w: %s", core.ErrBlockAlreadyMined, c.Block))
		}
		if e.zkBypassed {
			if err := checkDefog(&cfg.Defog, siteKey, c.Block, c.Type, c.DefogNonce); err != nil {
				return e.revert(snap, err)
			}
			diff := powDifficulty(&cfg.Mining, c.Type, user.DifficultyOffset)
			if err := checkPow(user.PowSeed, c.Block, c.PowNonce, diff); err != nil {
				return e.revert(snap, err)
			}
		}
		if err := e.store.MarkMined(caller, c.Block); err != nil {
			return e.revert(snap, err)
		}

		granted := grantReward(cfg, gs, user, c.Block, c.Type, now, e.env.Entropy())
		user.MinedByType[c.Type]++
		gs.MinedByType[c.Type]++
		targetSum += cfg.Mining.TargetTime[c.Type]

		pending = append(pending, events.Event{
			Type: events.EventBlockMined, User: caller, Time: now,
			Data: map[string]any{
				"block": c.Block, "block_type": c.Type.String(),
				"depth": user.Depth, "reward": granted,
			},
		})
	}

	user.MinedInDepth += n
	gs.TotalMined += n
	user.Energy -= n

	elapsed := now - user.LastMineTime
	if next := nextDifficultyOffset(user.DifficultyOffset, elapsed, targetSum); next != user.DifficultyOffset {
		user.DifficultyOffset = next
		pending = append(pending, events.Event{
			Type: events.EventDifficultyChanged, User: caller, Time: now,
			Data: map[string]any{"offset": next},
		})
	}
	user.LastMineTime = now
	user.PowSeed = reseedPow(user.PowSeed, req.Claims[n-1].Block, caller, e.env.Entropy())

	if unlock != nil {
		ev, err := e.unlockDepth(cfg, gs, user, unlock, now)
		if err != nil {
			return e.revert(snap, err)
		}
		pending = append(pending, ev)
	}

	if err := e.checkInvariants(gs, user); err != nil {
		return e.revert(snap, err)
	}
	if err := e.persist(gs, user); err != nil {
		return e.revert(snap, err)
	}
	if err := e.store.Commit(); err != nil {
		return e.revert(snap, err)
	}
	for _, ev := range pending {
		e.emitter.Emit(ev)
	}
	return nil
}

// unlockDepth applies the depth transition after a completing batch: the new
// depth's opening block must be unmined for this user, its proof (unless
// bypassed) must bind to the next depth, and the per-depth counter restarts
// at 1 with the opening block recorded and the PoW seed reseeded.
func (e *Engine) unlockDepth(cfg *core.GameConfig, gs *core.GameState, user *core.UserState,
	req *UnlockRequest, now int64) (events.Event, error) {

	if req.NextOpeningBlock == "" {
		return events.Event{}, fmt.Errorf("%w: next opening block required", core.ErrBadBatchShape)
	}
	if ok, err := e.store.IsMined(user.Address, req.NextOpeningBlock); err != nil {
		return events.Event{}, err
	} else if ok {
		return events.Event{}, fmt.Errorf("%w: %s", core.ErrDepthAlreadyOpen, req.NextOpeningBlock)
	}
	if !e.zkBypassed {
		opening := []BlockClaim{{Block: req.NextOpeningBlock, Type: core.BlockDirt}}
		if err := e.verifyProofBatch(cfg, gs, user, opening, req.UnlockProof, user.Depth+1, e.unlockVK); err != nil {
			return events.Event{}, err
		}
	}
	if err := e.store.MarkMined(user.Address, req.NextOpeningBlock); err != nil {
		return events.Event{}, err
	}
	user.Depth++
	user.MinedInDepth = 1
	user.DepthBlockHash = req.NextOpeningBlock
	user.PowSeed = reseedPow(user.PowSeed, req.NextOpeningBlock, user.Address, e.env.Entropy())

	return events.Event{
		Type: events.EventDepthUnlocked, User: user.Address, Time: now,
		Data: map[string]any{"depth": user.Depth, "opening_block": req.NextOpeningBlock},
	}, nil
}

// ClaimReward transfers the caller's full claimable balance out through the
// vault and zeroes it. Both ledger invariants are checked before and after
// the mutation; the external transfer happens only after the internal
// ledger mutation, under the engine lock, so a reentrant vault can never
// observe tokens promised twice.
func (e *Engine) ClaimReward(caller string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, gs, err := e.loadActive()
	if err != nil {
		return 0, err
	}
	user, err := e.store.GetUser(caller)
	if errors.Is(err, core.ErrNotFound) {
		return 0, core.ErrNotAdmitted
	}
	if err != nil {
		return 0, err
	}
	if err := e.checkInvariants(gs, user); err != nil {
		return 0, err
	}

	amount := user.Balance
	if amount == 0 {
		return 0, nil
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return 0, err
	}
	user.Balance = 0
	user.ClaimedReward += amount
	gs.PendingReward -= amount
	gs.ClaimedReward += amount
	if err := e.checkInvariants(gs, user); err != nil {
		return 0, e.revert(snap, err)
	}
	if err := e.persist(gs, user); err != nil {
		return 0, e.revert(snap, err)
	}
	if err := e.vault.Transfer(caller, amount); err != nil {
		return 0, e.revert(snap, fmt.Errorf("vault transfer: %w", err))
	}
	if err := e.store.Commit(); err != nil {
		return 0, e.revert(snap, err)
	}

	e.emitter.Emit(events.Event{
		Type: events.EventRewardClaimed, User: caller, Time: e.env.Now(),
		Data: map[string]any{"amount": amount},
	})
	return amount, nil
}

// ---- operator operations ----

// SetPaused pauses or resumes all player mutations.
func (e *Engine) SetPaused(caller string, paused bool) error {
	if err := e.access.Require(caller, RolePauser); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
	return nil
}

// SetZKBypass toggles the proof path: when bypassed, mining is gated by the
// defog and proof-of-work checks instead of zk proofs.
func (e *Engine) SetZKBypass(caller string, bypassed bool) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zkBypassed = bypassed
	return nil
}

// SetVerifyingKeys registers the verifying keys for mine and unlock proofs.
func (e *Engine) SetVerifyingKeys(caller string, mine, unlock *zk.VerifyingKey) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	for _, vk := range []*zk.VerifyingKey{mine, unlock} {
		if vk != nil {
			if err := vk.Validate(); err != nil {
				return err
			}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mineVK = mine
	e.unlockVK = unlock
	return nil
}

// Deposit records amount of externally-custodied tokens as added to the
// reward pool.
func (e *Engine) Deposit(caller string, amount uint64) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	gs, err := e.store.GetGameState()
	if err != nil {
		return err
	}
	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}
	gs.TotalReward += amount
	gs.RemainingReward += amount
	if err := gs.CheckInvariant(); err != nil {
		return e.revert(snap, err)
	}
	if err := e.store.SetGameState(gs); err != nil {
		return e.revert(snap, err)
	}
	return e.store.Commit()
}

// Withdraw removes amount from the unpromised pool remainder and transfers
// it out through the vault. Pending and claimed partitions are untouched.
func (e *Engine) Withdraw(caller string, amount uint64) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.withdrawLocked(caller, amount)
}

// EmergencyWithdraw drains the entire unpromised remainder.
func (e *Engine) EmergencyWithdraw(caller string) error {
	if err := e.access.Require(caller, RoleOperator); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	gs, err := e.store.GetGameState()
	if err != nil {
		return err
	}
	return e.withdrawLocked(caller, gs.RemainingReward)
}

func (e *Engine) withdrawLocked(caller string, amount uint64) error {
	gs, err := e.store.GetGameState()
	if err != nil {
		return err
	}
	if gs.RemainingReward < amount {
		return fmt.Errorf("%w: remaining %d, requested %d", core.ErrInsufficientPool, gs.RemainingReward, amount)
	}
	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}
	gs.RemainingReward -= amount
	gs.TotalReward -= amount
	if err := gs.CheckInvariant(); err != nil {
		return e.revert(snap, err)
	}
	if err := e.store.SetGameState(gs); err != nil {
		return e.revert(snap, err)
	}
	if err := e.vault.Transfer(caller, amount); err != nil {
		return e.revert(snap, fmt.Errorf("vault transfer: %w", err))
	}
	return e.store.Commit()
}

// ---- internal helpers ----

func (e *Engine) loadActive() (*core.GameConfig, *core.GameState, error) {
	cfg, err := e.store.GetConfig()
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil, fmt.Errorf("engine not initialized")
	}
	if err != nil {
		return nil, nil, err
	}
	gs, err := e.store.GetGameState()
	if err != nil {
		return nil, nil, err
	}
	return cfg, gs, nil
}

// checkLive gates every state-mutating player entry point: the engine must
// be unpaused and the wall clock inside the game window.
func (e *Engine) checkLive(cfg *core.GameConfig, now int64) error {
	if e.paused {
		return core.ErrPaused
	}
	if now < cfg.General.StartTime {
		return core.ErrGameNotStarted
	}
	if now >= cfg.EndTime() {
		return core.ErrGameEnded
	}
	return nil
}

func (e *Engine) checkInvariants(gs *core.GameState, user *core.UserState) error {
	if err := gs.CheckInvariant(); err != nil {
		return err
	}
	return user.CheckInvariant()
}

func (e *Engine) persist(gs *core.GameState, user *core.UserState) error {
	if err := e.store.SetUser(user); err != nil {
		return err
	}
	return e.store.SetGameState(gs)
}

func (e *Engine) revert(snap int, cause error) error {
	if err := e.store.RevertToSnapshot(snap); err != nil {
		return fmt.Errorf("revert after failure: %w (cause: %v)", err, cause)
	}
	return cause
}

// replenishEnergy refills the user to the energy cap when the current reset
// round is later than the round of the last mining action. Rounds are
// counted from the game start; no background ticking is involved.
func replenishEnergy(cfg *core.GameConfig, user *core.UserState, now int64) {
	interval := cfg.General.EnergyResetInterval
	lastRound := (user.LastMineTime - cfg.General.StartTime) / interval
	curRound := (now - cfg.General.StartTime) / interval
	if curRound > lastRound {
		user.Energy = cfg.General.EnergyCap
	}
}

// verifyProofBatch decodes and verifies one proof per claim at the given
// depth: the public-input vector must bind each proof to its claimed block
// and type, carry the exact expected flags for (user, depth), and the whole
// batch must pass the randomized aggregate pairing check against vk.
func (e *Engine) verifyProofBatch(cfg *core.GameConfig, gs *core.GameState, user *core.UserState,
	claims []BlockClaim, pb *ProofBatch, depth uint64, vk *zk.VerifyingKey) error {

	if vk == nil {
		return fmt.Errorf("%w: no verifying key registered", core.ErrProofInvalid)
	}
	n := len(claims)
	if pb == nil || len(pb.Proofs) != n || len(pb.Inputs) != n {
		return fmt.Errorf("%w: %d claims need %d proofs and inputs", core.ErrBadBatchShape, n, n)
	}

	siteKey := crypto.HexBytes(gs.SiteHashKey)
	mod := zk.ScalarModulus()
	proofs := make([]*zk.Proof, n)
	inputs := make([][]*big.Int, n)
	for i := 0; i < n; i++ {
		p, err := pb.Proofs[i].Decode()
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrProofInvalid, err)
		}
		in, err := zk.ParseInputs(pb.Inputs[i])
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrBadBatchShape, err)
		}
		if len(in) != zk.InputLen {
			return fmt.Errorf("%w: input vector %d has %d values, want %d",
				core.ErrBadBatchShape, i, len(in), zk.InputLen)
		}

		wantBlock := new(big.Int).SetBytes(crypto.HexBytes(claims[i].Block))
		wantBlock.Mod(wantBlock, mod)
		if in[zk.InputBlockHash].Cmp(wantBlock) != 0 {
			return fmt.Errorf("%w: proof %d not bound to claimed block", core.ErrFlagsMismatch, i)
		}
		if in[zk.InputBlockType].Uint64() != uint64(claims[i].Type) {
			return fmt.Errorf("%w: proof %d not bound to claimed type", core.ErrFlagsMismatch, i)
		}
		if err := zk.CheckFlags(in, cfg.General.SizeX, cfg.General.SizeY, user.Address, siteKey, depth); err != nil {
			return err
		}
		proofs[i] = p
		inputs[i] = in
	}

	seed := zk.WeightSeed(e.env.Now(), e.env.Entropy(), proofs[0])
	return zk.VerifyBatch(proofs, inputs, vk, seed)
}
