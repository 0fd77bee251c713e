package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
	"github.com/MatrixLabsTech/crystal-caves-zk/events"
	"github.com/MatrixLabsTech/crystal-caves-zk/internal/testutil"
)

const (
	testStart    = int64(1_700_000_000)
	testOperator = "c0ffee0000000000000000000000000000000000"
	testUser     = "5f927395213ee6b95de97bddcb1b2b1c0f19844f"
	testUser2    = "0c373a21f9b03e92f3a223ef53a9a6a6b46e9f9e"
)

type rig struct {
	eng     *Engine
	env     *testutil.FixedEnv
	vault   *testutil.RecordingVault
	cfg     *core.GameConfig
	admPriv crypto.PrivateKey
	emitted []events.Event
}

// newRig builds a bypass-mode engine over an in-memory store with a funded
// reward pool and an event recorder.
func newRig(t *testing.T, mutate func(*core.GameConfig), deposit uint64) *rig {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	cfg := testutil.GameConfig(testStart)
	cfg.General.AdmissionKey = pub.Hex()
	if mutate != nil {
		mutate(cfg)
	}

	r := &rig{
		env:     testutil.NewFixedEnv(testStart, 0xAB),
		vault:   &testutil.RecordingVault{},
		cfg:     cfg,
		admPriv: priv,
	}
	emitter := events.NewEmitter()
	for _, typ := range events.All {
		emitter.Subscribe(typ, func(ev events.Event) { r.emitted = append(r.emitted, ev) })
	}
	r.eng = New(testutil.NewGameStore(), emitter, r.env, r.vault, testOperator)

	if err := r.eng.Initialize(testOperator, cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := r.eng.SetZKBypass(testOperator, true); err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if deposit > 0 {
		if err := r.eng.Deposit(testOperator, deposit); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return r
}

func (r *rig) admitReq(user string, nonce uint64) *AdmitRequest {
	msg := crypto.AdmissionMessage(r.cfg.General.GameID, user, nonce)
	return &AdmitRequest{
		OpeningBlock: crypto.Hash([]byte("opening-" + user)),
		Signature:    crypto.Sign(r.admPriv, msg),
		Nonce:        nonce,
	}
}

func (r *rig) admit(t *testing.T, user string) string {
	t.Helper()
	req := r.admitReq(user, 1)
	if err := r.eng.Admit(user, req); err != nil {
		t.Fatalf("admit %s: %v", user, err)
	}
	return req.OpeningBlock
}

// dirtClaims chains n dirt claims from parent, each with a solved PoW nonce
// for the user's current seed and difficulty.
func (r *rig) dirtClaims(t *testing.T, user, parent, tag string, n int) []BlockClaim {
	t.Helper()
	pi, err := r.eng.Pow(user, core.BlockDirt)
	if err != nil {
		t.Fatalf("pow info: %v", err)
	}
	claims := make([]BlockClaim, n)
	prev := parent
	for i := range claims {
		block := crypto.Hash([]byte(fmt.Sprintf("%s-%d", tag, i)))
		claims[i] = BlockClaim{
			Block:     block,
			Neighbour: prev,
			Type:      core.BlockDirt,
			PowNonce:  solvePow(pi.Seed, block, pi.Difficulty),
		}
		prev = block
	}
	return claims
}

func (r *rig) countEvents(typ events.EventType) int {
	n := 0
	for _, ev := range r.emitted {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// ---- lifecycle ----

func TestInitializeRequiresOperator(t *testing.T) {
	r := newRig(t, nil, 0)
	if err := r.eng.Initialize(testUser, r.cfg); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
}

// TestReinitializeKeepsSiteKey: replacing the configuration must not rotate
// the site hash key, or every outstanding defog nonce would break.
func TestReinitializeKeepsSiteKey(t *testing.T) {
	r := newRig(t, nil, 0)
	st, err := r.eng.Status()
	if err != nil {
		t.Fatal(err)
	}
	key := st.State.SiteHashKey
	if key == "" {
		t.Fatal("no site hash key after initialize")
	}

	if err := r.eng.Initialize(testOperator, r.cfg); err != nil {
		t.Fatalf("reinitialize: %v", err)
	}
	st, err = r.eng.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.State.SiteHashKey != key {
		t.Fatal("site hash key rotated on reinitialize")
	}
}

// ---- admission ----

func TestAdmit(t *testing.T) {
	r := newRig(t, nil, 0)
	opening := r.admit(t, testUser)

	user, err := r.eng.User(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if user.Energy != r.cfg.General.EnergyCap {
		t.Fatalf("energy %d, want cap %d", user.Energy, r.cfg.General.EnergyCap)
	}
	if user.Depth != 0 || user.MinedInDepth != 1 {
		t.Fatalf("depth progress %d/%d, want 0/1", user.Depth, user.MinedInDepth)
	}
	if user.DepthBlockHash != opening {
		t.Fatal("opening block not recorded")
	}
	if user.PowSeed == "" {
		t.Fatal("no pow seed after admission")
	}
	if mined, err := r.eng.IsMined(testUser, opening); err != nil || !mined {
		t.Fatalf("opening block not marked mined: %v %v", mined, err)
	}
	if n := r.countEvents(events.EventUserAdmitted); n != 1 {
		t.Fatalf("%d admission events, want 1", n)
	}

	if err := r.eng.Admit(testUser, r.admitReq(testUser, 2)); !errors.Is(err, core.ErrAlreadyAdmitted) {
		t.Fatalf("second admission: got %v, want ErrAlreadyAdmitted", err)
	}
}

func TestAdmitBadSignature(t *testing.T) {
	r := newRig(t, nil, 0)

	// Signature minted for a different user.
	req := r.admitReq(testUser2, 1)
	if err := r.eng.Admit(testUser, req); !errors.Is(err, core.ErrBadAdmissionSig) {
		t.Fatalf("got %v, want ErrBadAdmissionSig", err)
	}
	// Signature minted for a different nonce.
	req = r.admitReq(testUser, 1)
	req.Nonce = 2
	if err := r.eng.Admit(testUser, req); !errors.Is(err, core.ErrBadAdmissionSig) {
		t.Fatalf("got %v, want ErrBadAdmissionSig", err)
	}
}

func TestAdmitOutsideWindow(t *testing.T) {
	r := newRig(t, nil, 0)

	r.env.SetNow(testStart - 10)
	if err := r.eng.Admit(testUser, r.admitReq(testUser, 1)); !errors.Is(err, core.ErrGameNotStarted) {
		t.Fatalf("before start: got %v, want ErrGameNotStarted", err)
	}
	r.env.SetNow(r.cfg.EndTime())
	if err := r.eng.Admit(testUser, r.admitReq(testUser, 1)); !errors.Is(err, core.ErrGameEnded) {
		t.Fatalf("after end: got %v, want ErrGameEnded", err)
	}
}

// ---- mining ----

func TestMineFlow(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)

	claims := r.dirtClaims(t, testUser, opening, "flow", 3)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims}); err != nil {
		t.Fatalf("mine: %v", err)
	}

	user, err := r.eng.User(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if user.Energy != r.cfg.General.EnergyCap-3 {
		t.Fatalf("energy %d, want %d", user.Energy, r.cfg.General.EnergyCap-3)
	}
	if user.MinedInDepth != 4 {
		t.Fatalf("mined in depth %d, want 4", user.MinedInDepth)
	}
	if user.MinedByType[core.BlockDirt] != 3 {
		t.Fatalf("dirt count %d, want 3", user.MinedByType[core.BlockDirt])
	}
	// Fixture rewards always trigger and always pay 3.
	if user.Balance != 9 {
		t.Fatalf("balance %d, want 9", user.Balance)
	}
	// Instant completion is below target pace, so the offset rises.
	if user.DifficultyOffset != 1 {
		t.Fatalf("difficulty offset %d, want 1", user.DifficultyOffset)
	}

	st, err := r.eng.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.State.TotalMined != 3 || st.State.PendingReward != 9 || st.State.RemainingReward != 991 {
		t.Fatalf("game state wrong: %+v", st.State)
	}
	for _, c := range claims {
		if mined, _ := r.eng.IsMined(testUser, c.Block); !mined {
			t.Fatalf("block %s not marked mined", c.Block)
		}
	}
	if n := r.countEvents(events.EventBlockMined); n != 3 {
		t.Fatalf("%d block_mined events, want 3", n)
	}
	if n := r.countEvents(events.EventDifficultyChanged); n != 1 {
		t.Fatalf("%d difficulty_changed events, want 1", n)
	}
}

func TestMineRejectsUnadmitted(t *testing.T) {
	r := newRig(t, nil, 0)
	req := &MineRequest{Claims: []BlockClaim{{Block: crypto.Hash([]byte("b")), Type: core.BlockDirt}}}
	if err := r.eng.MineBatch(testUser, req); !errors.Is(err, core.ErrNotAdmitted) {
		t.Fatalf("got %v, want ErrNotAdmitted", err)
	}
}

func TestMineEmptyBatch(t *testing.T) {
	r := newRig(t, nil, 0)
	r.admit(t, testUser)
	if err := r.eng.MineBatch(testUser, &MineRequest{}); !errors.Is(err, core.ErrBadBatchShape) {
		t.Fatalf("got %v, want ErrBadBatchShape", err)
	}
}

func TestMineTopology(t *testing.T) {
	r := newRig(t, nil, 0)
	opening := r.admit(t, testUser)

	// Neighbour never mined.
	orphan := BlockClaim{
		Block:     crypto.Hash([]byte("orphan")),
		Neighbour: crypto.Hash([]byte("nowhere")),
		Type:      core.BlockDirt,
	}
	err := r.eng.MineBatch(testUser, &MineRequest{Claims: []BlockClaim{orphan}})
	if !errors.Is(err, core.ErrNeighbourNotMined) {
		t.Fatalf("got %v, want ErrNeighbourNotMined", err)
	}

	// Re-mining the opening block.
	dup := BlockClaim{Block: opening, Neighbour: opening, Type: core.BlockDirt}
	err = r.eng.MineBatch(testUser, &MineRequest{Claims: []BlockClaim{dup}})
	if !errors.Is(err, core.ErrBlockAlreadyMined) {
		t.Fatalf("got %v, want ErrBlockAlreadyMined", err)
	}

	// Unrevealed type is never mineable.
	unknown := BlockClaim{Block: crypto.Hash([]byte("u")), Neighbour: opening, Type: core.BlockUnknown}
	err = r.eng.MineBatch(testUser, &MineRequest{Claims: []BlockClaim{unknown}})
	if !errors.Is(err, core.ErrBadBlockType) {
		t.Fatalf("got %v, want ErrBadBlockType", err)
	}
}

// TestMineBatchAtomic: a failure on any claim leaves no trace of the claims
// before it.
func TestMineBatchAtomic(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)

	claims := r.dirtClaims(t, testUser, opening, "atomic", 3)
	claims[2].Neighbour = crypto.Hash([]byte("nowhere"))

	err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims})
	if !errors.Is(err, core.ErrNeighbourNotMined) {
		t.Fatalf("got %v, want ErrNeighbourNotMined", err)
	}

	for i := 0; i < 2; i++ {
		if mined, _ := r.eng.IsMined(testUser, claims[i].Block); mined {
			t.Fatalf("claim %d survived a failed batch", i)
		}
	}
	user, err := r.eng.User(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if user.Energy != r.cfg.General.EnergyCap || user.MinedInDepth != 1 || user.Balance != 0 {
		t.Fatalf("user state mutated by failed batch: %+v", user)
	}
	if n := r.countEvents(events.EventBlockMined); n != 0 {
		t.Fatalf("%d block_mined events from a failed batch", n)
	}
}

// ---- depth quota ----

func TestQuotaGates(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)

	// 3x3 map: quota 9, opening counts as 1, so 8 more completes the depth.
	completing := r.dirtClaims(t, testUser, opening, "quota", 8)
	err := r.eng.MineBatch(testUser, &MineRequest{Claims: completing})
	if !errors.Is(err, core.ErrMustUnlockDepth) {
		t.Fatalf("completing batch via MineBatch: got %v, want ErrMustUnlockDepth", err)
	}

	short := r.dirtClaims(t, testUser, opening, "short", 3)
	err = r.eng.MineBatchAndUnlock(testUser, &UnlockRequest{
		Mine:             MineRequest{Claims: short},
		NextOpeningBlock: crypto.Hash([]byte("next-depth")),
	})
	if !errors.Is(err, core.ErrMustNotUnlockDepth) {
		t.Fatalf("short batch via unlock: got %v, want ErrMustNotUnlockDepth", err)
	}

	// Next opening colliding with a block mined in the same batch.
	err = r.eng.MineBatchAndUnlock(testUser, &UnlockRequest{
		Mine:             MineRequest{Claims: completing},
		NextOpeningBlock: completing[0].Block,
	})
	if !errors.Is(err, core.ErrDepthAlreadyOpen) {
		t.Fatalf("got %v, want ErrDepthAlreadyOpen", err)
	}
	user, _ := r.eng.User(testUser)
	if user.MinedInDepth != 1 || user.Depth != 0 {
		t.Fatal("failed unlock left partial progress")
	}

	next := crypto.Hash([]byte("next-depth"))
	err = r.eng.MineBatchAndUnlock(testUser, &UnlockRequest{
		Mine:             MineRequest{Claims: completing},
		NextOpeningBlock: next,
	})
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	user, err = r.eng.User(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if user.Depth != 1 || user.MinedInDepth != 1 {
		t.Fatalf("depth progress %d/%d, want 1/1", user.Depth, user.MinedInDepth)
	}
	if user.DepthBlockHash != next {
		t.Fatal("next opening block not recorded")
	}
	if user.Energy != r.cfg.General.EnergyCap-8 {
		t.Fatalf("energy %d, want %d", user.Energy, r.cfg.General.EnergyCap-8)
	}
	if mined, _ := r.eng.IsMined(testUser, next); !mined {
		t.Fatal("next opening block not marked mined")
	}
	if n := r.countEvents(events.EventDepthUnlocked); n != 1 {
		t.Fatalf("%d depth_unlocked events, want 1", n)
	}
}

// ---- energy ----

func TestEnergyBudget(t *testing.T) {
	r := newRig(t, func(c *core.GameConfig) { c.General.EnergyCap = 2 }, 1000)
	opening := r.admit(t, testUser)

	over := r.dirtClaims(t, testUser, opening, "over", 3)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: over}); !errors.Is(err, core.ErrInsufficientEnergy) {
		t.Fatalf("got %v, want ErrInsufficientEnergy", err)
	}

	two := r.dirtClaims(t, testUser, opening, "two", 2)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: two}); err != nil {
		t.Fatalf("mine within budget: %v", err)
	}
	user, _ := r.eng.User(testUser)
	if user.Energy != 0 {
		t.Fatalf("energy %d, want 0", user.Energy)
	}

	one := r.dirtClaims(t, testUser, two[1].Block, "one", 1)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: one}); !errors.Is(err, core.ErrInsufficientEnergy) {
		t.Fatalf("exhausted: got %v, want ErrInsufficientEnergy", err)
	}

	// Crossing a reset round refills to the cap, lazily.
	r.env.Advance(r.cfg.General.EnergyResetInterval)
	one = r.dirtClaims(t, testUser, two[1].Block, "after-reset", 1)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: one}); err != nil {
		t.Fatalf("mine after reset: %v", err)
	}
	user, _ = r.eng.User(testUser)
	if user.Energy != 1 {
		t.Fatalf("energy %d after refill and one block, want 1", user.Energy)
	}
}

// ---- difficulty controller ----

func TestDifficultyController(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)

	// Instant batch: below summed target, offset rises.
	fast := r.dirtClaims(t, testUser, opening, "fast", 2)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: fast}); err != nil {
		t.Fatal(err)
	}
	user, _ := r.eng.User(testUser)
	if user.DifficultyOffset != 1 {
		t.Fatalf("offset %d after fast batch, want 1", user.DifficultyOffset)
	}

	// Slow batch: elapsed far above target, offset falls back.
	r.env.Advance(1000)
	slow := r.dirtClaims(t, testUser, fast[1].Block, "slow", 2)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: slow}); err != nil {
		t.Fatal(err)
	}
	user, _ = r.eng.User(testUser)
	if user.DifficultyOffset != 0 {
		t.Fatalf("offset %d after slow batch, want 0", user.DifficultyOffset)
	}
	if n := r.countEvents(events.EventDifficultyChanged); n != 2 {
		t.Fatalf("%d difficulty_changed events, want 2", n)
	}
}

// ---- rewards ----

// TestRewardPoolClamp: blocks in one batch compete for the shrinking pool;
// once drained, further blocks mine fine but pay nothing.
func TestRewardPoolClamp(t *testing.T) {
	r := newRig(t, nil, 4)
	opening := r.admit(t, testUser)

	claims := r.dirtClaims(t, testUser, opening, "clamp", 3)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims}); err != nil {
		t.Fatal(err)
	}
	user, _ := r.eng.User(testUser)
	// Nominal 3 per block: first pays 3, second is clamped to 1, third to 0.
	if user.Balance != 4 {
		t.Fatalf("balance %d, want 4", user.Balance)
	}
	st, _ := r.eng.Status()
	if st.State.RemainingReward != 0 || st.State.PendingReward != 4 {
		t.Fatalf("pool partition wrong: %+v", st.State)
	}
}

func TestClaimReward(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)
	claims := r.dirtClaims(t, testUser, opening, "claim", 3)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims}); err != nil {
		t.Fatal(err)
	}

	amount, err := r.eng.ClaimReward(testUser)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 9 {
		t.Fatalf("claimed %d, want 9", amount)
	}
	if len(r.vault.Transfers) != 1 || r.vault.Transfers[0].To != testUser || r.vault.Transfers[0].Amount != 9 {
		t.Fatalf("vault transfers wrong: %+v", r.vault.Transfers)
	}

	user, _ := r.eng.User(testUser)
	if user.Balance != 0 || user.ClaimedReward != 9 {
		t.Fatalf("user ledger after claim: balance %d claimed %d", user.Balance, user.ClaimedReward)
	}
	st, _ := r.eng.Status()
	if st.State.PendingReward != 0 || st.State.ClaimedReward != 9 {
		t.Fatalf("game ledger after claim: %+v", st.State)
	}
	if n := r.countEvents(events.EventRewardClaimed); n != 1 {
		t.Fatalf("%d reward_claimed events, want 1", n)
	}

	// Nothing left: a second claim is a no-op, not an error.
	amount, err = r.eng.ClaimReward(testUser)
	if err != nil || amount != 0 {
		t.Fatalf("empty claim: got %d, %v", amount, err)
	}
	if len(r.vault.Transfers) != 1 {
		t.Fatal("empty claim reached the vault")
	}
}

// TestClaimRewardVaultFailure: a rejected transfer rolls the ledger back so
// the balance stays claimable.
func TestClaimRewardVaultFailure(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)
	claims := r.dirtClaims(t, testUser, opening, "vf", 2)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims}); err != nil {
		t.Fatal(err)
	}

	r.vault.Fail = true
	if _, err := r.eng.ClaimReward(testUser); err == nil {
		t.Fatal("claim succeeded against failing vault")
	}
	user, _ := r.eng.User(testUser)
	if user.Balance != 6 || user.ClaimedReward != 0 {
		t.Fatalf("ledger not rolled back: balance %d claimed %d", user.Balance, user.ClaimedReward)
	}
	st, _ := r.eng.Status()
	if st.State.PendingReward != 6 || st.State.ClaimedReward != 0 {
		t.Fatalf("game ledger not rolled back: %+v", st.State)
	}

	r.vault.Fail = false
	if amount, err := r.eng.ClaimReward(testUser); err != nil || amount != 6 {
		t.Fatalf("retry claim: got %d, %v", amount, err)
	}
}

// ---- pool management ----

func TestWithdraw(t *testing.T) {
	r := newRig(t, nil, 1000)

	if err := r.eng.Withdraw(testOperator, 300); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	st, _ := r.eng.Status()
	if st.State.RemainingReward != 700 || st.State.TotalReward != 700 {
		t.Fatalf("pool after withdraw: %+v", st.State)
	}
	if len(r.vault.Transfers) != 1 || r.vault.Transfers[0].Amount != 300 {
		t.Fatalf("vault transfers wrong: %+v", r.vault.Transfers)
	}

	if err := r.eng.Withdraw(testOperator, 5000); !errors.Is(err, core.ErrInsufficientPool) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientPool", err)
	}

	if err := r.eng.EmergencyWithdraw(testOperator); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	st, _ = r.eng.Status()
	if st.State.RemainingReward != 0 || st.State.TotalReward != 0 {
		t.Fatalf("pool after emergency withdraw: %+v", st.State)
	}
}

// ---- access control and pause ----

func TestAccessControl(t *testing.T) {
	r := newRig(t, nil, 0)

	if err := r.eng.SetPaused(testUser, true); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	if err := r.eng.Deposit(testUser, 1); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}

	// A granted pauser may pause but not manage the pool.
	r.eng.Access().Grant(testUser, RolePauser)
	if err := r.eng.SetPaused(testUser, true); err != nil {
		t.Fatalf("pauser pause: %v", err)
	}
	if err := r.eng.Deposit(testUser, 1); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("pauser deposit: got %v, want ErrPermissionDenied", err)
	}

	if err := r.eng.Admit(testUser2, r.admitReq(testUser2, 1)); !errors.Is(err, core.ErrPaused) {
		t.Fatalf("admit while paused: got %v, want ErrPaused", err)
	}

	r.eng.Access().Revoke(testUser, RolePauser)
	if err := r.eng.SetPaused(testUser, false); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("revoked pauser: got %v, want ErrPermissionDenied", err)
	}
	if err := r.eng.SetPaused(testOperator, false); err != nil {
		t.Fatalf("operator unpause: %v", err)
	}
	if err := r.eng.Admit(testUser2, r.admitReq(testUser2, 1)); err != nil {
		t.Fatalf("admit after unpause: %v", err)
	}
}

// ---- queries ----

func TestQueries(t *testing.T) {
	r := newRig(t, nil, 1000)
	opening := r.admit(t, testUser)

	st, err := r.eng.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Started || st.Ended || st.Paused || !st.ZKBypassed {
		t.Fatalf("status flags wrong: %+v", st)
	}
	if st.StateRoot == "" {
		t.Fatal("empty state root")
	}
	root := st.StateRoot

	claims := r.dirtClaims(t, testUser, opening, "q", 1)
	if err := r.eng.MineBatch(testUser, &MineRequest{Claims: claims}); err != nil {
		t.Fatal(err)
	}
	st, _ = r.eng.Status()
	if st.StateRoot == root {
		t.Fatal("state root unchanged after mining")
	}

	if _, err := r.eng.Pow(testUser2, core.BlockGold); !errors.Is(err, core.ErrNotAdmitted) {
		t.Fatalf("pow for stranger: got %v, want ErrNotAdmitted", err)
	}
	pi, err := r.eng.Pow(testUser, core.BlockGold)
	if err != nil {
		t.Fatal(err)
	}
	if pi.Seed == "" {
		t.Fatal("empty pow seed")
	}

	bands, err := r.eng.DefogLayout()
	if err != nil {
		t.Fatal(err)
	}
	if bands[3].Hi != r.cfg.Defog.MaxRounds {
		t.Fatalf("defog layout ends at %d, want %d", bands[3].Hi, r.cfg.Defog.MaxRounds)
	}
}
