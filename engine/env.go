// Package engine implements the authoritative mining game rules: admission,
// batched proof gating, the defog and proof-of-work fallbacks, per-user
// progress, and the multi-window reward ledger.
package engine

import (
	"crypto/rand"
	"time"
)

// Env supplies wall-clock time and environment entropy to the engine. All
// pseudo-randomness (batch weights, PoW seeds, reward draws) flows through
// it, so tests can pin both and replay every decision deterministically.
//
// The default implementation is not secure against a privileged observer of
// the host; that is an accepted weakness given low per-action stakes.
type Env interface {
	// Now returns the current unix time in seconds.
	Now() int64
	// Entropy returns 32 bytes of fresh environment entropy.
	Entropy() []byte
}

type stdEnv struct{}

// StdEnv returns the production environment: system clock and crypto/rand.
func StdEnv() Env { return stdEnv{} }

func (stdEnv) Now() int64 { return time.Now().Unix() }

func (stdEnv) Entropy() []byte {
	b := make([]byte, 32)
	// rand.Read only fails if the OS entropy source is broken; a zeroed
	// fallback keeps the engine deterministic rather than crashing.
	_, _ = rand.Read(b)
	return b
}

// Vault is the external token custodian. The engine mutates its ledger
// first and calls the vault second, so a reentrant vault can never observe
// a state where tokens are promised twice.
type Vault interface {
	Transfer(to string, amount uint64) error
}

// NopVault discards transfers; useful for dry runs and tests that only
// exercise ledger bookkeeping.
type NopVault struct{}

func (NopVault) Transfer(string, uint64) error { return nil }
