package engine

import (
	"fmt"
	"math/big"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

// powDifficulty returns the effective difficulty for one block: the type's
// configured base plus the user's controller offset.
func powDifficulty(p *core.MiningParams, t core.BlockType, offset uint64) uint64 {
	return p.BaseDifficulty[t] + offset
}

// checkPow validates that H(seed ‖ blockHash ‖ nonce) has its low
// `difficulty` bits all zero. seed is the user's rolling PoW seed, a hash
// chain the user cannot predict in advance.
func checkPow(seed, blockHash string, nonce, difficulty uint64) error {
	if difficulty == 0 {
		return nil
	}
	h := crypto.HashInt(crypto.HexBytes(seed), crypto.HexBytes(blockHash), crypto.Uint64Bytes(nonce))
	mask := new(big.Int).Lsh(big.NewInt(1), uint(difficulty))
	mask.Sub(mask, big.NewInt(1))
	if h.And(h, mask).Sign() != 0 {
		return fmt.Errorf("%w: low %d bits not zero", core.ErrPowMismatch, difficulty)
	}
	return nil
}

// reseedPow advances the user's PoW seed hash chain after an action, mixing
// in the last mined block and fresh entropy.
func reseedPow(prevSeed, lastBlock, user string, entropy []byte) string {
	return crypto.Hash(crypto.HexBytes(prevSeed), crypto.HexBytes(lastBlock), crypto.HexBytes(user), entropy)
}

// nextDifficultyOffset is the proportional pacing controller: completing a
// batch strictly faster than its summed target time raises the offset by 1,
// strictly slower lowers it by 1 (floored at 0), exactly on target leaves it
// unchanged. This pushes every user toward the target pace regardless of
// hardware.
func nextDifficultyOffset(offset uint64, elapsed, target int64) uint64 {
	switch {
	case elapsed < target:
		return offset + 1
	case elapsed > target && offset > 0:
		return offset - 1
	default:
		return offset
	}
}
