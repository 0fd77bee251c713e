package engine

import (
	"fmt"
	"math/big"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

// DefogBand is one block type's half-open sample interval [Lo, Hi).
type DefogBand struct {
	Type core.BlockType `json:"type"`
	Lo   uint64         `json:"lo"`
	Hi   uint64         `json:"hi"`
}

// DefogBands partitions [0, maxRounds) into the four block-type bands cut by
// the three configured thresholds, each scaled by core.DefogDivisor:
// dirt gets [0, cut1), stone [cut1, cut2), gold [cut2, cut3) and diamond the
// remainder [cut3, maxRounds).
func DefogBands(p *core.DefogParams) [4]DefogBand {
	cut := func(i int) uint64 {
		return p.MaxRounds * p.Thresholds[i] / core.DefogDivisor
	}
	return [4]DefogBand{
		{core.BlockDirt, 0, cut(0)},
		{core.BlockStone, cut(0), cut(1)},
		{core.BlockGold, cut(1), cut(2)},
		{core.BlockDiamond, cut(2), p.MaxRounds},
	}
}

// checkDefog validates a commit-reveal claim that block blockHash has type t.
// The claim nonce fixes a window of RepeatRounds consecutive hash samples
//
//	H(blockHash ‖ siteKey ‖ nonce+i) mod maxRounds,  i = 0..RepeatRounds-1
//
// and every sample must land inside t's band. A spoofed rarer type therefore
// requires brute-forcing RepeatRounds consecutive matches, suppressing false
// claims exponentially in RepeatRounds. Dirt with nonce 0 is a free pass.
func checkDefog(p *core.DefogParams, siteKey []byte, blockHash string, t core.BlockType, nonce uint64) error {
	if t == core.BlockDirt && nonce == 0 {
		return nil
	}
	// The window of consecutive samples must fit below maxRounds.
	if nonce >= p.MaxRounds-p.RepeatRounds {
		return fmt.Errorf("%w: nonce %d leaves no room for %d samples below %d",
			core.ErrDefogMismatch, nonce, p.RepeatRounds, p.MaxRounds)
	}
	var band DefogBand
	for _, b := range DefogBands(p) {
		if b.Type == t {
			band = b
			break
		}
	}
	block := crypto.HexBytes(blockHash)
	rounds := new(big.Int).SetUint64(p.MaxRounds)
	for i := uint64(0); i < p.RepeatRounds; i++ {
		sample := crypto.HashInt(block, siteKey, crypto.Uint64Bytes(nonce+i))
		s := sample.Mod(sample, rounds).Uint64()
		if s < band.Lo || s >= band.Hi {
			return fmt.Errorf("%w: sample %d outside %s band", core.ErrDefogMismatch, i, t)
		}
	}
	return nil
}
