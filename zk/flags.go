package zk

import (
	"fmt"
	"math/big"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

// Public-input vector layout. Every mine and unlock proof carries the same
// fixed-length vector: the block it opens or reveals, the claimed type, and
// four flag commitments the circuit computed from its public context.
const (
	InputBlockHash = 0
	InputBlockType = 1
	InputFlagSizeX = 2
	InputFlagSizeY = 3
	InputFlagUser  = 4
	InputFlagDepth = 5
	InputLen       = 6
)

// ExpectedFlags recomputes the four flag values the circuit must have
// embedded for the given context:
//
//	flags[0] = sizeX mod p
//	flags[1] = sizeY mod p
//	flags[2] = H(user ‖ siteKey ‖ depth) mod p
//	flags[3] = H(siteKey ‖ depth) mod p
//
// user is the hex address; siteKey is the site-wide hash key fixed at game
// initialization. depth is the depth the proof targets: the current depth
// for mine proofs, the next depth for unlock proofs.
func ExpectedFlags(sizeX, sizeY uint64, user string, siteKey []byte, depth uint64) [4]*big.Int {
	mod := ScalarModulus()
	d := crypto.Uint64Bytes(depth)
	var f [4]*big.Int
	f[0] = new(big.Int).SetUint64(sizeX)
	f[0].Mod(f[0], mod)
	f[1] = new(big.Int).SetUint64(sizeY)
	f[1].Mod(f[1], mod)
	f[2] = new(big.Int).Mod(crypto.HashInt(crypto.HexBytes(user), siteKey, d), mod)
	f[3] = new(big.Int).Mod(crypto.HashInt(siteKey, d), mod)
	return f
}

// CheckFlags requires bit-exact equality between the flag positions of one
// proof's public inputs and the independently recomputed values. This binds
// an otherwise-anonymous proof to a specific user and depth: a proof minted
// for user A at depth D verifies for no other (user, depth) pair.
func CheckFlags(input []*big.Int, sizeX, sizeY uint64, user string, siteKey []byte, depth uint64) error {
	if len(input) != InputLen {
		return fmt.Errorf("%w: input vector has %d values, want %d", core.ErrBadBatchShape, len(input), InputLen)
	}
	want := ExpectedFlags(sizeX, sizeY, user, siteKey, depth)
	for i, w := range want {
		if input[InputFlagSizeX+i].Cmp(w) != 0 {
			return fmt.Errorf("%w: flag %d", core.ErrFlagsMismatch, i)
		}
	}
	return nil
}
