package zk

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

// weightBound caps the random linear-combination weights: each weight lies
// in [1, 1e18). A zero weight would multiply a proof out of the aggregate
// equation, letting it pass unverified, so the range is shifted by one.
var weightBound = new(big.Int).SetUint64(1e18 - 1)

// ScalarModulus returns the BN254 scalar field modulus p. Public inputs and
// flag commitments live in [0, p).
func ScalarModulus() *big.Int {
	return fr.Modulus()
}

// WeightSeed derives the domain-separated seed for batch weights from the
// wall clock, chain-level entropy and a digest of the first proof in the
// batch. Tying the seed to the proofs stops a prover from grinding proofs
// against a seed it already knows.
func WeightSeed(now int64, entropy []byte, first *Proof) []byte {
	a := first.A.Bytes()
	c := first.C.Bytes()
	digest := crypto.HashBytes(a[:], c[:])
	return crypto.HashBytes([]byte("batch-weights"), crypto.Uint64Bytes(uint64(now)), entropy, digest)
}

// weights derives n scalars in [1, 1e18) by chained hashing from seed.
func weights(seed []byte, n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		h := crypto.HashInt(seed, crypto.Uint64Bytes(uint64(i)))
		r := new(big.Int).Mod(h, weightBound)
		out[i] = r.Add(r, big.NewInt(1))
	}
	return out
}

// VerifyBatch checks n independent Groth16 proofs against vk in a single
// product-of-pairings equation:
//
//	e(alfa1·Σr_i, beta2) · Π e(-r_i·A_i, B_i) · e(Σr_i·vk_x_i, gamma2) · e(Σr_i·C_i, delta2) == 1
//
// where vk_x_i = IC[0] + Σ input_i[j]·IC[j+1] and the r_i are pseudo-random
// weights derived from seed. Soundness is no weaker than verifying each
// proof individually. Failure is binary: the error never identifies which
// proof in the batch is at fault. A single-proof batch (the unlock-depth
// case) goes through the same path.
func VerifyBatch(proofs []*Proof, inputs [][]*big.Int, vk *VerifyingKey, seed []byte) error {
	n := len(proofs)
	if n == 0 {
		return fmt.Errorf("%w: empty batch", core.ErrBadBatchShape)
	}
	if len(inputs) != n {
		return fmt.Errorf("%w: %d proofs but %d input vectors", core.ErrBadBatchShape, n, len(inputs))
	}
	mod := ScalarModulus()
	for i, in := range inputs {
		if len(in) != len(vk.IC)-1 {
			return fmt.Errorf("%w: input vector %d has %d values, key expects %d",
				core.ErrBadBatchShape, i, len(in), len(vk.IC)-1)
		}
		for j, v := range in {
			if v.Sign() < 0 || v.Cmp(mod) >= 0 {
				return fmt.Errorf("%w: input[%d][%d] outside scalar field", core.ErrBadBatchShape, i, j)
			}
		}
	}

	rs := weights(seed, n)

	sumR := new(big.Int)
	var aggVkX, aggC bn254.G1Affine
	g1s := make([]bn254.G1Affine, 0, n+3)
	g2s := make([]bn254.G2Affine, 0, n+3)

	// Placeholder for e(alfa1·Σr_i, beta2); filled once Σr_i is known.
	g1s = append(g1s, bn254.G1Affine{})
	g2s = append(g2s, vk.Beta)

	for i := 0; i < n; i++ {
		r := rs[i]
		sumR.Add(sumR, r)

		var negA bn254.G1Affine
		negA.ScalarMultiplication(&proofs[i].A, r)
		negA.Neg(&negA)
		g1s = append(g1s, negA)
		g2s = append(g2s, proofs[i].B)

		vkx := vk.IC[0]
		var term bn254.G1Affine
		for j, v := range inputs[i] {
			term.ScalarMultiplication(&vk.IC[j+1], v)
			vkx.Add(&vkx, &term)
		}
		vkx.ScalarMultiplication(&vkx, r)
		aggVkX.Add(&aggVkX, &vkx)

		var rc bn254.G1Affine
		rc.ScalarMultiplication(&proofs[i].C, r)
		aggC.Add(&aggC, &rc)
	}

	g1s[0].ScalarMultiplication(&vk.Alpha, sumR.Mod(sumR, mod))
	g1s = append(g1s, aggVkX, aggC)
	g2s = append(g2s, vk.Gamma, vk.Delta)

	ok, err := bn254.PairingCheck(g1s, g2s)
	if err != nil {
		return fmt.Errorf("%w: pairing check: %v", core.ErrProofInvalid, err)
	}
	if !ok {
		return core.ErrProofInvalid
	}
	return nil
}
