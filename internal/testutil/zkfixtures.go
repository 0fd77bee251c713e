package testutil

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MatrixLabsTech/crystal-caves-zk/zk"
)

// ZKFixture builds verifying keys and satisfying proofs from known trapdoor
// scalars, so verifier tests exercise real pairings without running a
// prover. With IC[j] = ic_j·G1, Alpha = α·G1, Beta = β·G2, Gamma = γ·G2 and
// Delta = δ·G2, the Groth16 equation
//
//	e(A,B) = e(α,β)·e(vk_x,γ)·e(C,δ)
//
// reduces to a·b = α·β + x·γ + c·δ over the scalar field, which Prove
// solves for c.
type ZKFixture struct {
	alpha, beta, gamma, delta fr.Element
	ic                        []fr.Element
	vk                        *zk.VerifyingKey
	next                      uint64 // distinct (a,b) per proof
}

// NewZKFixture creates a fixture whose key verifies input vectors of length
// nInputs. Scalars are fixed, so fixtures are deterministic across runs.
func NewZKFixture(nInputs int) *ZKFixture {
	f := &ZKFixture{next: 1000}
	f.alpha.SetUint64(3)
	f.beta.SetUint64(5)
	f.gamma.SetUint64(7)
	f.delta.SetUint64(11)
	f.ic = make([]fr.Element, nInputs+1)
	for j := range f.ic {
		f.ic[j].SetUint64(uint64(13 + 2*j))
	}

	_, _, g1, g2 := bn254.Generators()
	vk := &zk.VerifyingKey{IC: make([]bn254.G1Affine, len(f.ic))}
	vk.Alpha.ScalarMultiplication(&g1, f.alpha.BigInt(new(big.Int)))
	vk.Beta.ScalarMultiplication(&g2, f.beta.BigInt(new(big.Int)))
	vk.Gamma.ScalarMultiplication(&g2, f.gamma.BigInt(new(big.Int)))
	vk.Delta.ScalarMultiplication(&g2, f.delta.BigInt(new(big.Int)))
	for j := range f.ic {
		vk.IC[j].ScalarMultiplication(&g1, f.ic[j].BigInt(new(big.Int)))
	}
	f.vk = vk
	return f
}

// VK returns the fixture's verifying key.
func (f *ZKFixture) VK() *zk.VerifyingKey { return f.vk }

// Prove returns a proof satisfying the key for the given public inputs.
func (f *ZKFixture) Prove(inputs []*big.Int) *zk.Proof {
	var a, b fr.Element
	a.SetUint64(f.next)
	b.SetUint64(f.next + 1)
	f.next += 2

	// x = ic_0 + Σ input_j·ic_{j+1}
	x := f.ic[0]
	var u, term fr.Element
	for j, v := range inputs {
		u.SetBigInt(v)
		term.Mul(&u, &f.ic[j+1])
		x.Add(&x, &term)
	}

	// c = (a·b − α·β − x·γ) / δ
	var c, t fr.Element
	c.Mul(&a, &b)
	t.Mul(&f.alpha, &f.beta)
	c.Sub(&c, &t)
	t.Mul(&x, &f.gamma)
	c.Sub(&c, &t)
	t.Inverse(&f.delta)
	c.Mul(&c, &t)

	_, _, g1, g2 := bn254.Generators()
	var p zk.Proof
	p.A.ScalarMultiplication(&g1, a.BigInt(new(big.Int)))
	p.B.ScalarMultiplication(&g2, b.BigInt(new(big.Int)))
	p.C.ScalarMultiplication(&g1, c.BigInt(new(big.Int)))
	return &p
}

// ProveData returns the wire form of Prove.
func (f *ZKFixture) ProveData(inputs []*big.Int) zk.ProofData {
	return f.Prove(inputs).Encode()
}

// InputHex converts an input vector to the hex wire encoding.
func InputHex(inputs []*big.Int) []string {
	out := make([]string, len(inputs))
	for i, v := range inputs {
		out[i] = v.Text(16)
	}
	return out
}
