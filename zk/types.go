// Package zk verifies Groth16-style proofs over BN254 for the mining game.
//
// Curve and field arithmetic come from gnark-crypto and are consumed as a
// trusted external library: this package only composes scalar
// multiplications, point additions and one product-of-pairings check.
package zk

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// Proof is one Groth16 proof triple. Proofs are ephemeral: verified against
// a registered key and discarded, never persisted.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// VerifyingKey is a registered Groth16 verifying key. IC must have exactly
// one more point than the public-input vector length it verifies.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    []bn254.G1Affine
}

// Validate runs subgroup checks on every key point. Registering a key with
// points outside the prime-order subgroup would void the soundness of every
// later batch check.
func (vk *VerifyingKey) Validate() error {
	if len(vk.IC) < 2 {
		return fmt.Errorf("verifying key needs at least 2 IC points, got %d", len(vk.IC))
	}
	if !vk.Alpha.IsInSubGroup() {
		return fmt.Errorf("alpha not in G1 subgroup")
	}
	for name, p := range map[string]*bn254.G2Affine{
		"beta": &vk.Beta, "gamma": &vk.Gamma, "delta": &vk.Delta,
	} {
		if !p.IsInSubGroup() {
			return fmt.Errorf("%s not in G2 subgroup", name)
		}
	}
	for i := range vk.IC {
		if !vk.IC[i].IsInSubGroup() {
			return fmt.Errorf("IC[%d] not in G1 subgroup", i)
		}
	}
	return nil
}

// ProofData is the wire form of a proof: compressed points, hex-encoded.
type ProofData struct {
	A string `json:"a"` // 32-byte compressed G1
	B string `json:"b"` // 64-byte compressed G2
	C string `json:"c"` // 32-byte compressed G1
}

// Decode parses and subgroup-checks the wire form.
func (d *ProofData) Decode() (*Proof, error) {
	var p Proof
	if err := setG1(&p.A, d.A); err != nil {
		return nil, fmt.Errorf("proof A: %w", err)
	}
	if err := setG2(&p.B, d.B); err != nil {
		return nil, fmt.Errorf("proof B: %w", err)
	}
	if err := setG1(&p.C, d.C); err != nil {
		return nil, fmt.Errorf("proof C: %w", err)
	}
	return &p, nil
}

// Encode returns the wire form of p.
func (p *Proof) Encode() ProofData {
	a := p.A.Bytes()
	b := p.B.Bytes()
	c := p.C.Bytes()
	return ProofData{
		A: hex.EncodeToString(a[:]),
		B: hex.EncodeToString(b[:]),
		C: hex.EncodeToString(c[:]),
	}
}

// VerifyingKeyData is the wire form of a verifying key.
type VerifyingKeyData struct {
	Alpha string   `json:"alpha"`
	Beta  string   `json:"beta"`
	Gamma string   `json:"gamma"`
	Delta string   `json:"delta"`
	IC    []string `json:"ic"`
}

// Decode parses the wire form and validates the key.
func (d *VerifyingKeyData) Decode() (*VerifyingKey, error) {
	var vk VerifyingKey
	if err := setG1(&vk.Alpha, d.Alpha); err != nil {
		return nil, fmt.Errorf("vk alpha: %w", err)
	}
	if err := setG2(&vk.Beta, d.Beta); err != nil {
		return nil, fmt.Errorf("vk beta: %w", err)
	}
	if err := setG2(&vk.Gamma, d.Gamma); err != nil {
		return nil, fmt.Errorf("vk gamma: %w", err)
	}
	if err := setG2(&vk.Delta, d.Delta); err != nil {
		return nil, fmt.Errorf("vk delta: %w", err)
	}
	vk.IC = make([]bn254.G1Affine, len(d.IC))
	for i, s := range d.IC {
		if err := setG1(&vk.IC[i], s); err != nil {
			return nil, fmt.Errorf("vk IC[%d]: %w", i, err)
		}
	}
	if err := vk.Validate(); err != nil {
		return nil, err
	}
	return &vk, nil
}

// Encode returns the wire form of vk.
func (vk *VerifyingKey) Encode() VerifyingKeyData {
	alpha := vk.Alpha.Bytes()
	beta := vk.Beta.Bytes()
	gamma := vk.Gamma.Bytes()
	delta := vk.Delta.Bytes()
	d := VerifyingKeyData{
		Alpha: hex.EncodeToString(alpha[:]),
		Beta:  hex.EncodeToString(beta[:]),
		Gamma: hex.EncodeToString(gamma[:]),
		Delta: hex.EncodeToString(delta[:]),
		IC:    make([]string, len(vk.IC)),
	}
	for i := range vk.IC {
		b := vk.IC[i].Bytes()
		d.IC[i] = hex.EncodeToString(b[:])
	}
	return d
}

// ParseInputs converts hex-encoded public inputs to field-range-checked
// big integers. Values at or above the scalar field modulus are rejected,
// not silently reduced: a reduced alias would verify under a different
// statement than the one the circuit proved.
func ParseInputs(raw []string) ([]*big.Int, error) {
	mod := ScalarModulus()
	out := make([]*big.Int, len(raw))
	for i, s := range raw {
		v, ok := new(big.Int).SetString(s, 16)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("public input %d: bad hex %q", i, s)
		}
		if v.Cmp(mod) >= 0 {
			return nil, fmt.Errorf("public input %d: %s >= scalar field modulus", i, s)
		}
		out[i] = v
	}
	return out, nil
}

func setG1(p *bn254.G1Affine, hexStr string) error {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return fmt.Errorf("bad hex: %w", err)
	}
	if _, err := p.SetBytes(b); err != nil {
		return err
	}
	return nil
}

func setG2(p *bn254.G2Affine, hexStr string) error {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return fmt.Errorf("bad hex: %w", err)
	}
	if _, err := p.SetBytes(b); err != nil {
		return err
	}
	return nil
}
