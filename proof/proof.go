// Package proof implements component C: converting Groth16 proofs between
// the SnarkJS/circom JSON shape and the fixed 8-field-element wire form the
// audit contract expects, and invoking the external prover.
package proof

import (
	"fmt"
	"math/big"

	"github.com/tokamak-network/rla-coordinator/util/circomgnark"
)

// Proof is a Groth16 proof in circom's native JSON shape: A and C are G1
// points (x, y); B is a G2 point, each coordinate itself a pair.
type Proof struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

// PublicSignals are the proof's public inputs, as field elements. §4.3
// requires the marshaller to assemble these itself from the audit record
// rather than trust the proof file's own copy.
type PublicSignals []*big.Int

// Wire is the fixed 8-tuple the audit contract's submit*Proof calls take:
// [A.x, A.y, B[0][1], B[0][0], B[1][1], B[1][0], C.x, C.y]. Note the swap
// of each B coordinate pair relative to circom's native ordering — this
// reflects the on-chain pairing library's expected ordering (§4.3).
type Wire [8]*big.Int

// ToWire converts a Proof to its on-chain wire form, performing the B
// coordinate swap exactly once.
func ToWire(p *Proof) Wire {
	return Wire{
		p.A[0], p.A[1],
		p.B[0][1], p.B[0][0],
		p.B[1][1], p.B[1][0],
		p.C[0], p.C[1],
	}
}

// FromWire is the inverse of ToWire: it undoes the B coordinate swap
// exactly once, recovering circom's native proof shape.
func FromWire(w Wire) *Proof {
	return &Proof{
		A: [2]*big.Int{w[0], w[1]},
		B: [2][2]*big.Int{
			{w[3], w[2]},
			{w[5], w[4]},
		},
		C: [2]*big.Int{w[6], w[7]},
	}
}

// FromCircom converts a parsed circom-JSON proof (decimal-string field
// elements) into the package's Proof shape.
func FromCircom(cp *circomgnark.CircomProof) (*Proof, error) {
	ax, err := parseDecimal(cp.PiA[0])
	if err != nil {
		return nil, err
	}
	ay, err := parseDecimal(cp.PiA[1])
	if err != nil {
		return nil, err
	}
	if len(cp.PiB) < 2 || len(cp.PiB[0]) < 2 || len(cp.PiB[1]) < 2 {
		return nil, fmt.Errorf("proof: malformed pi_b")
	}
	b00, err := parseDecimal(cp.PiB[0][0])
	if err != nil {
		return nil, err
	}
	b01, err := parseDecimal(cp.PiB[0][1])
	if err != nil {
		return nil, err
	}
	b10, err := parseDecimal(cp.PiB[1][0])
	if err != nil {
		return nil, err
	}
	b11, err := parseDecimal(cp.PiB[1][1])
	if err != nil {
		return nil, err
	}
	cx, err := parseDecimal(cp.PiC[0])
	if err != nil {
		return nil, err
	}
	cy, err := parseDecimal(cp.PiC[1])
	if err != nil {
		return nil, err
	}
	return &Proof{
		A: [2]*big.Int{ax, ay},
		B: [2][2]*big.Int{{b00, b01}, {b10, b11}},
		C: [2]*big.Int{cx, cy},
	}, nil
}

// ToCircom converts the proof back into circom-JSON shape, for bundling
// into a proof file alongside its original circuit inputs.
func (p *Proof) ToCircom() *circomgnark.CircomProof {
	return &circomgnark.CircomProof{
		PiA:      []string{p.A[0].String(), p.A[1].String(), "1"},
		PiB:      [][]string{{p.B[0][0].String(), p.B[0][1].String()}, {p.B[1][0].String(), p.B[1][1].String()}, {"1", "0"}},
		PiC:      []string{p.C[0].String(), p.C[1].String(), "1"},
		Protocol: "groth16",
	}
}

func parseDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("proof: invalid field element %q", s)
	}
	return v, nil
}

// ParsePublicSignals converts decimal-string public signals into field
// elements.
func ParsePublicSignals(raw []string) (PublicSignals, error) {
	out := make(PublicSignals, len(raw))
	for i, s := range raw {
		v, err := parseDecimal(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
