package types

import "math/big"

// BabyJubJubSubOrder is the scalar field used for all commitments, proof
// coordinates and circuit public signals handled by the coordinator: the
// 254-bit prime order of the BN254-pairing-friendly curve's scalar field.
var BabyJubJubSubOrder, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// BatchType distinguishes the two MACI tallying stages, each of which
// produces its own commitment chain and its own stream of Groth16 proofs.
type BatchType int

const (
	// BatchTypePM identifies a process-messages batch.
	BatchTypePM BatchType = iota
	// BatchTypeTV identifies a tally-votes batch.
	BatchTypeTV
)

func (t BatchType) String() string {
	switch t {
	case BatchTypePM:
		return "pm"
	case BatchTypeTV:
		return "tv"
	default:
		return "unknown"
	}
}
