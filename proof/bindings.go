package proof

import "math/big"

// BindPM assembles the public-input tuple a process-messages proof for
// batch index i must verify against: the claimed (previous, new) Sb
// commitments taken from the audit record, the batch index, and any
// circuit-specific extras (e.g. a chain-of-hashes root of the encrypted
// message block). Per §4.3 this binding must be built from the audit
// record, never read back out of the proof file, so that a proof cannot
// bind itself to different commitments than the ones on chain.
func BindPM(prevCommitment, newCommitment *big.Int, batchIndex int, extra ...*big.Int) PublicSignals {
	sig := PublicSignals{prevCommitment, newCommitment, big.NewInt(int64(batchIndex))}
	return append(sig, extra...)
}

// BindTV assembles the public-input tuple a tally-votes proof for batch
// index i must verify against: the claimed (previous, new) tally
// commitments, the batch index, and any circuit-specific extras the caller
// passes (e.g. the tally's tree depths).
func BindTV(prevCommitment, newCommitment *big.Int, batchIndex int, extra ...*big.Int) PublicSignals {
	sig := PublicSignals{prevCommitment, newCommitment, big.NewInt(int64(batchIndex))}
	return append(sig, extra...)
}

// Equal reports whether two public-signal tuples are identical, field
// element by field element.
func (s PublicSignals) Equal(other PublicSignals) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Cmp(other[i]) != 0 {
			return false
		}
	}
	return true
}
