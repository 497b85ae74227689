package types

import "strconv"

// BatchID identifies a batch of ballots (process-message batch) or a batch
// of tally results (tally-verifier batch) submitted for Groth16 proving.
// Batches are numbered sequentially per process, starting at 0.
type BatchID uint64

// String renders the batch ID in decimal.
func (b BatchID) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// Uint64 returns the batch ID as a plain uint64.
func (b BatchID) Uint64() uint64 {
	return uint64(b)
}
