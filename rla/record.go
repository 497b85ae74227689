package rla

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AuditID is the monotonic identifier the chain assigns to an audit
// record at commit time.
type AuditID uint64

// PollHandle opaquely identifies the poll an audit record claims results
// for; the coordinator treats it as whatever value its chain client uses.
type PollHandle any

// Record is the on-chain audit record (§3), held in full by D and
// consulted (read-only, never cached across transitions per §9) by the
// orchestrator.
type Record struct {
	AuditID     AuditID
	Coordinator common.Address
	Poll        PollHandle
	StakeAmount *big.Int

	PMCommitments []*big.Int
	TVCommitments []*big.Int

	YesVotes, NoVotes         *big.Int
	PMBatchCount, TVBatchCount int
	PMBatchSize, TVBatchSize   int

	CommitHash  common.Hash
	CommitBlock uint64

	PMSampleCount, TVSampleCount int
	// PMSelectedIndices / TVSelectedIndices are 1-based batch indices,
	// sorted ascending (§4.5).
	PMSelectedIndices, TVSelectedIndices []int

	// PMBatchVerified / TVBatchVerified are indexed 1-based: index 0 is
	// always unused and false, so PMBatchVerified[i] answers "is batch i
	// verified" directly without an off-by-one.
	PMBatchVerified, TVBatchVerified []bool

	PMProofsVerified, TVProofsVerified         int
	FullPMProofsVerified, FullTVProofsVerified int

	Phase Phase

	ProofDeadline time.Time

	TentativeTimestamp time.Time
	ChallengeDeadline  time.Time

	Challenger    common.Address
	ChallengeBond *big.Int
}

// newVerifiedSlice returns a 1-based bool slice of size n+1, all false.
func newVerifiedSlice(n int) []bool {
	return make([]bool, n+1)
}

// allVerified reports whether every 1-based slot 1..n is true.
func allVerified(v []bool, n int) bool {
	if len(v) < n+1 {
		return false
	}
	for i := 1; i <= n; i++ {
		if !v[i] {
			return false
		}
	}
	return true
}

// unverifiedCount returns how many of slots 1..n are still false.
func unverifiedCount(v []bool, n int) int {
	count := 0
	for i := 1; i <= n; i++ {
		if i >= len(v) || !v[i] {
			count++
		}
	}
	return count
}

