package rla

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Clock abstracts the chain's notion of time and block height, so Ledger
// can be driven deterministically in tests instead of depending on a real
// chain's wall-clock and block production.
type Clock interface {
	Now() time.Time
	BlockNumber() uint64
	// BlockHash returns the hash of block n and whether it is available
	// yet (n must not be in the future, and must not have been pruned).
	BlockHash(n uint64) (common.Hash, bool)
}

// SampleSubmissionWindow is the time budget the coordinator has, after
// revealSample, to submit every sampled batch's proof before proofDeadline
// (§4.4's timers). The spec leaves the exact value to the deployment; this
// default gives a same-day turnaround for a modest batch count.
var SampleSubmissionWindow = 24 * time.Hour
