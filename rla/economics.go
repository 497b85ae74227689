package rla

import (
	"math/big"
	"time"
)

// Protocol constants (§4.4, §6). All are configurable defaults; a running
// coordinator reads the authoritative values from the chain
// (coordinatorStake(), CHALLENGE_PERIOD()) rather than hardcoding them,
// but these are the values the reference deployment uses.
var (
	// CoordinatorStake is 0.1 ETH, in wei.
	CoordinatorStake = weiFromEth(1, 10) // 0.1 ETH

	// ProofCostEstimate is 0.001 ETH, in wei.
	ProofCostEstimate = weiFromEth(1, 1000) // 0.001 ETH

	// ChallengePeriod is the window after Tentative during which a
	// challenger may act.
	ChallengePeriod = 7 * 24 * time.Hour

	// ChallengeResponseDeadline is the window the coordinator has to
	// respond to a challenge.
	ChallengeResponseDeadline = 3 * 24 * time.Hour
)

// BlockHashDelay (Δ) is the number of blocks past commitBlock the reveal
// waits for, so blockhash(commitBlock+Δ) is stable (§4.4, §6, §9).
const BlockHashDelay = 1

// weiFromEth returns numerator/denominator ETH, in wei (10^18 wei/ETH).
func weiFromEth(numerator, denominator int64) *big.Int {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	wei.Mul(wei, big.NewInt(numerator))
	wei.Div(wei, big.NewInt(denominator))
	return wei
}

// ChallengeBond computes the bond a challenger must post against record,
// per §4.4's economics rule: PROOF_COST_ESTIMATE × (unverified PM +
// unverified TV) at challenge time, where "unverified" excludes batches
// already verified during the sampled phase. If the product is zero
// (every batch already verified in-sample), the minimum bond is
// PROOF_COST_ESTIMATE.
func ChallengeBond(record *Record) *big.Int {
	unverifiedPM := int64(unverifiedCount(record.PMBatchVerified, record.PMBatchCount))
	unverifiedTV := int64(unverifiedCount(record.TVBatchVerified, record.TVBatchCount))
	total := unverifiedPM + unverifiedTV
	if total == 0 {
		return new(big.Int).Set(ProofCostEstimate)
	}
	return new(big.Int).Mul(ProofCostEstimate, big.NewInt(total))
}
