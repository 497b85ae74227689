// Package commitment implements component B: turning the per-batch circuit
// inputs the replay engine produces into the two commitment chains and the
// final tally that the RLA state machine commits on-chain.
package commitment

import (
	"fmt"
	"math/big"

	"github.com/tokamak-network/rla-coordinator/maci"
)

// ErrChainBroken is returned when consecutive batch inputs do not chain:
// one batch's "current" commitment must equal the previous batch's "new"
// commitment. This is fatal per §4.2 — the orchestrator must not commit
// on-chain on a broken chain.
var ErrChainBroken = fmt.Errorf("commitment: chain broken")

// Commitments holds the two field-element commitment chains extracted from
// a replay, ready to submit via D's commitResult.
type Commitments struct {
	// PMCommitments has length pmBatchCount+1: PMCommitments[0] is the
	// initial Sb commitment, PMCommitments[k] is the Sb commitment after
	// batch k.
	PMCommitments []*big.Int
	// TVCommitments has length tvBatchCount+1: TVCommitments[0] is the
	// initial (zero) tally commitment.
	TVCommitments []*big.Int
	Tally         maci.TallyResults
}

// Extract builds the PM and TV commitment chains from the batch inputs a
// replay produced, checking the §4.2 chaining law at every step. A
// violation is reported as ErrChainBroken and extraction stops immediately
// — the caller must not proceed to commitResult.
func Extract(pmBatchInputs []maci.PMBatchInput, tvBatchInputs []maci.TVBatchInput, tally maci.TallyResults) (*Commitments, error) {
	pmCommitments, err := extractPM(pmBatchInputs)
	if err != nil {
		return nil, err
	}
	tvCommitments, err := extractTV(tvBatchInputs)
	if err != nil {
		return nil, err
	}
	return &Commitments{
		PMCommitments: pmCommitments,
		TVCommitments: tvCommitments,
		Tally:         tally,
	}, nil
}

func extractPM(inputs []maci.PMBatchInput) ([]*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("commitment: no process-messages batches to extract")
	}
	chain := make([]*big.Int, 0, len(inputs)+1)
	chain = append(chain, inputs[0].CurrentSbCommitment)
	for k, in := range inputs {
		if k > 0 && in.CurrentSbCommitment.Cmp(inputs[k-1].NewSbCommitment) != 0 {
			return nil, fmt.Errorf("%w: pm batch %d currentSbCommitment does not match batch %d newSbCommitment",
				ErrChainBroken, in.BatchIndex, inputs[k-1].BatchIndex)
		}
		chain = append(chain, in.NewSbCommitment)
	}
	return chain, nil
}

func extractTV(inputs []maci.TVBatchInput) ([]*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("commitment: no tally batches to extract")
	}
	chain := make([]*big.Int, 0, len(inputs)+1)
	chain = append(chain, inputs[0].CurrentTallyCommitment)
	for k, in := range inputs {
		if k > 0 && in.CurrentTallyCommitment.Cmp(inputs[k-1].NewTallyCommitment) != 0 {
			return nil, fmt.Errorf("%w: tv batch %d currentTallyCommitment does not match batch %d newTallyCommitment",
				ErrChainBroken, in.BatchIndex, inputs[k-1].BatchIndex)
		}
		chain = append(chain, in.NewTallyCommitment)
	}
	return chain, nil
}
