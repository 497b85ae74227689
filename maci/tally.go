package maci

import (
	"math/big"

	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
)

// TVBatchInput is one tally-votes batch's circuit-input record.
type TVBatchInput struct {
	BatchIndex             int // 1-based
	CurrentTallyCommitment *big.Int
	NewTallyCommitment     *big.Int
	CircuitInputs          map[string]*big.Int
}

// TallyResults is the final (yesVotes, noVotes) pair derived once every
// tally batch has been processed.
type TallyResults struct {
	YesVotes *big.Int
	NoVotes  *big.Int
}

// tallyState is the mutable state carried across successive calls to
// tallyVotes: a forward cursor over state leaves and the running
// per-vote-option totals.
type tallyState struct {
	leafCursor       int64
	leafCount        int64
	tallyCommitment  *big.Int
	yes, no          *big.Int
}

func newTallyState() *tallyState {
	return &tallyState{
		tallyCommitment: big.NewInt(0),
		yes:             big.NewInt(0),
		no:              big.NewInt(0),
	}
}

// hasUntalliedBallots reports whether tallyVotes has more batches to emit,
// given the state tree's committed leaf count.
func (t *tallyState) hasUntalliedBallots(leafCount int64) bool {
	t.leafCount = leafCount
	return t.leafCursor < leafCount
}

// tallyVotes consumes up to tallyBatchSize state leaves (fewer for the
// final, short batch) in forward order, accumulates their vote-option 0
// ("no") and vote-option 1 ("yes") weights into the running totals, and
// returns the batch's circuit-input record.
func (t *tallyState) tallyVotes(tree *SparseTree, leaves map[int64]map[int64]*big.Int, batchIndex, batchSize int) (TVBatchInput, error) {
	currentCommitment := t.tallyCommitment

	end := min(t.leafCursor+int64(batchSize), t.leafCount)
	for ; t.leafCursor < end; t.leafCursor++ {
		options, ok := leaves[t.leafCursor]
		if !ok {
			continue
		}
		if v, ok := options[0]; ok {
			t.no.Add(t.no, v)
		}
		if v, ok := options[1]; ok {
			t.yes.Add(t.yes, v)
		}
	}

	newCommitment, err := poseidon.MultiPoseidon(t.yes, t.no, big.NewInt(int64(batchIndex)))
	if err != nil {
		return TVBatchInput{}, err
	}
	t.tallyCommitment = newCommitment

	return TVBatchInput{
		BatchIndex:             batchIndex,
		CurrentTallyCommitment: currentCommitment,
		NewTallyCommitment:     newCommitment,
		CircuitInputs: map[string]*big.Int{
			"batchSize": big.NewInt(int64(batchSize)),
		},
	}, nil
}

// Results returns the tally accumulated so far; callers read this once the
// final batch has been emitted.
func (t *tallyState) Results() TallyResults {
	return TallyResults{YesVotes: new(big.Int).Set(t.yes), NoVotes: new(big.Int).Set(t.no)}
}
