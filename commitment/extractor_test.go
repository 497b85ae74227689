package commitment

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tokamak-network/rla-coordinator/maci"
)

func TestExtractHappyPath(t *testing.T) {
	pm := []maci.PMBatchInput{
		{BatchIndex: 1, CurrentSbCommitment: big.NewInt(0), NewSbCommitment: big.NewInt(1)},
		{BatchIndex: 2, CurrentSbCommitment: big.NewInt(1), NewSbCommitment: big.NewInt(2)},
	}
	tv := []maci.TVBatchInput{
		{BatchIndex: 1, CurrentTallyCommitment: big.NewInt(0), NewTallyCommitment: big.NewInt(10)},
	}
	tally := maci.TallyResults{YesVotes: big.NewInt(7), NoVotes: big.NewInt(3)}

	c, err := Extract(pm, tv, tally)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, len(c.PMCommitments), qt.Equals, 3)
	qt.Assert(t, len(c.TVCommitments), qt.Equals, 2)
	qt.Assert(t, c.PMCommitments[0].Int64(), qt.Equals, int64(0))
	qt.Assert(t, c.PMCommitments[2].Int64(), qt.Equals, int64(2))
}

func TestExtractChainBroken(t *testing.T) {
	pm := []maci.PMBatchInput{
		{BatchIndex: 1, CurrentSbCommitment: big.NewInt(0), NewSbCommitment: big.NewInt(1)},
		{BatchIndex: 2, CurrentSbCommitment: big.NewInt(99), NewSbCommitment: big.NewInt(2)},
	}
	tv := []maci.TVBatchInput{
		{BatchIndex: 1, CurrentTallyCommitment: big.NewInt(0), NewTallyCommitment: big.NewInt(10)},
	}
	_, err := Extract(pm, tv, maci.TallyResults{YesVotes: big.NewInt(0), NoVotes: big.NewInt(0)})
	qt.Assert(t, err, qt.ErrorIs, ErrChainBroken)
}
