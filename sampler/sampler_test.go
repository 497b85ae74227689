package sampler

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ethereum/go-ethereum/common"
)

// TestCountsS1 reproduces spec scenario S1: 10 voters, yes=7 no=3,
// pmBatchCount=2, tvBatchCount=6, tvBatchSize=2 (so
// votesToFlip=3, tvCorrupt=ceil(3/2)=2, tvSamples=ceil(2996*6/(2*1000))=9
// capped at tvBatchCount-1=5).
func TestCountsS1(t *testing.T) {
	counts, err := CountsFor(DefaultConfidenceX1000, 2, 6, 2, 7, 3)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, counts.PMSamples, qt.Equals, 2)
	qt.Assert(t, counts.TVSamples, qt.Equals, 5)
}

// TestCountsS5 reproduces scenario S5: a zero-margin election samples
// every batch on both chains.
func TestCountsS5(t *testing.T) {
	counts, err := CountsFor(DefaultConfidenceX1000, 2, 6, 2, 5, 5)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, counts.PMSamples, qt.Equals, 2)
	qt.Assert(t, counts.TVSamples, qt.Equals, 6)
}

func TestCountsNoVotes(t *testing.T) {
	_, err := CountsFor(DefaultConfidenceX1000, 2, 6, 2, 0, 0)
	qt.Assert(t, err, qt.ErrorIs, ErrNoVotes)
}

// TestSampleDeterministic reproduces scenario S6: two runs over identical
// inputs produce byte-identical, sorted, duplicate-free selections.
func TestSampleDeterministic(t *testing.T) {
	h := common.HexToHash("0xabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabc")

	s1, err := Sample(h, DefaultConfidenceX1000, 2, 6, 2, 7, 3)
	qt.Assert(t, err, qt.IsNil)
	s2, err := Sample(h, DefaultConfidenceX1000, 2, 6, 2, 7, 3)
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, s1.PMIndices, qt.DeepEquals, s2.PMIndices)
	qt.Assert(t, s1.TVIndices, qt.DeepEquals, s2.TVIndices)

	qt.Assert(t, len(s1.PMIndices), qt.Equals, 2)
	qt.Assert(t, len(s1.TVIndices), qt.Equals, 5)

	seen := map[int]bool{}
	for _, idx := range s1.TVIndices {
		qt.Assert(t, seen[idx], qt.IsFalse)
		seen[idx] = true
		qt.Assert(t, idx >= 1 && idx <= 6, qt.IsTrue)
	}
	for i := 1; i < len(s1.TVIndices); i++ {
		qt.Assert(t, s1.TVIndices[i] > s1.TVIndices[i-1], qt.IsTrue)
	}
}

func TestSampleExhaustiveOnZeroMargin(t *testing.T) {
	h := common.HexToHash("0x01")
	s, err := Sample(h, DefaultConfidenceX1000, 2, 6, 2, 5, 5)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, len(s.PMIndices), qt.Equals, 2)
	qt.Assert(t, len(s.TVIndices), qt.Equals, 6)
}
