package storage

import (
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestCommitmentsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := LoadCommitments(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsFalse)

	want := &Commitments{
		PMCommitments: []*big.Int{big.NewInt(0), big.NewInt(11), big.NewInt(22)},
		TVCommitments: []*big.Int{big.NewInt(0), big.NewInt(33)},
		PMBatchCount:  2,
		TVBatchCount:  1,
		YesVotes:      big.NewInt(7),
		NoVotes:       big.NewInt(3),
	}
	qt.Assert(t, SaveCommitments(dir, want), qt.IsNil)

	got, ok, err := LoadCommitments(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got.PMBatchCount, qt.Equals, want.PMBatchCount)
	qt.Assert(t, got.YesVotes.Cmp(want.YesVotes), qt.Equals, 0)
	qt.Assert(t, len(got.PMCommitments), qt.Equals, len(want.PMCommitments))
	for i := range want.PMCommitments {
		qt.Assert(t, got.PMCommitments[i].Cmp(want.PMCommitments[i]), qt.Equals, 0)
	}
}

func TestStatusRoundTripAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC().Truncate(time.Second)

	s1 := &Status{Status: "sampled", ProveStatus: "proving", Proved: 1, TotalToProve: 5, UpdatedAt: now}
	qt.Assert(t, SaveStatus(dir, s1), qt.IsNil)

	s2 := &Status{Status: "finalized", ProveStatus: "done", Proved: 5, TotalToProve: 5, UpdatedAt: now.Add(time.Minute)}
	qt.Assert(t, SaveStatus(dir, s2), qt.IsNil)

	got, ok, err := LoadStatus(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got.Status, qt.Equals, "finalized")
	qt.Assert(t, got.Proved, qt.Equals, 5)
}

func TestProveBatchesFromSelectionConvertsToZeroBased(t *testing.T) {
	pb := ProveBatchesFromSelection([]int{1, 2, 5}, []int{3})
	qt.Assert(t, pb.PM, qt.DeepEquals, []int{0, 1, 4})
	qt.Assert(t, pb.TV, qt.DeepEquals, []int{2})
}

func TestTallyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &Tally{YesVotes: big.NewInt(7), NoVotes: big.NewInt(3)}
	qt.Assert(t, SaveTally(dir, want), qt.IsNil)

	got, ok, err := LoadTally(dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got.YesVotes.Cmp(want.YesVotes), qt.Equals, 0)
	qt.Assert(t, got.NoVotes.Cmp(want.NoVotes), qt.Equals, 0)
}
