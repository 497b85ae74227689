package rla

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestChallengeBondMinimum(t *testing.T) {
	r := &Record{
		PMBatchCount:    2,
		TVBatchCount:    6,
		PMBatchVerified: []bool{false, true, true},
		TVBatchVerified: []bool{false, true, true, true, true, true, true},
	}
	bond := ChallengeBond(r)
	qt.Assert(t, bond.Cmp(ProofCostEstimate), qt.Equals, 0)
}

func TestChallengeBondScalesWithUnverified(t *testing.T) {
	r := &Record{
		PMBatchCount:    2,
		TVBatchCount:    6,
		PMBatchVerified: []bool{false, true, true},
		TVBatchVerified: []bool{false, true, true, true, true, false, false},
	}
	bond := ChallengeBond(r)
	want := new(big.Int).Mul(big.NewInt(2), ProofCostEstimate)
	qt.Assert(t, bond.Cmp(want), qt.Equals, 0)
}
