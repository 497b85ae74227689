package rla

import (
	"context"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/rla-coordinator/proof"
)

// fakeClock is a fully controllable Clock for deterministic tests.
type fakeClock struct {
	now   time.Time
	block uint64
}

func (c *fakeClock) Now() time.Time       { return c.now }
func (c *fakeClock) BlockNumber() uint64  { return c.block }
func (c *fakeClock) BlockHash(n uint64) (common.Hash, bool) {
	if n > c.block {
		return common.Hash{}, false
	}
	return common.BigToHash(big.NewInt(int64(n) + 1000)), true
}

func acceptAll(proof.PublicSignals, proof.Wire) bool { return true }

func fakeSample(pmCount, tvCount int) Sampler {
	return func(h common.Hash, pmBatchCount, tvBatchCount, tvBatchSize int, yes, no int64) (Selection, error) {
		pm := make([]int, 0, pmCount)
		for i := 1; i <= pmCount; i++ {
			pm = append(pm, i)
		}
		tv := make([]int, 0, tvCount)
		for i := 1; i <= tvCount; i++ {
			tv = append(tv, i)
		}
		return Selection{PMIndices: pm, TVIndices: tv}, nil
	}
}

func commitS1(t *testing.T, clock *fakeClock, l *Ledger) AuditID {
	t.Helper()
	ctx := context.Background()
	pm := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(2)}
	tv := []*big.Int{big.NewInt(0), big.NewInt(10), big.NewInt(20), big.NewInt(30), big.NewInt(40), big.NewInt(50), big.NewInt(60)}
	id, err := l.CommitResult(ctx, common.HexToAddress("0xC0"), "poll-1", pm, tv, big.NewInt(7), big.NewInt(3), 5, 5, CoordinatorStake)
	qt.Assert(t, err, qt.IsNil)
	return id
}

func TestHappyPathS1(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0), block: 100}
	l := NewLedger(clock, acceptAll, fakeSample(2, 6))

	id := commitS1(t, clock, l)

	sel, err := l.RevealSample(ctx, id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, len(sel.PMIndices), qt.Equals, 2)
	qt.Assert(t, len(sel.TVIndices), qt.Equals, 6)

	for slot := range sel.PMIndices {
		qt.Assert(t, l.SubmitPmProof(ctx, id, slot, proof.Wire{}), qt.IsNil)
	}
	for slot := range sel.TVIndices {
		qt.Assert(t, l.SubmitTvProof(ctx, id, slot, proof.Wire{}), qt.IsNil)
	}

	qt.Assert(t, l.FinalizeSampling(ctx, id), qt.IsNil)

	rec, err := l.PollAudits(ctx, id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseTentative)

	// Finalize before the challenge period elapses must fail.
	err = l.Finalize(ctx, id)
	qt.Assert(t, err, qt.ErrorIs, ErrPreconditionViolated)

	clock.now = clock.now.Add(ChallengePeriod + time.Second)
	qt.Assert(t, l.Finalize(ctx, id), qt.IsNil)

	rec, _ = l.PollAudits(ctx, id)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseFinalized)
}

func TestChallengeAndRespond(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0), block: 100}
	l := NewLedger(clock, acceptAll, fakeSample(2, 5))

	id := commitS1(t, clock, l)
	sel, err := l.RevealSample(ctx, id)
	qt.Assert(t, err, qt.IsNil)
	for slot := range sel.PMIndices {
		qt.Assert(t, l.SubmitPmProof(ctx, id, slot, proof.Wire{}), qt.IsNil)
	}
	for slot := range sel.TVIndices {
		qt.Assert(t, l.SubmitTvProof(ctx, id, slot, proof.Wire{}), qt.IsNil)
	}
	qt.Assert(t, l.FinalizeSampling(ctx, id), qt.IsNil)

	challenger := common.HexToAddress("0xBAD")
	bond, err := l.GetChallengeBondAmount(ctx, id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, l.Challenge(ctx, id, challenger, bond), qt.IsNil)

	rec, _ := l.PollAudits(ctx, id)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseChallenged)

	// remaining unverified TV batch is 6
	qt.Assert(t, l.SubmitTvProofForChallenge(ctx, id, 6, proof.Wire{}), qt.IsNil)
	qt.Assert(t, l.FinalizeChallengeResponse(ctx, id), qt.IsNil)

	rec, _ = l.PollAudits(ctx, id)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseFinalized)
}

func TestChallengeInvalidProofRejectsImmediately(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0), block: 100}
	rejectAll := func(proof.PublicSignals, proof.Wire) bool { return false }
	l := NewLedger(clock, acceptAll, fakeSample(2, 5))

	id := commitS1(t, clock, l)
	sel, _ := l.RevealSample(ctx, id)
	for slot := range sel.PMIndices {
		_ = l.SubmitPmProof(ctx, id, slot, proof.Wire{})
	}
	for slot := range sel.TVIndices {
		_ = l.SubmitTvProof(ctx, id, slot, proof.Wire{})
	}
	_ = l.FinalizeSampling(ctx, id)

	bond, _ := l.GetChallengeBondAmount(ctx, id)
	_ = l.Challenge(ctx, id, common.HexToAddress("0xBAD"), bond)

	l.verify = rejectAll
	err := l.SubmitTvProofForChallenge(ctx, id, 6, proof.Wire{})
	qt.Assert(t, err, qt.IsNil) // does not surface ProofInvalid during challenge

	rec, _ := l.PollAudits(ctx, id)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseRejected)
}

func TestClaimChallengeTimeout(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0), block: 100}
	l := NewLedger(clock, acceptAll, fakeSample(2, 5))

	id := commitS1(t, clock, l)
	sel, _ := l.RevealSample(ctx, id)
	for slot := range sel.PMIndices {
		_ = l.SubmitPmProof(ctx, id, slot, proof.Wire{})
	}
	for slot := range sel.TVIndices {
		_ = l.SubmitTvProof(ctx, id, slot, proof.Wire{})
	}
	_ = l.FinalizeSampling(ctx, id)

	bond, _ := l.GetChallengeBondAmount(ctx, id)
	_ = l.Challenge(ctx, id, common.HexToAddress("0xBAD"), bond)

	err := l.ClaimChallengeTimeout(ctx, id)
	qt.Assert(t, err, qt.ErrorIs, ErrPreconditionViolated)

	clock.now = clock.now.Add(ChallengeResponseDeadline + time.Second)
	qt.Assert(t, l.ClaimChallengeTimeout(ctx, id), qt.IsNil)

	rec, _ := l.PollAudits(ctx, id)
	qt.Assert(t, rec.Phase, qt.Equals, PhaseRejected)
}
