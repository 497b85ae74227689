package orchestrator

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/rla-coordinator/commitment"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc/bjj_iden3"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc/curves"
	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
	"github.com/tokamak-network/rla-coordinator/maci"
	"github.com/tokamak-network/rla-coordinator/proof"
	"github.com/tokamak-network/rla-coordinator/rla"
)

// fakeClock is a fully controllable rla.Clock for deterministic tests.
type fakeClock struct {
	now   time.Time
	block uint64
}

func (c *fakeClock) Now() time.Time      { return c.now }
func (c *fakeClock) BlockNumber() uint64 { return c.block }
func (c *fakeClock) BlockHash(n uint64) (common.Hash, bool) {
	if n > c.block {
		return common.Hash{}, false
	}
	return common.BigToHash(big.NewInt(int64(n) + 1)), true
}

// encryptCommand mirrors maci's own test fixture: it builds a ballot whose
// ciphertext decrypts back to cmd under the coordinator's private key.
func encryptCommand(t *testing.T, curve ecc.Point, coordPrivKey *big.Int, cmd [8]*big.Int) maci.PublishMessage {
	t.Helper()
	ephemeralPriv := big.NewInt(555555)

	ephemeralPub := curve.New()
	ephemeralPub.ScalarBaseMult(ephemeralPriv)
	ex, ey := ephemeralPub.Point()

	sharedScalar := new(big.Int).Mul(coordPrivKey, ephemeralPriv)
	shared := curve.New()
	shared.ScalarBaseMult(sharedScalar)
	sx, _ := shared.Point()

	var data [10]*big.Int
	for i := 0; i < 8; i++ {
		ks, err := poseidon.MultiPoseidon(sx, big.NewInt(int64(i)))
		qt.Assert(t, err, qt.IsNil)
		data[i] = new(big.Int).Add(cmd[i], ks)
	}
	data[8] = big.NewInt(0)
	data[9] = big.NewInt(0)

	return maci.PublishMessage{Data: data, EncPubKeyX: ex, EncPubKeyY: ey}
}

type fixture struct {
	clock  *fakeClock
	ledger *rla.Ledger
	id     rla.AuditID
	replay *maci.ReplayResult
}

// driveFixture builds a small, fully replayed poll plus an in-memory
// ledger with the audit already committed, ready for Drive to take over.
func driveFixture(t *testing.T) *fixture {
	t.Helper()
	curve := curves.New(bjj_iden3.CurveType)
	coordPriv := big.NewInt(42424242)

	msg := encryptCommand(t, curve, coordPriv, [8]*big.Int{
		big.NewInt(0), big.NewInt(5), big.NewInt(6),
		big.NewInt(1), big.NewInt(9), big.NewInt(1), big.NewInt(1), big.NewInt(7),
	})

	poll := &maci.PollState{
		Params: maci.PollParams{
			StateTreeDepth:      4,
			IntStateTreeDepth:   1,
			MsgTreeDepth:        2,
			MsgTreeSubDepth:     1,
			VoteOptionTreeDepth: 2,
		},
		CoordinatorPrivKey: coordPriv,
		SignUps: []maci.SignUp{
			{PubKeyX: big.NewInt(1), PubKeyY: big.NewInt(2), VoiceCreditBalance: big.NewInt(100)},
		},
		Messages: []maci.PublishMessage{msg},
		Curve:    curve,
	}

	replay, err := maci.ReplayPoll(poll)
	qt.Assert(t, err, qt.IsNil)

	commits, err := commitment.Extract(replay.PMBatchInputs, replay.TVBatchInputs, replay.Tally)
	qt.Assert(t, err, qt.IsNil)

	clock := &fakeClock{now: time.Unix(0, 0), block: 100}
	acceptAll := func(proof.PublicSignals, proof.Wire) bool { return true }
	sampleAll := func(_ common.Hash, pmBatchCount, tvBatchCount, _ int, _, _ int64) (rla.Selection, error) {
		pm := make([]int, pmBatchCount)
		for i := range pm {
			pm[i] = i + 1
		}
		tv := make([]int, tvBatchCount)
		for i := range tv {
			tv[i] = i + 1
		}
		return rla.Selection{PMIndices: pm, TVIndices: tv}, nil
	}
	ledger := rla.NewLedger(clock, acceptAll, sampleAll)

	id, err := ledger.CommitResult(context.Background(), common.HexToAddress("0xC0"),
		"poll-orchestrator-1", commits.PMCommitments, commits.TVCommitments,
		replay.Tally.YesVotes, replay.Tally.NoVotes,
		poll.Params.MsgBatchSize(), poll.Params.TallyBatchSize(), rla.CoordinatorStake)
	qt.Assert(t, err, qt.IsNil)

	// Advance past the commit block so blockhash(commitBlock+Δ) is
	// observable immediately; Drive's reveal step otherwise waits.
	clock.block += rla.BlockHashDelay

	return &fixture{clock: clock, ledger: ledger, id: id, replay: replay}
}

// recordedProver builds a Prove stub that looks up the exact public-signal
// tuple proveOne expects for a given batch's circuit inputs, keyed by the
// marshalled inputs themselves (each batch's CircuitInputs is unique in
// these small fixtures). It stands in for an external prover that always
// produces a valid witness for whatever it's handed.
func recordedProver(t *testing.T, replay *maci.ReplayResult) func(proof.CircuitArtifacts, []byte) (*proof.Proof, proof.PublicSignals, error) {
	t.Helper()
	expected := make(map[string]proof.PublicSignals)
	for _, in := range replay.PMBatchInputs {
		raw, err := json.Marshal(in.CircuitInputs)
		qt.Assert(t, err, qt.IsNil)
		expected[string(raw)] = proof.BindPM(in.CurrentSbCommitment, in.NewSbCommitment, in.BatchIndex)
	}
	for _, in := range replay.TVBatchInputs {
		raw, err := json.Marshal(in.CircuitInputs)
		qt.Assert(t, err, qt.IsNil)
		expected[string(raw)] = proof.BindTV(in.CurrentTallyCommitment, in.NewTallyCommitment, in.BatchIndex)
	}

	dummyProof := &proof.Proof{
		A: [2]*big.Int{big.NewInt(1), big.NewInt(1)},
		B: [2][2]*big.Int{{big.NewInt(1), big.NewInt(1)}, {big.NewInt(1), big.NewInt(1)}},
		C: [2]*big.Int{big.NewInt(1), big.NewInt(1)},
	}
	return func(_ proof.CircuitArtifacts, inputsJSON []byte) (*proof.Proof, proof.PublicSignals, error) {
		signals, ok := expected[string(inputsJSON)]
		if !ok {
			t.Fatalf("unexpected circuit inputs in test prover: %s", inputsJSON)
		}
		return dummyProof, signals, nil
	}
}

func TestDriveHappyPath(t *testing.T) {
	fx := driveFixture(t)
	cfg := Config{
		Chain:        fx.ledger,
		OutputDir:    t.TempDir(),
		Prove:        recordedProver(t, fx.replay),
		PollInterval: 10 * time.Millisecond,
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- Drive(ctx, cfg, fx.id, fx.replay) }()

	waitForPhase(t, fx.ledger, fx.id, rla.PhaseTentative)
	fx.clock.now = fx.clock.now.Add(rla.ChallengePeriod + time.Second)

	select {
	case err := <-done:
		qt.Assert(t, err, qt.IsNil)
	case <-time.After(5 * time.Second):
		t.Fatal("Drive did not finish")
	}

	rec, err := fx.ledger.PollAudits(ctx, fx.id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, rec.Phase, qt.Equals, rla.PhaseFinalized)
}

func TestDriveChallengeResponse(t *testing.T) {
	fx := driveFixture(t)
	cfg := Config{
		Chain:        fx.ledger,
		OutputDir:    t.TempDir(),
		Prove:        recordedProver(t, fx.replay),
		PollInterval: 10 * time.Millisecond,
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- Drive(ctx, cfg, fx.id, fx.replay) }()

	waitForPhase(t, fx.ledger, fx.id, rla.PhaseTentative)

	bond, err := fx.ledger.GetChallengeBondAmount(ctx, fx.id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, fx.ledger.Challenge(ctx, fx.id, common.HexToAddress("0xBAD"), bond), qt.IsNil)

	select {
	case err := <-done:
		qt.Assert(t, err, qt.IsNil)
	case <-time.After(5 * time.Second):
		t.Fatal("Drive did not finish")
	}

	rec, err := fx.ledger.PollAudits(ctx, fx.id)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, rec.Phase, qt.Equals, rla.PhaseFinalized)
}

func waitForPhase(t *testing.T, ledger *rla.Ledger, id rla.AuditID, want rla.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := ledger.PollAudits(context.Background(), id)
		if err == nil && rec.Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("audit %d never reached phase %s", id, want.String())
}
