package rla

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/rla-coordinator/proof"
)

// Verifier checks a submitted proof's wire form against the public-input
// binding the ledger assembled from the audit record (§4.3: the binding
// must come from the record, never from the proof file). A real
// deployment's on-chain verifier is out of scope (§1); Ledger takes one as
// a dependency so the same state-machine logic is exercised in tests
// without a real Groth16 verifying key.
type Verifier func(binding proof.PublicSignals, wire proof.Wire) bool

// Sampler draws the sampled batch indices at reveal time. It is injected
// so Ledger does not import package sampler directly (avoiding a cycle
// risk as the orchestrator wires both together) — a real caller passes
// sampler.Sample adapted to this signature.
type Sampler func(h common.Hash, pmBatchCount, tvBatchCount, tvBatchSize int, yes, no int64) (Selection, error)

// Ledger is an in-memory implementation of AuditChain: the reference
// state machine described in §4.4, usable directly in tests and as a dry
// run before wiring a real contract.
type Ledger struct {
	mu      sync.Mutex
	records map[AuditID]*Record
	nextID  AuditID

	clock    Clock
	verify   Verifier
	sample   Sampler
	bindPM   func(prev, cur *big.Int, batchIndex int) proof.PublicSignals
	bindTV   func(prev, cur *big.Int, batchIndex int) proof.PublicSignals
}

// NewLedger constructs an empty in-memory ledger.
func NewLedger(clock Clock, verify Verifier, sample Sampler) *Ledger {
	return &Ledger{
		records: make(map[AuditID]*Record),
		clock:   clock,
		verify:  verify,
		sample:  sample,
		bindPM: func(prev, cur *big.Int, batchIndex int) proof.PublicSignals {
			return proof.BindPM(prev, cur, batchIndex)
		},
		bindTV: func(prev, cur *big.Int, batchIndex int) proof.PublicSignals {
			return proof.BindTV(prev, cur, batchIndex)
		},
	}
}

var _ AuditChain = (*Ledger)(nil)

func (l *Ledger) CommitResult(_ context.Context, coordinator common.Address, poll PollHandle, pmCommitments, tvCommitments []*big.Int, yes, no *big.Int, pmBatchSize, tvBatchSize int, stake *big.Int) (AuditID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if stake.Cmp(CoordinatorStake) != 0 {
		return 0, fmt.Errorf("%w: stake must equal %s wei", ErrPreconditionViolated, CoordinatorStake)
	}
	if len(pmCommitments) < 2 || len(tvCommitments) < 2 {
		return 0, fmt.Errorf("%w: commitment chains must have length >= 2", ErrPreconditionViolated)
	}

	l.nextID++
	id := l.nextID
	l.records[id] = &Record{
		AuditID:       id,
		Coordinator:   coordinator,
		Poll:          poll,
		StakeAmount:   new(big.Int).Set(stake),
		PMCommitments: pmCommitments,
		TVCommitments: tvCommitments,
		YesVotes:      new(big.Int).Set(yes),
		NoVotes:       new(big.Int).Set(no),
		PMBatchCount:  len(pmCommitments) - 1,
		TVBatchCount:  len(tvCommitments) - 1,
		PMBatchSize:   pmBatchSize,
		TVBatchSize:   tvBatchSize,
		CommitBlock:   l.clock.BlockNumber(),
		Phase:         PhaseCommitted,
	}
	l.records[id].PMBatchVerified = newVerifiedSlice(l.records[id].PMBatchCount)
	l.records[id].TVBatchVerified = newVerifiedSlice(l.records[id].TVBatchCount)
	return id, nil
}

func (l *Ledger) get(id AuditID) (*Record, error) {
	r, ok := l.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: no audit record %d", ErrPreconditionViolated, id)
	}
	return r, nil
}

func (l *Ledger) RevealSample(_ context.Context, id AuditID) (Selection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return Selection{}, err
	}
	if r.Phase != PhaseCommitted {
		return Selection{}, fmt.Errorf("%w: revealSample requires phase Committed, got %s", ErrPreconditionViolated, r.Phase)
	}
	h, ok := l.clock.BlockHash(r.CommitBlock + BlockHashDelay)
	if !ok {
		return Selection{}, fmt.Errorf("%w: blockhash(commitBlock+%d) not yet available", ErrPreconditionViolated, BlockHashDelay)
	}

	sel, err := l.sample(h, r.PMBatchCount, r.TVBatchCount, r.TVBatchSize, r.YesVotes.Int64(), r.NoVotes.Int64())
	if err != nil {
		return Selection{}, err
	}
	r.PMSelectedIndices = sel.PMIndices
	r.TVSelectedIndices = sel.TVIndices
	r.PMSampleCount = len(sel.PMIndices)
	r.TVSampleCount = len(sel.TVIndices)
	r.CommitHash = h
	r.ProofDeadline = l.clock.Now().Add(SampleSubmissionWindow)
	r.Phase = PhaseSampleRevealed
	return sel, nil
}

func (l *Ledger) submitSampled(id AuditID, sampleSlot int, wire proof.Wire, pm bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseSampleRevealed {
		return fmt.Errorf("%w: submit*Proof requires phase SampleRevealed, got %s", ErrPreconditionViolated, r.Phase)
	}
	if l.clock.Now().After(r.ProofDeadline) {
		return fmt.Errorf("%w: proofDeadline exceeded", ErrTimeout)
	}

	selected := r.PMSelectedIndices
	commitments := r.PMCommitments
	verified := r.PMBatchVerified
	bind := l.bindPM
	if !pm {
		selected = r.TVSelectedIndices
		commitments = r.TVCommitments
		verified = r.TVBatchVerified
		bind = l.bindTV
	}
	if sampleSlot < 0 || sampleSlot >= len(selected) {
		return fmt.Errorf("%w: sampleSlot %d out of range", ErrPreconditionViolated, sampleSlot)
	}
	batchIndex := selected[sampleSlot]
	binding := bind(commitments[batchIndex-1], commitments[batchIndex], batchIndex)
	if !l.verify(binding, wire) {
		return ErrProofInvalid
	}
	verified[batchIndex] = true
	if pm {
		r.PMProofsVerified++
	} else {
		r.TVProofsVerified++
	}
	return nil
}

func (l *Ledger) SubmitPmProof(ctx context.Context, id AuditID, sampleSlot int, wire proof.Wire) error {
	return l.submitSampled(id, sampleSlot, wire, true)
}

func (l *Ledger) SubmitTvProof(ctx context.Context, id AuditID, sampleSlot int, wire proof.Wire) error {
	return l.submitSampled(id, sampleSlot, wire, false)
}

func (l *Ledger) FinalizeSampling(_ context.Context, id AuditID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseSampleRevealed {
		return fmt.Errorf("%w: finalizeSampling requires phase SampleRevealed, got %s", ErrPreconditionViolated, r.Phase)
	}
	if r.PMProofsVerified < r.PMSampleCount || r.TVProofsVerified < r.TVSampleCount {
		return fmt.Errorf("%w: not all sampled batches verified", ErrPreconditionViolated)
	}
	if l.clock.Now().After(r.ProofDeadline) {
		return fmt.Errorf("%w: proofDeadline exceeded", ErrTimeout)
	}
	r.TentativeTimestamp = l.clock.Now()
	r.Phase = PhaseTentative
	return nil
}

func (l *Ledger) Finalize(_ context.Context, id AuditID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseTentative {
		return fmt.Errorf("%w: finalize requires phase Tentative, got %s", ErrPreconditionViolated, r.Phase)
	}
	if l.clock.Now().Before(r.TentativeTimestamp.Add(ChallengePeriod)) {
		return fmt.Errorf("%w: challenge period has not elapsed", ErrPreconditionViolated)
	}
	r.Phase = PhaseFinalized
	return nil
}

func (l *Ledger) Challenge(_ context.Context, id AuditID, challenger common.Address, bond *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseTentative {
		return fmt.Errorf("%w: challenge requires phase Tentative, got %s", ErrPreconditionViolated, r.Phase)
	}
	if !l.clock.Now().Before(r.TentativeTimestamp.Add(ChallengePeriod)) {
		return fmt.Errorf("%w: challenge period has elapsed", ErrPreconditionViolated)
	}
	if challenger == r.Coordinator {
		return fmt.Errorf("%w: the coordinator cannot challenge its own audit", ErrPreconditionViolated)
	}
	want := ChallengeBond(r)
	if bond.Cmp(want) != 0 {
		return fmt.Errorf("%w: bond must equal %s wei", ErrPreconditionViolated, want)
	}
	r.Challenger = challenger
	r.ChallengeBond = new(big.Int).Set(bond)
	r.ChallengeDeadline = l.clock.Now().Add(ChallengeResponseDeadline)
	r.Phase = PhaseChallenged
	return nil
}

func (l *Ledger) submitForChallenge(id AuditID, batchIndex int, wire proof.Wire, pm bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseChallenged {
		return fmt.Errorf("%w: submit*ProofForChallenge requires phase Challenged, got %s", ErrPreconditionViolated, r.Phase)
	}

	commitments := r.PMCommitments
	verified := r.PMBatchVerified
	batchCount := r.PMBatchCount
	bind := l.bindPM
	if !pm {
		commitments = r.TVCommitments
		verified = r.TVBatchVerified
		batchCount = r.TVBatchCount
		bind = l.bindTV
	}
	if batchIndex < 1 || batchIndex > batchCount {
		return fmt.Errorf("%w: batchIndex %d out of range", ErrPreconditionViolated, batchIndex)
	}

	binding := bind(commitments[batchIndex-1], commitments[batchIndex], batchIndex)
	if !l.verify(binding, wire) {
		// Deliberate: an invalid proof during challenge drives Rejected
		// immediately, per §4.4 and §7 — this is not surfaced as
		// ErrProofInvalid to the caller of this method.
		r.Phase = PhaseRejected
		return nil
	}
	verified[batchIndex] = true
	if pm {
		r.FullPMProofsVerified++
	} else {
		r.FullTVProofsVerified++
	}
	return nil
}

func (l *Ledger) SubmitPmProofForChallenge(ctx context.Context, id AuditID, batchIndex int, wire proof.Wire) error {
	return l.submitForChallenge(id, batchIndex, wire, true)
}

func (l *Ledger) SubmitTvProofForChallenge(ctx context.Context, id AuditID, batchIndex int, wire proof.Wire) error {
	return l.submitForChallenge(id, batchIndex, wire, false)
}

func (l *Ledger) FinalizeChallengeResponse(_ context.Context, id AuditID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseChallenged {
		return fmt.Errorf("%w: finalizeChallengeResponse requires phase Challenged, got %s", ErrPreconditionViolated, r.Phase)
	}
	if !allVerified(r.PMBatchVerified, r.PMBatchCount) || !allVerified(r.TVBatchVerified, r.TVBatchCount) {
		return fmt.Errorf("%w: not every batch has been verified", ErrPreconditionViolated)
	}
	r.Phase = PhaseFinalized
	return nil
}

func (l *Ledger) ClaimChallengeTimeout(_ context.Context, id AuditID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.get(id)
	if err != nil {
		return err
	}
	if r.Phase != PhaseChallenged {
		return fmt.Errorf("%w: claimChallengeTimeout requires phase Challenged, got %s", ErrPreconditionViolated, r.Phase)
	}
	if !l.clock.Now().After(r.ChallengeDeadline) {
		return fmt.Errorf("%w: challengeDeadline has not passed", ErrPreconditionViolated)
	}
	if allVerified(r.PMBatchVerified, r.PMBatchCount) && allVerified(r.TVBatchVerified, r.TVBatchCount) {
		return fmt.Errorf("%w: all batches already verified, call finalizeChallengeResponse instead", ErrPreconditionViolated)
	}
	r.Phase = PhaseRejected
	return nil
}

// --- Reads ---

func (l *Ledger) PollAudits(_ context.Context, id AuditID) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (l *Ledger) GetSampleCounts(_ context.Context, id AuditID) (Counts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return Counts{}, err
	}
	return Counts{PMSamples: r.PMSampleCount, TVSamples: r.TVSampleCount}, nil
}

func (l *Ledger) GetSelectedBatches(_ context.Context, id AuditID) (Selection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return Selection{}, err
	}
	return Selection{PMIndices: r.PMSelectedIndices, TVIndices: r.TVSelectedIndices}, nil
}

func (l *Ledger) PmBatchVerified(_ context.Context, id AuditID, batchIndex int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return false, err
	}
	return batchIndex < len(r.PMBatchVerified) && r.PMBatchVerified[batchIndex], nil
}

func (l *Ledger) TvBatchVerified(_ context.Context, id AuditID, batchIndex int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return false, err
	}
	return batchIndex < len(r.TVBatchVerified) && r.TVBatchVerified[batchIndex], nil
}

func (l *Ledger) GetChallengeBondAmount(_ context.Context, id AuditID) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.get(id)
	if err != nil {
		return nil, err
	}
	return ChallengeBond(r), nil
}

func (l *Ledger) ChallengePeriodConst(context.Context) (int64, error) {
	return int64(ChallengePeriod.Seconds()), nil
}

func (l *Ledger) CoordinatorStakeConst(context.Context) (*big.Int, error) {
	return new(big.Int).Set(CoordinatorStake), nil
}
