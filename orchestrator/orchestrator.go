// Package orchestrator implements component F: sequencing commit →
// mine-to-blockhash → reveal → submit sampled proofs → finalize, and
// handling the challenge-response path, per §4.6.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tokamak-network/rla-coordinator/maci"
	"github.com/tokamak-network/rla-coordinator/proof"
	"github.com/tokamak-network/rla-coordinator/rla"
	"github.com/tokamak-network/rla-coordinator/storage"

	"github.com/tokamak-network/rla-coordinator/log"
)

// Config bundles the knobs Drive needs beyond the audit record itself.
// Unless Prove is set, proving runs in-process via proof.ProveBatch, which
// holds a package-level mutex in the proof package around the Groth16
// prover step only (§9); MaxConcurrentProofs bounds how many batches are
// in flight at once, so witness computation and I/O for one batch overlap
// with the Groth16 step of another.
type Config struct {
	Chain       rla.AuditChain
	OutputDir   string
	PMArtifacts proof.CircuitArtifacts
	TVArtifacts proof.CircuitArtifacts

	// PollInterval is how often Drive polls for block/timer conditions
	// (Δ confirmations, challenge period, challenge response) rather
	// than blocking indefinitely.
	PollInterval time.Duration

	// MaxConcurrentProofs caps how many batches are proved in parallel;
	// only on-chain submissions are serialized (§5).
	MaxConcurrentProofs int

	// Prove generates a proof for one batch's circuit inputs. Defaults to
	// proof.ProveBatch; tests inject a stub so Drive can be exercised
	// without invoking the external rapidsnark prover.
	Prove func(artifacts proof.CircuitArtifacts, circuitInputsJSON []byte) (*proof.Proof, proof.PublicSignals, error)
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return 15 * time.Second
}

func (c Config) prove() func(proof.CircuitArtifacts, []byte) (*proof.Proof, proof.PublicSignals, error) {
	if c.Prove != nil {
		return c.Prove
	}
	return proof.ProveBatch
}

func (c Config) maxConcurrentProofs() int {
	if c.MaxConcurrentProofs > 0 {
		return c.MaxConcurrentProofs
	}
	return 4
}

// batchSource indexes a ReplayResult's batch inputs by 1-based batch
// index so the submission stages can fetch only the batches the sample
// actually selected.
type batchSource struct {
	pm map[int]maci.PMBatchInput
	tv map[int]maci.TVBatchInput
}

func newBatchSource(replay *maci.ReplayResult) *batchSource {
	src := &batchSource{
		pm: make(map[int]maci.PMBatchInput, len(replay.PMBatchInputs)),
		tv: make(map[int]maci.TVBatchInput, len(replay.TVBatchInputs)),
	}
	for _, in := range replay.PMBatchInputs {
		src.pm[in.BatchIndex] = in
	}
	for _, in := range replay.TVBatchInputs {
		src.tv[in.BatchIndex] = in
	}
	return src
}

// Drive runs component F's full contract for an already-committed audit
// record: it produces Finalized, or Rejected, per §4.6. Every step after
// CommitResult is resumable from on-chain state alone (§7) — Drive may be
// called again for the same id after a process restart and will pick up
// wherever the chain says the record is.
func Drive(ctx context.Context, cfg Config, id rla.AuditID, replay *maci.ReplayResult) error {
	src := newBatchSource(replay)

	rec, err := cfg.Chain.PollAudits(ctx, id)
	if err != nil {
		return fmt.Errorf("orchestrator: reading audit record: %w", err)
	}
	recordStatus(cfg, rec.Phase, 0, 0)

	switch rec.Phase {
	case rla.PhaseCommitted:
		if err := awaitReveal(ctx, cfg, id); err != nil {
			return err
		}
		fallthrough
	case rla.PhaseSampleRevealed:
		if err := submitSampled(ctx, cfg, id, src); err != nil {
			return err
		}
		if err := cfg.Chain.FinalizeSampling(ctx, id); err != nil {
			return fmt.Errorf("orchestrator: finalizeSampling: %w", err)
		}
		fallthrough
	case rla.PhaseTentative, rla.PhaseAudited:
		return awaitFinalizeOrChallenge(ctx, cfg, id, src)
	case rla.PhaseChallenged:
		return respondToChallenge(ctx, cfg, id, src)
	case rla.PhaseFinalized, rla.PhaseRejected:
		log.Infow("audit already at terminal phase", "auditId", id, "phase", rec.Phase.String())
		return nil
	default:
		return fmt.Errorf("orchestrator: audit %d is in unexpected phase %s", id, rec.Phase)
	}
}

// awaitReveal waits until blockhash(commitBlock+Δ) is observable and
// calls revealSample (§4.6 steps 1-2).
func awaitReveal(ctx context.Context, cfg Config, id rla.AuditID) error {
	ticker := time.NewTicker(cfg.pollInterval())
	defer ticker.Stop()
	for {
		_, err := cfg.Chain.RevealSample(ctx, id)
		if err == nil {
			return nil
		}
		log.Debugw("waiting to reveal sample", "auditId", id, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// submitSampled proves and submits every sampled batch for both chains
// (§4.6 step 3): proving runs concurrently, submission is serialized per
// chain in sample-slot order.
func submitSampled(ctx context.Context, cfg Config, id rla.AuditID, src *batchSource) error {
	sel, err := cfg.Chain.GetSelectedBatches(ctx, id)
	if err != nil {
		return fmt.Errorf("orchestrator: reading selected batches: %w", err)
	}
	if cfg.OutputDir != "" {
		if err := storage.SaveProveBatches(cfg.OutputDir, storage.ProveBatchesFromSelection(sel.PMIndices, sel.TVIndices)); err != nil {
			log.Warnw("failed to persist prove-batches selector", "err", err)
		}
	}
	recordStatus(cfg, rla.PhaseSampleRevealed, 0, len(sel.PMIndices)+len(sel.TVIndices))

	if err := proveAndSubmitPM(ctx, cfg, sel.PMIndices, src, func(ctx context.Context, slot int, w proof.Wire) error {
		return cfg.Chain.SubmitPmProof(ctx, id, slot, w)
	}); err != nil {
		return err
	}
	return proveAndSubmitTV(ctx, cfg, sel.TVIndices, src, func(ctx context.Context, slot int, w proof.Wire) error {
		return cfg.Chain.SubmitTvProof(ctx, id, slot, w)
	})
}

func proveAndSubmitPM(ctx context.Context, cfg Config, indices []int, src *batchSource, submit func(context.Context, int, proof.Wire) error) error {
	wires, err := proveBatches(ctx, cfg, indices, func(batchIndex int) (proof.Wire, error) {
		in, ok := src.pm[batchIndex]
		if !ok {
			return proof.Wire{}, fmt.Errorf("orchestrator: no replay data for pm batch %d", batchIndex)
		}
		return proveOne(cfg, "pm", batchIndex, cfg.PMArtifacts, in.CircuitInputs,
			proof.BindPM(in.CurrentSbCommitment, in.NewSbCommitment, batchIndex))
	})
	if err != nil {
		return err
	}
	return submitInOrder(ctx, indices, wires, "pm", submit)
}

func proveAndSubmitTV(ctx context.Context, cfg Config, indices []int, src *batchSource, submit func(context.Context, int, proof.Wire) error) error {
	wires, err := proveBatches(ctx, cfg, indices, func(batchIndex int) (proof.Wire, error) {
		in, ok := src.tv[batchIndex]
		if !ok {
			return proof.Wire{}, fmt.Errorf("orchestrator: no replay data for tv batch %d", batchIndex)
		}
		return proveOne(cfg, "tv", batchIndex, cfg.TVArtifacts, in.CircuitInputs,
			proof.BindTV(in.CurrentTallyCommitment, in.NewTallyCommitment, batchIndex))
	})
	if err != nil {
		return err
	}
	return submitInOrder(ctx, indices, wires, "tv", submit)
}

// proveBatches runs prove for each index with bounded concurrency,
// returning wires in the same order as indices.
func proveBatches(ctx context.Context, cfg Config, indices []int, prove func(batchIndex int) (proof.Wire, error)) ([]proof.Wire, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	wires := make([]proof.Wire, len(indices))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.maxConcurrentProofs())
	for i, batchIndex := range indices {
		i, batchIndex := i, batchIndex
		group.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			w, err := prove(batchIndex)
			if err != nil {
				return fmt.Errorf("%w: batch %d: %v", rla.ErrProveFailed, batchIndex, err)
			}
			wires[i] = w
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return wires, nil
}

func submitInOrder(ctx context.Context, indices []int, wires []proof.Wire, batchType string, submit func(context.Context, int, proof.Wire) error) error {
	for slot := range indices {
		if err := submit(ctx, slot, wires[slot]); err != nil {
			return fmt.Errorf("orchestrator: submitting %s proof for sample slot %d: %w", batchType, slot, err)
		}
	}
	return nil
}

// proveOne loads a cached proof bundle for batchIndex if one already
// exists on disk; otherwise it invokes the prover against circuitInputs
// and persists the result before returning. expected is the public-input
// tuple this batch's proof must bind to (§4.3) — a mismatch between what
// the prover returns and expected means the witness and the audit record
// have diverged, which is a ProveFailed condition rather than something
// worth submitting for the chain to reject.
func proveOne(cfg Config, batchType string, batchIndex int, artifacts proof.CircuitArtifacts, circuitInputs map[string]*big.Int, expected proof.PublicSignals) (proof.Wire, error) {
	if bundle, ok, err := proof.LoadBundle(cfg.OutputDir, batchType, batchIndex); err != nil {
		return proof.Wire{}, err
	} else if ok {
		p, err := proof.FromCircom(bundle.Proof)
		if err != nil {
			return proof.Wire{}, err
		}
		return proof.ToWire(p), nil
	}

	inputsJSON, err := json.Marshal(circuitInputs)
	if err != nil {
		return proof.Wire{}, fmt.Errorf("marshalling circuit inputs: %w", err)
	}
	if err := proof.SaveInputs(cfg.OutputDir, batchType, batchIndex, inputsJSON); err != nil {
		log.Warnw("failed to persist circuit inputs", "batchType", batchType, "batchIndex", batchIndex, "err", err)
	}

	p, signals, err := cfg.prove()(artifacts, inputsJSON)
	if err != nil {
		return proof.Wire{}, err
	}
	if !signals.Equal(expected) {
		return proof.Wire{}, fmt.Errorf("%s batch %d: prover public signals do not match the audit record's claimed commitments", batchType, batchIndex)
	}

	bundle := &proof.Bundle{
		Proof:         p.ToCircom(),
		PublicSignals: stringifySignals(signals),
		CircuitInputs: json.RawMessage(inputsJSON),
	}
	if err := proof.SaveBundle(cfg.OutputDir, batchType, batchIndex, bundle); err != nil {
		log.Warnw("failed to persist proof bundle", "batchType", batchType, "batchIndex", batchIndex, "err", err)
	}
	return proof.ToWire(p), nil
}

// recordStatus overwrites status.json with the orchestrator's current
// view of progress (§6). Failing to write it is logged, not fatal —
// status.json is an operator convenience, not load-bearing state; the
// chain remains the source of truth (§9).
func recordStatus(cfg Config, phase rla.Phase, proved, total int) {
	if cfg.OutputDir == "" {
		return
	}
	s := &storage.Status{
		Status:       phase.String(),
		ProveStatus:  proveStatusFor(proved, total),
		Proved:       proved,
		TotalToProve: total,
		UpdatedAt:    time.Now(),
	}
	if proved > 0 || total > 0 {
		s.ProveUpdatedAt = s.UpdatedAt
	}
	if err := storage.SaveStatus(cfg.OutputDir, s); err != nil {
		log.Warnw("failed to persist status", "err", err)
	}
}

func proveStatusFor(proved, total int) string {
	switch {
	case total == 0:
		return "idle"
	case proved >= total:
		return "done"
	default:
		return "proving"
	}
}

func stringifySignals(signals proof.PublicSignals) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.String()
	}
	return out
}

// awaitFinalizeOrChallenge waits out the challenge period, calling
// finalize if no challenge arrives, or dispatching to the challenge path
// if one does (§4.6 step 5).
func awaitFinalizeOrChallenge(ctx context.Context, cfg Config, id rla.AuditID, src *batchSource) error {
	ticker := time.NewTicker(cfg.pollInterval())
	defer ticker.Stop()
	for {
		rec, err := cfg.Chain.PollAudits(ctx, id)
		if err != nil {
			return fmt.Errorf("orchestrator: reading audit record: %w", err)
		}
		switch rec.Phase {
		case rla.PhaseChallenged:
			recordStatus(cfg, rec.Phase, 0, 0)
			return respondToChallenge(ctx, cfg, id, src)
		case rla.PhaseFinalized:
			recordStatus(cfg, rec.Phase, 0, 0)
			return nil
		}
		if err := cfg.Chain.Finalize(ctx, id); err == nil {
			recordStatus(cfg, rla.PhaseFinalized, 0, 0)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// respondToChallenge proves and submits every not-yet-verified batch on
// both chains, then calls finalizeChallengeResponse (§4.6 step 6). A
// proof the chain rejects as invalid drives the record to Rejected on the
// first bad submission — Drive notices and stops submitting further
// batches rather than surfacing the chain's own rejection as an error.
func respondToChallenge(ctx context.Context, cfg Config, id rla.AuditID, src *batchSource) error {
	rec, err := cfg.Chain.PollAudits(ctx, id)
	if err != nil {
		return fmt.Errorf("orchestrator: reading audit record: %w", err)
	}

	pmPending := unverified(rec.PMBatchCount, rec.PMBatchVerified)
	if err := respondBatches(ctx, cfg, id, pmPending, "pm", func(batchIndex int) (proof.Wire, error) {
		in, ok := src.pm[batchIndex]
		if !ok {
			return proof.Wire{}, fmt.Errorf("orchestrator: no replay data for pm batch %d", batchIndex)
		}
		return proveOne(cfg, "pm", batchIndex, cfg.PMArtifacts, in.CircuitInputs,
			proof.BindPM(in.CurrentSbCommitment, in.NewSbCommitment, batchIndex))
	}, func(ctx context.Context, batchIndex int, w proof.Wire) error {
		return cfg.Chain.SubmitPmProofForChallenge(ctx, id, batchIndex, w)
	}); err != nil {
		return err
	}

	rec, err = cfg.Chain.PollAudits(ctx, id)
	if err != nil {
		return err
	}
	if rec.Phase == rla.PhaseRejected {
		return nil
	}

	tvPending := unverified(rec.TVBatchCount, rec.TVBatchVerified)
	if err := respondBatches(ctx, cfg, id, tvPending, "tv", func(batchIndex int) (proof.Wire, error) {
		in, ok := src.tv[batchIndex]
		if !ok {
			return proof.Wire{}, fmt.Errorf("orchestrator: no replay data for tv batch %d", batchIndex)
		}
		return proveOne(cfg, "tv", batchIndex, cfg.TVArtifacts, in.CircuitInputs,
			proof.BindTV(in.CurrentTallyCommitment, in.NewTallyCommitment, batchIndex))
	}, func(ctx context.Context, batchIndex int, w proof.Wire) error {
		return cfg.Chain.SubmitTvProofForChallenge(ctx, id, batchIndex, w)
	}); err != nil {
		return err
	}

	rec, err = cfg.Chain.PollAudits(ctx, id)
	if err != nil {
		return err
	}
	if rec.Phase == rla.PhaseRejected {
		return nil
	}
	return cfg.Chain.FinalizeChallengeResponse(ctx, id)
}

func unverified(batchCount int, verified []bool) []int {
	var pending []int
	for i := 1; i <= batchCount; i++ {
		if i >= len(verified) || !verified[i] {
			pending = append(pending, i)
		}
	}
	return pending
}

// respondBatches proves every pending batch concurrently, then submits
// them one at a time, checking after each submission whether the chain
// has already moved the record to Rejected — if so it stops rather than
// submitting the remaining batches against a dead audit.
func respondBatches(ctx context.Context, cfg Config, id rla.AuditID, pending []int, batchType string, prove func(batchIndex int) (proof.Wire, error), submit func(context.Context, int, proof.Wire) error) error {
	if len(pending) == 0 {
		return nil
	}
	wires, err := proveBatches(ctx, cfg, pending, prove)
	if err != nil {
		return err
	}
	for i, batchIndex := range pending {
		rec, err := cfg.Chain.PollAudits(ctx, id)
		if err != nil {
			return err
		}
		if rec.Phase == rla.PhaseRejected {
			return nil
		}
		if err := submit(ctx, batchIndex, wires[i]); err != nil {
			return fmt.Errorf("orchestrator: submitting %s challenge proof for batch %d: %w", batchType, batchIndex, err)
		}
	}
	return nil
}
