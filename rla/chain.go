package rla

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/rla-coordinator/proof"
)

// AuditChain is the contract's observable interface (§6), as consumed by
// the coordinator orchestrator. A real implementation (web3.Contracts)
// sends transactions and reads contract storage; Ledger is an in-memory
// implementation of the same contract for tests and dry runs.
type AuditChain interface {
	CommitResult(ctx context.Context, coordinator common.Address, poll PollHandle, pmCommitments, tvCommitments []*big.Int, yes, no *big.Int, pmBatchSize, tvBatchSize int, stake *big.Int) (AuditID, error)
	RevealSample(ctx context.Context, id AuditID) (Selection, error)
	SubmitPmProof(ctx context.Context, id AuditID, sampleSlot int, wire proof.Wire) error
	SubmitTvProof(ctx context.Context, id AuditID, sampleSlot int, wire proof.Wire) error
	FinalizeSampling(ctx context.Context, id AuditID) error
	Finalize(ctx context.Context, id AuditID) error
	Challenge(ctx context.Context, id AuditID, challenger common.Address, bond *big.Int) error
	ClaimChallengeTimeout(ctx context.Context, id AuditID) error
	SubmitPmProofForChallenge(ctx context.Context, id AuditID, batchIndex int, wire proof.Wire) error
	SubmitTvProofForChallenge(ctx context.Context, id AuditID, batchIndex int, wire proof.Wire) error
	FinalizeChallengeResponse(ctx context.Context, id AuditID) error

	PollAudits(ctx context.Context, id AuditID) (*Record, error)
	GetSampleCounts(ctx context.Context, id AuditID) (Counts, error)
	GetSelectedBatches(ctx context.Context, id AuditID) (Selection, error)
	PmBatchVerified(ctx context.Context, id AuditID, batchIndex int) (bool, error)
	TvBatchVerified(ctx context.Context, id AuditID, batchIndex int) (bool, error)
	GetChallengeBondAmount(ctx context.Context, id AuditID) (*big.Int, error)
	ChallengePeriodConst(ctx context.Context) (int64, error)
	CoordinatorStakeConst(ctx context.Context) (*big.Int, error)
}

// Counts mirrors sampler.Counts, re-declared here so that rla does not
// need to import the sampler package just for a read-method's return
// shape (the orchestrator glues the two together).
type Counts struct {
	PMSamples int
	TVSamples int
}

// Selection mirrors sampler.Selection.
type Selection struct {
	PMIndices []int
	TVIndices []int
}
