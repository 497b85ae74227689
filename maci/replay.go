package maci

import (
	"context"
	"fmt"
	"math/big"

	"github.com/tokamak-network/rla-coordinator/log"
)

// PollHandle opaquely identifies a poll to a ChainReader; the coordinator
// treats it as whatever value its configured chain client returns.
type PollHandle any

// ChainReader is the external collaborator (§1: "blockchain RPC and
// contract implementation... out of scope") that surfaces a poll's
// observable on-chain state: whether it has ended, and its append-only
// signup/message event logs.
type ChainReader interface {
	PollEnded(ctx context.Context, poll PollHandle) (bool, error)
	SignUps(ctx context.Context, poll PollHandle) ([]SignUp, error)
	Messages(ctx context.Context, poll PollHandle) ([]PublishMessage, error)
	// MsgAccumulatorRoot returns the on-chain message-accumulator root to
	// verify the replayed message log against (§4.1 step 2), or nil if
	// the reader has none to offer.
	MsgAccumulatorRoot(ctx context.Context, poll PollHandle) (*big.Int, error)
}

// ReplayOptions tunes the replay beyond the chain-state it observes.
type ReplayOptions struct {
	// SkipEndedCheck suppresses the "poll has not ended" fatal check, for
	// replaying against test chains that never formally end a poll.
	SkipEndedCheck bool
}

// ReplayResult is component A's output: one circuit-input record per
// process-messages batch (newest-message-first) and one per tally batch
// (forward leaf order), plus the final tally derived along the way.
type ReplayResult struct {
	PMBatchInputs []PMBatchInput
	TVBatchInputs []TVBatchInput
	Tally         TallyResults
}

// ReplayPoll runs component A's algorithm over an already-populated
// PollState. Callers are expected to have populated PollState.SignUps and
// PollState.Messages from a ChainReader (see LoadPollState) before calling
// this function; ReplayPoll itself performs no chain I/O so it can be
// exercised deterministically in tests.
func ReplayPoll(poll *PollState) (*ReplayResult, error) {
	if poll.Curve == nil {
		return nil, fmt.Errorf("%w: poll state has no curve configured", ErrReplayFailed)
	}

	pState, err := newProcessState(poll)
	if err != nil {
		return nil, fmt.Errorf("building initial state tree: %w", err)
	}

	var pmInputs []PMBatchInput
	batchIndex := 1
	for pState.hasUnprocessedMessages() {
		in, err := pState.processMessages(poll, batchIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: processMessages batch %d: %v", ErrReplayFailed, batchIndex, err)
		}
		pmInputs = append(pmInputs, in)
		batchIndex++
	}

	tState := newTallyState()
	leafCount := int64(len(poll.SignUps))
	batchSize := poll.Params.TallyBatchSize()
	voteOptions := pState.VoteOptions()

	var tvInputs []TVBatchInput
	tvIndex := 1
	for tState.hasUntalliedBallots(leafCount) {
		in, err := tState.tallyVotes(pState.stateTree, voteOptions, tvIndex, batchSize)
		if err != nil {
			return nil, fmt.Errorf("%w: tallyVotes batch %d: %v", ErrReplayFailed, tvIndex, err)
		}
		tvInputs = append(tvInputs, in)
		tvIndex++
	}

	log.Debugw("maci replay complete",
		"pmBatches", len(pmInputs),
		"tvBatches", len(tvInputs),
		"signUps", len(poll.SignUps),
		"messages", len(poll.Messages))

	return &ReplayResult{
		PMBatchInputs: pmInputs,
		TVBatchInputs: tvInputs,
		Tally:         tState.Results(),
	}, nil
}

// LoadPollState pulls signups and messages from reader into a fresh
// PollState, checking the poll-ended precondition unless opts suppresses
// it. The returned state is ready for ReplayPoll once its Curve,
// CoordinatorPrivKey and CoordinatorPubKey fields are set by the caller.
func LoadPollState(ctx context.Context, reader ChainReader, poll PollHandle, params PollParams, opts ReplayOptions) (*PollState, error) {
	if !opts.SkipEndedCheck {
		ended, err := reader.PollEnded(ctx, poll)
		if err != nil {
			return nil, fmt.Errorf("%w: checking poll end: %v", ErrReplayFailed, err)
		}
		if !ended {
			return nil, fmt.Errorf("%w: %v", ErrReplayFailed, ErrPollNotEnded)
		}
	}

	signUps, err := reader.SignUps(ctx, poll)
	if err != nil {
		return nil, fmt.Errorf("%w: reading signups: %v", ErrReplayFailed, err)
	}
	messages, err := reader.Messages(ctx, poll)
	if err != nil {
		return nil, fmt.Errorf("%w: reading messages: %v", ErrReplayFailed, err)
	}
	msgRoot, err := reader.MsgAccumulatorRoot(ctx, poll)
	if err != nil {
		return nil, fmt.Errorf("%w: reading message accumulator root: %v", ErrReplayFailed, err)
	}

	return &PollState{
		Params:   params,
		SignUps:  signUps,
		Messages: messages,
		MsgRoot:  msgRoot,
	}, nil
}
