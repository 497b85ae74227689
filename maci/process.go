package maci

import (
	"fmt"
	"math/big"

	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
)

// PMBatchInput is one process-messages batch's circuit-input record: the
// Sb-commitment chain link plus the witness values a real circom circuit
// would additionally require. The exact public-input layout is
// circuit-specific and out of scope (§9); CircuitInputs carries whatever
// extra witness fields the caller's circuit needs, keyed by signal name.
type PMBatchInput struct {
	BatchIndex           int // 1-based
	CurrentSbCommitment  *big.Int
	NewSbCommitment      *big.Int
	CircuitInputs        map[string]*big.Int
}

// processState is the mutable state carried across successive calls to
// processMessages: the current state tree and the running Sb commitment.
type processState struct {
	curve        *PollState
	stateTree    *SparseTree
	sbCommitment *big.Int
	// msgCursor walks messages newest-to-oldest, per §4.1: MACI processes
	// messages in reverse.
	msgCursor int
	// voteOptions accumulates, per state-tree leaf index, the latest vote
	// weight recorded against each vote-option index. tallyVotes reads
	// this to compute yes/no totals.
	voteOptions map[int64]map[int64]*big.Int
	// pubKeys tracks each state-tree leaf's current public key ([x, y]),
	// since the tree itself stores only a hashed leaf digest. A command
	// must be signed by the key on record here at the time it is applied,
	// not the new key it may be installing.
	pubKeys map[int64][2]*big.Int
}

// newProcessState builds the initial Sb commitment and state tree from the
// poll's signups, seeding msgCursor at the newest (last-appended) message,
// and verifies the replayed message log against poll.MsgRoot if one was
// supplied (§4.1 step 2).
func newProcessState(poll *PollState) (*processState, error) {
	tree := NewSparseTree(poll.Params.StateTreeDepth)
	pubKeys := make(map[int64][2]*big.Int, len(poll.SignUps))
	for _, su := range poll.SignUps {
		leaf, err := poseidon.MultiPoseidon(su.PubKeyX, su.PubKeyY, su.VoiceCreditBalance)
		if err != nil {
			return nil, err
		}
		idx, err := tree.Insert(leaf)
		if err != nil {
			return nil, err
		}
		pubKeys[idx] = [2]*big.Int{su.PubKeyX, su.PubKeyY}
	}

	if err := verifyMessageAccumulator(poll); err != nil {
		return nil, err
	}

	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	commitment, err := poseidon.MultiPoseidon(root, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return &processState{
		curve:        poll,
		stateTree:    tree,
		sbCommitment: commitment,
		msgCursor:    len(poll.Messages) - 1,
		voteOptions:  make(map[int64]map[int64]*big.Int),
		pubKeys:      pubKeys,
	}, nil
}

// messageLeaf is the Poseidon digest of a single published message, used
// as a leaf of the message accumulator tree.
func messageLeaf(msg PublishMessage) (*big.Int, error) {
	inputs := make([]*big.Int, 0, len(msg.Data)+2)
	inputs = append(inputs, msg.Data[:]...)
	inputs = append(inputs, msg.EncPubKeyX, msg.EncPubKeyY)
	return poseidon.MultiPoseidon(inputs...)
}

// verifyMessageAccumulator rebuilds the message tree from poll.Messages as
// MsgTreeSubDepth-sized subtrees merged under a MsgTreeDepth root (§4.1
// step 2), and checks the result against poll.MsgRoot when one was
// supplied. A mismatch means the replayed message log does not match what
// was actually committed on-chain, and is fatal.
func verifyMessageAccumulator(poll *PollState) error {
	full := NewSparseTree(poll.Params.MsgTreeDepth)
	subCapacity := int(int64(1) << uint(poll.Params.MsgTreeSubDepth))

	for i := 0; i < len(poll.Messages); i += subCapacity {
		end := min(i+subCapacity, len(poll.Messages))
		sub := NewSparseTree(poll.Params.MsgTreeSubDepth)
		for _, msg := range poll.Messages[i:end] {
			leaf, err := messageLeaf(msg)
			if err != nil {
				return fmt.Errorf("%w: hashing message %d: %v", ErrReplayFailed, i, err)
			}
			if _, err := sub.Insert(leaf); err != nil {
				return fmt.Errorf("%w: %v", ErrReplayFailed, err)
			}
		}
		subRoot, err := sub.Root()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrReplayFailed, err)
		}
		if _, err := full.Insert(subRoot); err != nil {
			return fmt.Errorf("%w: %v", ErrReplayFailed, err)
		}
	}

	if poll.MsgRoot == nil {
		return nil
	}
	root, err := full.Root()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReplayFailed, err)
	}
	if root.Cmp(poll.MsgRoot) != 0 {
		return fmt.Errorf("%w: %w", ErrReplayFailed, ErrAccumulatorMismatch)
	}
	return nil
}

// VoteOptions returns the accumulated per-leaf vote-option weights for use
// by tallyVotes, once every process-messages batch has been emitted.
func (s *processState) VoteOptions() map[int64]map[int64]*big.Int {
	return s.voteOptions
}

// hasUnprocessedMessages reports whether processMessages has more batches
// to emit.
func (s *processState) hasUnprocessedMessages() bool {
	return s.msgCursor >= 0
}

// processMessages consumes up to msgBatchSize messages (fewer for the
// final, short batch) in reverse chain order, applies every command that
// decrypts and whose signature verifies against the signer's current
// public key, and returns the batch's circuit-input record. Commands that
// fail to decrypt, whose state-tree index is out of range or unregistered,
// or whose signature fails verification, are dropped — not fatal, per
// §4.1.
func (s *processState) processMessages(poll *PollState, batchIndex int) (PMBatchInput, error) {
	currentCommitment := s.sbCommitment
	batchSize := poll.Params.MsgBatchSize()

	applied := 0
	for i := 0; i < batchSize && s.msgCursor >= 0; i++ {
		msg := poll.Messages[s.msgCursor]
		s.msgCursor--

		cmd, ok := decryptMessage(poll.Curve, poll.CoordinatorPrivKey, msg)
		if !ok {
			continue
		}
		idx := cmd.StateIndex.Int64()
		if idx < 0 || idx >= s.stateTree.Capacity() {
			continue
		}
		currentKey, ok := s.pubKeys[idx]
		if !ok {
			continue
		}
		if !verifyCommand(cmd, currentKey[0], currentKey[1]) {
			continue
		}

		newLeaf, err := poseidon.MultiPoseidon(cmd.NewPubKeyX, cmd.NewPubKeyY, cmd.NewVoteWeight)
		if err != nil {
			return PMBatchInput{}, err
		}
		if err := s.stateTree.Update(idx, newLeaf); err != nil {
			continue
		}
		s.pubKeys[idx] = [2]*big.Int{cmd.NewPubKeyX, cmd.NewPubKeyY}
		if s.voteOptions[idx] == nil {
			s.voteOptions[idx] = make(map[int64]*big.Int)
		}
		s.voteOptions[idx][cmd.VoteOptionIndex.Int64()] = new(big.Int).Set(cmd.NewVoteWeight)
		applied++
	}

	root, err := s.stateTree.Root()
	if err != nil {
		return PMBatchInput{}, err
	}
	newCommitment, err := poseidon.MultiPoseidon(root, big.NewInt(int64(batchIndex)))
	if err != nil {
		return PMBatchInput{}, err
	}
	s.sbCommitment = newCommitment

	return PMBatchInput{
		BatchIndex:          batchIndex,
		CurrentSbCommitment: currentCommitment,
		NewSbCommitment:     newCommitment,
		CircuitInputs: map[string]*big.Int{
			"batchSize":     big.NewInt(int64(batchSize)),
			"commandsApplied": big.NewInt(int64(applied)),
		},
	}, nil
}
