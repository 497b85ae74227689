// Package maci rebuilds a MACI poll's signup and message state from on-chain
// events and replays the process-messages and tally-votes state machines
// over fixed-size batches, producing one circuit-input record per batch.
//
// The circuit definitions themselves are out of scope: this package models
// only the data a batch commits to (the Sb/tally commitments and the public
// witness values the proof marshaller binds to), not the arithmetic circuit.
package maci

import (
	"math/big"
	"time"

	"github.com/tokamak-network/rla-coordinator/crypto/ecc"
)

// PollParams are the tree-size parameters fixed at poll deployment.
type PollParams struct {
	StateTreeDepth       int
	IntStateTreeDepth    int
	MsgTreeDepth         int
	MsgTreeSubDepth      int
	VoteOptionTreeDepth  int
}

// MsgBatchSize is 5^MsgTreeSubDepth, the number of messages processed per
// process-messages batch.
func (p PollParams) MsgBatchSize() int {
	return intPow5(p.MsgTreeSubDepth)
}

// TallyBatchSize is 5^IntStateTreeDepth, the number of state leaves tallied
// per tally-votes batch.
func (p PollParams) TallyBatchSize() int {
	return intPow5(p.IntStateTreeDepth)
}

func intPow5(n int) int {
	v := 1
	for range n {
		v *= 5
	}
	return v
}

// SignUp is a voter registration event: a BabyJubJub public key and an
// initial voice-credit balance.
type SignUp struct {
	PubKeyX, PubKeyY   *big.Int
	VoiceCreditBalance *big.Int
	Timestamp          time.Time
}

// PublishMessage is an encrypted-ballot event: ten field elements (the
// encrypted command, plus a compressed EdDSA-BabyJubJub signature packed
// across the last two) plus the ephemeral public key used to derive the
// ECDH shared key with the coordinator's private key.
type PublishMessage struct {
	Data             [10]*big.Int
	EncPubKeyX       *big.Int
	EncPubKeyY       *big.Int
	Timestamp        time.Time
}

// PollState is the external, on-chain-observable description of a poll:
// its tree parameters, its coordinator keys, and the ordered event logs
// that a ChainReader surfaces.
type PollState struct {
	Params PollParams

	CoordinatorPubKeyX, CoordinatorPubKeyY *big.Int
	CoordinatorPrivKey                     *big.Int

	SignUps   []SignUp
	Messages  []PublishMessage

	// Curve is the elliptic curve implementation used for ECDH shared-key
	// derivation between CoordinatorPrivKey and each message's ephemeral
	// public key. Callers supply a concrete curves.New("bjj_iden3") value.
	Curve ecc.Point

	// MsgRoot is the on-chain message-accumulator root to verify the
	// replayed message log against (§4.1 step 2). A ChainReader that has
	// none to offer (e.g. a test or file-backed reader) leaves this nil,
	// which skips the consistency check.
	MsgRoot *big.Int
}

// Command is a decoded MACI ballot command extracted from a PublishMessage
// after ECDH decryption. SigR8/SigS are the two halves of a compressed
// EdDSA-BabyJubJub signature over the command fields, carried by the
// message's last two ciphertext slots; verifyCommand checks them against
// the signer's current public key before a command is applied.
type Command struct {
	StateIndex      *big.Int
	NewPubKeyX      *big.Int
	NewPubKeyY      *big.Int
	VoteOptionIndex *big.Int
	NewVoteWeight   *big.Int
	Nonce           *big.Int
	PollID          *big.Int
	Salt            *big.Int
	SigR8           *big.Int
	SigS            *big.Int
}

// StateLeaf is one leaf of the signup state tree: a voter's current public
// key, voice-credit balance, and the vote weights assigned across options.
type StateLeaf struct {
	PubKeyX, PubKeyY   *big.Int
	VoiceCreditBalance *big.Int
	VoteOptionTree     map[int64]*big.Int // voteOptionIndex -> weight
	Nonce              *big.Int
}

// Clone returns a deep-enough copy of the leaf for use as "current" state
// when building the "new" state after applying a command.
func (l *StateLeaf) Clone() *StateLeaf {
	cp := &StateLeaf{
		PubKeyX:            new(big.Int).Set(l.PubKeyX),
		PubKeyY:            new(big.Int).Set(l.PubKeyY),
		VoiceCreditBalance: new(big.Int).Set(l.VoiceCreditBalance),
		Nonce:              new(big.Int).Set(l.Nonce),
		VoteOptionTree:     make(map[int64]*big.Int, len(l.VoteOptionTree)),
	}
	for k, v := range l.VoteOptionTree {
		cp.VoteOptionTree[k] = new(big.Int).Set(v)
	}
	return cp
}
