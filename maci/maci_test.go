package maci

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/babyjub"

	"github.com/tokamak-network/rla-coordinator/crypto/ecc"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc/curves"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc/bjj_iden3"
	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
)

// fixedSignKey returns a deterministic BabyJubJub keypair for tests,
// built directly from a one-byte seed rather than crypto/rand.
func fixedSignKey(seed byte) *babyjub.PrivateKey {
	var sk babyjub.PrivateKey
	sk[0] = seed
	sk[1] = seed ^ 0x5a
	return &sk
}

// encryptCommand is a test-only mirror of decryptMessage's arithmetic: it
// builds a PublishMessage whose ciphertext fields decrypt back to cmd,
// signed by signKey, when the coordinator applies its private key to
// ephemeralPub.
func encryptCommand(t *testing.T, curve ecc.Point, coordPrivKey *big.Int, signKey *babyjub.PrivateKey, cmd [8]*big.Int) PublishMessage {
	t.Helper()

	ephemeralPriv, err := randScalar()
	qt.Assert(t, err, qt.IsNil)

	ephemeralPub := curve.New()
	ephemeralPub.ScalarBaseMult(ephemeralPriv)
	ex, ey := ephemeralPub.Point()

	sharedScalar := new(big.Int).Mul(coordPrivKey, ephemeralPriv)
	shared := curve.New()
	shared.ScalarBaseMult(sharedScalar)
	sx, _ := shared.Point()

	hash, err := poseidon.MultiPoseidon(cmd[0], cmd[1], cmd[2], cmd[3], cmd[4], cmd[5], cmd[6], cmd[7])
	qt.Assert(t, err, qt.IsNil)
	sig := signKey.SignPoseidon(hash)
	compressed := sig.Compress()
	r8 := leToField(compressed[0:32])
	s := leToField(compressed[32:64])

	plain := [10]*big.Int{}
	copy(plain[:8], cmd[:])
	plain[8] = r8
	plain[9] = s

	var data [10]*big.Int
	for i := 0; i < 10; i++ {
		ks, err := poseidon.MultiPoseidon(sx, big.NewInt(int64(i)))
		qt.Assert(t, err, qt.IsNil)
		data[i] = new(big.Int).Add(plain[i], ks)
	}

	return PublishMessage{
		Data:       data,
		EncPubKeyX: ex,
		EncPubKeyY: ey,
	}
}

func leToField(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	return new(big.Int).SetBytes(be)
}

func randScalar() (*big.Int, error) {
	return big.NewInt(987654321), nil
}

func testPoll(t *testing.T) *PollState {
	t.Helper()
	curve := curves.New(bjj_iden3.CurveType)
	coordPriv := big.NewInt(123456789)

	key0 := fixedSignKey(11)
	key1 := fixedSignKey(22)
	pub0 := key0.Public()
	pub1 := key1.Public()

	signUps := []SignUp{
		{PubKeyX: pub0.X, PubKeyY: pub0.Y, VoiceCreditBalance: big.NewInt(100)},
		{PubKeyX: pub1.X, PubKeyY: pub1.Y, VoiceCreditBalance: big.NewInt(100)},
	}

	// Signed by key0, the current key on record for StateIndex 0.
	msg := encryptCommand(t, curve, coordPriv, key0, [8]*big.Int{
		big.NewInt(0),  // StateIndex
		big.NewInt(5),  // NewPubKeyX
		big.NewInt(6),  // NewPubKeyY
		big.NewInt(1),  // VoteOptionIndex (yes)
		big.NewInt(7),  // NewVoteWeight
		big.NewInt(1),  // Nonce
		big.NewInt(1),  // PollID
		big.NewInt(42), // Salt
	})

	return &PollState{
		Params: PollParams{
			StateTreeDepth:      4,
			IntStateTreeDepth:   1,
			MsgTreeDepth:        2,
			MsgTreeSubDepth:     1,
			VoteOptionTreeDepth: 2,
		},
		CoordinatorPrivKey: coordPriv,
		SignUps:            signUps,
		Messages:           []PublishMessage{msg},
		Curve:              curve,
	}
}

func TestReplayPollDeterministic(t *testing.T) {
	poll1 := testPoll(t)
	poll2 := testPoll(t)

	r1, err := ReplayPoll(poll1)
	qt.Assert(t, err, qt.IsNil)
	r2, err := ReplayPoll(poll2)
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, len(r1.PMBatchInputs), qt.Equals, len(r2.PMBatchInputs))
	for i := range r1.PMBatchInputs {
		qt.Assert(t, r1.PMBatchInputs[i].NewSbCommitment.Cmp(r2.PMBatchInputs[i].NewSbCommitment), qt.Equals, 0)
	}
	qt.Assert(t, r1.Tally.YesVotes.Cmp(r2.Tally.YesVotes), qt.Equals, 0)
	qt.Assert(t, r1.Tally.NoVotes.Cmp(r2.Tally.NoVotes), qt.Equals, 0)
}

func TestReplayPollChainConsistency(t *testing.T) {
	poll := testPoll(t)
	res, err := ReplayPoll(poll)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, len(res.PMBatchInputs) > 0, qt.IsTrue)

	for k := 1; k < len(res.PMBatchInputs); k++ {
		prev := res.PMBatchInputs[k-1]
		cur := res.PMBatchInputs[k]
		qt.Assert(t, cur.CurrentSbCommitment.Cmp(prev.NewSbCommitment), qt.Equals, 0)
	}
}

func TestReplayPollAppliesVote(t *testing.T) {
	poll := testPoll(t)
	res, err := ReplayPoll(poll)
	qt.Assert(t, err, qt.IsNil)

	// The single encrypted command votes weight 7 on option 1 ("yes").
	qt.Assert(t, res.Tally.YesVotes.Cmp(big.NewInt(7)), qt.Equals, 0)
	qt.Assert(t, res.Tally.NoVotes.Sign(), qt.Equals, 0)
}

// TestReplayPollDropsBadSignature mirrors TestReplayPollAppliesVote but
// signs the command with a key other than the one on record for its
// StateIndex: the command must be dropped, not applied or treated as
// fatal, per §4.1.
func TestReplayPollDropsBadSignature(t *testing.T) {
	curve := curves.New(bjj_iden3.CurveType)
	coordPriv := big.NewInt(123456789)

	key0 := fixedSignKey(11)
	wrongKey := fixedSignKey(99)
	pub0 := key0.Public()

	signUps := []SignUp{
		{PubKeyX: pub0.X, PubKeyY: pub0.Y, VoiceCreditBalance: big.NewInt(100)},
	}
	msg := encryptCommand(t, curve, coordPriv, wrongKey, [8]*big.Int{
		big.NewInt(0), big.NewInt(5), big.NewInt(6), big.NewInt(1),
		big.NewInt(7), big.NewInt(1), big.NewInt(1), big.NewInt(42),
	})

	poll := &PollState{
		Params: PollParams{
			StateTreeDepth:      4,
			IntStateTreeDepth:   1,
			MsgTreeDepth:        2,
			MsgTreeSubDepth:     1,
			VoteOptionTreeDepth: 2,
		},
		CoordinatorPrivKey: coordPriv,
		SignUps:            signUps,
		Messages:           []PublishMessage{msg},
		Curve:              curve,
	}

	res, err := ReplayPoll(poll)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, res.Tally.YesVotes.Sign(), qt.Equals, 0)
	qt.Assert(t, res.Tally.NoVotes.Sign(), qt.Equals, 0)
}

// TestVerifyMessageAccumulatorMismatchIsFatal checks that a poll carrying a
// MsgRoot which does not match the replayed message log fails replay with
// ErrAccumulatorMismatch.
func TestVerifyMessageAccumulatorMismatchIsFatal(t *testing.T) {
	poll := testPoll(t)
	poll.MsgRoot = big.NewInt(1) // deliberately wrong

	_, err := ReplayPoll(poll)
	qt.Assert(t, err, qt.ErrorIs, ErrReplayFailed)
	qt.Assert(t, err, qt.ErrorIs, ErrAccumulatorMismatch)
}
