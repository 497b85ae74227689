package maci

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"

	"github.com/tokamak-network/rla-coordinator/crypto/ecc"
	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
	"github.com/tokamak-network/rla-coordinator/types"
)

// sharedKey derives the ECDH shared secret between the coordinator's
// private key and a message's ephemeral public key: sharedKey = privKey *
// ephemeralPubKey, evaluated on the curve the poll was configured with.
func sharedKey(curve ecc.Point, privKey, ephemeralPubKeyX, ephemeralPubKeyY *big.Int) (*big.Int, error) {
	pub := curve.New().SetPoint(ephemeralPubKeyX, ephemeralPubKeyY)
	shared := curve.New()
	shared.ScalarMult(pub, privKey)
	x, _ := shared.Point()
	if x == nil {
		return nil, fmt.Errorf("maci: ecdh produced a nil shared point")
	}
	return x, nil
}

// decryptMessage recovers the Command bound to msg, using the shared key
// derived from the coordinator's private key and the message's ephemeral
// public key. Decryption follows MACI's Poseidon-stream scheme: each
// plaintext field is one ciphertext field minus a keystream field derived
// as Poseidon(sharedKey, counter). The decrypted command carries its own
// compressed signature (plain[8], plain[9]); verifyCommand checks it
// separately, against the signer's current public key, since that key is
// not known here.
//
// A malformed or mis-keyed message does not error here: per §4.1 an
// undecryptable command is silently dropped by the caller, not treated as
// fatal.
func decryptMessage(curve ecc.Point, privKey *big.Int, msg PublishMessage) (*Command, bool) {
	key, err := sharedKey(curve, privKey, msg.EncPubKeyX, msg.EncPubKeyY)
	if err != nil {
		return nil, false
	}

	plain := make([]*big.Int, len(msg.Data))
	for i, ct := range msg.Data {
		ks, err := poseidon.MultiPoseidon(key, big.NewInt(int64(i)))
		if err != nil {
			return nil, false
		}
		p := new(big.Int).Sub(ct, ks)
		p.Mod(p, types.BabyJubJubSubOrder)
		plain[i] = p
	}

	if len(plain) < 10 {
		return nil, false
	}
	return &Command{
		StateIndex:      plain[0],
		NewPubKeyX:      plain[1],
		NewPubKeyY:      plain[2],
		VoteOptionIndex: plain[3],
		NewVoteWeight:   plain[4],
		Nonce:           plain[5],
		PollID:          plain[6],
		Salt:            plain[7],
		SigR8:           plain[8],
		SigS:            plain[9],
	}, true
}

// commandHash is the Poseidon digest a command's signature is computed
// over: every field the command asserts except the signature itself.
func commandHash(cmd *Command) (*big.Int, error) {
	return poseidon.MultiPoseidon(
		cmd.StateIndex, cmd.NewPubKeyX, cmd.NewPubKeyY,
		cmd.VoteOptionIndex, cmd.NewVoteWeight, cmd.Nonce,
		cmd.PollID, cmd.Salt,
	)
}

// verifyCommand checks cmd's EdDSA-BabyJubJub signature against
// (pubKeyX, pubKeyY) — the public key on record at cmd.StateIndex *before*
// this command is applied, not the new key it may be installing. This is
// what authorizes a command: the old key signs off on the change, per
// MACI's key-change semantics.
func verifyCommand(cmd *Command, pubKeyX, pubKeyY *big.Int) bool {
	if cmd.SigR8 == nil || cmd.SigS == nil || pubKeyX == nil || pubKeyY == nil {
		return false
	}

	hash, err := commandHash(cmd)
	if err != nil {
		return false
	}

	var compressed [64]byte
	fieldToLE(compressed[0:32], cmd.SigR8)
	fieldToLE(compressed[32:64], cmd.SigS)
	sig, err := babyjub.DecompressSig(compressed)
	if err != nil {
		return false
	}

	pub := babyjub.PublicKey{X: pubKeyX, Y: pubKeyY}
	return pub.VerifyPoseidon(hash, sig)
}

// fieldToLE writes v into dst (32 bytes) little-endian, the encoding
// babyjub uses for a compressed signature's two halves.
func fieldToLE(dst []byte, v *big.Int) {
	be := v.Bytes()
	for i, b := range be {
		dst[len(be)-1-i] = b
	}
}
