package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/tokamak-network/rla-coordinator/maci"
)

// pollInputFile is the on-disk shape a coordinator operator hands this CLI:
// a poll's signup and message logs, exported from wherever the MACI
// contract's event history actually lives (out of scope for this repo,
// per §1's "blockchain RPC and contract implementation"). A production
// deployment would replace fileChainReader with one backed by a live
// web3 MACI contract binding; this file-backed one is the minimal
// maci.ChainReader a standalone CLI run needs.
type pollInputFile struct {
	Ended    bool                    `json:"ended"`
	SignUps  []pollInputSignUp       `json:"signUps"`
	Messages []pollInputMessage      `json:"messages"`
	// MsgRoot is the on-chain message-accumulator root, if the export
	// included one; omitted or null skips the consistency check (§4.1
	// step 2).
	MsgRoot *big.Int `json:"msgRoot,omitempty"`
}

type pollInputSignUp struct {
	PubKeyX            *big.Int `json:"pubKeyX"`
	PubKeyY            *big.Int `json:"pubKeyY"`
	VoiceCreditBalance *big.Int `json:"voiceCreditBalance"`
}

type pollInputMessage struct {
	Data       [10]*big.Int `json:"data"`
	EncPubKeyX *big.Int     `json:"encPubKeyX"`
	EncPubKeyY *big.Int     `json:"encPubKeyY"`
}

// fileChainReader implements maci.ChainReader by reading a single
// previously exported JSON file, rather than querying a live MACI
// contract.
type fileChainReader struct {
	data *pollInputFile
}

func loadFileChainReader(path string) (*fileChainReader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading poll input file: %w", err)
	}
	var f pollInputFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing poll input file: %w", err)
	}
	return &fileChainReader{data: &f}, nil
}

func (r *fileChainReader) PollEnded(context.Context, maci.PollHandle) (bool, error) {
	return r.data.Ended, nil
}

func (r *fileChainReader) SignUps(context.Context, maci.PollHandle) ([]maci.SignUp, error) {
	out := make([]maci.SignUp, len(r.data.SignUps))
	for i, s := range r.data.SignUps {
		out[i] = maci.SignUp{
			PubKeyX:            s.PubKeyX,
			PubKeyY:            s.PubKeyY,
			VoiceCreditBalance: s.VoiceCreditBalance,
		}
	}
	return out, nil
}

func (r *fileChainReader) MsgAccumulatorRoot(context.Context, maci.PollHandle) (*big.Int, error) {
	return r.data.MsgRoot, nil
}

func (r *fileChainReader) Messages(context.Context, maci.PollHandle) ([]maci.PublishMessage, error) {
	out := make([]maci.PublishMessage, len(r.data.Messages))
	for i, m := range r.data.Messages {
		out[i] = maci.PublishMessage{
			Data:       m.Data,
			EncPubKeyX: m.EncPubKeyX,
			EncPubKeyY: m.EncPubKeyY,
		}
	}
	return out, nil
}
