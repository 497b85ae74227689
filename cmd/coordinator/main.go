// Command rla-coordinator drives a single MACI poll's risk-limiting audit
// end to end: replaying the poll (component A), extracting its commitment
// chains (component B), committing them on-chain and sequencing the
// reveal/sample/submit/finalize state machine (components D-F) until the
// audit reaches Finalized or Rejected.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokamak-network/rla-coordinator/commitment"
	"github.com/tokamak-network/rla-coordinator/crypto/ecc/curves"
	"github.com/tokamak-network/rla-coordinator/log"
	"github.com/tokamak-network/rla-coordinator/maci"
	"github.com/tokamak-network/rla-coordinator/orchestrator"
	"github.com/tokamak-network/rla-coordinator/proof"
	"github.com/tokamak-network/rla-coordinator/rla"
	"github.com/tokamak-network/rla-coordinator/storage"
	"github.com/tokamak-network/rla-coordinator/web3"
	"github.com/tokamak-network/rla-coordinator/web3/txmanager"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting rla-coordinator", "poll", cfg.Poll.ID)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infow("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("coordinator run failed: %v", err)
	}
	log.Info("audit reached a terminal phase, exiting")
}

func run(ctx context.Context, cfg *Config) error {
	replay, commitments, err := replayAndExtract(ctx, cfg)
	if err != nil {
		return fmt.Errorf("replay/extract: %w", err)
	}

	if err := storage.SaveCommitments(cfg.Prove.OutputDir, commitments); err != nil {
		log.Warnw("failed to persist commitments.json", "err", err)
	}
	if err := storage.SaveTally(cfg.Prove.OutputDir, &storage.Tally{
		YesVotes: commitments.Tally.YesVotes,
		NoVotes:  commitments.Tally.NoVotes,
	}); err != nil {
		log.Warnw("failed to persist tally.json", "err", err)
	}

	chain, err := dialAuditChain(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dialing audit chain: %w", err)
	}

	auditID, err := resolveAuditID(ctx, cfg, chain, commitments)
	if err != nil {
		return fmt.Errorf("resolving audit id: %w", err)
	}
	log.Infow("driving audit", "auditId", auditID)

	pmArtifacts, tvArtifacts, err := loadCircuitArtifacts(cfg)
	if err != nil {
		return fmt.Errorf("loading circuit artifacts: %w", err)
	}

	driveCfg := orchestrator.Config{
		Chain:               chain,
		OutputDir:           cfg.Prove.OutputDir,
		PMArtifacts:         pmArtifacts,
		TVArtifacts:         tvArtifacts,
		PollInterval:        cfg.Prove.PollInterval,
		MaxConcurrentProofs: cfg.Prove.MaxConcurrent,
	}
	return orchestrator.Drive(ctx, driveCfg, auditID, replay)
}

// replayAndExtract runs components A and B: it loads the poll's on-chain
// state from the configured input file, replays it into per-batch circuit
// inputs, and extracts the two commitment chains.
func replayAndExtract(ctx context.Context, cfg *Config) (*maci.ReplayResult, *commitment.Commitments, error) {
	reader, err := loadFileChainReader(cfg.Poll.InputFile)
	if err != nil {
		return nil, nil, err
	}

	params := maci.PollParams{
		StateTreeDepth:      cfg.Poll.StateTreeDepth,
		IntStateTreeDepth:   cfg.Poll.IntStateTreeDepth,
		MsgTreeDepth:        cfg.Poll.MsgTreeDepth,
		MsgTreeSubDepth:     cfg.Poll.MsgTreeSubDepth,
		VoteOptionTreeDepth: cfg.Poll.VoteOptionTreeDepth,
	}

	poll, err := maci.LoadPollState(ctx, reader, cfg.Poll.ID, params, maci.ReplayOptions{
		SkipEndedCheck: cfg.Poll.SkipEndedCheck,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading poll state: %w", err)
	}

	coordPriv, ok := new(big.Int).SetString(cfg.Poll.CoordinatorPrivKey, 10)
	if !ok {
		return nil, nil, fmt.Errorf("coordinator private key is not a valid decimal integer")
	}
	poll.Curve = curves.New("bjj_iden3")
	poll.CoordinatorPrivKey = coordPriv

	pubKey := curves.New("bjj_iden3")
	pubKey.ScalarBaseMult(coordPriv)
	poll.CoordinatorPubKeyX, poll.CoordinatorPubKeyY = pubKey.Point()

	replay, err := maci.ReplayPoll(poll)
	if err != nil {
		return nil, nil, fmt.Errorf("replaying poll: %w", err)
	}

	commitments, err := commitment.Extract(replay.PMBatchInputs, replay.TVBatchInputs, replay.Tally)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting commitments: %w", err)
	}
	log.Infow("replay complete",
		"pmBatches", len(replay.PMBatchInputs),
		"tvBatches", len(replay.TVBatchInputs),
		"yesVotes", commitments.Tally.YesVotes.String(),
		"noVotes", commitments.Tally.NoVotes.String())

	return replay, commitments, nil
}

// dialAuditChain connects to the audit contract and wires up the
// transaction manager the send path needs.
func dialAuditChain(ctx context.Context, cfg *Config) (*web3.Contracts, error) {
	contracts, err := web3.New(cfg.Web3.Rpc, 1.0)
	if err != nil {
		return nil, fmt.Errorf("dialing web3 endpoints: %w", err)
	}

	addr, err := auditContractAddress(cfg)
	if err != nil {
		return nil, err
	}
	if err := contracts.LoadContract(addr); err != nil {
		return nil, fmt.Errorf("loading audit contract %s: %w", addr, err)
	}

	if err := contracts.SetAccountPrivateKey(cfg.Web3.PrivKey); err != nil {
		return nil, fmt.Errorf("setting account private key: %w", err)
	}
	log.Infow("web3 contracts ready",
		"chainId", contracts.ChainID,
		"account", contracts.AccountAddress().Hex(),
		"auditContract", addr)

	tm, err := txmanager.New(ctx, contracts.Web3Pool(), contracts.Client(), contracts.Signer(),
		txmanager.DefaultConfig(contracts.ChainID))
	if err != nil {
		return nil, fmt.Errorf("starting transaction manager: %w", err)
	}
	contracts.SetTxManager(tm)

	return contracts, nil
}

// resolveAuditID either resumes an already-committed audit (cfg.Poll.AuditID
// nonzero) or commits the freshly extracted commitment chains as a new one.
func resolveAuditID(ctx context.Context, cfg *Config, chain *web3.Contracts, commitments *commitment.Commitments) (rla.AuditID, error) {
	if cfg.Poll.AuditID != 0 {
		return rla.AuditID(cfg.Poll.AuditID), nil
	}

	stake, err := chain.CoordinatorStakeConst(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading coordinator stake constant: %w", err)
	}

	id, err := chain.CommitResult(ctx, chain.AccountAddress(), cfg.Poll.ID,
		commitments.PMCommitments, commitments.TVCommitments,
		commitments.Tally.YesVotes, commitments.Tally.NoVotes,
		len(commitments.PMCommitments)-1, len(commitments.TVCommitments)-1,
		stake)
	if err != nil {
		return 0, fmt.Errorf("committing result: %w", err)
	}
	return id, nil
}

func loadCircuitArtifacts(cfg *Config) (proof.CircuitArtifacts, proof.CircuitArtifacts, error) {
	pmWasm, err := os.ReadFile(cfg.Prove.PMWasm)
	if err != nil {
		return proof.CircuitArtifacts{}, proof.CircuitArtifacts{}, fmt.Errorf("reading pm wasm: %w", err)
	}
	pmKey, err := os.ReadFile(cfg.Prove.PMProvingKey)
	if err != nil {
		return proof.CircuitArtifacts{}, proof.CircuitArtifacts{}, fmt.Errorf("reading pm proving key: %w", err)
	}
	tvWasm, err := os.ReadFile(cfg.Prove.TVWasm)
	if err != nil {
		return proof.CircuitArtifacts{}, proof.CircuitArtifacts{}, fmt.Errorf("reading tv wasm: %w", err)
	}
	tvKey, err := os.ReadFile(cfg.Prove.TVProvingKey)
	if err != nil {
		return proof.CircuitArtifacts{}, proof.CircuitArtifacts{}, fmt.Errorf("reading tv proving key: %w", err)
	}
	return proof.CircuitArtifacts{Wasm: pmWasm, ProvingKey: pmKey},
		proof.CircuitArtifacts{Wasm: tvWasm, ProvingKey: tvKey},
		nil
}
