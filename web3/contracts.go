package web3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gtypes "github.com/ethereum/go-ethereum/core/types"

	ethSigner "github.com/tokamak-network/rla-coordinator/crypto/signatures/ethereum"
	"github.com/tokamak-network/rla-coordinator/log"
	"github.com/tokamak-network/rla-coordinator/proof"
	"github.com/tokamak-network/rla-coordinator/rla"
	"github.com/tokamak-network/rla-coordinator/web3/rpc"
	"github.com/tokamak-network/rla-coordinator/web3/txmanager"
)

const (
	// web3QueryTimeout bounds a single view call or fee estimation.
	web3QueryTimeout = 10 * time.Second

	// web3WaitTimeout bounds how long Contracts waits for a submitted
	// transaction to be mined before reporting a transient RPC error.
	web3WaitTimeout = 2 * time.Minute

	// currentBlockIntervalUpdate is how often CurrentBlock re-queries the
	// node rather than serving its cached value.
	currentBlockIntervalUpdate = 5 * time.Second
)

// auditABI is the poll-audit contract's ABI (§6): commitResult through
// finalizeChallengeResponse plus the read methods PollAudits and its
// siblings use. There is no code-generated binding for it, unlike the
// davinci registries this package is descended from, so every method
// below packs and unpacks against this ABI directly.
var auditABI *abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(auditContractABI))
	if err != nil {
		panic(fmt.Errorf("web3: failed to parse audit contract ABI: %w", err))
	}
	auditABI = &parsed
}

// Contracts binds an rla.AuditChain to a deployed audit contract over one
// or more web3 RPC endpoints, and is the only production implementation
// of that interface (rla.Ledger is the in-memory one used by tests and
// dry runs).
type Contracts struct {
	ChainID       uint64
	GasMultiplier float64

	auditAddress common.Address

	web3pool *rpc.Web3Pool
	cli      *rpc.Client
	signer   *ethSigner.Signer

	currentBlock           uint64
	currentBlockLastUpdate time.Time
	currentBlockMutex      sync.Mutex

	txManager *txmanager.TxManager
}

var _ rla.AuditChain = (*Contracts)(nil)

// New dials every endpoint in web3rpcs, requiring they all agree on a
// single chain ID, and returns a Contracts ready for LoadContract.
func New(web3rpcs []string, gasMultiplier float64) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	var chainID *uint64
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	for _, endpoint := range web3rpcs {
		cli, err := w3pool.AddEndpoint(ctx, endpoint)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", endpoint, "error", err)
			continue
		}
		cID, err := cli.ChainID(ctx)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", endpoint, "error", err)
			continue
		}
		id := cID.Uint64()
		if chainID == nil {
			chainID = &id
		} else if *chainID != id {
			return nil, fmt.Errorf("web3: endpoints have different chain IDs: %d and %d", *chainID, id)
		}
	}
	if chainID == nil {
		return nil, fmt.Errorf("web3: no usable endpoints in %v", web3rpcs)
	}

	cli := w3pool.Client(*chainID)
	lastBlock, err := cli.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("web3: failed to get block number: %w", err)
	}

	if gasMultiplier <= 0 {
		gasMultiplier = 1.0
	}

	log.Infow("web3 client initialized",
		"chainID", *chainID,
		"lastBlock", lastBlock,
		"numEndpoints", len(web3rpcs))

	return &Contracts{
		ChainID:                *chainID,
		GasMultiplier:          gasMultiplier,
		web3pool:               w3pool,
		cli:                    cli,
		currentBlock:           lastBlock,
		currentBlockLastUpdate: time.Now(),
	}, nil
}

// Web3Pool returns the web3 pool used by the Contracts instance.
func (c *Contracts) Web3Pool() *rpc.Web3Pool { return c.web3pool }

// Client returns the web3 client used by the Contracts instance.
func (c *Contracts) Client() *rpc.Client { return c.cli }

// Signer returns the signer used to sign submitted transactions.
func (c *Contracts) Signer() *ethSigner.Signer { return c.signer }

// SetAccountPrivateKey configures the signer used to sign transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	signer, err := ethSigner.NewSignerFromHex(hexPrivKey)
	if err != nil {
		return fmt.Errorf("web3: failed to load private key: %w", err)
	}
	c.signer = signer
	return nil
}

// AccountAddress returns the address transactions are signed from.
func (c *Contracts) AccountAddress() common.Address {
	return c.signer.Address()
}

// SetTxManager installs the transaction manager used for sending and
// tracking the audit contract's transactions. Must be called (after
// SetAccountPrivateKey) before any state-changing method below is used.
func (c *Contracts) SetTxManager(tm *txmanager.TxManager) {
	c.txManager = tm
}

// LoadContract records the address of the deployed audit contract.
// Address is a 0x-prefixed hex string, per config.AuditWeb3Config.
func (c *Contracts) LoadContract(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("web3: invalid audit contract address %q", address)
	}
	c.auditAddress = common.HexToAddress(address)
	return nil
}

// CurrentBlock returns the current block number, refreshing its cache at
// most every currentBlockIntervalUpdate.
func (c *Contracts) CurrentBlock() uint64 {
	c.currentBlockMutex.Lock()
	defer c.currentBlockMutex.Unlock()
	now := time.Now()
	if c.currentBlockLastUpdate.Add(currentBlockIntervalUpdate).Before(now) {
		ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
		defer cancel()
		block, err := c.cli.BlockNumber(ctx)
		if err != nil {
			log.Warnw("failed to get block number", "error", err)
			return c.currentBlock
		}
		c.currentBlock = block
		c.currentBlockLastUpdate = now
	}
	return c.currentBlock
}

// call packs method(args...), executes it as an eth_call against the
// audit contract, and unpacks the returned values in output order.
func (c *Contracts) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := auditABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("web3: packing %s: %w", method, err)
	}
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	raw, err := c.cli.CallContract(ctx, ethereum.CallMsg{To: &c.auditAddress, Data: data}, nil)
	if err != nil {
		if reason, ok := c.DecodeError(err); ok {
			return nil, fmt.Errorf("%w: %s", rla.ErrPreconditionViolated, reason)
		}
		return nil, fmt.Errorf("web3: calling %s: %w", method, err)
	}
	out, err := auditABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("web3: unpacking %s result: %w", method, err)
	}
	return out, nil
}

// send packs method(args...), submits it as a transaction via the tx
// manager, and blocks until it is mined. A reverted transaction is
// reported as ErrPreconditionViolated, since every revert path in the
// audit contract corresponds to a phase/caller/timer assumption that did
// not hold (§4.4).
func (c *Contracts) send(ctx context.Context, method string, args ...any) error {
	if c.txManager == nil {
		return fmt.Errorf("web3: no transaction manager configured")
	}
	data, err := auditABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("web3: packing %s: %w", method, err)
	}
	id, hash, err := c.txManager.SendTxWithFallback(ctx, func(nonce uint64) (*gtypes.Transaction, error) {
		return c.txManager.BuildDynamicFeeTx(ctx, c.auditAddress, data, nonce)
	})
	if err != nil {
		if reason, ok := c.DecodeError(err); ok {
			return fmt.Errorf("%w: %s", rla.ErrPreconditionViolated, reason)
		}
		return fmt.Errorf("%w: sending %s: %v", rla.ErrRpcTransient, method, err)
	}
	if err := c.txManager.WaitTxByID(id, web3WaitTimeout); err != nil {
		return fmt.Errorf("%w: waiting for %s (tx %s): %v", rla.ErrRpcTransient, method, hash.Hex(), err)
	}
	ok, err := c.txManager.CheckTxStatusByID(id)
	if err != nil {
		return fmt.Errorf("%w: checking %s status: %v", rla.ErrRpcTransient, method, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s reverted (tx %s)", rla.ErrPreconditionViolated, method, hash.Hex())
	}
	return nil
}

// DecodeError tries to decode a revert reason or custom error out of err
// using the audit contract's ABI, falling back to the standard
// Error(string)/Panic(uint256) encodings. Returns ok=false if nothing
// usable could be extracted (e.g. a plain network error).
func (c *Contracts) DecodeError(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	rpcErr := rpc.ParseError(err)
	if rpcErr == nil || len(rpcErr.Data) < 4 {
		return "", false
	}
	var errID [4]byte
	copy(errID[:], rpcErr.Data[:4])
	if abiErr, uerr := auditABI.ErrorByID(errID); uerr == nil {
		vals, uerr := abiErr.Inputs.Unpack(rpcErr.Data[4:])
		if uerr != nil || len(vals) == 0 {
			return fmt.Sprintf("%s %s", abiErr.Name, rpcErr.Data[:4].String()), true
		}
		return fmt.Sprintf("%s %+v", abiErr.Name, vals), true
	}
	decoded, uerr := abi.UnpackRevert(rpcErr.Data)
	if uerr != nil {
		return "", false
	}
	return decoded, true
}

func wireToBig(w proof.Wire) [8]*big.Int {
	var out [8]*big.Int
	for i := range w {
		out[i] = w[i]
	}
	return out
}

// CommitResult implements rla.AuditChain.
func (c *Contracts) CommitResult(ctx context.Context, _ common.Address, poll rla.PollHandle, pmCommitments, tvCommitments []*big.Int, yes, no *big.Int, pmBatchSize, tvBatchSize int, stake *big.Int) (rla.AuditID, error) {
	pollID, ok := poll.(string)
	if !ok {
		return 0, fmt.Errorf("web3: CommitResult requires a string poll handle, got %T", poll)
	}
	if err := c.send(ctx, "commitResult", pollID, pmCommitments, tvCommitments, yes, no,
		big.NewInt(int64(pmBatchSize)), big.NewInt(int64(tvBatchSize)), stake); err != nil {
		return 0, err
	}
	out, err := c.call(ctx, "nextAuditId")
	if err != nil {
		return 0, err
	}
	next, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("web3: unexpected nextAuditId result type %T", out[0])
	}
	// nextAuditId is the counter the contract will hand out next, so the id
	// just committed is one below it.
	return rla.AuditID(next.Uint64() - 1), nil
}

// RevealSample implements rla.AuditChain.
func (c *Contracts) RevealSample(ctx context.Context, id rla.AuditID) (rla.Selection, error) {
	if err := c.send(ctx, "revealSample", idArg(id)); err != nil {
		return rla.Selection{}, err
	}
	return c.GetSelectedBatches(ctx, id)
}

// SubmitPmProof implements rla.AuditChain.
func (c *Contracts) SubmitPmProof(ctx context.Context, id rla.AuditID, sampleSlot int, wire proof.Wire) error {
	return c.submitProof(ctx, "submitPmProof", id, sampleSlot, wire)
}

// SubmitTvProof implements rla.AuditChain.
func (c *Contracts) SubmitTvProof(ctx context.Context, id rla.AuditID, sampleSlot int, wire proof.Wire) error {
	return c.submitProof(ctx, "submitTvProof", id, sampleSlot, wire)
}

// SubmitPmProofForChallenge implements rla.AuditChain.
func (c *Contracts) SubmitPmProofForChallenge(ctx context.Context, id rla.AuditID, batchIndex int, wire proof.Wire) error {
	return c.submitProof(ctx, "submitPmProofForChallenge", id, batchIndex, wire)
}

// SubmitTvProofForChallenge implements rla.AuditChain.
func (c *Contracts) SubmitTvProofForChallenge(ctx context.Context, id rla.AuditID, batchIndex int, wire proof.Wire) error {
	return c.submitProof(ctx, "submitTvProofForChallenge", id, batchIndex, wire)
}

func (c *Contracts) submitProof(ctx context.Context, method string, id rla.AuditID, slot int, wire proof.Wire) error {
	w := wireToBig(wire)
	return c.send(ctx, method, idArg(id), big.NewInt(int64(slot)), w)
}

// FinalizeSampling implements rla.AuditChain.
func (c *Contracts) FinalizeSampling(ctx context.Context, id rla.AuditID) error {
	return c.send(ctx, "finalizeSampling", idArg(id))
}

// Finalize implements rla.AuditChain.
func (c *Contracts) Finalize(ctx context.Context, id rla.AuditID) error {
	return c.send(ctx, "finalize", idArg(id))
}

// Challenge implements rla.AuditChain.
func (c *Contracts) Challenge(ctx context.Context, id rla.AuditID, _ common.Address, bond *big.Int) error {
	return c.send(ctx, "challenge", idArg(id), bond)
}

// ClaimChallengeTimeout implements rla.AuditChain.
func (c *Contracts) ClaimChallengeTimeout(ctx context.Context, id rla.AuditID) error {
	return c.send(ctx, "claimChallengeTimeout", idArg(id))
}

// FinalizeChallengeResponse implements rla.AuditChain.
func (c *Contracts) FinalizeChallengeResponse(ctx context.Context, id rla.AuditID) error {
	return c.send(ctx, "finalizeChallengeResponse", idArg(id))
}

// PollAudits implements rla.AuditChain.
func (c *Contracts) PollAudits(ctx context.Context, id rla.AuditID) (*rla.Record, error) {
	out, err := c.call(ctx, "pollAudits", idArg(id))
	if err != nil {
		return nil, err
	}
	if len(out) != 19 {
		return nil, fmt.Errorf("web3: pollAudits returned %d values, want 19", len(out))
	}
	rec := &rla.Record{
		AuditID:            id,
		Coordinator:        out[0].(common.Address),
		Poll:               out[1].(string),
		StakeAmount:        out[2].(*big.Int),
		YesVotes:           out[3].(*big.Int),
		NoVotes:            out[4].(*big.Int),
		PMBatchCount:       int(out[5].(*big.Int).Int64()),
		TVBatchCount:       int(out[6].(*big.Int).Int64()),
		PMBatchSize:        int(out[7].(*big.Int).Int64()),
		TVBatchSize:        int(out[8].(*big.Int).Int64()),
		CommitHash:         common.Hash(out[9].([32]byte)),
		CommitBlock:        out[10].(*big.Int).Uint64(),
		Phase:              rla.Phase(out[11].(uint8)),
		ProofDeadline:       time.Unix(out[12].(*big.Int).Int64(), 0).UTC(),
		TentativeTimestamp: time.Unix(out[13].(*big.Int).Int64(), 0).UTC(),
		ChallengeDeadline:  time.Unix(out[14].(*big.Int).Int64(), 0).UTC(),
		Challenger:         out[15].(common.Address),
		ChallengeBond:      out[16].(*big.Int),
		PMBatchVerified:    out[17].([]bool),
		TVBatchVerified:    out[18].([]bool),
	}
	sel, err := c.GetSelectedBatches(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.PMSelectedIndices = sel.PMIndices
	rec.TVSelectedIndices = sel.TVIndices
	counts, err := c.GetSampleCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.PMSampleCount = counts.PMSamples
	rec.TVSampleCount = counts.TVSamples
	return rec, nil
}

// GetSampleCounts implements rla.AuditChain.
func (c *Contracts) GetSampleCounts(ctx context.Context, id rla.AuditID) (rla.Counts, error) {
	out, err := c.call(ctx, "getSampleCounts", idArg(id))
	if err != nil {
		return rla.Counts{}, err
	}
	return rla.Counts{
		PMSamples: int(out[0].(*big.Int).Int64()),
		TVSamples: int(out[1].(*big.Int).Int64()),
	}, nil
}

// GetSelectedBatches implements rla.AuditChain.
func (c *Contracts) GetSelectedBatches(ctx context.Context, id rla.AuditID) (rla.Selection, error) {
	out, err := c.call(ctx, "getSelectedBatches", idArg(id))
	if err != nil {
		return rla.Selection{}, err
	}
	return rla.Selection{
		PMIndices: bigSliceToInt(out[0].([]*big.Int)),
		TVIndices: bigSliceToInt(out[1].([]*big.Int)),
	}, nil
}

// PmBatchVerified implements rla.AuditChain.
func (c *Contracts) PmBatchVerified(ctx context.Context, id rla.AuditID, batchIndex int) (bool, error) {
	out, err := c.call(ctx, "pmBatchVerified", idArg(id), big.NewInt(int64(batchIndex)))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// TvBatchVerified implements rla.AuditChain.
func (c *Contracts) TvBatchVerified(ctx context.Context, id rla.AuditID, batchIndex int) (bool, error) {
	out, err := c.call(ctx, "tvBatchVerified", idArg(id), big.NewInt(int64(batchIndex)))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// GetChallengeBondAmount implements rla.AuditChain.
func (c *Contracts) GetChallengeBondAmount(ctx context.Context, id rla.AuditID) (*big.Int, error) {
	out, err := c.call(ctx, "getChallengeBondAmount", idArg(id))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ChallengePeriodConst implements rla.AuditChain.
func (c *Contracts) ChallengePeriodConst(ctx context.Context) (int64, error) {
	out, err := c.call(ctx, "challengePeriod")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Int64(), nil
}

// CoordinatorStakeConst implements rla.AuditChain.
func (c *Contracts) CoordinatorStakeConst(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "coordinatorStake")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func idArg(id rla.AuditID) *big.Int {
	return new(big.Int).SetUint64(uint64(id))
}

func bigSliceToInt(in []*big.Int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v.Int64())
	}
	return out
}

// auditContractABI is the poll-audit contract's interface, expressed the
// way a deployment artifact's ABI JSON would be: one entry per function
// and custom error. It has no Solidity source in this repository — only
// the coordinator side of the protocol lives here (§0) — so the ABI is
// hand-written to match the wire shapes §4 and §6 specify.
const auditContractABI = `[
  {"type":"function","name":"commitResult","stateMutability":"nonpayable",
   "inputs":[
     {"name":"pollId","type":"string"},
     {"name":"pmCommitments","type":"uint256[]"},
     {"name":"tvCommitments","type":"uint256[]"},
     {"name":"yesVotes","type":"uint256"},
     {"name":"noVotes","type":"uint256"},
     {"name":"pmBatchSize","type":"uint256"},
     {"name":"tvBatchSize","type":"uint256"},
     {"name":"stake","type":"uint256"}],
   "outputs":[{"name":"auditId","type":"uint256"}]},
  {"type":"function","name":"nextAuditId","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"revealSample","stateMutability":"nonpayable",
   "inputs":[{"name":"auditId","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"submitPmProof","stateMutability":"nonpayable",
   "inputs":[
     {"name":"auditId","type":"uint256"},
     {"name":"sampleSlot","type":"uint256"},
     {"name":"wire","type":"uint256[8]"}], "outputs":[]},
  {"type":"function","name":"submitTvProof","stateMutability":"nonpayable",
   "inputs":[
     {"name":"auditId","type":"uint256"},
     {"name":"sampleSlot","type":"uint256"},
     {"name":"wire","type":"uint256[8]"}], "outputs":[]},
  {"type":"function","name":"finalizeSampling","stateMutability":"nonpayable",
   "inputs":[{"name":"auditId","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"finalize","stateMutability":"nonpayable",
   "inputs":[{"name":"auditId","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"challenge","stateMutability":"nonpayable",
   "inputs":[
     {"name":"auditId","type":"uint256"},
     {"name":"bond","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"claimChallengeTimeout","stateMutability":"nonpayable",
   "inputs":[{"name":"auditId","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"submitPmProofForChallenge","stateMutability":"nonpayable",
   "inputs":[
     {"name":"auditId","type":"uint256"},
     {"name":"batchIndex","type":"uint256"},
     {"name":"wire","type":"uint256[8]"}], "outputs":[]},
  {"type":"function","name":"submitTvProofForChallenge","stateMutability":"nonpayable",
   "inputs":[
     {"name":"auditId","type":"uint256"},
     {"name":"batchIndex","type":"uint256"},
     {"name":"wire","type":"uint256[8]"}], "outputs":[]},
  {"type":"function","name":"finalizeChallengeResponse","stateMutability":"nonpayable",
   "inputs":[{"name":"auditId","type":"uint256"}], "outputs":[]},
  {"type":"function","name":"pollAudits","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"}],
   "outputs":[
     {"name":"coordinator","type":"address"},
     {"name":"pollId","type":"string"},
     {"name":"stakeAmount","type":"uint256"},
     {"name":"yesVotes","type":"uint256"},
     {"name":"noVotes","type":"uint256"},
     {"name":"pmBatchCount","type":"uint256"},
     {"name":"tvBatchCount","type":"uint256"},
     {"name":"pmBatchSize","type":"uint256"},
     {"name":"tvBatchSize","type":"uint256"},
     {"name":"commitHash","type":"bytes32"},
     {"name":"commitBlock","type":"uint256"},
     {"name":"phase","type":"uint8"},
     {"name":"proofDeadline","type":"uint256"},
     {"name":"tentativeTimestamp","type":"uint256"},
     {"name":"challengeDeadline","type":"uint256"},
     {"name":"challenger","type":"address"},
     {"name":"challengeBond","type":"uint256"},
     {"name":"pmBatchVerified","type":"bool[]"},
     {"name":"tvBatchVerified","type":"bool[]"}]},
  {"type":"function","name":"getSampleCounts","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"}],
   "outputs":[{"name":"pmSamples","type":"uint256"},{"name":"tvSamples","type":"uint256"}]},
  {"type":"function","name":"getSelectedBatches","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"}],
   "outputs":[{"name":"pmIndices","type":"uint256[]"},{"name":"tvIndices","type":"uint256[]"}]},
  {"type":"function","name":"pmBatchVerified","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"},{"name":"batchIndex","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"tvBatchVerified","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"},{"name":"batchIndex","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getChallengeBondAmount","stateMutability":"view",
   "inputs":[{"name":"auditId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"challengePeriod","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"coordinatorStake","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"error","name":"PreconditionViolated","inputs":[{"name":"reason","type":"string"}]},
  {"type":"error","name":"ProofInvalid","inputs":[{"name":"batchType","type":"string"},{"name":"batchIndex","type":"uint256"}]}
]`
