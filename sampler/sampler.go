// Package sampler implements component E: deterministically deriving the
// set of PM and TV batches that must be proved and verified on-chain, from
// a commit-time block hash and the fixed RLA confidence constant.
package sampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DefaultConfidenceX1000 is the protocol's fixed risk-limit constant
// (§4.5, §6): a risk limit of roughly e^-2.996 ≈ 5%.
const DefaultConfidenceX1000 = 2996

// ErrNoVotes is returned when totalVotes == 0: the audit cannot proceed
// because there is nothing to sample (§4.5, §8).
var ErrNoVotes = errors.New("sampler: no votes cast, audit cannot proceed")

// Counts is the Sample-count rule's output (§4.5): how many PM and TV
// batches must be verified.
type Counts struct {
	PMSamples int
	TVSamples int
}

// Selection is the final output of Sample: the sorted, distinct, 1-based
// batch indices drawn for each chain.
type Selection struct {
	PMIndices []int
	TVIndices []int
}

// CountsFor computes the PM/TV sample counts from the election's margin and
// the per-chain batch sizes, per §4.5's Sample-count rule. yes and no are
// taken as int64 vote tallies — the same values carried in the audit
// record's yesVotes/noVotes fields.
func CountsFor(confidenceX1000 int, pmBatchCount, tvBatchCount, tvBatchSize int, yes, no int64) (Counts, error) {
	total := yes + no
	if total == 0 {
		return Counts{}, ErrNoVotes
	}

	margin := yes - no
	if margin < 0 {
		margin = -margin
	}

	if margin == 0 {
		return Counts{PMSamples: pmBatchCount, TVSamples: tvBatchCount}, nil
	}

	votesToFlip := margin/2 + 1
	tvCorrupt := ceilDiv(votesToFlip, int64(tvBatchSize))
	if tvCorrupt > int64(tvBatchCount) {
		tvCorrupt = int64(tvBatchCount)
	}
	if tvCorrupt < 1 {
		tvCorrupt = 1
	}

	tvSamples := ceilDiv(int64(confidenceX1000)*int64(tvBatchCount), tvCorrupt*1000)
	samplesCap := int64(tvBatchCount - 1)
	if samplesCap < 1 {
		samplesCap = 1
	}
	if tvSamples > samplesCap {
		tvSamples = samplesCap
	}

	return Counts{PMSamples: pmBatchCount, TVSamples: int(tvSamples)}, nil
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Sample draws the sampled batch indices deterministically from the
// commit-time block hash H, following §4.5's algorithm: a counter PRNG
// over successive hashes of H || domainTag || counter, re-hashing on
// collision, until the required count of distinct indices is drawn.
// Indices are returned sorted ascending.
func Sample(h common.Hash, confidenceX1000 int, pmBatchCount, tvBatchCount, tvBatchSize int, yes, no int64) (Selection, error) {
	counts, err := CountsFor(confidenceX1000, pmBatchCount, tvBatchCount, tvBatchSize, yes, no)
	if err != nil {
		return Selection{}, err
	}
	if counts.PMSamples > pmBatchCount || counts.TVSamples > tvBatchCount {
		return Selection{}, fmt.Errorf("sampler: sample count exceeds batch count")
	}

	pm, err := drawIndices(h, "pm", pmBatchCount, counts.PMSamples)
	if err != nil {
		return Selection{}, err
	}
	tv, err := drawIndices(h, "tv", tvBatchCount, counts.TVSamples)
	if err != nil {
		return Selection{}, err
	}
	return Selection{PMIndices: pm, TVIndices: tv}, nil
}

// drawIndices runs the counter-PRNG index-selection algorithm for one
// chain: it hashes H || domainTag || counter, reduces modulo batchCount
// to get a candidate 1-based index, and keeps incrementing the counter
// (never rejecting) until `want` distinct indices have been collected.
func drawIndices(h common.Hash, domainTag string, batchCount, want int) ([]int, error) {
	if want <= 0 {
		return []int{}, nil
	}
	if batchCount <= 0 {
		return nil, fmt.Errorf("sampler: batchCount must be positive for domain %q", domainTag)
	}

	seen := make(map[int]bool, want)
	indices := make([]int, 0, want)

	var counter uint64
	for len(indices) < want {
		var counterBytes [8]byte
		binary.BigEndian.PutUint64(counterBytes[:], counter)
		sum := ethcrypto.Keccak256(h[:], []byte(domainTag), counterBytes[:])

		// Reduce the hash to a 1-based index in [1, batchCount].
		v := new(big.Int).SetBytes(sum)
		idx := int(new(big.Int).Mod(v, big.NewInt(int64(batchCount))).Int64()) + 1

		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
		counter++
	}

	sort.Ints(indices)
	return indices, nil
}
