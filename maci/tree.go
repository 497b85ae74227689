package maci

import (
	"fmt"
	"math/big"

	"github.com/tokamak-network/rla-coordinator/crypto/hash/poseidon"
)

// SparseTree is a fixed-depth, zero-default Merkle tree hashed with
// Poseidon. It is the in-memory shape of both the signup/state tree
// (depth StateTreeDepth) and the message tree (depth MsgTreeDepth, filled
// via MsgTreeSubDepth-sized subtrees), as described in §4.1.
type SparseTree struct {
	depth    int
	zeroes   []*big.Int
	leaves   map[int64]*big.Int
	nextFree int64
}

// NewSparseTree builds an empty tree of the given depth with its zero
// hashes precomputed bottom-up.
func NewSparseTree(depth int) *SparseTree {
	zeroes := make([]*big.Int, depth+1)
	zeroes[0] = big.NewInt(0)
	for i := 1; i <= depth; i++ {
		h, err := poseidon.MultiPoseidon(zeroes[i-1], zeroes[i-1])
		if err != nil {
			// Poseidon over two fixed field elements cannot fail.
			panic(fmt.Sprintf("maci: zero hash at level %d: %v", i, err))
		}
		zeroes[i] = h
	}
	return &SparseTree{depth: depth, zeroes: zeroes, leaves: make(map[int64]*big.Int)}
}

// Depth returns the tree's fixed depth.
func (t *SparseTree) Depth() int { return t.depth }

// Capacity is the maximum number of leaves the tree can hold, 5^depth does
// not apply here: MACI trees are binary-Poseidon, so capacity is 2^depth.
func (t *SparseTree) Capacity() int64 {
	return int64(1) << uint(t.depth)
}

// Insert appends a leaf at the next free index and returns that index.
func (t *SparseTree) Insert(leaf *big.Int) (int64, error) {
	if t.nextFree >= t.Capacity() {
		return 0, fmt.Errorf("maci: tree of depth %d is full", t.depth)
	}
	idx := t.nextFree
	t.leaves[idx] = new(big.Int).Set(leaf)
	t.nextFree++
	return idx, nil
}

// Update overwrites the leaf at idx.
func (t *SparseTree) Update(idx int64, leaf *big.Int) error {
	if idx < 0 || idx >= t.Capacity() {
		return fmt.Errorf("maci: index %d out of range for tree of depth %d", idx, t.depth)
	}
	t.leaves[idx] = new(big.Int).Set(leaf)
	return nil
}

// leafAt returns the leaf value at idx, or the zero leaf if unset.
func (t *SparseTree) leafAt(idx int64) *big.Int {
	if v, ok := t.leaves[idx]; ok {
		return v
	}
	return t.zeroes[0]
}

// Root computes the tree's Poseidon root over all 2^depth positions,
// substituting the precomputed zero hash for any unset subtree. This is
// O(capacity) in the worst case; callers iterate batches incrementally
// (§9) so peak memory stays O(batch), but the root computation itself
// walks the full committed index range.
func (t *SparseTree) Root() (*big.Int, error) {
	level := make(map[int64]*big.Int, len(t.leaves))
	for idx, v := range t.leaves {
		level[idx] = v
	}
	n := t.Capacity()
	for d := 0; d < t.depth; d++ {
		next := make(map[int64]*big.Int)
		n /= 2
		for i := int64(0); i < n; i++ {
			left := valueAt(level, 2*i, t.zeroes[d])
			right := valueAt(level, 2*i+1, t.zeroes[d])
			h, err := poseidon.MultiPoseidon(left, right)
			if err != nil {
				return nil, err
			}
			next[i] = h
		}
		level = next
	}
	if n != 1 {
		return t.zeroes[t.depth], nil
	}
	return valueAt(level, 0, t.zeroes[t.depth]), nil
}

func valueAt(level map[int64]*big.Int, idx int64, zero *big.Int) *big.Int {
	if v, ok := level[idx]; ok {
		return v
	}
	return zero
}
