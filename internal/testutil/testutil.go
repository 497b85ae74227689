// Package testutil provides small helpers shared by package-level tests
// across the coordinator.
package testutil

import (
	"math/rand/v2"

	"github.com/tokamak-network/rla-coordinator/types"
)

// RandomBatchID returns a pseudo-random BatchID for use in tests that don't
// care about the specific value, only that it's unique enough to avoid
// collisions between test cases.
func RandomBatchID() types.BatchID {
	return types.BatchID(rand.Uint64())
}

// RandomBatchIDs returns n pseudo-random, pairwise-distinct BatchIDs.
func RandomBatchIDs(n int) []types.BatchID {
	seen := make(map[types.BatchID]bool, n)
	ids := make([]types.BatchID, 0, n)
	for len(ids) < n {
		id := RandomBatchID()
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
