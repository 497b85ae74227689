// Package storage persists a coordinator run's per-audit artifacts to a
// plain JSON file tree under output_dir (§6): the two commitment chains,
// the final tally, a live status record, and the prove-batches selector
// that tells per-batch proving jobs which indices to work on. Proof
// bundles and circuit-input files live alongside these in the same
// directory but are written by package proof (proof.SaveBundle,
// proof.SaveInputs) since they share that package's wire types.
package storage

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const (
	commitmentsFileName  = "commitments.json"
	tallyFileName        = "tally.json"
	statusFileName       = "status.json"
	proveBatchesFileName = "prove-batches.json"
)

// Commitments is commitments.json's shape: the two commitment chains and
// the claimed vote totals a coordinator is about to submit via
// rla.AuditChain.CommitResult.
type Commitments struct {
	PMCommitments []*big.Int `json:"pmCommitments"`
	TVCommitments []*big.Int `json:"tvCommitments"`
	PMBatchCount  int        `json:"pmBatchCount"`
	TVBatchCount  int        `json:"tvBatchCount"`
	YesVotes      *big.Int   `json:"yesVotes"`
	NoVotes       *big.Int   `json:"noVotes"`
}

// Tally is tally.json's shape: the final binary referendum result a
// replay produced, mirroring maci.TallyResults.
type Tally struct {
	YesVotes *big.Int `json:"yesVotes"`
	NoVotes  *big.Int `json:"noVotes"`
}

// Status is status.json's shape: a live snapshot of how far the
// orchestrator has gotten, polled by an operator or a monitoring sidecar
// without needing to read chain state.
type Status struct {
	Status         string    `json:"status"`
	ProveStatus    string    `json:"proveStatus"`
	Proved         int       `json:"proved"`
	TotalToProve   int       `json:"totalToProve"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ProveUpdatedAt time.Time `json:"proveUpdatedAt"`
	Error          string    `json:"error,omitempty"`
}

// ProveBatches is prove-batches.json's shape: the 0-based batch indices a
// proving job pool should work through, one list per batch type.
type ProveBatches struct {
	PM []int `json:"pm"`
	TV []int `json:"tv"`
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshalling %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("storage: parsing %s: %w", path, err)
	}
	return true, nil
}

// SaveCommitments writes commitments.json under outputDir.
func SaveCommitments(outputDir string, c *Commitments) error {
	return writeJSON(filepath.Join(outputDir, commitmentsFileName), c)
}

// LoadCommitments reads commitments.json, reporting false if it has not
// been written yet.
func LoadCommitments(outputDir string) (*Commitments, bool, error) {
	var c Commitments
	ok, err := readJSON(filepath.Join(outputDir, commitmentsFileName), &c)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &c, true, nil
}

// SaveTally writes tally.json under outputDir.
func SaveTally(outputDir string, t *Tally) error {
	return writeJSON(filepath.Join(outputDir, tallyFileName), t)
}

// LoadTally reads tally.json, reporting false if it has not been written
// yet.
func LoadTally(outputDir string) (*Tally, bool, error) {
	var t Tally
	ok, err := readJSON(filepath.Join(outputDir, tallyFileName), &t)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &t, true, nil
}

// SaveStatus overwrites status.json under outputDir. Callers are expected
// to call this after every phase transition the orchestrator observes, so
// that status.json always reflects the most recently known on-chain
// phase even across a process restart.
func SaveStatus(outputDir string, s *Status) error {
	return writeJSON(filepath.Join(outputDir, statusFileName), s)
}

// LoadStatus reads status.json, reporting false if it has not been
// written yet.
func LoadStatus(outputDir string) (*Status, bool, error) {
	var s Status
	ok, err := readJSON(filepath.Join(outputDir, statusFileName), &s)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &s, true, nil
}

// SaveProveBatches writes prove-batches.json under outputDir.
func SaveProveBatches(outputDir string, b *ProveBatches) error {
	return writeJSON(filepath.Join(outputDir, proveBatchesFileName), b)
}

// LoadProveBatches reads prove-batches.json, reporting false if it has
// not been written yet.
func LoadProveBatches(outputDir string) (*ProveBatches, bool, error) {
	var b ProveBatches
	ok, err := readJSON(filepath.Join(outputDir, proveBatchesFileName), &b)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &b, true, nil
}

// ProveBatchesFromSelection converts 1-based sampled-batch indices (the
// shape rla.Selection and the chain use) to the 0-based form
// prove-batches.json is specified in (§6).
func ProveBatchesFromSelection(pmIndices, tvIndices []int) *ProveBatches {
	pm := make([]int, len(pmIndices))
	for i, idx := range pmIndices {
		pm[i] = idx - 1
	}
	tv := make([]int, len(tvIndices))
	for i, idx := range tvIndices {
		tv[i] = idx - 1
	}
	return &ProveBatches{PM: pm, TV: tv}
}
