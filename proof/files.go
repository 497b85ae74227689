package proof

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tokamak-network/rla-coordinator/util/circomgnark"
)

// Bundle is the on-disk shape of a proof file (process_<k>.json /
// tally_<k>.json per §6): the proof, its public signals, and the circuit
// inputs it was proved against, kept together so a re-prove can be
// audited against the original witness.
type Bundle struct {
	Proof          *circomgnark.CircomProof `json:"proof"`
	PublicSignals  []string                 `json:"publicSignals"`
	CircuitInputs  json.RawMessage          `json:"circuitInputs"`
}

// BatchFileName returns the conventional process_<k>.json / tally_<k>.json
// name for a proof bundle, or process_<k>_inputs.json / tally_<k>_inputs.json
// for a bare inputs file.
func BatchFileName(batchType string, batchIndex int, inputsOnly bool) string {
	prefix := "process"
	if batchType == "tv" {
		prefix = "tally"
	}
	if inputsOnly {
		return fmt.Sprintf("%s_%d_inputs.json", prefix, batchIndex)
	}
	return fmt.Sprintf("%s_%d.json", prefix, batchIndex)
}

// SaveBundle writes a proof bundle to outputDir under its conventional
// name.
func SaveBundle(outputDir, batchType string, batchIndex int, bundle *Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("proof: marshalling bundle: %w", err)
	}
	path := filepath.Join(outputDir, BatchFileName(batchType, batchIndex, false))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("proof: writing %s: %w", path, err)
	}
	return nil
}

// LoadBundle reads a previously generated proof bundle for a batch, if it
// exists. The orchestrator uses this to avoid re-proving a batch whose
// bundle was already produced in a prior run (§4.6 step 3).
func LoadBundle(outputDir, batchType string, batchIndex int) (*Bundle, bool, error) {
	path := filepath.Join(outputDir, BatchFileName(batchType, batchIndex, false))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("proof: reading %s: %w", path, err)
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, false, fmt.Errorf("proof: parsing %s: %w", path, err)
	}
	return &bundle, true, nil
}

// SaveInputs writes a batch's circuit inputs to outputDir under its
// conventional _inputs.json name.
func SaveInputs(outputDir, batchType string, batchIndex int, inputsJSON []byte) error {
	path := filepath.Join(outputDir, BatchFileName(batchType, batchIndex, true))
	if err := os.WriteFile(path, inputsJSON, 0o644); err != nil {
		return fmt.Errorf("proof: writing %s: %w", path, err)
	}
	return nil
}
