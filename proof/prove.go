package proof

import (
	"fmt"
	"sync"

	"github.com/iden3/go-rapidsnark/prover"
	"github.com/iden3/go-rapidsnark/witness"

	"github.com/tokamak-network/rla-coordinator/util/circomgnark"
)

// proverMu serializes calls into the rapidsnark Groth16 prover: the
// underlying CGO implementation is not safe for concurrent use. Only the
// Groth16 step is held under it; concurrent ProveBatch calls in the same
// process still parse inputs and compute witnesses in parallel.
var proverMu sync.Mutex

// CircuitArtifacts bundles the per-circuit artifacts the external prover
// needs: the compiled wasm witness-calculator and the Groth16 proving key,
// both treated as opaque blobs (§1: circuit internals are out of scope).
type CircuitArtifacts struct {
	Wasm       []byte
	ProvingKey []byte
}

// ProveBatch delegates to the external Groth16 prover: it computes the
// witness from circuitInputsJSON and artifacts.Wasm, then runs the
// Groth16 prover over artifacts.ProvingKey. Per §1 the proving system
// itself is a black box; this function is the one seam the orchestrator
// calls through.
func ProveBatch(artifacts CircuitArtifacts, circuitInputsJSON []byte) (*Proof, PublicSignals, error) {
	finalInputs, err := witness.ParseInputs(circuitInputsJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("proof: parsing circuit inputs: %w", err)
	}

	calc, err := witness.NewCircom2WitnessCalculator(artifacts.Wasm, true)
	if err != nil {
		return nil, nil, fmt.Errorf("proof: instantiating witness calculator: %w", err)
	}
	w, err := calc.CalculateWTNSBin(finalInputs, true)
	if err != nil {
		return nil, nil, fmt.Errorf("proof: computing witness: %w", err)
	}

	proverMu.Lock()
	proofJSON, pubSignalsJSON, err := prover.Groth16ProverRaw(artifacts.ProvingKey, w)
	proverMu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("proof: groth16 proving failed: %w", err)
	}

	circomProof, rawSignals, err := circomgnark.UnmarshalCircom(proofJSON, pubSignalsJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("proof: unmarshalling prover output: %w", err)
	}
	p, err := FromCircom(circomProof)
	if err != nil {
		return nil, nil, err
	}
	signals, err := ParsePublicSignals(rawSignals)
	if err != nil {
		return nil, nil, err
	}
	return p, signals, nil
}
