package proof

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func sampleProof() *Proof {
	return &Proof{
		A: [2]*big.Int{big.NewInt(11), big.NewInt(12)},
		B: [2][2]*big.Int{{big.NewInt(21), big.NewInt(22)}, {big.NewInt(31), big.NewInt(32)}},
		C: [2]*big.Int{big.NewInt(41), big.NewInt(42)},
	}
}

func TestWireRoundTrip(t *testing.T) {
	p := sampleProof()
	wire := ToWire(p)

	// B coordinates must be swapped exactly once relative to circom order.
	qt.Assert(t, wire[2].Int64(), qt.Equals, int64(22))
	qt.Assert(t, wire[3].Int64(), qt.Equals, int64(21))
	qt.Assert(t, wire[4].Int64(), qt.Equals, int64(32))
	qt.Assert(t, wire[5].Int64(), qt.Equals, int64(31))

	back := FromWire(wire)
	qt.Assert(t, back.A[0].Cmp(p.A[0]), qt.Equals, 0)
	qt.Assert(t, back.A[1].Cmp(p.A[1]), qt.Equals, 0)
	qt.Assert(t, back.B[0][0].Cmp(p.B[0][0]), qt.Equals, 0)
	qt.Assert(t, back.B[0][1].Cmp(p.B[0][1]), qt.Equals, 0)
	qt.Assert(t, back.B[1][0].Cmp(p.B[1][0]), qt.Equals, 0)
	qt.Assert(t, back.B[1][1].Cmp(p.B[1][1]), qt.Equals, 0)
	qt.Assert(t, back.C[0].Cmp(p.C[0]), qt.Equals, 0)
	qt.Assert(t, back.C[1].Cmp(p.C[1]), qt.Equals, 0)
}

func TestCircomRoundTrip(t *testing.T) {
	p := sampleProof()
	cp := p.ToCircom()
	back, err := FromCircom(cp)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back.A[0].Cmp(p.A[0]), qt.Equals, 0)
	qt.Assert(t, back.B[1][1].Cmp(p.B[1][1]), qt.Equals, 0)
	qt.Assert(t, back.C[1].Cmp(p.C[1]), qt.Equals, 0)
}

func TestBindPM(t *testing.T) {
	sig := BindPM(big.NewInt(1), big.NewInt(2), 3, big.NewInt(99))
	qt.Assert(t, len(sig), qt.Equals, 4)
	qt.Assert(t, sig.Equal(PublicSignals{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(99)}), qt.IsTrue)
	qt.Assert(t, sig.Equal(PublicSignals{big.NewInt(1), big.NewInt(2), big.NewInt(3)}), qt.IsFalse)
}

func TestSaveLoadBundle(t *testing.T) {
	dir := t.TempDir()
	bundle := &Bundle{
		Proof:         sampleProof().ToCircom(),
		PublicSignals: []string{"1", "2", "3"},
		CircuitInputs: []byte(`{"a":"1"}`),
	}
	err := SaveBundle(dir, "pm", 1, bundle)
	qt.Assert(t, err, qt.IsNil)

	loaded, ok, err := LoadBundle(dir, "pm", 1)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, loaded.PublicSignals, qt.DeepEquals, bundle.PublicSignals)

	_, ok, err = LoadBundle(dir, "tv", 1)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsFalse)

	qt.Assert(t, BatchFileName("pm", 1, false), qt.Equals, "process_1.json")
	qt.Assert(t, BatchFileName("tv", 2, true), qt.Equals, "tally_2_inputs.json")
}
