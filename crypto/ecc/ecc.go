// Package ecc defines a curve-agnostic elliptic curve point interface
// implemented by the concrete curve packages (e.g. bjj_iden3), so that
// higher layers can work with group elements without depending on a
// specific curve library.
package ecc

import "math/big"

// Point is a group element on some elliptic curve, together with the
// operations the coordinator needs for ECDH key agreement and commitment
// arithmetic: scalar multiplication, addition, and serialization.
type Point interface {
	// New returns a fresh point of the same curve, set to the identity.
	New() Point
	// Order returns the order of the curve's prime-order subgroup.
	Order() *big.Int

	Add(a, b Point)
	SafeAdd(a, b Point)
	ScalarMult(a Point, scalar *big.Int)
	ScalarBaseMult(scalar *big.Int)

	Marshal() []byte
	Unmarshal(buf []byte) error
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(buf []byte) error
	MarshalCBOR() ([]byte, error)
	UnmarshalCBOR(buf []byte) error

	Equal(a Point) bool
	Neg(a Point)
	SetZero()
	Set(a Point)
	SetGenerator()
	SetPoint(x, y *big.Int) Point

	String() string
	Point() (*big.Int, *big.Int)
	BigInts() []*big.Int
	Type() string
}
