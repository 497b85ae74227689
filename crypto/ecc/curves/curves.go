// Package curves is a factory for the ecc.Point implementations the
// coordinator supports.
package curves

import (
	"slices"

	"github.com/tokamak-network/rla-coordinator/crypto/ecc"
	bjj_iden3 "github.com/tokamak-network/rla-coordinator/crypto/ecc/bjj_iden3"
)

// New creates a new instance of a Curve implementation based on the provided
// type string. If the type is not supported, it will panic. The supported
// types are defined in this package via the Curves() function, but you can
// also use the IsValid() function to check if a type is supported.
func New(curveType string) ecc.Point {
	switch curveType {
	case bjj_iden3.CurveType:
		return &bjj_iden3.BJJ{}
	default:
		panic("unsupported curve type: " + curveType)
	}
}

// Curves returns a list of supported curve types.
func Curves() []string {
	return []string{
		bjj_iden3.CurveType,
	}
}

func IsValid(curveType string) bool {
	return slices.Contains(Curves(), curveType)
}
