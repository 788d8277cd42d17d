package common

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
)

// CompareBytes constrains A and B to be equal. Sizes are fixed when the
// circuit is defined, so differing sizes make the circuit unsatisfiable.
func CompareBytes(api frontend.API, A, B []uints.U8) {
	if len(A) != len(B) {
		api.AssertIsEqual(len(A), len(B))
		return
	}
	for i := range A {
		api.AssertIsEqual(A[i].Val, B[i].Val)
	}
}

// IsSmaller returns 1 if A < B in lexicographic order, 0 otherwise.
func IsSmaller(api frontend.API, A, B []uints.U8) (frontend.Variable, error) {
	return compareLex(api, A, B, -1)
}

// IsGreater returns 1 if A > B in lexicographic order, 0 otherwise.
func IsGreater(api frontend.API, A, B []uints.U8) (frontend.Variable, error) {
	return compareLex(api, A, B, 1)
}

// compareLex returns 1 when the first differing byte pair compares as want
// (-1 or 1), 0 when it compares the other way or A equals B.
func compareLex(api frontend.API, A, B []uints.U8, want int) (frontend.Variable, error) {
	if len(A) != len(B) {
		return nil, fmt.Errorf("cannot compare %d bytes with %d bytes", len(A), len(B))
	}

	result := frontend.Variable(0)
	decided := frontend.Variable(0)
	for i := range A {
		cmp := api.Cmp(A[i].Val, B[i].Val)
		hit := api.IsZero(api.Sub(cmp, want))
		result = api.Select(decided, result, hit)
		decided = api.Or(decided, api.Sub(1, api.IsZero(cmp)))
	}
	return result, nil
}
