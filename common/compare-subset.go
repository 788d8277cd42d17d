package common

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
)

// IsSubset asserts that subset occurs in bytes starting at positionStart.
// positionStart is a circuit variable, so the check touches every
// (byte, subset byte) pair.
func IsSubset(api frontend.API, bytes, subset []uints.U8, positionStart frontend.Variable) {
	matchedCount := frontend.Variable(0)

	for byteIndex := range bytes {
		isAtMatchPosition := api.IsZero(api.Sub(byteIndex, api.Add(positionStart, matchedCount)))

		// stop once the whole subset matched
		hasMoreToMatch := api.Sub(1, api.IsZero(api.Sub(matchedCount, len(subset))))
		isAtMatchPosition = api.Mul(isAtMatchPosition, hasMoreToMatch)

		for subsetIndex := range subset {
			isCorrectSubsetIndex := api.IsZero(api.Sub(matchedCount, subsetIndex))
			shouldCompare := api.Mul(isAtMatchPosition, isCorrectSubsetIndex)

			selected := api.Select(shouldCompare, bytes[byteIndex].Val, subset[subsetIndex].Val)
			api.AssertIsEqual(selected, subset[subsetIndex].Val)
		}

		matchedCount = api.Add(matchedCount, isAtMatchPosition)
	}

	api.AssertIsEqual(matchedCount, len(subset))
}

// ReadByteAt reads data[index] for a variable index.
func ReadByteAt(api frontend.API, data []uints.U8, index frontend.Variable) uints.U8 {
	result := uints.NewU8(0)
	for i := range data {
		isMatch := api.IsZero(api.Sub(index, i))
		result.Val = api.Select(isMatch, data[i].Val, result.Val)
	}
	return result
}
