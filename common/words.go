package common

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// ErrWordOverflow is returned when a value needs more than the requested
// number of words.
var ErrWordOverflow = errors.New("value does not fit in the requested words")

// SplitToWords splits v into n little-endian words of w bits each, so that
// v = Σ words[i]·2^(w·i). Words are decimal strings, the format circuit
// input files use for field elements.
func SplitToWords(v *big.Int, w, n int) ([]string, error) {
	if w <= 0 || n <= 0 {
		return nil, fmt.Errorf("invalid word layout %d x %d bits", n, w)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", ErrWordOverflow)
	}
	if v.BitLen() > w*n {
		return nil, fmt.Errorf("%w: %d bits into %d x %d bits", ErrWordOverflow, v.BitLen(), n, w)
	}

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
	rest := new(big.Int).Set(v)
	words := make([]string, n)
	for i := range words {
		words[i] = new(big.Int).And(rest, mask).String()
		rest.Rsh(rest, uint(w))
	}
	return words, nil
}

// SplitBytesToWords is SplitToWords for a big-endian unsigned integer.
func SplitBytesToWords(b []byte, w, n int) ([]string, error) {
	return SplitToWords(new(big.Int).SetBytes(b), w, n)
}

// CombineWords reverses SplitToWords.
func CombineWords(words []string, w int) (*big.Int, error) {
	v := new(big.Int)
	for i := len(words) - 1; i >= 0; i-- {
		word, ok := new(big.Int).SetString(words[i], 10)
		if !ok {
			return nil, fmt.Errorf("word %d: %q is not a decimal integer", i, words[i])
		}
		if word.Sign() < 0 || word.BitLen() > w {
			return nil, fmt.Errorf("%w: word %d has %d bits, limit %d", ErrWordOverflow, i, word.BitLen(), w)
		}
		v.Lsh(v, uint(w)).Or(v, word)
	}
	return v, nil
}

// BytesToDecimalStrings returns one decimal string per byte.
func BytesToDecimalStrings(b []byte) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = strconv.Itoa(int(c))
	}
	return out
}
