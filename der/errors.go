package der

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding is returned for truncated buffers, indefinite
	// lengths and length fields that exceed the supported width.
	ErrMalformedEncoding = errors.New("der: malformed encoding")

	// ErrFieldNotFound is returned when a structure has fewer children than a
	// fixed schema requires.
	ErrFieldNotFound = errors.New("der: field not found")
)

func malformed(offset int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformedEncoding, offset, fmt.Sprintf(format, args...))
}

func notFound(offset int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrFieldNotFound, offset, fmt.Sprintf(format, args...))
}
