package memutils

import (
	"github.com/pkg/errors"
)

type Number interface {
	~int | ~uint
}

// CheckPow2 returns a non-nil error if number is not a power of two. A number of
// zero is rejected as well, since it has no well-defined alignment.
func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return errors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment, which must be a
// power of two.
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDown rounds value down to the nearest multiple of alignment, which must be
// a power of two.
func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
