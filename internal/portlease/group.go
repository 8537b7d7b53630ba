package portlease

import "fmt"

// RangeForGroup returns the inclusive block of blockSize ports that belongs
// to groupIndex, starting at base. Consecutive indexes yield adjacent,
// non-overlapping blocks.
//
// Panics on a negative index or a non-positive block size: both are
// programmer errors.
func RangeForGroup(base, blockSize, groupIndex int) (lower, upper int) {
	if groupIndex < 0 {
		panic(fmt.Sprintf("testcoord: group index must not be negative, got %d", groupIndex))
	}
	if blockSize <= 0 {
		panic(fmt.Sprintf("testcoord: port block size must be greater than 0, got %d", blockSize))
	}
	lower = base + groupIndex*blockSize
	return lower, lower + blockSize - 1
}

// NewGroupPool creates a Pool for the block of groupIndex.
func NewGroupPool(base, blockSize, groupIndex int, opts ...Option) (*Pool, error) {
	lower, upper := RangeForGroup(base, blockSize, groupIndex)
	return NewPool(lower, upper, opts...)
}
