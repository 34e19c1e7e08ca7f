// Package safeconv provides integer conversions that panic instead of wrapping.
package safeconv

import "math"

// MustUint64ToInt64 converts v to int64, panics on overflow.
// Use only when overflow is logically impossible, e.g. for generation counters.
func MustUint64ToInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		panic("safeconv: uint64 to int64 overflow")
	}

	return int64(v)
}

// MustInt64ToUint64 converts v to uint64, panics if negative.
// Use only when negative values are logically impossible, e.g. for byte sizes.
func MustInt64ToUint64(v int64) uint64 {
	if v < 0 {
		panic("safeconv: negative int64 to uint64 conversion")
	}

	return uint64(v)
}
