// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// Unsigned is any register-sized unsigned integer
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// Masked replaces the bits of mask in cur with those of value
func Masked[T Unsigned](cur, value, mask T) T {
	return cur&^mask | value&mask
}

// SetBits sets (on) or clears (!on) bits in v
func SetBits[T Unsigned](v, bits T, on bool) T {
	if on {
		return v | bits
	}
	return v &^ bits
}

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return b&(1<<bitIndex) != 0
}

// InRange reports whether lo <= v <= hi
func InRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// ClampInt limits v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
