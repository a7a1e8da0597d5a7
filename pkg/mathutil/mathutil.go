// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"
)

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// AllFinite reports whether every element of vals is finite.
func AllFinite(vals []float64) bool {
	for _, v := range vals {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// MaxAbs returns the infinity norm of vals; NaN propagates.
func MaxAbs(vals []float64) float64 {
	max := 0.0
	for _, v := range vals {
		if math.IsNaN(v) {
			return math.NaN()
		}
		if a := math.Abs(v); a > max {
			max = a
		}
	}
	return max
}

// Clamp limits val to the closed interval [lower, upper].
func Clamp(val, lower, upper float64) float64 {
	if val < lower {
		return lower
	}
	if val > upper {
		return upper
	}
	return val
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// IsNegative checks if a value is strictly below zero. NaN is not negative.
func IsNegative(val float64) bool {
	return val < 0
}
