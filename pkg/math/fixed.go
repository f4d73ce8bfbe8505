package math

import "math"

// One is the fixed-point unit of the target GTE (4096 == 1.0).
const One = 4096

// Round rounds half to even, which is what the authoring tool's round() does.
func Round(v float64) int {
	return int(math.RoundToEven(v))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Remap converts a Z-up authoring vector to the target's Y-down axis order
// (X, -Z, Y), scaled and rounded.
func Remap(v Vec3, scale float64) [3]int {
	return [3]int{Round(v.X * scale), Round(-v.Z * scale), Round(v.Y * scale)}
}

// Angle converts radians to the target's 4096-per-turn angle unit.
func Angle(rad float64) int {
	return Round(rad * 180 / math.Pi / 360 * One)
}
