// Package utils contains small helpers shared across packages.
package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// AngleDiffDeg returns the closest difference from the two given
// angles. The arguments are commutative.
func AngleDiffDeg(a1, a2 float64) float64 {
	return float64(180) - math.Abs(math.Abs(a1-a2)-float64(180))
}

// ModAngDeg wraps an angle in degrees into [0, 360).
func ModAngDeg(ang float64) float64 {
	return math.Mod(math.Mod((ang), 360)+360, 360)
}

// WrapAngleRad wraps an angle in radians into (-pi, pi].
func WrapAngleRad(ang float64) float64 {
	wrapped := math.Mod(ang+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// SignedAngleDiffRad returns the signed shortest rotation, in radians, that takes from to to.
// The result lies in (-pi, pi].
func SignedAngleDiffRad(from, to float64) float64 {
	return WrapAngleRad(to - from)
}

// Lerp linearly interpolates between a and b. frac of 0 yields a and 1 yields b.
func Lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}

// InterpolateAngleRad interpolates between two headings along the shorter arc, so that 170° and
// -170° meet at 180° rather than at 0°. The result is wrapped into (-pi, pi].
func InterpolateAngleRad(from, to, frac float64) float64 {
	return WrapAngleRad(from + SignedAngleDiffRad(from, to)*frac)
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}
