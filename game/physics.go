// game/physics.go
package game

import "math"

// overlapDamping scales the push vector returned by ResolveOverlap.
const overlapDamping = 0.1

// Distance 计算两点间的欧氏距离
func Distance(a, b Vec) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// CirclesOverlap reports whether two circles intersect. Either center may be
// nil (a spectator has no position); nil never overlaps anything.
func CirclesOverlap(c1 *Vec, r1 float64, c2 *Vec, r2 float64) bool {
	if c1 == nil || c2 == nil {
		return false
	}
	return Distance(*c1, *c2) < r1+r2
}

// ResolveOverlap computes the push vector separating two overlapping
// circles, directed from c1 toward c2 along the center axis and scaled by
// the overlap depth and the average mass. Callers split the vector between
// the two bodies according to role. Returns the zero vector when the
// circles do not overlap.
func ResolveOverlap(c1 Vec, r1, m1 float64, c2 Vec, r2, m2 float64) Vec {
	distance := Distance(c1, c2)
	if distance >= r1+r2 {
		return Vec{}
	}

	overlap := r1 + r2 - distance
	angle := math.Atan2(c2.Y-c1.Y, c2.X-c1.X)
	force := (m1 + m2) / 2
	return Vec{
		X: math.Cos(angle) * overlap * force * overlapDamping,
		Y: math.Sin(angle) * overlap * force * overlapDamping,
	}
}
