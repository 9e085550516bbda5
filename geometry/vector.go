// Package geometry provides the unit-vector primitives used by the polygon
// engine. Points on the sphere are r3.Vector values of norm 1; callers are
// responsible for keeping them normalized.
package geometry

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
)

// ErrPoleBearing is returned when a bearing-relative operation is requested
// at one of the poles, where north and east are undefined.
var ErrPoleBearing = errors.New("geometry: bearing undefined at pole")

// Axes used by the degenerate-normal fallback chain.
var (
	NorthPole = r3.Vector{X: 0, Y: 0, Z: 1}
	Lon90     = r3.Vector{X: 0, Y: 1, Z: 0}
	Lon0      = r3.Vector{X: 1, Y: 0, Z: 0}
)

// Dot returns the dot product of two vectors.
func Dot(a, b r3.Vector) float64 {
	return a.Dot(b)
}

// CrossNormalized returns the normalized cross product a × b along with the
// magnitude of the cross product before normalization. A zero magnitude means
// the vectors are parallel or antiparallel and the returned vector is zero.
func CrossNormalized(a, b r3.Vector) (r3.Vector, float64) {
	c := a.Cross(b)
	n := c.Norm()
	if n == 0 {
		return r3.Vector{}, 0
	}
	return c.Mul(1 / n), n
}

// AngleRadians returns the angle between two vectors in [0, π].
func AngleRadians(a, b r3.Vector) float64 {
	return a.Angle(b).Radians()
}

// ScalarTripleProduct returns a · (b × c).
func ScalarTripleProduct(a, b, c r3.Vector) float64 {
	return a.Dot(b.Cross(c))
}

// Antipode returns the point on the opposite side of the sphere.
func Antipode(v r3.Vector) r3.Vector {
	return v.Mul(-1)
}

// IsZero reports whether every component of v is exactly zero.
func IsZero(v r3.Vector) bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Rotate rotates point about the unit vector axis by angle radians, using the
// right-hand rule (Rodrigues' formula).
func Rotate(point, axis r3.Vector, angle float64) r3.Vector {
	sin, cos := math.Sincos(angle)
	// v cosθ + (k × v) sinθ + k (k·v)(1 − cosθ)
	return point.Mul(cos).
		Add(axis.Cross(point).Mul(sin)).
		Add(axis.Mul(axis.Dot(point) * (1 - cos)))
}

// localFrame returns the unit north and east vectors tangent to the sphere at
// point.
func localFrame(point r3.Vector) (north, east r3.Vector, err error) {
	east, n := CrossNormalized(NorthPole, point)
	if n < 1e-15 {
		return r3.Vector{}, r3.Vector{}, ErrPoleBearing
	}
	return point.Cross(east), east, nil
}

// Move returns the point reached by travelling distance radians from point
// along a great circle leaving at the given bearing (radians clockwise from
// north).
func Move(point r3.Vector, distance, bearing float64) (r3.Vector, error) {
	north, east, err := localFrame(point)
	if err != nil {
		return r3.Vector{}, err
	}
	sinB, cosB := math.Sincos(bearing)
	dir := north.Mul(cosB).Add(east.Mul(sinB))
	sinD, cosD := math.Sincos(distance)
	return point.Mul(cosD).Add(dir.Mul(sinD)).Normalize(), nil
}

// Bearing returns the initial bearing, radians clockwise from north in
// [0, 2π), of the shortest great circle path from one point to another.
func Bearing(from, to r3.Vector) (float64, error) {
	north, east, err := localFrame(from)
	if err != nil {
		return 0, err
	}
	b := math.Atan2(to.Dot(east), to.Dot(north))
	if b < 0 {
		b += 2 * math.Pi
	}
	return b, nil
}
