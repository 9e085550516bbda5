package core

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/geopoly/geometry"
)

// onCircleTolerance bounds |v·normal| for OnCircle.
const onCircleTolerance = 1e-15

// Arc is an oriented great-circle path between two unit vectors. The normal,
// move direction and length are fixed at construction; only the planar
// transform is computed lazily, once, behind a sync.Once, so an *Arc can be
// shared freely between goroutines.
type Arc struct {
	first         r3.Vector
	last          r3.Vector
	normal        r3.Vector
	moveDirection r3.Vector
	distance      float64

	planarOnce sync.Once
	planar     [3]r3.Vector
}

// NewArc returns the arc from first to last. When shortestPath is false the
// arc travels the long way round; for coincident endpoints that makes it a
// full circle of length 2π.
func NewArc(first, last r3.Vector, shortestPath bool) *Arc {
	return newArc(first, last, nil, shortestPath)
}

// NewArcVia is NewArc with an intermediate point that fixes the plane of the
// arc when first and last are coincident or antipodal.
func NewArcVia(first, intermediate, last r3.Vector, shortestPath bool) *Arc {
	return newArc(first, last, &intermediate, shortestPath)
}

// NewArcFromBearing returns the arc that leaves first at bearing (radians
// clockwise from north) and runs for distance radians. Bearings are
// undefined at the poles.
func NewArcFromBearing(first r3.Vector, distance, bearing float64) (*Arc, error) {
	// A quarter turn along the bearing is the unit tangent of the path.
	dir, err := geometry.Move(first, math.Pi/2, bearing)
	if err != nil {
		return nil, fmt.Errorf("arc from bearing: %w", err)
	}
	distance = math.Mod(distance, 2*math.Pi)
	if distance < 0 {
		distance += 2 * math.Pi
	}
	normal, _ := geometry.CrossNormalized(first, dir)
	sin, cos := math.Sincos(distance)
	return &Arc{
		first:         first,
		last:          first.Mul(cos).Add(dir.Mul(sin)).Normalize(),
		normal:        normal,
		moveDirection: normal.Cross(first).Normalize(),
		distance:      distance,
	}, nil
}

func newArc(first, last r3.Vector, intermediate *r3.Vector, shortestPath bool) *Arc {
	a := &Arc{}
	a.init(first, last, intermediate, shortestPath)
	return a
}

// init fills a zero Arc in place so hot paths can keep the arc on the stack.
func (a *Arc) init(first, last r3.Vector, intermediate *r3.Vector, shortestPath bool) {
	a.first, a.last = first, last
	a.normal = resolveNormal(first, last, intermediate)

	raw := geometry.AngleRadians(first, last)
	if !shortestPath {
		a.normal = a.normal.Mul(-1)
		if raw == 0 {
			raw = 2 * math.Pi
		}
	}
	a.moveDirection = a.normal.Cross(first).Normalize()

	a.distance = raw
	if raw != 0 && raw != math.Pi && raw != 2*math.Pi &&
		geometry.ScalarTripleProduct(first, last, a.normal) < 0 {
		a.distance = 2*math.Pi - raw
	}
}

// resolveNormal returns normalize(first × last), falling back to the
// intermediate point and then to the coordinate axes when the endpoints are
// parallel. Exhausting the chain means first was not a unit vector.
func resolveNormal(first, last r3.Vector, intermediate *r3.Vector) r3.Vector {
	if n, mag := geometry.CrossNormalized(first, last); mag != 0 {
		return n
	}
	if intermediate != nil {
		if n, mag := geometry.CrossNormalized(first, *intermediate); mag != 0 {
			return n
		}
	}
	for _, axis := range []r3.Vector{geometry.NorthPole, geometry.Lon90, geometry.Lon0} {
		if n, mag := geometry.CrossNormalized(first, axis); mag != 0 {
			return n
		}
	}
	panic(&ContractError{
		Op:     "great circle normal",
		Detail: fmt.Sprintf("no axis yields a normal for %v", first),
	})
}

// First returns the starting point.
func (a *Arc) First() r3.Vector { return a.first }

// Last returns the end point.
func (a *Arc) Last() r3.Vector { return a.last }

// Normal returns the unit normal of the arc's plane.
func (a *Arc) Normal() r3.Vector { return a.normal }

// MoveDirection returns the unit tangent at First in the direction of travel.
func (a *Arc) MoveDirection() r3.Vector { return a.moveDirection }

// Distance returns the arc length in radians, in [0, 2π].
func (a *Arc) Distance() float64 { return a.distance }

// DistanceTo returns the distance from First to v measured along the
// direction of travel, in [0, 2π). v is assumed to lie on the arc's circle.
func (a *Arc) DistanceTo(v r3.Vector) float64 {
	d := geometry.AngleRadians(a.first, v)
	if d != 0 && d != math.Pi && geometry.ScalarTripleProduct(a.first, v, a.normal) < 0 {
		d = 2*math.Pi - d
	}
	return d
}

// PointAt returns the point d radians from First along the arc.
func (a *Arc) PointAt(d float64) r3.Vector {
	sin, cos := math.Sincos(d)
	return a.first.Mul(cos).Add(a.moveDirection.Mul(sin))
}

// Intersection returns the point where this arc's great circle meets other's,
// choosing the one of the two antipodal candidates that lies ahead of First.
// Coincident circles have no single intersection. With inRange set, the
// point must also lie within both arcs.
func (a *Arc) Intersection(other *Arc, inRange bool) (r3.Vector, bool) {
	c, mag := geometry.CrossNormalized(a.normal, other.normal)
	if mag == 0 {
		return r3.Vector{}, false
	}
	if geometry.ScalarTripleProduct(a.first, c, a.normal) < 0 {
		c = c.Mul(-1)
	}
	if inRange {
		if a.DistanceTo(c) > a.distance || other.DistanceTo(c) > other.distance {
			return r3.Vector{}, false
		}
	}
	return c, true
}

// OnCircle reports whether v lies in the arc's plane and within its length.
func (a *Arc) OnCircle(v r3.Vector) bool {
	return math.Abs(v.Dot(a.normal)) < onCircleTolerance && a.DistanceTo(v) <= a.distance
}

// Reverse returns the same path travelled from Last back to First.
func (a *Arc) Reverse() *Arc {
	n := a.normal.Mul(-1)
	return &Arc{
		first:         a.last,
		last:          a.first,
		normal:        n,
		moveDirection: n.Cross(a.last).Normalize(),
		distance:      a.distance,
	}
}

// Sample returns n points along the arc. With onCenters the points are the
// midpoints of n equal sub-arcs; otherwise they are evenly spaced and include
// both ends.
func (a *Arc) Sample(n int, onCenters bool) []r3.Vector {
	if n <= 0 {
		return nil
	}
	points := make([]r3.Vector, n)
	if onCenters {
		step := a.distance / float64(n)
		for i := range points {
			points[i] = a.PointAt((float64(i) + 0.5) * step)
		}
		return points
	}
	if n == 1 {
		points[0] = a.first
		return points
	}
	step := a.distance / float64(n-1)
	for i := range points {
		points[i] = a.PointAt(float64(i) * step)
	}
	return points
}

func (a *Arc) planarBasis() [3]r3.Vector {
	a.planarOnce.Do(func() {
		z := a.normal.Mul(-1)
		y := geometry.Rotate(a.first, a.normal, a.distance/2)
		a.planar = [3]r3.Vector{y.Cross(z), y, z}
	})
	return a.planar
}

// Project expresses v in the arc's planar frame: x runs from First toward
// Last, y points at the arc's midpoint and z points out of the plane toward
// the viewer.
func (a *Arc) Project(v r3.Vector) r3.Vector {
	m := a.planarBasis()
	return r3.Vector{X: m[0].Dot(v), Y: m[1].Dot(v), Z: m[2].Dot(v)}
}

// Unproject is the inverse of Project.
func (a *Arc) Unproject(p r3.Vector) r3.Vector {
	m := a.planarBasis()
	return m[0].Mul(p.X).Add(m[1].Mul(p.Y)).Add(m[2].Mul(p.Z))
}

func (a *Arc) String() string {
	lat0, lon0 := geometry.LatLonDegrees(a.first)
	lat1, lon1 := geometry.LatLonDegrees(a.last)
	return fmt.Sprintf("arc (%.6f, %.6f) -> (%.6f, %.6f) %.6f deg",
		lat0, lon0, lat1, lon1, a.distance*180/math.Pi)
}
