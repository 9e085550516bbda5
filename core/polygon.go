package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/geopoly/geometry"
)

// Tolerance is the angular tolerance, in radians, used to merge vertices and
// to decide whether a point lies on the boundary.
const Tolerance = 1e-7

var (
	cosTolerance = math.Cos(Tolerance)
	sinTolerance = math.Sin(Tolerance)
)

// probeOffset is how far off its longest edge the area computation probes to
// decide which side of the boundary is inside.
const probeOffset = 10 * Tolerance

const maxReferenceAttempts = 1000

// degenerateSum is the vertex-sum magnitude below which the centroid
// direction is rounding noise.
const degenerateSum = 1e-9

// shape is the read-only geometry a containment query needs. Copies share the
// edge slice, so a shape value can be handed to any number of goroutines.
type shape struct {
	edges          []*Arc
	referencePoint r3.Vector
	referenceIn    bool
	global         bool
}

// Polygon is a closed region on the unit sphere bounded by great-circle
// edges. Membership is decided against a reference point whose status is
// known. Query methods are safe for concurrent use; Invert,
// SetReferencePoint and DensifyEdges are not and must not overlap queries.
type Polygon struct {
	shape

	areaMu    sync.Mutex
	areaValid bool
	area      float64
}

// NewPolygon builds a polygon from an ordered ring of unit vectors. The ring
// is closed automatically and consecutive points closer than Tolerance are
// merged. The reference point is derived from the vertices, which assumes
// the polygon is smaller than a hemisphere; use NewPolygonWithReference or
// SetReferencePoint otherwise.
func NewPolygon(points []r3.Vector) (*Polygon, error) {
	edges, vertices, err := buildRing(points)
	if err != nil {
		return nil, err
	}
	p := &Polygon{shape: shape{edges: edges}}
	if err := p.deriveReference(vertices); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPolygonWithReference builds a polygon whose reference point and its
// inside/outside status are supplied by the caller.
func NewPolygonWithReference(points []r3.Vector, reference r3.Vector, referenceIn bool) (*Polygon, error) {
	edges, _, err := buildRing(points)
	if err != nil {
		return nil, err
	}
	return &Polygon{shape: shape{
		edges:          edges,
		referencePoint: reference,
		referenceIn:    referenceIn,
	}}, nil
}

// NewGlobalPolygon returns the degenerate polygon that contains every point
// when referenceIn is true and no point otherwise.
func NewGlobalPolygon(referenceIn bool) *Polygon {
	return &Polygon{shape: shape{
		referencePoint: geometry.NorthPole,
		referenceIn:    referenceIn,
		global:         true,
	}}
}

// NewSmallCircle returns a regular polygon with nEdges vertices spaced
// evenly on the small circle of the given angular radius around center. The
// center is the reference point and is inside.
func NewSmallCircle(center r3.Vector, radius float64, nEdges int) (*Polygon, error) {
	if nEdges < 3 {
		return nil, invalidPolygon("small circle needs at least 3 edges, got %d", nEdges)
	}
	if radius <= Tolerance || radius >= math.Pi-Tolerance {
		return nil, invalidPolygon("small circle radius %g outside (0, π)", radius)
	}
	axis := resolveNormal(center, geometry.NorthPole, nil)
	start := geometry.Rotate(center, axis, radius)
	points := make([]r3.Vector, nEdges)
	for i := range points {
		points[i] = geometry.Rotate(start, center, 2*math.Pi*float64(i)/float64(nEdges))
	}
	return NewPolygonWithReference(points, center, true)
}

// buildRing turns the point sequence into closed ring edges and returns the
// distinct vertices that were kept.
func buildRing(points []r3.Vector) ([]*Arc, []r3.Vector, error) {
	if len(points) == 0 {
		return nil, nil, invalidPolygon("no points")
	}
	kept := make([]r3.Vector, 0, len(points))
	kept = append(kept, points[0])
	for _, p := range points[1:] {
		if geometry.AngleRadians(kept[len(kept)-1], p) > Tolerance {
			kept = append(kept, p)
		}
	}

	closed := len(kept) > 1 && geometry.AngleRadians(kept[len(kept)-1], kept[0]) <= Tolerance
	vertices := kept
	if closed {
		vertices = kept[:len(kept)-1]
	}
	if len(vertices) < 2 {
		return nil, nil, invalidPolygon("need at least 2 distinct points, got %d", len(vertices))
	}

	edges := make([]*Arc, 0, len(kept))
	for i := 1; i < len(kept); i++ {
		edges = append(edges, NewArc(kept[i-1], kept[i], true))
	}
	if !closed {
		edges = append(edges, NewArc(kept[len(kept)-1], kept[0], true))
	}
	return edges, vertices, nil
}

// deriveReference places the reference point at the normalized centroid of
// the vertices, classifying it against the centroid's antipode, which is
// assumed to be outside.
func (p *Polygon) deriveReference(vertices []r3.Vector) error {
	var sum r3.Vector
	for _, v := range vertices {
		sum = sum.Add(v)
	}

	center := sum.Normalize()
	if sum.Norm() < degenerateSum {
		var err error
		if center, err = p.perturbedCenter(vertices, sum); err != nil {
			return err
		}
	}

	p.referencePoint = geometry.Antipode(center)
	p.referenceIn = false
	if !p.onBoundaryPoint(center) {
		in := p.shape.contains(center)
		p.referencePoint = center
		p.referenceIn = in
	}
	return nil
}

// perturbedCenter handles vertex sets whose sum vanishes, for example points
// spread evenly around a great circle: the seed vertex is nudged until the
// resulting center and its antipode both sit off the boundary.
func (p *Polygon) perturbedCenter(vertices []r3.Vector, sum r3.Vector) (r3.Vector, error) {
	rng := rand.New(rand.NewPCG(uint64(len(vertices)), 0x9e3779b97f4a7c15))
	seed := vertices[0]
	for range maxReferenceAttempts {
		nudge := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(1e-3)
		moved := seed.Add(nudge).Normalize()
		candidate := sum.Sub(seed).Add(moved).Normalize()
		if geometry.IsZero(candidate) {
			continue
		}
		if !p.onBoundaryPoint(candidate) && !p.onBoundaryPoint(geometry.Antipode(candidate)) {
			return candidate, nil
		}
	}
	return r3.Vector{}, invalidPolygon("could not place a reference point off the boundary")
}

// Contains reports whether x is inside the polygon. Points on the boundary
// are always inside.
func (p *Polygon) Contains(x r3.Vector) bool {
	return p.shape.contains(x)
}

// ContainsAll reports whether every point is inside.
func (p *Polygon) ContainsAll(points ...r3.Vector) bool {
	for _, x := range points {
		if !p.shape.contains(x) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one point is inside.
func (p *Polygon) ContainsAny(points ...r3.Vector) bool {
	for _, x := range points {
		if p.shape.contains(x) {
			return true
		}
	}
	return false
}

// OnBoundary reports whether x is within Tolerance of a vertex or lies on an
// edge.
func (p *Polygon) OnBoundary(x r3.Vector) bool {
	if p.global {
		return false
	}
	return p.onBoundaryPoint(x)
}

func (s *shape) contains(x r3.Vector) bool {
	if s.global {
		return s.referenceIn
	}
	if s.referencePoint.Dot(x) > cosTolerance {
		return s.referenceIn
	}

	var gcRef Arc
	gcRef.init(s.referencePoint, x, nil, true)
	if s.onBoundary(&gcRef) {
		return true
	}
	return (s.edgeCrossings(&gcRef)%2 == 0) == s.referenceIn
}

// onBoundary checks the end of gcRef against the ring. It is intentionally
// broader than requiring gcRef to be coplanar with an edge: any end point
// lying in an edge's plane within the edge's span counts, which includes the
// coplanar case.
func (s *shape) onBoundary(gcRef *Arc) bool {
	return s.onBoundaryPoint(gcRef.last)
}

func (s *shape) onBoundaryPoint(x r3.Vector) bool {
	for _, e := range s.edges {
		if x.Dot(e.first) >= cosTolerance {
			return true
		}
		if math.Abs(x.Dot(e.normal)) <= sinTolerance && e.DistanceTo(x) <= e.distance {
			return true
		}
	}
	return false
}

// edgeCrossings counts how often the boundary crosses gcRef. Edges whose last
// vertex lies in gcRef's plane are chained to the following edges until one
// ends off the plane, and the chain counts once if it passes from one side of
// the plane to the other at a point inside gcRef.
func (s *shape) edgeCrossings(gcRef *Arc) int {
	n := len(s.edges)
	normal := gcRef.normal
	onPlane := func(v r3.Vector) bool {
		return math.Abs(v.Dot(normal)) <= sinTolerance
	}

	start := -1
	for i, e := range s.edges {
		if !onPlane(e.last) {
			start = i
			break
		}
	}
	if start < 0 {
		// Every vertex lies on gcRef's great circle.
		return 0
	}

	crossings := 0
	for k := 1; k <= n; {
		e := s.edges[(start+k)%n]
		if !onPlane(e.last) {
			if _, ok := gcRef.Intersection(e, true); ok {
				crossings++
			}
			k++
			continue
		}

		// The chain cannot run past edges[start], whose last vertex is off
		// the plane.
		j := k
		for onPlane(s.edges[(start+j)%n].last) {
			j++
		}
		end := s.edges[(start+j)%n]
		if (e.first.Dot(normal) > 0) != (end.last.Dot(normal) > 0) &&
			gcRef.distance > gcRef.DistanceTo(end.first) {
			crossings++
		}
		k = j + 1
	}
	return crossings
}

// Area returns the area of the polygon's inside in steradians. It is computed
// on first use and cached until the polygon is mutated.
func (p *Polygon) Area() float64 {
	p.areaMu.Lock()
	defer p.areaMu.Unlock()
	if !p.areaValid {
		p.area = p.computeArea()
		p.areaValid = true
	}
	return p.area
}

// AreaSmall returns the smaller of the areas of the inside and the outside.
func (p *Polygon) AreaSmall() float64 {
	a := p.Area()
	return math.Min(a, 4*math.Pi-a)
}

func (p *Polygon) computeArea() float64 {
	if p.global {
		if p.referenceIn {
			return 4 * math.Pi
		}
		return 0
	}

	// Spherical excess of the region to the left of the edges, from the
	// signed turn at each vertex.
	n := len(p.edges)
	turning := 0.0
	longest := p.edges[0]
	for i, e := range p.edges {
		next := p.edges[(i+1)%n]
		sin := e.normal.Cross(next.normal).Dot(next.first)
		cos := e.normal.Dot(next.normal)
		turning += math.Atan2(sin, cos)
		if e.distance > longest.distance {
			longest = e
		}
	}
	left := math.Mod(2*math.Pi-turning, 4*math.Pi)
	if left < 0 {
		left += 4 * math.Pi
	}

	probe := longest.PointAt(longest.distance / 2).Add(longest.normal.Mul(probeOffset)).Normalize()
	if p.shape.contains(probe) {
		return left
	}
	return math.Mod(4*math.Pi-left, 4*math.Pi)
}

func (p *Polygon) resetArea() {
	p.areaMu.Lock()
	p.areaValid = false
	p.areaMu.Unlock()
}

// Invert swaps inside and outside.
func (p *Polygon) Invert() {
	p.referenceIn = !p.referenceIn
	p.resetArea()
}

// SetReferencePoint replaces the reference point and its status. It is the
// way to describe polygons larger than a hemisphere, where the derived
// reference point can be misclassified.
func (p *Polygon) SetReferencePoint(point r3.Vector, referenceIn bool) {
	p.referencePoint = point
	p.referenceIn = referenceIn
	p.resetArea()
}

// DensifyEdges splits every edge longer than maxSpacing radians into equal
// sub-edges no longer than maxSpacing. A non-positive spacing is ignored.
func (p *Polygon) DensifyEdges(maxSpacing float64) {
	if maxSpacing <= 0 || p.global {
		return
	}
	dense := make([]*Arc, 0, len(p.edges))
	for _, e := range p.edges {
		if e.distance <= maxSpacing {
			dense = append(dense, e)
			continue
		}
		parts := int(math.Ceil(e.distance / maxSpacing))
		step := e.distance / float64(parts)
		prev := e.first
		for i := 1; i <= parts; i++ {
			next := e.last
			if i < parts {
				next = e.PointAt(float64(i) * step)
			}
			dense = append(dense, NewArc(prev, next, true))
			prev = next
		}
	}
	p.edges = dense
	p.resetArea()
}

// Edges returns the ring's edges in order. The arcs are shared and must not
// be modified.
func (p *Polygon) Edges() []*Arc {
	return append([]*Arc(nil), p.edges...)
}

// Vertices returns the first point of every edge.
func (p *Polygon) Vertices() []r3.Vector {
	vs := make([]r3.Vector, len(p.edges))
	for i, e := range p.edges {
		vs[i] = e.first
	}
	return vs
}

// Len returns the number of edges.
func (p *Polygon) Len() int { return len(p.edges) }

// ReferencePoint returns the point of known status.
func (p *Polygon) ReferencePoint() r3.Vector { return p.referencePoint }

// ReferenceIn reports whether the reference point is inside.
func (p *Polygon) ReferenceIn() bool { return p.referenceIn }

// IsGlobal reports whether this is the whole-sphere or empty polygon.
func (p *Polygon) IsGlobal() bool { return p.global }

func (p *Polygon) String() string {
	lat, lon := geometry.LatLonDegrees(p.referencePoint)
	if p.global {
		return fmt.Sprintf("global polygon in=%t", p.referenceIn)
	}
	return fmt.Sprintf("polygon %d edges reference (%.6f, %.6f) in=%t",
		len(p.edges), lat, lon, p.referenceIn)
}
