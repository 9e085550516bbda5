package core

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/geopoly/geometry"
)

func latLonPoints(coords ...[2]float64) []r3.Vector {
	pts := make([]r3.Vector, len(coords))
	for i, c := range coords {
		pts[i] = geometry.VectorFromLatLonDegrees(c[0], c[1])
	}
	return pts
}

// squareCoords is counter-clockwise seen from outside the sphere.
var squareCoords = [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}}

// uShapeCoords is a counter-clockwise concave ring open to the north.
var uShapeCoords = [][2]float64{
	{0, 0}, {0, 30}, {30, 30}, {30, 20}, {10, 20}, {10, 10}, {30, 10}, {30, 0},
}

func mustPolygon(t *testing.T, coords [][2]float64) *Polygon {
	t.Helper()
	p, err := NewPolygon(latLonPoints(coords...))
	require.NoError(t, err)
	return p
}

func s2Loop(coords [][2]float64) *s2.Loop {
	pts := latLonPoints(coords...)
	s2pts := make([]s2.Point, len(pts))
	for i, v := range pts {
		s2pts[i] = s2.Point{Vector: v}
	}
	return s2.LoopFromPoints(s2pts)
}

// randomPointNear returns a unit vector in a lat/lon box around the given
// rings, with an occasional point anywhere on the sphere.
func randomPointNear(rng *rand.Rand, minLat, maxLat, minLon, maxLon float64) r3.Vector {
	if rng.IntN(10) == 0 {
		return randomUnitVector(rng)
	}
	lat := minLat + rng.Float64()*(maxLat-minLat)
	lon := minLon + rng.Float64()*(maxLon-minLon)
	return geometry.VectorFromLatLonDegrees(lat, lon)
}

func TestPolygonSquareScenario(t *testing.T) {
	p := mustPolygon(t, squareCoords)
	require.True(t, p.Contains(geometry.VectorFromLatLonDegrees(5, 5)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(50, 50)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(-5, -5)))
	require.Equal(t, 4, p.Len())
	require.True(t, p.ReferenceIn())
}

func TestPolygonClosingPointIsOptional(t *testing.T) {
	closed := append(append([][2]float64{}, squareCoords...), squareCoords[0])
	a := mustPolygon(t, squareCoords)
	b := mustPolygon(t, closed)
	require.Equal(t, a.Len(), b.Len())
	require.Equal(t, a.Vertices(), b.Vertices())
}

func TestPolygonMergesNearDuplicateVertices(t *testing.T) {
	pts := latLonPoints(squareCoords...)
	nudged := pts[1].Add(r3.Vector{Z: Tolerance / 10}).Normalize()
	withDup := []r3.Vector{pts[0], pts[1], nudged, pts[2], pts[3]}

	p, err := NewPolygon(withDup)
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())
}

func TestPolygonInvalidInputs(t *testing.T) {
	p0 := geometry.VectorFromLatLonDegrees(1, 1)
	cases := map[string][]r3.Vector{
		"empty":      nil,
		"single":     {p0},
		"coincident": {p0, p0.Add(r3.Vector{X: Tolerance / 100}).Normalize(), p0},
	}
	for name, pts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPolygon(pts)
			require.True(t, errors.Is(err, ErrInvalidPolygon), "err = %v", err)
			var ipe *InvalidPolygonError
			require.True(t, errors.As(err, &ipe))
			require.NotEmpty(t, ipe.Reason)

			_, err = NewPolygonWithReference(pts, p0, true)
			require.True(t, errors.Is(err, ErrInvalidPolygon))
		})
	}

	two, err := NewPolygon(latLonPoints([2]float64{0, 0}, [2]float64{0, 10}))
	require.NoError(t, err)
	require.Equal(t, 2, two.Len())
}

func TestGlobalPolygon(t *testing.T) {
	all := NewGlobalPolygon(true)
	none := NewGlobalPolygon(false)

	rng := rand.New(rand.NewPCG(3, 4))
	probes := []r3.Vector{geometry.NorthPole, geometry.Antipode(geometry.NorthPole), geometry.Lon0, geometry.Antipode(geometry.Lon90)}
	for range 100 {
		probes = append(probes, randomUnitVector(rng))
	}
	for _, x := range probes {
		require.True(t, all.Contains(x))
		require.False(t, none.Contains(x))
		require.False(t, all.OnBoundary(x))
	}
	require.Equal(t, 4*math.Pi, all.Area())
	require.Equal(t, 0.0, none.Area())
	require.True(t, all.IsGlobal())
	require.Zero(t, all.Len())

	all.Invert()
	require.False(t, all.Contains(geometry.NorthPole))
	require.Equal(t, 0.0, all.Area())
}

func TestPolygonBoundaryInclusive(t *testing.T) {
	p := mustPolygon(t, uShapeCoords)
	inverted := mustPolygon(t, uShapeCoords)
	inverted.Invert()

	rng := rand.New(rand.NewPCG(5, 6))
	for _, e := range p.Edges() {
		boundary := []r3.Vector{e.First(), e.Last(), e.PointAt(e.Distance() / 2)}
		for range 5 {
			boundary = append(boundary, e.PointAt(rng.Float64()*e.Distance()))
		}
		// Within the vertex tolerance but off the edge.
		boundary = append(boundary, geometry.Rotate(e.First(), e.MoveDirection(), Tolerance/2))

		for _, x := range boundary {
			require.True(t, p.OnBoundary(x), "OnBoundary(%v)", x)
			require.True(t, p.Contains(x), "Contains(%v)", x)
			require.True(t, inverted.Contains(x), "inverted Contains(%v)", x)
		}
	}
}

func TestBoundaryIgnoresQueryArcDirection(t *testing.T) {
	p := mustPolygon(t, squareCoords)

	// The arc from the reference to (0, 5) runs along a meridian, across the
	// equatorial edge rather than along it.
	x := geometry.VectorFromLatLonDegrees(0, 5)
	ref := NewArc(p.ReferencePoint(), x, true)
	edge := p.Edges()[0]
	require.Less(t, math.Abs(ref.Normal().Dot(edge.Normal())), cosTolerance)
	require.True(t, p.OnBoundary(x))
	require.True(t, p.Contains(x))

	// In the edge's plane but past its end.
	beyond := geometry.VectorFromLatLonDegrees(0, 20)
	require.False(t, p.OnBoundary(beyond))
	require.False(t, p.Contains(beyond))
}

func TestAdjacentPolygonsShareBoundary(t *testing.T) {
	west := mustPolygon(t, [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}})
	east := mustPolygon(t, [][2]float64{{0, 10}, {0, 20}, {10, 20}, {10, 10}})

	shared := NewArc(geometry.VectorFromLatLonDegrees(0, 10), geometry.VectorFromLatLonDegrees(10, 10), true)
	for _, x := range shared.Sample(11, false) {
		require.True(t, west.Contains(x))
		require.True(t, east.Contains(x))
	}
}

func TestPolygonMatchesS2Loop(t *testing.T) {
	for name, coords := range map[string][][2]float64{
		"square": squareCoords,
		"ushape": uShapeCoords,
	} {
		t.Run(name, func(t *testing.T) {
			p := mustPolygon(t, coords)
			loop := s2Loop(coords)
			require.InDelta(t, loop.Area(), p.Area(), 1e-9)

			rng := rand.New(rand.NewPCG(7, 8))
			for range 5000 {
				x := randomPointNear(rng, -10, 40, -10, 40)
				require.Equal(t, loop.ContainsPoint(s2.Point{Vector: x}), p.Contains(x), "point %v", x)
			}
		})
	}
}

func TestPolygonLargerThanHemisphere(t *testing.T) {
	loop := s2Loop(uShapeCoords)
	p := mustPolygon(t, uShapeCoords)
	outside := geometry.VectorFromLatLonDegrees(-60, 170)
	require.False(t, p.Contains(outside))

	p.SetReferencePoint(outside, true)
	require.InDelta(t, 4*math.Pi-loop.Area(), p.Area(), 1e-9)

	rng := rand.New(rand.NewPCG(9, 10))
	for range 2000 {
		x := randomPointNear(rng, -10, 40, -10, 40)
		if p.OnBoundary(x) {
			continue
		}
		require.Equal(t, !loop.ContainsPoint(s2.Point{Vector: x}), p.Contains(x), "point %v", x)
	}
}

func TestPolygonAreaComplement(t *testing.T) {
	for _, coords := range [][][2]float64{squareCoords, uShapeCoords} {
		p := mustPolygon(t, coords)
		a := p.Area()
		p.Invert()
		require.InDelta(t, 4*math.Pi, a+p.Area(), 1e-12)
		require.InDelta(t, math.Min(a, 4*math.Pi-a), p.AreaSmall(), 1e-12)
	}
}

func TestPolygonDeterministic(t *testing.T) {
	p := mustPolygon(t, uShapeCoords)
	q := mustPolygon(t, uShapeCoords)
	require.Equal(t, p.ReferencePoint(), q.ReferencePoint())
	require.Equal(t, p.ReferenceIn(), q.ReferenceIn())

	rng := rand.New(rand.NewPCG(11, 12))
	points := make([]r3.Vector, 500)
	for i := range points {
		points[i] = randomPointNear(rng, -10, 40, -10, 40)
	}
	first := make([]bool, len(points))
	for i, x := range points {
		first[i] = p.Contains(x)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Area()
			for i, x := range points {
				if p.Contains(x) != first[i] {
					t.Errorf("Contains(%v) changed between calls", x)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestPolygonDegenerateVertexSum(t *testing.T) {
	coords := [][2]float64{{0, 0}, {0, 90}, {0, 180}, {0, -90}}
	p := mustPolygon(t, coords)
	q := mustPolygon(t, coords)
	require.Equal(t, p.ReferencePoint(), q.ReferencePoint())

	north := p.Contains(geometry.NorthPole)
	south := p.Contains(geometry.Antipode(geometry.NorthPole))
	require.NotEqual(t, north, south, "exactly one hemisphere is inside")
	require.InDelta(t, 2*math.Pi, p.Area(), 1e-9)

	for _, lon := range []float64{0, 45, 135, -170} {
		x := geometry.VectorFromLatLonDegrees(0, lon)
		require.True(t, p.OnBoundary(x))
		require.True(t, p.Contains(x))
	}
}

func TestPolygonAntipodalReferenceQuery(t *testing.T) {
	var coords [][2]float64
	for lon := 0.0; lon < 360; lon += 45 {
		coords = append(coords, [2]float64{60, lon})
	}
	p, err := NewPolygonWithReference(latLonPoints(coords...), geometry.NorthPole, true)
	require.NoError(t, err)

	// gcRef from the pole to its antipode runs through the vertices at
	// longitude 90 and 270.
	require.False(t, p.Contains(geometry.Antipode(geometry.NorthPole)))
	require.True(t, p.Contains(geometry.NorthPole))
	require.True(t, p.Contains(geometry.VectorFromLatLonDegrees(70, 90)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(50, 90)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(50, 270)))

	square, err := NewPolygonWithReference(latLonPoints(squareCoords...), geometry.VectorFromLatLonDegrees(5, 5), true)
	require.NoError(t, err)
	require.False(t, square.Contains(geometry.Antipode(square.ReferencePoint())))
}

func TestPolygonNearReferenceShortCircuit(t *testing.T) {
	p := mustPolygon(t, squareCoords)
	ref := p.ReferencePoint()
	near := geometry.Rotate(ref, geometry.NorthPole, Tolerance/4)

	require.True(t, p.Contains(near))
	p.Invert()
	require.False(t, p.Contains(ref))
	require.False(t, p.Contains(near))
}

func TestPolygonChainThroughVertices(t *testing.T) {
	// The meridian at lon 5 from the reference passes through two vertices.
	coords := [][2]float64{{0, 0}, {0, 5}, {0, 10}, {10, 10}, {10, 5}, {10, 0}}
	p, err := NewPolygonWithReference(latLonPoints(coords...), geometry.VectorFromLatLonDegrees(-20, 5), false)
	require.NoError(t, err)

	require.True(t, p.Contains(geometry.VectorFromLatLonDegrees(5, 5)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(20, 5)))
	require.False(t, p.Contains(geometry.VectorFromLatLonDegrees(-10, 5)))
}

func TestSmallCircle(t *testing.T) {
	center := geometry.VectorFromLatLonDegrees(45, -30)
	const radius = 0.1

	p, err := NewSmallCircle(center, radius, 64)
	require.NoError(t, err)
	require.Equal(t, 64, p.Len())
	require.Equal(t, center, p.ReferencePoint())
	require.True(t, p.ReferenceIn())

	rim := s2.CapFromCenterAngle(s2.Point{Vector: center}, s1.Angle(radius))
	for i := range 36 {
		bearing := float64(i) * math.Pi / 18
		in, err := geometry.Move(center, radius*0.99, bearing)
		require.NoError(t, err)
		require.True(t, rim.ContainsPoint(s2.Point{Vector: in}))
		require.True(t, p.Contains(in), "bearing %v", bearing)

		out, err := geometry.Move(center, radius*1.01, bearing)
		require.NoError(t, err)
		require.False(t, p.Contains(out), "bearing %v", bearing)
	}

	capArea := 2 * math.Pi * (1 - math.Cos(radius))
	require.InDelta(t, capArea, p.Area(), capArea*0.01)

	_, err = NewSmallCircle(center, radius, 2)
	require.True(t, errors.Is(err, ErrInvalidPolygon))
	_, err = NewSmallCircle(center, 0, 8)
	require.True(t, errors.Is(err, ErrInvalidPolygon))
}

func TestDensifyEdges(t *testing.T) {
	p := mustPolygon(t, uShapeCoords)
	before := p.Area()
	vertices := p.Vertices()

	spacing := 1 * math.Pi / 180
	p.DensifyEdges(spacing)
	require.Greater(t, p.Len(), len(vertices))
	for _, e := range p.Edges() {
		require.LessOrEqual(t, e.Distance(), spacing+1e-12)
	}
	dense := p.Vertices()
	for _, v := range vertices {
		require.Contains(t, dense, v)
	}
	require.InDelta(t, before, p.Area(), 1e-9)

	loop := s2Loop(uShapeCoords)
	rng := rand.New(rand.NewPCG(13, 14))
	for range 2000 {
		x := randomPointNear(rng, -10, 40, -10, 40)
		if p.OnBoundary(x) {
			continue
		}
		require.Equal(t, loop.ContainsPoint(s2.Point{Vector: x}), p.Contains(x), "point %v", x)
	}

	n := p.Len()
	p.DensifyEdges(0)
	require.Equal(t, n, p.Len())
}

func TestContainsAllAndAny(t *testing.T) {
	p := mustPolygon(t, squareCoords)
	in := geometry.VectorFromLatLonDegrees(5, 5)
	out := geometry.VectorFromLatLonDegrees(50, 50)

	require.True(t, p.ContainsAll(in, geometry.VectorFromLatLonDegrees(1, 9)))
	require.False(t, p.ContainsAll(in, out))
	require.True(t, p.ContainsAny(out, in))
	require.False(t, p.ContainsAny(out))
	require.True(t, p.ContainsAll())
	require.False(t, p.ContainsAny())
}

func TestPolygonEdgesIsCopy(t *testing.T) {
	p := mustPolygon(t, squareCoords)
	edges := p.Edges()
	edges[0] = nil
	require.NotNil(t, p.Edges()[0])
	require.Equal(t, p.Vertices()[1], p.Edges()[0].Last())
}

func TestPolygonString(t *testing.T) {
	require.Equal(t, "global polygon in=true", NewGlobalPolygon(true).String())
	s := mustPolygon(t, squareCoords).String()
	require.True(t, strings.HasPrefix(s, "polygon 4 edges reference"), s)
}
