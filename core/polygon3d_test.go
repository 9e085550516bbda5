package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/geopoly/geometry"
)

var mantleRadii = []float64{1200, 2000, 3000, 4500, 5700, 6000, 6371}

func TestPolygon3DRejectsLayerOutsideHorizons(t *testing.T) {
	p, err := NewPolygon3D(latLonPoints(squareCoords...), NewRadius(3000, 2), NewRadius(4000, 2))
	require.NoError(t, err)

	x := geometry.VectorFromLatLonDegrees(5, 5)
	require.True(t, p.Polygon().Contains(x))

	in, err := p.Contains(x, 3500, 2, mantleRadii)
	require.NoError(t, err)
	require.True(t, in)

	in, err = p.Contains(x, 3500, 5, mantleRadii)
	require.NoError(t, err)
	require.False(t, in)
	require.False(t, p.ContainsLayer(x, 5))
	require.False(t, p.ContainsLayer(x, 1))
	require.True(t, p.ContainsLayer(x, 2))
}

func TestPolygon3DRadialBounds(t *testing.T) {
	p, err := NewPolygon3D(latLonPoints(squareCoords...), NewRadius(3000, Unconstrained), NewRadius(4000, Unconstrained))
	require.NoError(t, err)
	x := geometry.VectorFromLatLonDegrees(5, 5)

	for _, tc := range []struct {
		radius float64
		want   bool
	}{
		{2999, false},
		{3000 - radialTolerance/2, true},
		{3500, true},
		{4000 + radialTolerance/2, true},
		{4001, false},
	} {
		got, err := p.Contains(x, tc.radius, 0, nil)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "radius %v", tc.radius)
	}

	got, err := p.Contains(geometry.VectorFromLatLonDegrees(50, 50), 3500, 0, nil)
	require.NoError(t, err)
	require.False(t, got)
}

func TestPolygon3DMixedHorizons(t *testing.T) {
	p, err := NewPolygon3D(latLonPoints(squareCoords...),
		NewLayerFraction(0.5, 3),
		Depth{DepthKm: 100, LayerIndex: Unconstrained, Earth: geometry.Sphere},
	)
	require.NoError(t, err)
	x := geometry.VectorFromLatLonDegrees(5, 5)

	// Layer 3 spans 4500..5700, so the bottom sits at 5100 km and the top
	// at 6271 km.
	in, err := p.Contains(x, 5000, 3, mantleRadii)
	require.NoError(t, err)
	require.False(t, in)

	in, err = p.Contains(x, 6000, 4, mantleRadii)
	require.NoError(t, err)
	require.True(t, in)

	_, err = p.Contains(x, 6000, 4, mantleRadii[:3])
	require.True(t, errors.Is(err, ErrLayerOutOfRange))
}

func TestPolygon3DInvalid(t *testing.T) {
	_, err := NewPolygon3D(latLonPoints(squareCoords...), NewRadius(3000, 3), NewRadius(4000, 2))
	require.True(t, errors.Is(err, ErrInvalidPolygon))

	_, err = NewPolygon3D(latLonPoints([2]float64{0, 0}), NewRadius(3000, 2), NewRadius(4000, 2))
	require.True(t, errors.Is(err, ErrInvalidPolygon))

	_, err = WrapPolygon3D(nil, NewRadius(3000, 2), NewRadius(4000, 2))
	require.True(t, errors.Is(err, ErrInvalidPolygon))

	_, err = WrapPolygon3D(NewGlobalPolygon(true), nil, NewRadius(4000, 2))
	require.True(t, errors.Is(err, ErrInvalidPolygon))

	// An unconstrained side places no ordering requirement.
	_, err = WrapPolygon3D(NewGlobalPolygon(true), NewRadius(3000, 5), NewDepth(0, Unconstrained))
	require.NoError(t, err)
}

func TestPolygon3DSharesFootprint(t *testing.T) {
	footprint := mustPolygon(t, squareCoords)
	p, err := WrapPolygon3D(footprint, NewRadius(0, Unconstrained), NewRadius(7000, Unconstrained))
	require.NoError(t, err)
	require.Same(t, footprint, p.Polygon())

	x := geometry.VectorFromLatLonDegrees(5, 5)
	footprint.Invert()
	require.False(t, p.ContainsLayer(x, 0))

	require.Equal(t, NewRadius(0, Unconstrained), p.Bottom())
	require.Equal(t, NewRadius(7000, Unconstrained), p.Top())
	require.True(t, strings.Contains(p.String(), "bottom radius 0.0000 km"), p.String())
}
