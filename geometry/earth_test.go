package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatLonRoundTrip(t *testing.T) {
	for _, e := range []Ellipsoid{WGS84, GRS80, Sphere} {
		for _, ll := range [][2]float64{{0, 0}, {45, 45}, {-33.5, 151.2}, {89, -179}, {-60, 10}} {
			v := e.VectorFromLatLonDegrees(ll[0], ll[1])
			require.InDelta(t, 1, v.Norm(), 1e-15)
			lat, lon := e.LatLonDegrees(v)
			require.InDelta(t, ll[0], lat, 1e-9, "%s lat", e.Name)
			require.InDelta(t, ll[1], lon, 1e-9, "%s lon", e.Name)
		}
	}
}

func TestGeocentricLatitudeSmallerThanGeographic(t *testing.T) {
	gc := WGS84.GeocentricLatitude(45 * math.Pi / 180)
	require.Less(t, gc, 45*math.Pi/180)
	require.InDelta(t, 45*math.Pi/180, gc, 0.004)
	require.Equal(t, 0.3, Sphere.GeocentricLatitude(0.3))
}

func TestRadiusAt(t *testing.T) {
	require.InDelta(t, 6378.137, WGS84.RadiusAt(VectorFromLatLonDegrees(0, 30)), 1e-9)
	require.InDelta(t, WGS84.PolarRadiusKm(), WGS84.RadiusAt(NorthPole), 1e-9)
	require.Equal(t, EarthRadiusKm, Sphere.RadiusAt(NorthPole))
	require.InDelta(t, EarthRadiusAt(Lon0), 6378.137, 1e-9)
}

func TestEllipsoidByName(t *testing.T) {
	e, err := EllipsoidByName("Sphere")
	require.NoError(t, err)
	require.Equal(t, Sphere, e)

	e, err = EllipsoidByName("")
	require.NoError(t, err)
	require.Equal(t, WGS84, e)

	_, err = EllipsoidByName("mars")
	require.Error(t, err)
}
