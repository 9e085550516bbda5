package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius in kilometres.
const EarthRadiusKm = 6371.0

// Ellipsoid describes an Earth shape used to convert geographic latitudes
// to geocentric unit vectors and to look up the surface radius.
type Ellipsoid struct {
	Name               string
	EquatorialRadiusKm float64
	Flattening         float64
}

var (
	WGS84  = Ellipsoid{Name: "wgs84", EquatorialRadiusKm: 6378.137, Flattening: 1 / 298.257223563}
	GRS80  = Ellipsoid{Name: "grs80", EquatorialRadiusKm: 6378.137, Flattening: 1 / 298.257222101}
	Sphere = Ellipsoid{Name: "sphere", EquatorialRadiusKm: EarthRadiusKm}

	// Default is used by the package-level helpers.
	Default = WGS84
)

// EllipsoidByName resolves a case-insensitive ellipsoid name.
func EllipsoidByName(name string) (Ellipsoid, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "wgs84":
		return WGS84, nil
	case "grs80":
		return GRS80, nil
	case "sphere", "spherical":
		return Sphere, nil
	default:
		return Ellipsoid{}, fmt.Errorf("unknown earth model %q", name)
	}
}

// e2 is the squared first eccentricity.
func (e Ellipsoid) e2() float64 {
	return e.Flattening * (2 - e.Flattening)
}

// PolarRadiusKm returns the semi-minor axis.
func (e Ellipsoid) PolarRadiusKm() float64 {
	return e.EquatorialRadiusKm * (1 - e.Flattening)
}

// GeocentricLatitude converts a geographic latitude (radians) to geocentric.
func (e Ellipsoid) GeocentricLatitude(lat float64) float64 {
	if e.Flattening == 0 {
		return lat
	}
	return math.Atan((1 - e.e2()) * math.Tan(lat))
}

// GeographicLatitude converts a geocentric latitude (radians) to geographic.
func (e Ellipsoid) GeographicLatitude(lat float64) float64 {
	if e.Flattening == 0 {
		return lat
	}
	return math.Atan(math.Tan(lat) / (1 - e.e2()))
}

// VectorFromLatLonDegrees returns the unit vector for a geographic latitude
// and longitude in degrees.
func (e Ellipsoid) VectorFromLatLonDegrees(lat, lon float64) r3.Vector {
	gc := e.GeocentricLatitude(lat*math.Pi/180) * 180 / math.Pi
	return s2.PointFromLatLng(s2.LatLngFromDegrees(gc, lon)).Vector
}

// LatLonDegrees returns the geographic latitude and longitude of v in
// degrees.
func (e Ellipsoid) LatLonDegrees(v r3.Vector) (lat, lon float64) {
	ll := s2.LatLngFromPoint(s2.Point{Vector: v})
	lat = e.GeographicLatitude(ll.Lat.Radians()) * 180 / math.Pi
	return lat, ll.Lng.Degrees()
}

// RadiusAt returns the ellipsoid surface radius in km beneath the unit
// vector v.
func (e Ellipsoid) RadiusAt(v r3.Vector) float64 {
	if e.Flattening == 0 {
		return e.EquatorialRadiusKm
	}
	a := e.EquatorialRadiusKm
	b := e.PolarRadiusKm()
	// v.Z is the sine of the geocentric latitude.
	sin2 := v.Z * v.Z
	cos2 := 1 - sin2
	return a * b / math.Sqrt(b*b*cos2+a*a*sin2)
}

// VectorFromLatLonDegrees converts using the Default ellipsoid.
func VectorFromLatLonDegrees(lat, lon float64) r3.Vector {
	return Default.VectorFromLatLonDegrees(lat, lon)
}

// LatLonDegrees converts using the Default ellipsoid.
func LatLonDegrees(v r3.Vector) (lat, lon float64) {
	return Default.LatLonDegrees(v)
}

// EarthRadiusAt returns the Default ellipsoid radius beneath v in km.
func EarthRadiusAt(v r3.Vector) float64 {
	return Default.RadiusAt(v)
}
