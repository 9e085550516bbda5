package core

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/geopoly/geometry"
	"github.com/signalsfoundry/geopoly/model"
)

// Region is a named polygon, optionally with radial bounds.
type Region struct {
	ID   string
	Name string

	Polygon *Polygon
	// Volume is nil for 2D regions.
	Volume *Polygon3D
}

// Contains reports whether the region's footprint contains x.
func (r *Region) Contains(x r3.Vector) bool {
	return r.Polygon.Contains(x)
}

// BuildRegion converts a definition into a Region, using earth to turn
// geographic coordinates into unit vectors.
func BuildRegion(def model.RegionDefinition, earth geometry.Ellipsoid) (*Region, error) {
	if def.ID == "" {
		return nil, &ParseError{Err: fmt.Errorf("region with empty id")}
	}

	var (
		poly *Polygon
		err  error
	)
	switch def.Kind() {
	case model.RegionTypeGlobal:
		poly = NewGlobalPolygon(def.Inside)
	case model.RegionTypeCircle:
		poly, err = circleRegion(def, earth)
	case model.RegionTypePolygon:
		poly, err = polygonRegion(def, earth)
	default:
		return nil, &ParseError{Source: def.ID, Err: fmt.Errorf("unknown region type %q", def.Type)}
	}
	if err != nil {
		return nil, fmt.Errorf("region %q: %w", def.ID, err)
	}

	region := &Region{ID: def.ID, Name: def.Name, Polygon: poly}
	if !def.Is3D() {
		return region, nil
	}
	if def.Top == nil || def.Bottom == nil {
		return nil, &ParseError{Source: def.ID, Err: fmt.Errorf("3D region needs both top and bottom")}
	}
	bottom, err := HorizonFromDefinition(*def.Bottom, earth)
	if err != nil {
		return nil, &ParseError{Source: def.ID, Err: fmt.Errorf("bottom: %w", err)}
	}
	top, err := HorizonFromDefinition(*def.Top, earth)
	if err != nil {
		return nil, &ParseError{Source: def.ID, Err: fmt.Errorf("top: %w", err)}
	}
	if region.Volume, err = WrapPolygon3D(poly, bottom, top); err != nil {
		return nil, fmt.Errorf("region %q: %w", def.ID, err)
	}
	return region, nil
}

func polygonRegion(def model.RegionDefinition, earth geometry.Ellipsoid) (*Polygon, error) {
	points := make([]r3.Vector, len(def.Vertices))
	for i, v := range def.Vertices {
		points[i] = earth.VectorFromLatLonDegrees(v.Lat, v.Lon)
	}
	if def.Reference == nil {
		return NewPolygon(points)
	}
	ref := earth.VectorFromLatLonDegrees(def.Reference.Lat, def.Reference.Lon)
	return NewPolygonWithReference(points, ref, def.Reference.Inside)
}

func circleRegion(def model.RegionDefinition, earth geometry.Ellipsoid) (*Polygon, error) {
	if def.Center == nil {
		return nil, invalidPolygon("circle without a center")
	}
	edges := def.Edges
	if edges == 0 {
		edges = 64
	}
	center := earth.VectorFromLatLonDegrees(def.Center.Lat, def.Center.Lon)
	return NewSmallCircle(center, def.RadiusKm/geometry.EarthRadiusKm, edges)
}

// HorizonFromDefinition builds the Horizon a definition describes.
func HorizonFromDefinition(def model.HorizonDefinition, earth geometry.Ellipsoid) (Horizon, error) {
	layer := Unconstrained
	if def.Layer != nil {
		layer = *def.Layer
	}
	switch def.Kind {
	case model.HorizonDepth:
		h := NewDepth(def.Value, layer)
		h.Earth = earth
		return h, nil
	case model.HorizonRadius:
		return NewRadius(def.Value, layer), nil
	case model.HorizonFraction:
		if layer < 0 {
			return nil, fmt.Errorf("fraction horizon needs a layer")
		}
		return NewLayerFraction(def.Value, layer), nil
	default:
		return nil, fmt.Errorf("unknown horizon kind %q", def.Kind)
	}
}
