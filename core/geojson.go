package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/geopoly/geometry"
	"github.com/signalsfoundry/geopoly/model"
)

// DecodeGeoJSON turns the Polygon and MultiPolygon features of a GeoJSON
// FeatureCollection (or a single Feature) into region definitions. Each
// polygon's outer ring becomes one region; features with holes are rejected.
//
// Recognised feature properties: id, name, reference_lat, reference_lon,
// reference_inside, and {bottom,top}_{kind,value,layer} for 3D regions.
func DecodeGeoJSON(data []byte) ([]model.RegionDefinition, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ParseError{Source: string(FormatGeoJSON), Err: err}
	}

	var features []*geojson.Feature
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, &ParseError{Source: string(FormatGeoJSON), Err: err}
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, &ParseError{Source: string(FormatGeoJSON), Err: err}
		}
		features = []*geojson.Feature{f}
	default:
		return nil, &ParseError{Source: string(FormatGeoJSON), Err: fmt.Errorf("unsupported document type %q", probe.Type)}
	}

	var defs []model.RegionDefinition
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		id := featureID(f, i)
		var polygons [][][][]float64
		switch f.Geometry.Type {
		case geojson.GeometryPolygon:
			polygons = [][][][]float64{f.Geometry.Polygon}
		case geojson.GeometryMultiPolygon:
			polygons = f.Geometry.MultiPolygon
		default:
			continue
		}

		for j, rings := range polygons {
			if len(rings) == 0 {
				continue
			}
			if len(rings) > 1 {
				return nil, &ParseError{Source: id, Err: fmt.Errorf("polygon holes are not supported")}
			}
			def, err := definitionFromRing(f, rings[0])
			if err != nil {
				return nil, &ParseError{Source: id, Err: err}
			}
			def.ID = id
			if len(polygons) > 1 {
				def.ID = fmt.Sprintf("%s#%d", id, j)
			}
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func featureID(f *geojson.Feature, index int) string {
	if id := f.PropertyMustString("id", ""); id != "" {
		return id
	}
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("feature-%d", index)
}

func definitionFromRing(f *geojson.Feature, ring [][]float64) (model.RegionDefinition, error) {
	def := model.RegionDefinition{
		Name:     f.PropertyMustString("name", ""),
		Type:     model.RegionTypePolygon,
		Vertices: make([]model.LatLon, 0, len(ring)),
	}
	for _, pos := range ring {
		if len(pos) < 2 {
			return def, fmt.Errorf("position with %d coordinates", len(pos))
		}
		// GeoJSON positions are [lon, lat].
		def.Vertices = append(def.Vertices, model.LatLon{Lat: pos[1], Lon: pos[0]})
	}

	if lat, err := f.PropertyFloat64("reference_lat"); err == nil {
		lon, err := f.PropertyFloat64("reference_lon")
		if err != nil {
			return def, fmt.Errorf("reference_lat without reference_lon")
		}
		def.Reference = &model.ReferenceDefinition{
			LatLon: model.LatLon{Lat: lat, Lon: lon},
			Inside: f.PropertyMustBool("reference_inside", true),
		}
	}

	var err error
	if def.Bottom, err = horizonProperties(f, "bottom"); err != nil {
		return def, err
	}
	if def.Top, err = horizonProperties(f, "top"); err != nil {
		return def, err
	}
	return def, nil
}

func horizonProperties(f *geojson.Feature, prefix string) (*model.HorizonDefinition, error) {
	kind := f.PropertyMustString(prefix+"_kind", "")
	if kind == "" {
		return nil, nil
	}
	value, err := f.PropertyFloat64(prefix + "_value")
	if err != nil {
		return nil, fmt.Errorf("%s_value: %w", prefix, err)
	}
	h := &model.HorizonDefinition{Kind: model.HorizonKind(kind), Value: value}
	if layer, err := f.PropertyInt(prefix + "_layer"); err == nil {
		h.Layer = &layer
	}
	return h, nil
}

// LoadGeoJSONRegions decodes a GeoJSON document and builds its regions.
func LoadGeoJSONRegions(data []byte, earth geometry.Ellipsoid) ([]*Region, error) {
	return LoadRegions(bytes.NewReader(data), FormatGeoJSON, earth)
}
