package core

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/geopoly/geometry"
	"github.com/signalsfoundry/geopoly/model"
)

// Format names a region definition encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatGeoJSON Format = "geojson"
)

// FormatFromPath guesses the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".geojson":
		return FormatGeoJSON
	default:
		return FormatJSON
	}
}

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatYAML, FormatGeoJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown region format %q", name)
	}
}

// regionsDocument is the top-level shape of JSON and YAML definition files.
type regionsDocument struct {
	Regions []model.RegionDefinition `json:"regions" yaml:"regions"`
}

// DecodeDefinitions reads region definitions without building geometry.
func DecodeDefinitions(r io.Reader, format Format) ([]model.RegionDefinition, error) {
	var doc regionsDocument
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, &ParseError{Source: string(format), Err: err}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, &ParseError{Source: string(format), Err: err}
		}
	case FormatGeoJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, &ParseError{Source: string(format), Err: err}
		}
		return DecodeGeoJSON(data)
	default:
		return nil, &ParseError{Source: string(format), Err: fmt.Errorf("unsupported format")}
	}
	return doc.Regions, nil
}

// LoadRegions decodes definitions from r and builds every region. Duplicate
// IDs are rejected.
func LoadRegions(r io.Reader, format Format, earth geometry.Ellipsoid) ([]*Region, error) {
	defs, err := DecodeDefinitions(r, format)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(defs))
	regions := make([]*Region, 0, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.ID]; dup {
			return nil, &ParseError{Source: string(format), Err: fmt.Errorf("duplicate region id %q", def.ID)}
		}
		seen[def.ID] = struct{}{}

		region, err := BuildRegion(def, earth)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, nil
}
