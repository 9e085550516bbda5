package model

// LatLon is a geographic position in degrees.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// RegionType identifies the shape of a region.
type RegionType string

const (
	RegionTypeCircle  RegionType = "circle"
	RegionTypePolygon RegionType = "polygon"
	RegionTypeGlobal  RegionType = "global"
)

// HorizonKind selects how a HorizonDefinition's value is interpreted.
type HorizonKind string

const (
	HorizonDepth    HorizonKind = "depth"    // km below the surface
	HorizonRadius   HorizonKind = "radius"   // km from the Earth's centre
	HorizonFraction HorizonKind = "fraction" // 0..1 through a layer
)

// HorizonDefinition describes one radial bound of a 3D region. A nil Layer
// leaves the horizon unconstrained by any model layer.
type HorizonDefinition struct {
	Kind  HorizonKind `json:"kind" yaml:"kind"`
	Value float64     `json:"value" yaml:"value"`
	Layer *int        `json:"layer,omitempty" yaml:"layer,omitempty"`
}

// ReferenceDefinition pins a polygon's reference point and whether it is
// inside. Needed for regions larger than a hemisphere.
type ReferenceDefinition struct {
	LatLon `yaml:",inline"`
	Inside bool `json:"inside" yaml:"inside"`
}

// RegionDefinition is the in-memory form of a region read from a
// definition file. Vertices are used for polygons; Center and RadiusKm for
// circles. Top and Bottom must be given together and make the region 3D.
type RegionDefinition struct {
	ID   string     `json:"id" yaml:"id"`
	Name string     `json:"name,omitempty" yaml:"name,omitempty"`
	Type RegionType `json:"type,omitempty" yaml:"type,omitempty"`

	Vertices  []LatLon             `json:"vertices,omitempty" yaml:"vertices,omitempty"`
	Reference *ReferenceDefinition `json:"reference,omitempty" yaml:"reference,omitempty"`

	Center   *LatLon `json:"center,omitempty" yaml:"center,omitempty"`
	RadiusKm float64 `json:"radius_km,omitempty" yaml:"radius_km,omitempty"`
	Edges    int     `json:"edges,omitempty" yaml:"edges,omitempty"`

	// Inside applies to global regions: true covers the whole sphere.
	Inside bool `json:"inside,omitempty" yaml:"inside,omitempty"`

	Bottom *HorizonDefinition `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Top    *HorizonDefinition `json:"top,omitempty" yaml:"top,omitempty"`
}

// Kind returns the region type, inferring polygon when none was given.
func (d RegionDefinition) Kind() RegionType {
	if d.Type != "" {
		return d.Type
	}
	if d.Center != nil {
		return RegionTypeCircle
	}
	return RegionTypePolygon
}

// Is3D reports whether the definition carries radial bounds.
func (d RegionDefinition) Is3D() bool {
	return d.Top != nil || d.Bottom != nil
}
