package core

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// radialTolerance widens the radial bounds of a Polygon3D, in km.
const radialTolerance = 1e-4

// Polygon3D is a Polygon bounded radially by a bottom and a top Horizon.
type Polygon3D struct {
	polygon *Polygon
	bottom  Horizon
	top     Horizon
}

// NewPolygon3D builds the 2D polygon from points and pairs it with the given
// horizons. The bottom horizon's layer may not lie above the top's.
func NewPolygon3D(points []r3.Vector, bottom, top Horizon) (*Polygon3D, error) {
	p, err := NewPolygon(points)
	if err != nil {
		return nil, err
	}
	return WrapPolygon3D(p, bottom, top)
}

// WrapPolygon3D adds radial bounds to an existing polygon, which is shared,
// not copied.
func WrapPolygon3D(p *Polygon, bottom, top Horizon) (*Polygon3D, error) {
	if p == nil {
		return nil, invalidPolygon("nil polygon")
	}
	if bottom == nil || top == nil {
		return nil, invalidPolygon("polygon3d needs both a bottom and a top horizon")
	}
	if bottom.Layer() >= 0 && top.Layer() >= 0 && bottom.Layer() > top.Layer() {
		return nil, invalidPolygon("bottom layer %d is above top layer %d", bottom.Layer(), top.Layer())
	}
	return &Polygon3D{polygon: p, bottom: bottom, top: top}, nil
}

// Polygon returns the 2D footprint.
func (p *Polygon3D) Polygon() *Polygon { return p.polygon }

// Bottom returns the lower radial bound.
func (p *Polygon3D) Bottom() Horizon { return p.bottom }

// Top returns the upper radial bound.
func (p *Polygon3D) Top() Horizon { return p.top }

// Contains reports whether the point at unit vector x, radius km and model
// layer lies inside: the footprint must contain x, layer must fall within the
// horizons' layers, and radius must lie between the horizons' radii at x.
func (p *Polygon3D) Contains(x r3.Vector, radius float64, layer int, layerRadii []float64) (bool, error) {
	if !p.ContainsLayer(x, layer) {
		return false, nil
	}
	bottom, err := p.bottom.RadiusAt(x, layerRadii)
	if err != nil {
		return false, fmt.Errorf("bottom horizon: %w", err)
	}
	if radius < bottom-radialTolerance {
		return false, nil
	}
	top, err := p.top.RadiusAt(x, layerRadii)
	if err != nil {
		return false, fmt.Errorf("top horizon: %w", err)
	}
	return radius <= top+radialTolerance, nil
}

// ContainsLayer reports whether the footprint contains x and layer falls
// within the horizons' layers. Radius is not considered.
func (p *Polygon3D) ContainsLayer(x r3.Vector, layer int) bool {
	if b := p.bottom.Layer(); b >= 0 && layer < b {
		return false
	}
	if t := p.top.Layer(); t >= 0 && layer > t {
		return false
	}
	return p.polygon.Contains(x)
}

func (p *Polygon3D) String() string {
	return fmt.Sprintf("%s bottom %s top %s", p.polygon, p.bottom, p.top)
}
