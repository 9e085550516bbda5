package core

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/geopoly/geometry"
)

// Unconstrained is the layer index of a horizon that is not bound to any
// model layer.
const Unconstrained = -1

// Horizon is a radial surface: constant depth, constant radius, or a
// fractional position inside one model layer. The set of implementations is
// closed: Depth, Radius and LayerFraction.
//
// layerRadii lists the model's interface radii in km from the bottom of the
// model to the top, so layer i spans [layerRadii[i], layerRadii[i+1]].
type Horizon interface {
	RadiusAt(position r3.Vector, layerRadii []float64) (float64, error)
	Layer() int
	String() string

	horizon()
}

// Depth is a surface at a constant depth below the ellipsoid.
type Depth struct {
	DepthKm    float64
	LayerIndex int
	// Earth defaults to geometry.Default when zero.
	Earth geometry.Ellipsoid
}

// Radius is a surface at a constant distance from the Earth's centre.
type Radius struct {
	RadiusKm   float64
	LayerIndex int
}

// LayerFraction is a surface at a fixed fraction of one layer's thickness,
// 0 at the layer's bottom interface and 1 at its top.
type LayerFraction struct {
	Fraction   float64
	LayerIndex int
}

// NewDepth returns a Depth horizon; pass Unconstrained for layer to skip
// clamping.
func NewDepth(depthKm float64, layer int) Depth {
	return Depth{DepthKm: depthKm, LayerIndex: normalizeLayer(layer)}
}

// NewRadius returns a Radius horizon; pass Unconstrained for layer to skip
// clamping.
func NewRadius(radiusKm float64, layer int) Radius {
	return Radius{RadiusKm: radiusKm, LayerIndex: normalizeLayer(layer)}
}

// NewLayerFraction returns a LayerFraction horizon with fraction clamped to
// [0, 1].
func NewLayerFraction(fraction float64, layer int) LayerFraction {
	return LayerFraction{Fraction: math.Max(0, math.Min(1, fraction)), LayerIndex: normalizeLayer(layer)}
}

func normalizeLayer(layer int) int {
	if layer < 0 {
		return Unconstrained
	}
	return layer
}

func (Depth) horizon()         {}
func (Radius) horizon()        {}
func (LayerFraction) horizon() {}

func (h Depth) Layer() int         { return h.LayerIndex }
func (h Radius) Layer() int        { return h.LayerIndex }
func (h LayerFraction) Layer() int { return h.LayerIndex }

// RadiusAt returns the ellipsoid radius beneath position minus the depth,
// clamped into the horizon's layer when it has one.
func (h Depth) RadiusAt(position r3.Vector, layerRadii []float64) (float64, error) {
	earth := h.Earth
	if earth.EquatorialRadiusKm == 0 {
		earth = geometry.Default
	}
	return clampToLayer(earth.RadiusAt(position)-h.DepthKm, h.LayerIndex, layerRadii)
}

// RadiusAt returns the constant radius, clamped into the horizon's layer
// when it has one.
func (h Radius) RadiusAt(_ r3.Vector, layerRadii []float64) (float64, error) {
	return clampToLayer(h.RadiusKm, h.LayerIndex, layerRadii)
}

// RadiusAt interpolates between the layer's bottom and top interfaces.
func (h LayerFraction) RadiusAt(_ r3.Vector, layerRadii []float64) (float64, error) {
	bottom, top, err := layerBounds(h.LayerIndex, layerRadii)
	if err != nil {
		return 0, err
	}
	return bottom + h.Fraction*(top-bottom), nil
}

func clampToLayer(r float64, layer int, layerRadii []float64) (float64, error) {
	if layer < 0 {
		return r, nil
	}
	bottom, top, err := layerBounds(layer, layerRadii)
	if err != nil {
		return 0, err
	}
	return math.Max(bottom, math.Min(top, r)), nil
}

func layerBounds(layer int, layerRadii []float64) (float64, float64, error) {
	if layer < 0 || layer+1 >= len(layerRadii) {
		return 0, 0, fmt.Errorf("%w: layer %d with %d interface radii", ErrLayerOutOfRange, layer, len(layerRadii))
	}
	return layerRadii[layer], layerRadii[layer+1], nil
}

func (h Depth) String() string {
	return fmt.Sprintf("depth %.4f km layer %d", h.DepthKm, h.LayerIndex)
}

func (h Radius) String() string {
	return fmt.Sprintf("radius %.4f km layer %d", h.RadiusKm, h.LayerIndex)
}

func (h LayerFraction) String() string {
	return fmt.Sprintf("fraction %.4f layer %d", h.Fraction, h.LayerIndex)
}
