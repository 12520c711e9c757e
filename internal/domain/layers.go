package domain

import "fmt"

// Layer names a toggleable map layer.
type Layer string

const (
	LayerZones          Layer = "zones"
	LayerFloods         Layer = "floods"
	LayerInfrastructure Layer = "infrastructure"
	LayerDisplacement   Layer = "displacement"
)

// AllLayers lists the map layers in render order.
var AllLayers = []Layer{LayerZones, LayerFloods, LayerInfrastructure, LayerDisplacement}

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	for _, l := range AllLayers {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown layer %q", s)
}

// Layers records which map layers are visible.
type Layers map[Layer]bool

// DefaultLayers returns every layer visible.
func DefaultLayers() Layers {
	l := make(Layers, len(AllLayers))
	for _, name := range AllLayers {
		l[name] = true
	}
	return l
}

// Clone returns a copy of l.
func (l Layers) Clone() Layers {
	out := make(Layers, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Toggle returns a copy of l with layer flipped.
func (l Layers) Toggle(layer Layer) Layers {
	out := l.Clone()
	out[layer] = !l[layer]
	return out
}

// Theme is the console colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}
