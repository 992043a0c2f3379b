package compositor

import (
	"fmt"
	"strings"

	"gapview/config"
	"gapview/model"
)

type Fluid struct {
	Key   string      `json:"key"`
	Name  string      `json:"name"`
	Color model.Color `json:"color"`
}

// Palette lists fluid colours in the order fluids appear in the fraction array.
type Palette []Fluid

// DefaultPalette is mud, spacer, slurry.
func DefaultPalette() Palette {
	return Palette{
		{Key: "mud", Name: "Mud", Color: model.MustHex(model.DangerShadeHex)},
		{Key: "spacer", Name: "Water", Color: model.MustHex(model.TertiaryHex)},
		{Key: "slurry", Name: "Slurry", Color: model.MustHex(model.MediumShadeHex)},
	}
}

// PaletteFromConfig overrides default entries by key and appends unknown keys in file order.
func PaletteFromConfig(entries []config.Fluid) (Palette, error) {
	p := DefaultPalette()
	for _, e := range entries {
		name, hex := e.Key, e.Value
		if i := strings.LastIndex(e.Value, ","); i >= 0 {
			name, hex = strings.TrimSpace(e.Value[:i]), e.Value[i+1:]
		}
		c, err := model.ParseHex(hex)
		if err != nil {
			return nil, fmt.Errorf("fluid %s: %w", e.Key, err)
		}
		f := Fluid{Key: e.Key, Name: name, Color: c}
		if i := p.index(e.Key); i >= 0 {
			p[i] = f
		} else {
			p = append(p, f)
		}
	}
	return p, nil
}

func (p Palette) index(key string) int {
	for i, f := range p {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func (p Palette) Colors() []model.Color {
	out := make([]model.Color, len(p))
	for i, f := range p {
		out[i] = f.Color
	}
	return out
}
