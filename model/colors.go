package model

import (
	"fmt"
	"strconv"
	"strings"
)

// 应用配色
const (
	PrimaryHex     = "#07293E"
	TertiaryHex    = "#0D7AA9"
	SuccessHex     = "#1D971B"
	WarningHex     = "#EA9E0B"
	DangerShadeHex = "#cf3c4f"
	MediumShadeHex = "#808289"
	DarkHex        = "#222428"
)

// ParseHex parses "#rrggbb" (or "rrggbb") into a Color.
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("%w: colour %q is not #rrggbb", ErrInvalidArgument, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: colour %q: %v", ErrInvalidArgument, s, err)
	}
	r, g, b := (v>>16)&0xff, (v>>8)&0xff, v&0xff
	return Color{float64(r) / 255, float64(g) / 255, float64(b) / 255}, nil
}

// MustHex is ParseHex for package level constants.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string {
	c = c.Clamp()
	return fmt.Sprintf("#%02x%02x%02x", uint8(c[0]*255+0.5), uint8(c[1]*255+0.5), uint8(c[2]*255+0.5))
}
