// Package label places depth annotations next to the slab.
package label

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"gapview/model"
)

type Plane string

const (
	YZ Plane = "yz"
	ZY Plane = "zy"
	XY Plane = "xy"
	YX Plane = "yx"
)

type Anchor string

const Center Anchor = "center"

// Place spreads len(values) anchors over size along the second axis of the plane.
// Each anchor sits in a plane parallel to the named one, offset along its normal
// by padding plus its value, so yz labels stand off the thickness faces (X).
func Place(values []float64, plane Plane, size float64, anchor Anchor, padding float64) ([]mgl64.Vec3, error) {
	if anchor != Center {
		return nil, fmt.Errorf("%w: anchor %q", model.ErrNotImplemented, anchor)
	}
	switch plane {
	case YZ, ZY, XY, YX:
	default:
		return nil, fmt.Errorf("%w: plane %q", model.ErrNotImplemented, plane)
	}

	n := len(values)
	out := make([]mgl64.Vec3, n)
	if n == 0 {
		return out, nil
	}
	s := make([]float64, n)
	if n == 1 {
		s[0] = -size / 2
	} else {
		floats.Span(s, -size/2, size/2)
	}
	for i, v := range values {
		d := padding + v
		switch plane {
		case YZ:
			out[i] = mgl64.Vec3{d, 0, s[i]}
		case ZY:
			out[i] = mgl64.Vec3{d, s[i], 0}
		case XY:
			out[i] = mgl64.Vec3{0, s[i], d}
		case YX:
			out[i] = mgl64.Vec3{s[i], 0, d}
		}
	}
	return out, nil
}

// Labels turns anchors into depth labels, depth running from bottom at the
// first anchor to top at the last, keeping about detail*n of them evenly spaced.
func Labels(anchors []mgl64.Vec3, top, bottom float64, unit string, detail float64, color model.Color) ([]model.DepthLabel, error) {
	if detail < 0 || detail > 1 || math.IsNaN(detail) {
		return nil, fmt.Errorf("%w: detail %v outside [0, 1]", model.ErrInvalidArgument, detail)
	}
	n := len(anchors)
	keep := int(math.RoundToEven(float64(n) * detail))
	if n == 0 || keep == 0 {
		return []model.DepthLabel{}, nil
	}

	out := make([]model.DepthLabel, 0, keep)
	last := -1
	for _, i := range pick(n, keep) {
		if i == last {
			continue
		}
		last = i
		depth := bottom
		if n > 1 {
			depth = bottom + (top-bottom)*float64(i)/float64(n-1)
		}
		out = append(out, model.DepthLabel{
			Pos:   anchors[i],
			Depth: depth,
			Text:  Format(depth, unit),
			Color: color,
		})
	}
	return out, nil
}

// pick 返回 round(linspace(0, n-1, keep))，已排序
func pick(n, keep int) []int {
	if keep == 1 {
		return []int{0}
	}
	pos := floats.Span(make([]float64, keep), 0, float64(n-1))
	idx := make([]int, keep)
	for i, p := range pos {
		idx[i] = int(math.RoundToEven(p))
	}
	return idx
}

func Format(depth float64, unit string) string {
	if unit == "" {
		return strconv.FormatFloat(depth, 'f', 1, 64)
	}
	return fmt.Sprintf("%.1f %s", depth, unit)
}

type Level struct {
	Name   string
	Detail float64
}

// Levels are the named label densities offered to users.
var Levels = []Level{
	{Name: "None", Detail: 0},
	{Name: "Low", Detail: 0.25},
	{Name: "Medium", Detail: 0.5},
	{Name: "High", Detail: 0.75},
	{Name: "Ultra", Detail: 1},
}

// ParseDetail accepts a level name, a fraction in [0, 1] or a percentage such as "50%".
func ParseDetail(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, l := range Levels {
		if strings.EqualFold(s, l.Name) {
			return l.Detail, nil
		}
	}
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s, scale = strings.TrimSuffix(s, "%"), 100
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: detail %q", model.ErrInvalidArgument, s)
	}
	v /= scale
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: detail %v outside [0, 1]", model.ErrInvalidArgument, v)
	}
	return v, nil
}
