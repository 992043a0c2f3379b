// Package profile builds the per-layer thickness of the slab.
package profile

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"gapview/model"
)

// Policy selects the thickness formula.
type Policy int

const (
	Constant Policy = iota
	LinearTaper
	Parabolic
	CustomWavy
)

var policyNames = [...]string{
	Constant:    "Constant",
	LinearTaper: "Linear Taper",
	Parabolic:   "Parabolic",
	CustomWavy:  "Custom Wavy",
}

var policyCodes = [...]string{
	Constant:    "C",
	LinearTaper: "LT",
	Parabolic:   "P",
	CustomWavy:  "CW",
}

// Policies lists every policy in display order.
func Policies() []Policy {
	return []Policy{Constant, LinearTaper, Parabolic, CustomWavy}
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// Code returns the short code used in configuration files.
func (p Policy) Code() string {
	if p < 0 || int(p) >= len(policyCodes) {
		return ""
	}
	return policyCodes[p]
}

// ParsePolicy accepts a short code or a display name, ignoring case and spaces.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, p := range Policies() {
		if norm == strings.ToLower(p.Code()) || norm == strings.ToLower(strings.ReplaceAll(p.String(), " ", "")) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown thickness policy %q", model.ErrInvalidArgument, s)
}

// Profile is an immutable list of non-negative layer thicknesses, bottom layer first.
type Profile struct {
	policy Policy
	values []float64
}

func (p Profile) Len() int {
	return len(p.values)
}

func (p Profile) At(i int) float64 {
	return p.values[i]
}

// Values returns a copy of the thicknesses.
func (p Profile) Values() []float64 {
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

func (p Profile) Policy() Policy {
	return p.policy
}

// Max returns the largest thickness, 0 for an empty profile.
func (p Profile) Max() float64 {
	if len(p.values) == 0 {
		return 0
	}
	return floats.Max(p.values)
}

// Build computes nz thicknesses for the policy around base.
func Build(p Policy, nz int, base float64) (Profile, error) {
	if nz < 2 {
		return Profile{}, fmt.Errorf("%w: nz must be at least 2, got %d", model.ErrInvalidArgument, nz)
	}
	if base < 0 || math.IsNaN(base) || math.IsInf(base, 0) {
		return Profile{}, fmt.Errorf("%w: base thickness must be finite and non-negative, got %v", model.ErrInvalidArgument, base)
	}

	v := make([]float64, nz)
	switch p {
	case Constant:
		for i := range v {
			v[i] = base
		}
	case LinearTaper:
		floats.Span(v, 0.5*base, 1.5*base)
	case Parabolic:
		floats.Span(v, -1, 1)
		for i, u := range v {
			v[i] = base * (1 + 0.5*(1-u*u))
		}
	case CustomWavy:
		floats.Span(v, 0, math.Pi/2)
		for i, x := range v {
			s := math.Sin(x)
			v[i] = base * s * s
		}
		floats.Reverse(v)
	default:
		return Profile{}, fmt.Errorf("%w: unknown thickness policy %d", model.ErrInvalidArgument, int(p))
	}

	// 浮点误差可能产生极小的负数
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
	}
	return Profile{policy: p, values: v}, nil
}

// Uniform is a Constant profile of thickness t.
func Uniform(nz int, t float64) (Profile, error) {
	return Build(Constant, nz, t)
}

// FromValues wraps caller supplied thicknesses.
func FromValues(values []float64) (Profile, error) {
	for i, v := range values {
		if v < 0 || math.IsNaN(v) {
			return Profile{}, fmt.Errorf("%w: thickness %d is %v", model.ErrInvalidArgument, i, v)
		}
	}
	out := make([]float64, len(values))
	copy(out, values)
	return Profile{policy: Constant, values: out}, nil
}
