// Package source reads fraction arrays shaped
// [time_step, n_fluids, n_sections, n_xi, n_zeta].
package source

import (
	"fmt"
	"strings"

	"github.com/ctessum/sparse"

	"gapview/model"
)

// 数组各维度下标
const (
	AxisTime = iota
	AxisFluid
	AxisSection
	AxisXi
	AxisZeta
)

// DimNames names the five axes in file order.
var DimNames = []string{"time", "fluid", "section", "xi", "zeta"}

// Reader loads a fraction array.
type Reader interface {
	Read(path string) (*sparse.DenseArray, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(path string) (*sparse.DenseArray, error)

func (f ReaderFunc) Read(path string) (*sparse.DenseArray, error) {
	return f(path)
}

// Check verifies arr is five dimensional and its element count matches its shape.
func Check(arr *sparse.DenseArray) error {
	if arr == nil {
		return fmt.Errorf("%w: nil array", model.ErrShapeError)
	}
	if len(arr.Shape) != 5 {
		return fmt.Errorf("%w: want 5 dimensions %v, got shape %v", model.ErrShapeError, DimNames, arr.Shape)
	}
	n := 1
	for _, d := range arr.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in %v", model.ErrShapeError, arr.Shape)
		}
		n *= d
	}
	if len(arr.Elements) != n {
		return fmt.Errorf("%w: shape %v needs %d elements, got %d", model.ErrShapeError, arr.Shape, n, len(arr.Elements))
	}
	return nil
}

// Router picks a reader by "scheme:" prefix and falls back to Default.
type Router struct {
	Default Reader
	Schemes map[string]Reader
}

func (r *Router) Read(path string) (*sparse.DenseArray, error) {
	if i := strings.Index(path, ":"); i > 1 {
		if rd, ok := r.Schemes[path[:i]]; ok {
			return rd.Read(path[i+1:])
		}
	}
	if r.Default == nil {
		return nil, fmt.Errorf("%w: no reader for %q", model.ErrNotFound, path)
	}
	return r.Default.Read(path)
}
