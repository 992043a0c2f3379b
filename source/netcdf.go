package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"

	"gapview/model"
)

// DefaultVariable is the dataset name used by the flow simulator.
const DefaultVariable = "csave"

// NetCDF reads one float32 variable from a netCDF file.
type NetCDF struct {
	Variable string
}

func (n NetCDF) variable() string {
	if n.Variable == "" {
		return DefaultVariable
	}
	return n.Variable
}

func (n NetCDF) Read(path string) (*sparse.DenseArray, error) {
	ff, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", model.ErrNotFound, err)
		}
		return nil, err
	}
	defer ff.Close()

	arr, err := n.decode(ff)
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"path":     path,
		"variable": n.variable(),
		"shape":    arr.Shape,
	}).Info("fraction array loaded")
	return arr, nil
}

func (n NetCDF) decode(rw cdf.ReaderWriterAt) (*sparse.DenseArray, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, err
	}
	v := n.variable()
	found := false
	for _, name := range f.Header.Variables() {
		if name == v {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: variable %q", model.ErrNotFound, v)
	}

	dims := f.Header.Lengths(v)
	if len(dims) != 5 {
		return nil, fmt.Errorf("%w: variable %q has shape %v", model.ErrShapeError, v, dims)
	}
	arr := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(arr.Elements))
	if _, err = f.Reader(v, nil, nil).Read(tmp); err != nil {
		return nil, err
	}
	for i, e := range tmp {
		arr.Elements[i] = float64(e)
	}
	return arr, Check(arr)
}

// WriteNetCDF stores arr as variable in the file at path.
func WriteNetCDF(path, variable string, arr *sparse.DenseArray) error {
	if err := Check(arr); err != nil {
		return err
	}
	if variable == "" {
		variable = DefaultVariable
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()

	h := cdf.NewHeader(DimNames, arr.Shape)
	h.AddAttribute("", "comment", "annular flow volume fractions")
	h.AddVariable(variable, DimNames, []float32{0})
	h.AddAttribute(variable, "description", "volume fraction per fluid")
	h.AddAttribute(variable, "units", "1")
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	data32 := make([]float32, len(arr.Elements))
	for i, e := range arr.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(variable)
	start := make([]int, len(end))
	if _, err = f.Writer(variable, start, end).Write(data32); err != nil {
		return fmt.Errorf("source: writing variable %s: %v", variable, err)
	}
	return cdf.UpdateNumRecs(w)
}
