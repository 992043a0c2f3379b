// Package compositor turns volume fractions into per-cell colour frames.
package compositor

import (
	"fmt"
	"time"

	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/model"
	"gapview/parallel"
	"gapview/source"
)

type Options struct {
	// 环空所在截面
	Section int
	// true 时逆时针旋转 90°，否则沿 zeta 翻转
	Rotate bool
	// false 时在环空帧之前输出其他截面（管内）的帧
	AnnulusOnly bool

	TopDepth    float64
	BottomDepth float64
	Unit        string

	Workers int
}

func DefaultOptions() Options {
	return Options{
		Section:     1,
		AnnulusOnly: true,
		TopDepth:    0,
		BottomDepth: 800,
		Unit:        "m",
	}
}

// Frames is the composed animation.
// NXi and NZeta are the frame rows and columns, swapped relative to the source when rotated.
type Frames struct {
	Images      []model.ColorFrame
	NXi         int
	NZeta       int
	TimeSteps   int
	TopDepth    float64
	BottomDepth float64
	Unit        string
}

func (f *Frames) Len() int {
	return len(f.Images)
}

type Compositor struct {
	palette Palette
	pub     bus.Publisher
}

func New(p Palette, pub bus.Publisher) *Compositor {
	if pub == nil {
		pub = bus.Discard
	}
	return &Compositor{palette: p, pub: pub}
}

func (c *Compositor) Palette() Palette {
	return c.palette
}

// 数组下标换算
type layout struct {
	fluids, sections, nxi, nzeta int
}

func (l layout) index(t, f, s, x, z int) int {
	return (((t*l.fluids+f)*l.sections+s)*l.nxi+x)*l.nzeta + z
}

// Compose builds one frame per time step except the last, for the annulus section
// and, outside annulus only mode, for every other section first.
func (c *Compositor) Compose(arr *sparse.DenseArray, o Options) (*Frames, error) {
	if err := source.Check(arr); err != nil {
		return nil, err
	}
	timeStep, nFluids, nSections, nXi, nZeta := arr.Shape[0], arr.Shape[1], arr.Shape[2], arr.Shape[3], arr.Shape[4]
	if timeStep < 2 {
		return nil, fmt.Errorf("%w: need at least 2 time steps, got %d", model.ErrShapeError, timeStep)
	}
	if o.Section < 0 || o.Section >= nSections {
		return nil, fmt.Errorf("%w: section %d outside [0, %d)", model.ErrShapeError, o.Section, nSections)
	}
	if nFluids > len(c.palette) {
		return nil, fmt.Errorf("%w: %d fluids but palette has %d colours", model.ErrShapeError, nFluids, len(c.palette))
	}
	if nXi < 1 || nZeta < 1 {
		return nil, fmt.Errorf("%w: empty section grid %dx%d", model.ErrShapeError, nXi, nZeta)
	}

	l := layout{fluids: nFluids, sections: nSections, nxi: nXi, nzeta: nZeta}
	colors := c.palette.Colors()[:nFluids]
	retained := timeStep - 1

	var others []int
	if !o.AnnulusOnly {
		for s := 0; s < nSections; s++ {
			if s != o.Section {
				others = append(others, s)
			}
		}
	}
	pipeCount := retained * len(others)
	images := make([]model.ColorFrame, pipeCount+retained)

	elapsed := parallel.Range(o.Workers, retained, func(start, end int) {
		for t := start; t < end; t++ {
			// 时间优先，与截面循环顺序一致
			for k, s := range others {
				images[t*len(others)+k] = pipeFrame(arr.Elements, l, colors, t, s, o.Rotate)
			}
			images[pipeCount+t] = annulusFrame(arr.Elements, l, colors, t, o.Section, o.Rotate)
		}
	})

	out := &Frames{
		Images:      images,
		NXi:         nXi,
		NZeta:       nZeta,
		TimeSteps:   timeStep,
		TopDepth:    o.TopDepth,
		BottomDepth: o.BottomDepth,
		Unit:        o.Unit,
	}
	if o.Rotate {
		out.NXi, out.NZeta = nZeta, nXi
	}

	log.WithFields(log.Fields{
		"frames":  len(images),
		"pipe":    pipeCount,
		"rows":    out.NXi,
		"cols":    out.NZeta,
		"elapsed": elapsed.Round(time.Microsecond),
	}).Info("frames composed")
	if pipeCount > 0 {
		bus.Publishf(c.pub, bus.Info, "pipe frames %d x %d x %d, annulus frames %d x %d x %d",
			pipeCount, out.NXi, out.NZeta, retained, out.NXi, out.NZeta)
	} else {
		bus.Publishf(c.pub, bus.Info, "annulus frames %d x %d x %d", retained, out.NXi, out.NZeta)
	}
	return out, nil
}

// weighted 按体积分数加权混合颜色，分数和为 0 时按 1 处理
func weighted(data []float64, l layout, colors []model.Color, t, s, x, z int) model.Color {
	var sum float64
	var c model.Color
	for f := range colors {
		a := data[l.index(t, f, s, x, z)]
		sum += a
		for ch := 0; ch < 3; ch++ {
			c[ch] += colors[f][ch] * a
		}
	}
	if sum == 0 {
		sum = 1
	}
	for ch := 0; ch < 3; ch++ {
		c[ch] /= sum
	}
	return c.Clamp()
}

func annulusFrame(data []float64, l layout, colors []model.Color, t, s int, rotate bool) model.ColorFrame {
	if rotate {
		// 逆时针旋转 90°: out[i][j] = in[j][nzeta-1-i]
		out := model.NewColorFrame(l.nzeta, l.nxi)
		for i := 0; i < l.nzeta; i++ {
			for j := 0; j < l.nxi; j++ {
				out[i][j] = weighted(data, l, colors, t, s, j, l.nzeta-1-i)
			}
		}
		return out
	}
	// 反向流动，沿 zeta 翻转
	out := model.NewColorFrame(l.nxi, l.nzeta)
	for i := 0; i < l.nxi; i++ {
		for j := 0; j < l.nzeta; j++ {
			out[i][j] = weighted(data, l, colors, t, s, i, l.nzeta-1-j)
		}
	}
	return out
}

// pipeFrame 取 xi=0 的一条线并扩展到所有 xi 行
func pipeFrame(data []float64, l layout, colors []model.Color, t, s int, rotate bool) model.ColorFrame {
	line := make([]model.Color, l.nzeta)
	for z := range line {
		line[z] = weighted(data, l, colors, t, s, 0, z)
	}
	if rotate {
		// 顺时针旋转 90°: out[i][j] = in[nxi-1-j][i] = line[i]
		out := model.NewColorFrame(l.nzeta, l.nxi)
		for i := range out {
			for j := range out[i] {
				out[i][j] = line[i]
			}
		}
		return out
	}
	out := model.NewColorFrame(l.nxi, l.nzeta)
	for i := range out {
		copy(out[i], line)
	}
	return out
}
