// Package mesh synthesises the deformable slab: one shared, deduplicated
// triangle geometry and one colour set per animation frame.
package mesh

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"gapview/model"
	"gapview/parallel"
	"gapview/profile"
)

var buildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "gapview_mesh_build_seconds",
	Help:    "Time spent building slab meshes for a frame set.",
	Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
})

type Options struct {
	// Y 方向跨度
	Width float64
	// Z 方向跨度
	Height float64
	// 未提供 Profile 时使用的均匀厚度
	BaseThickness float64
	// 长度必须等于 NZ
	Profile *profile.Profile

	NX, NY, NZ int

	// 每帧 NZ 行 NY 列，形状不符的帧整体使用 Fallback
	Frames []model.ColorFrame
	// 宽度面、端面以及无帧时的颜色
	Fallback model.Color

	Workers int
}

func DefaultOptions() Options {
	return Options{
		Width:         1,
		Height:        5,
		BaseThickness: 0.1,
		NX:            2,
		NY:            2,
		NZ:            2,
		Fallback:      model.MustHex(model.PrimaryHex),
	}
}

// QuadCount is the number of quads of a closed nx x ny x nz box.
func QuadCount(nx, ny, nz int) int {
	return 2*(ny-1)*(nz-1) + 2*(nx-1)*(nz-1) + 2*(nx-1)*(ny-1)
}

// ClosedBoxVertexCount is the number of distinct surface vertices of a closed nx x ny x nz box.
func ClosedBoxVertexCount(nx, ny, nz int) int {
	inner := (nx - 2) * (ny - 2) * (nz - 2)
	if nx < 2 || ny < 2 || nz < 2 {
		inner = 0
	}
	return nx*ny*nz - inner
}

// 坐标保留 5 位小数作为去重键
const keyScale = 1e5

type vertexKey [3]int64

func keyOf(p mgl64.Vec3) vertexKey {
	return vertexKey{
		int64(math.Round(p[0] * keyScale)),
		int64(math.Round(p[1] * keyScale)),
		int64(math.Round(p[2] * keyScale)),
	}
}

// Geometry is the colour independent part of a build.
type Geometry struct {
	Positions []mgl64.Vec3
	Faces     [][3]int
	// 厚度面顶点对应的帧像素 (行, 列)，其他顶点为 -1
	srcRow, srcCol []int
	rows, cols     int
}

type builder struct {
	g    *Geometry
	keys map[vertexKey]int
}

// add 先插入者决定顶点的颜色来源
func (b *builder) add(p mgl64.Vec3, row, col int) int {
	k := keyOf(p)
	if i, ok := b.keys[k]; ok {
		return i
	}
	i := len(b.g.Positions)
	b.keys[k] = i
	b.g.Positions = append(b.g.Positions, p)
	b.g.srcRow = append(b.g.srcRow, row)
	b.g.srcCol = append(b.g.srcCol, col)
	return i
}

// grid 网格 idx[a][b] 的每个单元拆成两个三角形
func (b *builder) grid(idx [][]int, flip bool) {
	for a := 0; a < len(idx)-1; a++ {
		for c := 0; c < len(idx[a])-1; c++ {
			v0, v1, v2, v3 := idx[a][c], idx[a][c+1], idx[a+1][c+1], idx[a+1][c]
			if flip {
				v1, v3 = v3, v1
			}
			b.g.Faces = append(b.g.Faces, [3]int{v0, v1, v2}, [3]int{v0, v2, v3})
		}
	}
}

func span(n int, lo, hi float64) []float64 {
	return floats.Span(make([]float64, n), lo, hi)
}

func validate(o Options) ([]float64, error) {
	if o.NX < 2 || o.NY < 2 || o.NZ < 2 {
		return nil, fmt.Errorf("%w: NX, NY and NZ must be at least 2, got %d, %d, %d", model.ErrInvalidArgument, o.NX, o.NY, o.NZ)
	}
	if !(o.Width > 0) || !(o.Height > 0) {
		return nil, fmt.Errorf("%w: width and height must be positive, got %v x %v", model.ErrInvalidArgument, o.Width, o.Height)
	}
	if o.Profile == nil {
		p, err := profile.Uniform(o.NZ, o.BaseThickness)
		if err != nil {
			return nil, err
		}
		return p.Values(), nil
	}
	if o.Profile.Len() != o.NZ {
		return nil, fmt.Errorf("%w: profile has %d layers, NZ is %d", model.ErrShapeError, o.Profile.Len(), o.NZ)
	}
	return o.Profile.Values(), nil
}

// NewGeometry synthesises the six faces of the slab.
func NewGeometry(o Options) (*Geometry, error) {
	p, err := validate(o)
	if err != nil {
		return nil, err
	}
	nx, ny, nz := o.NX, o.NY, o.NZ
	ys := span(ny, -o.Width/2, o.Width/2)
	zs := span(nz, -o.Height/2, o.Height/2)
	xs := make([][]float64, nz)
	for k := range xs {
		xs[k] = span(nx, -p[k]/2, p[k]/2)
	}

	b := &builder{
		g: &Geometry{
			Positions: make([]mgl64.Vec3, 0, ClosedBoxVertexCount(nx, ny, nz)),
			Faces:     make([][3]int, 0, 2*QuadCount(nx, ny, nz)),
			rows:      nz,
			cols:      ny,
		},
		keys: make(map[vertexKey]int, ClosedBoxVertexCount(nx, ny, nz)),
	}

	// 厚度面 X = ±p/2，先插入以使边界顶点取帧颜色
	for _, side := range []float64{-1, 1} {
		idx := make([][]int, nz)
		for k := 0; k < nz; k++ {
			idx[k] = make([]int, ny)
			for j := 0; j < ny; j++ {
				idx[k][j] = b.add(mgl64.Vec3{side * p[k] / 2, ys[j], zs[k]}, k, j)
			}
		}
		b.grid(idx, side < 0)
	}

	// 宽度面 Y = ±W/2
	for _, side := range []float64{-1, 1} {
		idx := make([][]int, nz)
		for k := 0; k < nz; k++ {
			idx[k] = make([]int, nx)
			for i := 0; i < nx; i++ {
				idx[k][i] = b.add(mgl64.Vec3{xs[k][i], side * o.Width / 2, zs[k]}, -1, -1)
			}
		}
		b.grid(idx, side > 0)
	}

	// 端面 Z = z_min / z_max
	for _, k := range []int{0, nz - 1} {
		idx := make([][]int, ny)
		for j := 0; j < ny; j++ {
			idx[j] = make([]int, nx)
			for i := 0; i < nx; i++ {
				idx[j][i] = b.add(mgl64.Vec3{xs[k][i], ys[j], zs[k]}, -1, -1)
			}
		}
		b.grid(idx, k == 0)
	}
	return b.g, nil
}

func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

func (g *Geometry) TriangleCount() int {
	return len(g.Faces)
}

// Paint colours the geometry with one frame, nil frame means fallback everywhere.
func (g *Geometry) Paint(frame model.ColorFrame, fallback model.Color) *model.MeshFrame {
	colors := make([]model.Color, len(g.Positions))
	use := frame != nil && frame.Is(g.rows, g.cols)
	for v := range colors {
		if use && g.srcRow[v] >= 0 {
			colors[v] = frame[g.srcRow[v]][g.srcCol[v]]
		} else {
			colors[v] = fallback
		}
	}
	return &model.MeshFrame{
		Positions: g.Positions,
		Colors:    colors,
		Faces:     g.Faces,
	}
}

// Build returns one mesh per frame, or a single fallback coloured mesh when no frames are given.
func Build(o Options) ([]*model.MeshFrame, error) {
	start := time.Now()
	g, err := NewGeometry(o)
	if err != nil {
		return nil, err
	}

	if len(o.Frames) == 0 {
		return []*model.MeshFrame{g.Paint(nil, o.Fallback)}, nil
	}
	out := make([]*model.MeshFrame, len(o.Frames))
	mismatched := 0
	for _, f := range o.Frames {
		if !f.Is(o.NZ, o.NY) {
			mismatched++
		}
	}
	parallel.Range(o.Workers, len(o.Frames), func(s, e int) {
		for i := s; i < e; i++ {
			out[i] = g.Paint(o.Frames[i], o.Fallback)
		}
	})

	elapsed := time.Since(start)
	buildSeconds.Observe(elapsed.Seconds())
	entry := log.WithFields(log.Fields{
		"frames":    len(out),
		"vertices":  g.VertexCount(),
		"triangles": g.TriangleCount(),
		"elapsed":   elapsed.Round(time.Microsecond),
	})
	if mismatched > 0 {
		entry.WithField("mismatched", mismatched).Warn("frames do not match the mesh grid, fallback colour used")
	} else {
		entry.Info("mesh built")
	}
	return out, nil
}
