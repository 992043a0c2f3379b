package model

import (
	"github.com/go-gl/mathgl/mgl64"
)

// 前后端通信消息结构
type Msg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Color is an RGB triple, each channel in [0, 1].
type Color [3]float64

// Clamp returns c with every channel limited to [0, 1].
func (c Color) Clamp() Color {
	for i := range c {
		if c[i] > 1 {
			c[i] = 1
		} else if c[i] < 0 {
			c[i] = 0
		}
	}
	return c
}

// ColorFrame is one time step of composited colour data, indexed [row][col].
type ColorFrame [][]Color

// NewColorFrame allocates a rows x cols frame filled with black.
func NewColorFrame(rows, cols int) ColorFrame {
	f := make(ColorFrame, rows)
	cells := make([]Color, rows*cols)
	for i := range f {
		f[i] = cells[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return f
}

// Shape returns the number of rows and the number of columns of the first row.
func (f ColorFrame) Shape() (rows, cols int) {
	if len(f) == 0 {
		return 0, 0
	}
	return len(f), len(f[0])
}

// Is reports whether every row of f has exactly cols entries and there are rows rows.
func (f ColorFrame) Is(rows, cols int) bool {
	if len(f) != rows {
		return false
	}
	for _, row := range f {
		if len(row) != cols {
			return false
		}
	}
	return true
}

// MeshFrame is one triangulated slab for one animation frame.
// Positions and Faces can be shared between frames of one build and must be treated as read-only.
type MeshFrame struct {
	Positions []mgl64.Vec3 `json:"positions"`
	Colors    []Color      `json:"colors"`
	Faces     [][3]int     `json:"faces"`
}

func (m *MeshFrame) VertexCount() int {
	return len(m.Positions)
}

func (m *MeshFrame) TriangleCount() int {
	return len(m.Faces)
}

// Bounds returns the axis aligned bounding box of the frame.
func (m *MeshFrame) Bounds() (min, max mgl64.Vec3) {
	if len(m.Positions) == 0 {
		return
	}
	min, max = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max
}

// DepthLabel is a text label anchored next to the slab.
type DepthLabel struct {
	Pos   mgl64.Vec3 `json:"pos"`
	Depth float64    `json:"depth"`
	Text  string     `json:"text"`
	Color Color      `json:"color"`
}
