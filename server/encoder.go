package server

import (
	"github.com/vmihailenco/msgpack/v5"

	"gapview/model"
)

// FramePacket is the binary frame pushed to renderers: flat xyz positions,
// flat rgb colours and triangle indices.
type FramePacket struct {
	Index     int           `msgpack:"index"`
	Total     int           `msgpack:"total"`
	Positions []float32     `msgpack:"positions"`
	Colors    []float32     `msgpack:"colors"`
	Indices   []uint32      `msgpack:"indices"`
	Labels    []LabelPacket `msgpack:"labels"`
}

type LabelPacket struct {
	Pos   [3]float32 `msgpack:"pos"`
	Depth float32    `msgpack:"depth"`
	Text  string     `msgpack:"text"`
	Color [3]float32 `msgpack:"color"`
}

func EncodeFrame(index, total int, m *model.MeshFrame, labels []model.DepthLabel) ([]byte, error) {
	p := FramePacket{
		Index:     index,
		Total:     total,
		Positions: make([]float32, 0, 3*len(m.Positions)),
		Colors:    make([]float32, 0, 3*len(m.Colors)),
		Indices:   make([]uint32, 0, 3*len(m.Faces)),
		Labels:    make([]LabelPacket, 0, len(labels)),
	}
	for _, v := range m.Positions {
		p.Positions = append(p.Positions, float32(v[0]), float32(v[1]), float32(v[2]))
	}
	for _, c := range m.Colors {
		p.Colors = append(p.Colors, float32(c[0]), float32(c[1]), float32(c[2]))
	}
	for _, f := range m.Faces {
		p.Indices = append(p.Indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	for _, l := range labels {
		p.Labels = append(p.Labels, LabelPacket{
			Pos:   [3]float32{float32(l.Pos[0]), float32(l.Pos[1]), float32(l.Pos[2])},
			Depth: float32(l.Depth),
			Text:  l.Text,
			Color: [3]float32{float32(l.Color[0]), float32(l.Color[1]), float32(l.Color[2])},
		})
	}
	return msgpack.Marshal(&p)
}

func DecodeFrame(data []byte) (*FramePacket, error) {
	p := &FramePacket{}
	if err := msgpack.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
