package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"

	"gapview/model"
)

// Synthetic generates a displacement run: slurry pushing spacer pushing mud
// up an eccentric annulus. Section 0 is the pipe, the others are annulus.
type Synthetic struct {
	TimeSteps int
	Sections  int
	NXi       int
	NZeta     int
	// 前沿宽度，单位为 zeta 网格
	Band float64
	// 偏心导致的前沿起伏
	Eccentricity float64
}

// DefaultSynthetic is a small run suitable for demos.
var DefaultSynthetic = Synthetic{
	TimeSteps:    40,
	Sections:     2,
	NXi:          24,
	NZeta:        60,
	Band:         6,
	Eccentricity: 0.15,
}

const syntheticFluids = 3

// Generate builds the array.
func (s Synthetic) Generate() (*sparse.DenseArray, error) {
	if s.TimeSteps < 1 || s.Sections < 1 || s.NXi < 1 || s.NZeta < 1 {
		return nil, fmt.Errorf("%w: synthetic dimensions must be positive: %+v", model.ErrInvalidArgument, s)
	}
	band := s.Band
	if band <= 0 {
		band = 1
	}
	arr := sparse.ZerosDense(s.TimeSteps, syntheticFluids, s.Sections, s.NXi, s.NZeta)
	travel := 1.5 * float64(s.NZeta)
	for t := 0; t < s.TimeSteps; t++ {
		pos := travel * float64(t) / math.Max(1, float64(s.TimeSteps-1))
		for sec := 0; sec < s.Sections; sec++ {
			for xi := 0; xi < s.NXi; xi++ {
				phase := 2 * math.Pi * float64(xi) / float64(s.NXi)
				front := pos * (1 + s.Eccentricity*math.Cos(phase))
				if sec == 0 {
					// 管内流体超前于环空
					front += band
				}
				for z := 0; z < s.NZeta; z++ {
					d := float64(z)
					slurry := logistic((front - band - d) / band * 4)
					behindMud := logistic((front - d) / band * 4)
					spacer := behindMud - slurry
					mud := 1 - behindMud
					arr.Set(mud, t, 0, sec, xi, z)
					arr.Set(spacer, t, 1, sec, xi, z)
					arr.Set(slurry, t, 2, sec, xi, z)
				}
			}
		}
	}
	return arr, nil
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Read ignores the name unless it carries overrides such as "t=20,xi=16,zeta=40".
func (s Synthetic) Read(name string) (*sparse.DenseArray, error) {
	for _, kv := range strings.Split(name, ",") {
		parts := strings.SplitN(strings.TrimSpace(kv), "=", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: synthetic option %q", model.ErrInvalidArgument, kv)
		}
		switch parts[0] {
		case "t":
			s.TimeSteps = v
		case "sections":
			s.Sections = v
		case "xi":
			s.NXi = v
		case "zeta":
			s.NZeta = v
		}
	}
	return s.Generate()
}
