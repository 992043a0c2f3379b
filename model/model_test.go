package model

import (
	"errors"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#ffffff", want: Color{1, 1, 1}},
		{in: "000000", want: Color{0, 0, 0}},
		{in: "#FF0000", want: Color{1, 0, 0}},
		{in: "#fff", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("ParseHex(%q) err = %v, want ErrInvalidArgument", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	for _, s := range []string{"#07293e", "#cf3c4f", "#808289"} {
		if got := MustHex(s).Hex(); got != s {
			t.Errorf("MustHex(%q).Hex() = %q", s, got)
		}
	}
}

func TestColorClamp(t *testing.T) {
	got := Color{-0.5, 0.5, 1.5}.Clamp()
	if got != (Color{0, 0.5, 1}) {
		t.Errorf("Clamp = %v", got)
	}
}

func TestColorFrame(t *testing.T) {
	f := NewColorFrame(3, 4)
	if rows, cols := f.Shape(); rows != 3 || cols != 4 {
		t.Fatalf("Shape = %v,%v, want 3,4", rows, cols)
	}
	if !f.Is(3, 4) || f.Is(4, 3) {
		t.Errorf("Is reports wrong shape")
	}
	f[0] = f[0][:2]
	if f.Is(3, 4) {
		t.Errorf("ragged frame reported as 3x4")
	}
}

func TestMeshFrameBounds(t *testing.T) {
	m := &MeshFrame{}
	if min, max := m.Bounds(); min != max {
		t.Errorf("empty bounds = %v %v", min, max)
	}
}
