package viewer

import (
	"fmt"

	"gapview/compositor"
	"gapview/config"
	"gapview/label"
	"gapview/model"
	"gapview/profile"
)

type Settings struct {
	Policy        profile.Policy
	BaseThickness float64
	NX            int
	Width         float64
	Height        float64
	Fallback      model.Color
	MeshWorkers   int

	Detail     float64
	Plane      label.Plane
	Padding    float64
	LabelColor model.Color

	Compositor compositor.Options
}

func DefaultSettings() Settings {
	return Settings{
		Policy:        profile.Constant,
		BaseThickness: 0.1,
		NX:            2,
		Width:         1,
		Height:        5,
		Fallback:      model.MustHex(model.PrimaryHex),
		Detail:        0.5,
		Plane:         label.YZ,
		Padding:       0.2,
		LabelColor:    model.Color{1, 1, 1},
		Compositor:    compositor.DefaultOptions(),
	}
}

// SettingsFromConfig reads the [mesh], [compositor] and [labels] sections.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := DefaultSettings()
	var err error
	if s.Policy, err = profile.ParsePolicy(cfg.Mesh.Policy); err != nil {
		return s, err
	}
	if s.Fallback, err = model.ParseHex(cfg.Mesh.Fallback); err != nil {
		return s, fmt.Errorf("mesh fallback: %w", err)
	}
	if s.Detail, err = label.ParseDetail(cfg.Labels.Detail); err != nil {
		return s, err
	}
	if s.LabelColor, err = model.ParseHex(cfg.Labels.Color); err != nil {
		return s, fmt.Errorf("label colour: %w", err)
	}
	s.BaseThickness = cfg.Mesh.BaseThickness
	s.NX = cfg.Mesh.NX
	s.Width = cfg.Mesh.Width
	s.Height = cfg.Mesh.Height
	s.MeshWorkers = cfg.Mesh.Workers
	s.Plane = label.Plane(cfg.Labels.Plane)
	s.Padding = cfg.Labels.Padding
	s.Compositor = compositor.Options{
		Section:     cfg.Compositor.Section,
		Rotate:      cfg.Compositor.Rotate,
		AnnulusOnly: cfg.Compositor.AnnulusOnly,
		TopDepth:    cfg.Compositor.TopDepth,
		BottomDepth: cfg.Compositor.BottomDepth,
		Unit:        cfg.Compositor.Unit,
		Workers:     cfg.Compositor.Workers,
	}
	return s, nil
}
