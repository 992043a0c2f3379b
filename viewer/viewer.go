// Package viewer drives the load, compose and build pipeline on background
// tasks and keeps the frame set the renderer shows.
package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/compositor"
	"gapview/label"
	"gapview/mesh"
	"gapview/model"
	"gapview/profile"
	"gapview/source"
	"gapview/task"
)

const (
	LoadTaskID    = "load"
	RebuildTaskID = "rebuild"
)

type ChangeKind string

const (
	Loaded  ChangeKind = "loaded"
	Rebuilt ChangeKind = "rebuilt"
	Relabel ChangeKind = "labels"
)

type Change struct {
	Kind   ChangeKind
	Frames int
	Path   string
}

// scene 是一次加载或重建的完整结果，安装后只读
type scene struct {
	path    string
	frames  *compositor.Frames
	profile profile.Profile
	meshes  []*model.MeshFrame
	anchors []mgl64.Vec3
	labels  []model.DepthLabel
}

type Viewer struct {
	mu       sync.RWMutex
	settings Settings
	scene    *scene
	index    int
	watchers map[string]func(Change)

	src  source.Reader
	comp *compositor.Compositor
	sup  *task.Supervisor
	pub  bus.Publisher

	player *player
}

func New(s Settings, src source.Reader, comp *compositor.Compositor, sup *task.Supervisor, pub bus.Publisher) *Viewer {
	if pub == nil {
		pub = bus.Discard
	}
	return &Viewer{
		settings: s,
		watchers: map[string]func(Change){},
		src:      src,
		comp:     comp,
		sup:      sup,
		pub:      pub,
		player:   newPlayer(),
	}
}

func (v *Viewer) Settings() Settings {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.settings
}

// Load reads path and rebuilds everything on a background task.
func (v *Viewer) Load(path string) (*task.Handle, error) {
	s := v.Settings()
	return v.sup.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		arr, err := v.src.Read(path)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frames, err := v.comp.Compose(arr, s.Compositor)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sc, err := build(frames, s)
		if err != nil {
			return nil, err
		}
		sc.path = path
		return sc, nil
	},
		task.WithID(LoadTaskID),
		task.OnStart(func() {
			bus.Publishf(v.pub, bus.Info, "Loading %s", path)
		}),
		task.OnComplete(func(o task.Outcome) {
			v.complete(o, Loaded, fmt.Sprintf("load %s", path))
		}),
	)
}

// Rebuild regenerates the meshes from the frames already composed, with the current profile settings.
func (v *Viewer) Rebuild() (*task.Handle, error) {
	v.mu.RLock()
	sc, s := v.scene, v.settings
	v.mu.RUnlock()
	if sc == nil {
		return nil, fmt.Errorf("%w: nothing loaded", model.ErrNotFound)
	}
	return v.sup.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		next, err := build(sc.frames, s)
		if err != nil {
			return nil, err
		}
		next.path = sc.path
		return next, nil
	},
		task.WithID(RebuildTaskID),
		task.OnStart(func() {}),
		task.OnComplete(func(o task.Outcome) {
			v.complete(o, Rebuilt, "rebuild")
		}),
	)
}

func (v *Viewer) complete(o task.Outcome, kind ChangeKind, what string) {
	if o.Failed {
		bus.Publishf(v.pub, bus.Error, "Failed to %s: %v", what, o.Err)
		return
	}
	sc := o.Result.(*scene)

	v.mu.Lock()
	v.scene = sc
	v.index = 0
	watchers := v.watchersLocked()
	v.mu.Unlock()

	log.WithFields(log.Fields{
		"path":   sc.path,
		"frames": len(sc.meshes),
		"labels": len(sc.labels),
	}).Info("scene installed")
	bus.Publishf(v.pub, bus.Success, "%s: %d frames", what, len(sc.meshes))
	notify(watchers, Change{Kind: kind, Frames: len(sc.meshes), Path: sc.path})
}

func build(frames *compositor.Frames, s Settings) (*scene, error) {
	nz, ny := frames.NXi, frames.NZeta
	prof, err := profile.Build(s.Policy, nz, s.BaseThickness)
	if err != nil {
		return nil, err
	}
	meshes, err := mesh.Build(mesh.Options{
		Width:    s.Width,
		Height:   s.Height,
		Profile:  &prof,
		NX:       s.NX,
		NY:       ny,
		NZ:       nz,
		Frames:   frames.Images,
		Fallback: s.Fallback,
		Workers:  s.MeshWorkers,
	})
	if err != nil {
		return nil, err
	}
	anchors, err := label.Place(prof.Values(), s.Plane, s.Height, label.Center, s.Padding)
	if err != nil {
		return nil, err
	}
	labels, err := label.Labels(anchors, frames.TopDepth, frames.BottomDepth, frames.Unit, s.Detail, s.LabelColor)
	if err != nil {
		return nil, err
	}
	return &scene{
		frames:  frames,
		profile: prof,
		meshes:  meshes,
		anchors: anchors,
		labels:  labels,
	}, nil
}

// SetProfile changes the thickness settings used by the next Load or Rebuild.
func (v *Viewer) SetProfile(p profile.Policy, base float64) error {
	if _, err := profile.Build(p, 2, base); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settings.Policy = p
	v.settings.BaseThickness = base
	return nil
}

// SetDetail changes the label density and relabels the current scene in place.
func (v *Viewer) SetDetail(detail float64) error {
	v.mu.Lock()
	sc := v.scene
	var labels []model.DepthLabel
	if sc != nil {
		var err error
		labels, err = label.Labels(sc.anchors, sc.frames.TopDepth, sc.frames.BottomDepth, sc.frames.Unit, detail, v.settings.LabelColor)
		if err != nil {
			v.mu.Unlock()
			return err
		}
	} else if _, err := label.Labels(nil, 0, 0, "", detail, model.Color{}); err != nil {
		v.mu.Unlock()
		return err
	}
	v.settings.Detail = detail
	if sc != nil {
		next := *sc
		next.labels = labels
		v.scene = &next
	}
	watchers := v.watchersLocked()
	v.mu.Unlock()

	if sc != nil {
		notify(watchers, Change{Kind: Relabel, Frames: len(sc.meshes), Path: sc.path})
	}
	return nil
}

// Len is the number of frames of the installed scene.
func (v *Viewer) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.scene == nil {
		return 0
	}
	return len(v.scene.meshes)
}

// SetIndex selects frame i, leaving the index unchanged when i is out of range.
func (v *Viewer) SetIndex(i int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scene == nil || i < 0 || i >= len(v.scene.meshes) {
		return false
	}
	v.index = i
	return true
}

// Step advances to the next frame, wrapping at the end.
func (v *Viewer) Step() (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scene == nil || len(v.scene.meshes) == 0 {
		return 0, false
	}
	v.index = (v.index + 1) % len(v.scene.meshes)
	return v.index, true
}

func (v *Viewer) Current() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index
}

// Frame returns mesh i, ErrNotFound when out of range.
func (v *Viewer) Frame(i int) (*model.MeshFrame, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.scene == nil || i < 0 || i >= len(v.scene.meshes) {
		return nil, fmt.Errorf("%w: frame %d", model.ErrNotFound, i)
	}
	return v.scene.meshes[i], nil
}

func (v *Viewer) Labels() []model.DepthLabel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.scene == nil {
		return nil
	}
	return v.scene.labels
}

// Profile returns the thickness profile of the installed scene.
func (v *Viewer) Profile() (profile.Profile, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.scene == nil {
		return profile.Profile{}, false
	}
	return v.scene.profile, true
}

// Watch registers fn for scene changes. fn runs on the supervising goroutine or the caller of SetDetail.
func (v *Viewer) Watch(id string, fn func(Change)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.watchers[id] = fn
}

func (v *Viewer) Unwatch(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.watchers, id)
}

func (v *Viewer) watchersLocked() []func(Change) {
	out := make([]func(Change), 0, len(v.watchers))
	for _, fn := range v.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(watchers []func(Change), c Change) {
	for _, fn := range watchers {
		fn(c)
	}
}
