package viewer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ctessum/sparse"

	"gapview/bus"
	"gapview/compositor"
	"gapview/config"
	"gapview/label"
	"gapview/model"
	"gapview/profile"
	"gapview/source"
	"gapview/task"
)

const wait = 2 * time.Second

type fixture struct {
	v       *Viewer
	b       *bus.Bus
	changes chan Change
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := source.NewMemory()
	arr, err := source.Synthetic{TimeSteps: 5, Sections: 2, NXi: 6, NZeta: 8, Band: 2}.Generate()
	if err != nil {
		t.Fatal(err)
	}
	mem.Put("run", arr)
	mem.Put("short", sparse.ZerosDense(1, 3, 2, 6, 8))

	b := bus.New(64)
	sup := task.NewSupervisor(b)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sup.Run(ctx)

	v := New(DefaultSettings(), mem, compositor.New(compositor.DefaultPalette(), b), sup, b)
	f := &fixture{v: v, b: b, changes: make(chan Change, 8)}
	v.Watch("test", func(c Change) { f.changes <- c })
	t.Cleanup(v.Pause)
	return f
}

func (f *fixture) next(t *testing.T) Change {
	t.Helper()
	select {
	case c := <-f.changes:
		return c
	case <-time.After(wait):
		t.Fatal("no scene change")
	}
	return Change{}
}

func (f *fixture) load(t *testing.T, path string) {
	t.Helper()
	if _, err := f.v.Load(path); err != nil {
		t.Fatal(err)
	}
	if c := f.next(t); c.Kind != Loaded || c.Path != path {
		t.Fatalf("change = %+v", c)
	}
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.load(t, "run")

	// 5 个时间步保留 4 帧
	if f.v.Len() != 4 {
		t.Fatalf("Len = %d, want 4", f.v.Len())
	}
	m, err := f.v.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 2*6*8 {
		t.Errorf("vertices = %d, want %d", m.VertexCount(), 2*6*8)
	}
	// Medium 细节，6 层保留 3 个标签
	if n := len(f.v.Labels()); n != 3 {
		t.Errorf("labels = %d, want 3", n)
	}
	if p, ok := f.v.Profile(); !ok || p.Len() != 6 {
		t.Errorf("profile = %v, %v", p, ok)
	}
}

func TestLabelsStandOffTheSlab(t *testing.T) {
	f := newFixture(t)
	f.load(t, "run")
	if err := f.v.SetDetail(1); err != nil {
		t.Fatal(err)
	}
	m, err := f.v.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := m.Bounds()
	labels := f.v.Labels()
	if len(labels) != 6 {
		t.Fatalf("labels = %d, want 6", len(labels))
	}
	for _, l := range labels {
		outside := false
		for i := 0; i < 3; i++ {
			if l.Pos[i] < lo[i] || l.Pos[i] > hi[i] {
				outside = true
			}
		}
		if !outside {
			t.Errorf("label %q at %v inside slab %v..%v", l.Text, l.Pos, lo, hi)
		}
	}
}

func TestLoadFailureIsPublished(t *testing.T) {
	f := newFixture(t)
	h, err := f.v.Load("missing")
	if err != nil {
		t.Fatal(err)
	}
	o, err := h.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !o.Failed || !errors.Is(o.Err, model.ErrNotFound) {
		t.Fatalf("outcome = %+v", o)
	}
	deadline := time.Now().Add(wait)
	for {
		found := false
		for _, m := range f.b.History() {
			if m.Kind == bus.Error {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failure not published")
		}
		time.Sleep(time.Millisecond)
	}
	if f.v.Len() != 0 {
		t.Error("failed load installed a scene")
	}
}

func TestLoadShapeError(t *testing.T) {
	f := newFixture(t)
	h, err := f.v.Load("short")
	if err != nil {
		t.Fatal(err)
	}
	o, _ := h.Wait(context.Background())
	if !o.Failed || !errors.Is(o.Err, model.ErrShapeError) {
		t.Errorf("outcome = %+v", o)
	}
}

func TestIndexSelector(t *testing.T) {
	f := newFixture(t)
	if f.v.SetIndex(0) {
		t.Error("SetIndex succeeded with nothing loaded")
	}
	if _, ok := f.v.Step(); ok {
		t.Error("Step succeeded with nothing loaded")
	}
	f.load(t, "run")

	if !f.v.SetIndex(3) || f.v.Current() != 3 {
		t.Fatalf("SetIndex(3) -> %d", f.v.Current())
	}
	for _, i := range []int{-1, 4, 100} {
		if f.v.SetIndex(i) {
			t.Errorf("SetIndex(%d) succeeded", i)
		}
		if f.v.Current() != 3 {
			t.Errorf("SetIndex(%d) moved the index to %d", i, f.v.Current())
		}
	}
	if i, ok := f.v.Step(); !ok || i != 0 {
		t.Errorf("Step from last = %d, %v, want wrap to 0", i, ok)
	}
	if _, err := f.v.Frame(4); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Frame(4): err = %v", err)
	}
}

func TestRebuildUsesNewProfile(t *testing.T) {
	f := newFixture(t)
	if _, err := f.v.Rebuild(); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("rebuild before load: err = %v", err)
	}
	f.load(t, "run")
	f.v.SetIndex(2)

	if err := f.v.SetProfile(profile.Parabolic, 0.4); err != nil {
		t.Fatal(err)
	}
	if err := f.v.SetProfile(profile.Parabolic, -1); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("negative thickness: err = %v", err)
	}
	if _, err := f.v.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if c := f.next(t); c.Kind != Rebuilt || c.Frames != 4 {
		t.Fatalf("change = %+v", c)
	}
	p, _ := f.v.Profile()
	if p.Policy() != profile.Parabolic || p.At(0) != 0.4 || p.Max() <= 0.4 {
		t.Errorf("profile = %v %v", p.Policy(), p.Values())
	}
	if f.v.Current() != 0 {
		t.Errorf("index not reset after rebuild: %d", f.v.Current())
	}
}

func TestSetDetail(t *testing.T) {
	f := newFixture(t)
	if err := f.v.SetDetail(2); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("detail 2: err = %v", err)
	}
	f.load(t, "run")
	if err := f.v.SetDetail(1); err != nil {
		t.Fatal(err)
	}
	if c := f.next(t); c.Kind != Relabel {
		t.Errorf("change = %+v", c)
	}
	if n := len(f.v.Labels()); n != 6 {
		t.Errorf("labels = %d, want 6", n)
	}
	if err := f.v.SetDetail(0); err != nil {
		t.Fatal(err)
	}
	if n := len(f.v.Labels()); n != 0 {
		t.Errorf("labels = %d, want 0", n)
	}
	if f.v.Settings().Detail != 0 {
		t.Error("detail setting not stored")
	}
}

func TestPlayPause(t *testing.T) {
	f := newFixture(t)
	f.load(t, "run")

	var frames int32
	got := make(chan int, 16)
	f.v.Play("test", time.Millisecond, func(i int, m *model.MeshFrame) {
		atomic.AddInt32(&frames, 1)
		select {
		case got <- i:
		default:
		}
	})
	if !f.v.Playing() {
		t.Fatal("player not running")
	}
	for k := 0; k < 5; k++ {
		select {
		case <-got:
		case <-time.After(wait):
			t.Fatal("player produced no frames")
		}
	}
	f.v.Pause()
	f.v.Pause()
	if f.v.Playing() {
		t.Error("player still running after pause")
	}
	n := atomic.LoadInt32(&frames)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&frames) != n {
		t.Error("frames delivered after pause")
	}
}

func TestReleaseOnlyStopsOwner(t *testing.T) {
	f := newFixture(t)
	f.load(t, "run")
	f.v.Play("a", time.Millisecond, func(int, *model.MeshFrame) {})
	if f.v.Release("b") || !f.v.Playing() {
		t.Fatal("release by another owner stopped the player")
	}
	f.v.Play("b", time.Millisecond, func(int, *model.MeshFrame) {})
	if f.v.Release("a") {
		t.Error("previous owner released a restarted player")
	}
	if !f.v.Release("b") || f.v.Playing() {
		t.Error("owner could not release the player")
	}
	if f.v.Release("b") {
		t.Error("release of a stopped player reported true")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh.Policy = "LT"
	cfg.Labels.Detail = "High"
	s, err := SettingsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Policy != profile.LinearTaper || s.Detail != 0.75 || s.Plane != label.YZ {
		t.Errorf("settings = %+v", s)
	}
	if s.Compositor.BottomDepth != 800 || !s.Compositor.AnnulusOnly {
		t.Errorf("compositor = %+v", s.Compositor)
	}

	cfg.Mesh.Fallback = "blue"
	if _, err := SettingsFromConfig(cfg); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("bad fallback: err = %v", err)
	}
}
