package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gapview/bus"
	"gapview/model"
)

const wait = 2 * time.Second

func start(t *testing.T, pub bus.Publisher) *Supervisor {
	t.Helper()
	s := NewSupervisor(pub)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

func receive(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(wait):
		t.Fatal("timed out waiting for completion")
	}
	return Outcome{}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCompletes(t *testing.T) {
	s := start(t, nil)
	ch := make(chan Outcome, 1)
	h := NewHandle(func(ctx context.Context, arg interface{}) (interface{}, error) {
		return 42, nil
	}, OnComplete(func(o Outcome) { ch <- o }))
	if err := s.Launch(h); err != nil {
		t.Fatal(err)
	}

	o := receive(t, ch)
	if o.Failed || o.Err != nil || o.Result != 42 {
		t.Errorf("outcome = %+v, want result 42", o)
	}
	if h.State() != Completed {
		t.Errorf("state = %v", h.State())
	}
	if len(h.ID()) != 36 {
		t.Errorf("generated id %q is not a uuid", h.ID())
	}
}

func TestFails(t *testing.T) {
	s := start(t, nil)
	boom := errors.New("boom")
	ch := make(chan Outcome, 1)
	_, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		return "partial", boom
	}, WithID("f"), OnComplete(func(o Outcome) { ch <- o }))
	if err != nil {
		t.Fatal(err)
	}

	o := receive(t, ch)
	if !o.Failed || o.Result != nil || o.Err == nil || o.Err.Error() == "" {
		t.Fatalf("outcome = %+v", o)
	}
	var f *Failure
	if !errors.As(o.Err, &f) || f.ID != "f" || !errors.Is(o.Err, boom) {
		t.Errorf("err = %#v", o.Err)
	}
}

func TestPanicIsCaptured(t *testing.T) {
	s := start(t, nil)
	ch := make(chan Outcome, 1)
	h, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	}, OnComplete(func(o Outcome) { ch <- o }))
	if err != nil {
		t.Fatal(err)
	}
	o := receive(t, ch)
	if !o.Failed || !strings.Contains(o.Err.Error(), "panic") || !strings.Contains(o.Err.Error(), "goroutine") {
		t.Errorf("panic outcome = %v", o.Err)
	}
	if h.State() != Failed {
		t.Errorf("state = %v", h.State())
	}
}

func TestArgument(t *testing.T) {
	s := start(t, nil)
	ch := make(chan Outcome, 2)
	echo := func(ctx context.Context, arg interface{}) (interface{}, error) {
		return arg, nil
	}
	if _, err := s.Submit(echo, OnComplete(func(o Outcome) { ch <- o })); err != nil {
		t.Fatal(err)
	}
	if o := receive(t, ch); o.Result != nil {
		t.Errorf("no argument gave %v", o.Result)
	}
	if _, err := s.Submit(echo, WithArg("x"), OnComplete(func(o Outcome) { ch <- o })); err != nil {
		t.Fatal(err)
	}
	if o := receive(t, ch); o.Result != "x" {
		t.Errorf("argument gave %v", o.Result)
	}
}

func TestIsolationAndPurge(t *testing.T) {
	s := start(t, nil)
	gateA, gateB := make(chan struct{}), make(chan struct{})
	outA, outB := make(chan Outcome, 1), make(chan Outcome, 1)
	blocking := func(gate chan struct{}, v int) Func {
		return func(ctx context.Context, arg interface{}) (interface{}, error) {
			<-gate
			return v, nil
		}
	}
	if _, err := s.Submit(blocking(gateA, 1), WithID("A"), OnComplete(func(o Outcome) { outA <- o })); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(blocking(gateB, 2), WithID("B"), OnComplete(func(o Outcome) { outB <- o })); err != nil {
		t.Fatal(err)
	}

	if n := s.Purge(); n != 0 {
		t.Errorf("purge before completion removed %d", n)
	}
	if live := s.Live(); len(live) != 2 || live[0] != "A" || live[1] != "B" {
		t.Fatalf("live = %v", live)
	}

	close(gateA)
	if o := receive(t, outA); o.Result != 1 {
		t.Errorf("A = %+v", o)
	}
	eventually(t, func() bool { return s.Pending() == 1 })
	if live := s.Live(); len(live) != 1 || live[0] != "B" {
		t.Errorf("live after A = %v", live)
	}
	if h, ok := s.Get("A"); !ok || h.State() != Completed {
		t.Error("retired A not found")
	}

	if n := s.Purge(); n != 1 {
		t.Errorf("purge removed %d, want 1", n)
	}
	if _, ok := s.Get("B"); !ok {
		t.Error("purge removed live B")
	}

	close(gateB)
	if o := receive(t, outB); o.Result != 2 {
		t.Errorf("B = %+v", o)
	}
	eventually(t, func() bool { return s.Pending() == 1 && len(s.Live()) == 0 })
}

func TestPendingGrowsUntilPurged(t *testing.T) {
	s := start(t, nil)
	for i := 0; i < 10; i++ {
		h, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) { return nil, nil },
			OnComplete(func(Outcome) {}))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, func() bool { return s.Pending() == 10 })
	if s.Purge() != 10 || s.Pending() != 0 {
		t.Error("purge did not clear retired handles")
	}
}

func TestDefaultMessages(t *testing.T) {
	b := bus.New(16)
	msgs := make(chan bus.Message, 16)
	b.Subscribe("test", msgs)
	s := start(t, b)

	next := func() bus.Message {
		select {
		case m := <-msgs:
			return m
		case <-time.After(wait):
			t.Fatal("no message")
		}
		return bus.Message{}
	}

	if _, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) { return 1, nil }, WithID("ok")); err != nil {
		t.Fatal(err)
	}
	if m := next(); m.Kind != bus.Warning || m.Text != "Task with id <ok> started" {
		t.Errorf("start message = %+v", m)
	}
	if m := next(); m.Kind != bus.Success || m.Text != "Task with id <ok> Completed" {
		t.Errorf("finish message = %+v", m)
	}

	if _, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		return nil, errors.New("disk full")
	}, WithID("bad"), OnStart(func() {})); err != nil {
		t.Fatal(err)
	}
	if m := next(); m.Kind != bus.Error || m.Text != "Task with id <bad> Failed with Error" {
		t.Errorf("failure message = %+v", m)
	}
	if m := next(); m.Kind != bus.Error || m.Text != "disk full" {
		t.Errorf("description message = %+v", m)
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	b := bus.New(16)
	s := start(t, b)
	fn := func(ctx context.Context, arg interface{}) (interface{}, error) { return 42, nil }

	if _, err := s.Submit(fn, WithID("noisy"), OnStart(func() { panic("bad start") }),
		OnComplete(func(Outcome) { panic("bad callback") })); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return s.Pending() == 1 && len(s.Live()) == 0 })

	var panics int
	for _, m := range b.History() {
		if m.Kind == bus.Error && strings.Contains(m.Text, "<noisy>") && strings.Contains(m.Text, "panicked") {
			panics++
		}
	}
	if panics != 2 {
		t.Errorf("published %d callback panics, want 2: %+v", panics, b.History())
	}

	// Run 仍在处理后续任务
	ch := make(chan Outcome, 1)
	if _, err := s.Submit(fn, OnComplete(func(o Outcome) { ch <- o })); err != nil {
		t.Fatal(err)
	}
	if o := receive(t, ch); o.Result != 42 {
		t.Errorf("outcome after panic = %+v", o)
	}
}

func TestUnknownNotices(t *testing.T) {
	b := bus.New(8)
	s := NewSupervisor(b)
	h := NewHandle(func(ctx context.Context, arg interface{}) (interface{}, error) { return nil, nil }, WithID("ghost"))
	s.onStarted(h)
	s.onFinished(h)

	hist := b.History()
	if len(hist) != 1 || hist[0].Kind != bus.Warning || hist[0].Text != "Cannot start task with id <ghost> not found" {
		t.Errorf("history = %+v", hist)
	}
	if s.Pending() != 0 {
		t.Error("unknown finish moved a handle to pending")
	}
}

func TestLaunchErrors(t *testing.T) {
	s := start(t, nil)
	gate := make(chan struct{})
	defer close(gate)
	fn := func(ctx context.Context, arg interface{}) (interface{}, error) {
		<-gate
		return nil, nil
	}
	h := NewHandle(fn, WithID("dup"))
	if err := s.Launch(h); err != nil {
		t.Fatal(err)
	}
	if err := s.Launch(NewHandle(fn, WithID("dup"))); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("duplicate id: err = %v", err)
	}
	if err := s.Launch(nil); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("nil handle: err = %v", err)
	}

	done := NewHandle(func(ctx context.Context, arg interface{}) (interface{}, error) { return nil, nil },
		OnComplete(func(Outcome) {}))
	if err := s.Launch(done); err != nil {
		t.Fatal(err)
	}
	done.Wait(context.Background())
	eventually(t, func() bool {
		for _, id := range s.Live() {
			if id == done.ID() {
				return false
			}
		}
		return true
	})
	if err := s.Launch(done); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("relaunch: err = %v", err)
	}
}

func TestKill(t *testing.T) {
	s := start(t, nil)
	ch := make(chan Outcome, 1)
	_, err := s.Submit(func(ctx context.Context, arg interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithID("k"), OnComplete(func(o Outcome) { ch <- o }))
	if err != nil {
		t.Fatal(err)
	}
	if s.Kill("missing") {
		t.Error("killed a missing task")
	}
	if !s.Kill("k") {
		t.Fatal("kill of live task returned false")
	}
	o := receive(t, ch)
	if !o.Failed || !errors.Is(o.Err, context.Canceled) {
		t.Errorf("killed outcome = %+v", o)
	}
}

func TestTimeout(t *testing.T) {
	slow := Timeout(20*time.Millisecond, func(ctx context.Context, arg interface{}) (interface{}, error) {
		time.Sleep(time.Second)
		return "late", nil
	})
	if _, err := slow(context.Background(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow: err = %v", err)
	}

	fast := Timeout(time.Second, func(ctx context.Context, arg interface{}) (interface{}, error) {
		return arg, nil
	})
	if v, err := fast(context.Background(), 7); err != nil || v != 7 {
		t.Errorf("fast = %v, %v", v, err)
	}

	panicky := Timeout(time.Second, func(ctx context.Context, arg interface{}) (interface{}, error) {
		panic("nope")
	})
	if _, err := panicky(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("panicky: err = %v", err)
	}
}

func TestOutcomeBeforeFinish(t *testing.T) {
	gate := make(chan struct{})
	h := NewHandle(func(ctx context.Context, arg interface{}) (interface{}, error) {
		<-gate
		return nil, nil
	})
	if _, ok := h.Outcome(); ok {
		t.Error("outcome available before run")
	}
	if h.State() != Created || h.Elapsed() != 0 {
		t.Errorf("state = %v", h.State())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v", err)
	}
	close(gate)
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Created: "created", Running: "running", Completed: "completed", Failed: "failed"} {
		if s.String() != want {
			t.Errorf("%d = %q", s, s.String())
		}
	}
}
