// Package task runs functions on background goroutines and reports their
// start and outcome to a supervising goroutine.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Func is the unit of background work. arg is nil when no argument was supplied.
type Func func(ctx context.Context, arg interface{}) (interface{}, error)

type State int32

const (
	Created State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Outcome is the terminal result of a handle, Result is nil when Failed.
type Outcome struct {
	Failed bool
	Err    error
	Result interface{}
}

// Failure describes a failed run. Description carries the stack for panics.
type Failure struct {
	ID          string
	Description string
	Err         error
}

func (f *Failure) Error() string {
	return f.Description
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type Option func(h *Handle)

func WithID(id string) Option {
	return func(h *Handle) {
		h.id = id
	}
}

func WithArg(arg interface{}) Option {
	return func(h *Handle) {
		h.arg = arg
	}
}

func OnStart(f func()) Option {
	return func(h *Handle) {
		h.onStart = f
	}
}

func OnComplete(f func(o Outcome)) Option {
	return func(h *Handle) {
		h.onComplete = f
	}
}

// Handle runs exactly one Func once.
type Handle struct {
	id         string
	fn         Func
	arg        interface{}
	onStart    func()
	onComplete func(o Outcome)

	state    int32
	launched int32

	ctx    context.Context
	cancel context.CancelFunc

	outcome  Outcome
	done     chan struct{}
	started  time.Time
	finished time.Time
}

func NewHandle(fn Func, opts ...Option) *Handle {
	h := &Handle{
		fn:   fn,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.id == "" {
		h.id = uuid.New().String()
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) State() State {
	return State(atomic.LoadInt32(&h.state))
}

// Done is closed once the outcome is recorded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome, ok is false while the handle is still running.
func (h *Handle) Outcome() (o Outcome, ok bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome is recorded or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Elapsed is the run time, zero before the handle finishes.
func (h *Handle) Elapsed() time.Duration {
	if _, ok := h.Outcome(); !ok {
		return 0
	}
	return h.finished.Sub(h.started)
}

type noticeKind int

const (
	noticeStarted noticeKind = iota
	noticeFinished
)

type notice struct {
	kind noticeKind
	h    *Handle
}

// run 在独立 goroutine 中执行，开始与结束通知经同一通道按序发送
func (h *Handle) run(notices chan<- notice) {
	h.started = time.Now()
	atomic.StoreInt32(&h.state, int32(Running))
	notices <- notice{kind: noticeStarted, h: h}

	defer func() {
		if r := recover(); r != nil {
			h.finish(Outcome{
				Failed: true,
				Err: &Failure{
					ID:          h.id,
					Description: fmt.Sprintf("panic: %v\n%s", r, debug.Stack()),
					Err:         fmt.Errorf("panic: %v", r),
				},
			})
		}
		notices <- notice{kind: noticeFinished, h: h}
	}()

	v, err := h.fn(h.ctx, h.arg)
	if err != nil {
		h.finish(Outcome{
			Failed: true,
			Err:    &Failure{ID: h.id, Description: err.Error(), Err: err},
		})
		return
	}
	h.finish(Outcome{Result: v})
}

func (h *Handle) finish(o Outcome) {
	h.finished = time.Now()
	h.outcome = o
	if o.Failed {
		atomic.StoreInt32(&h.state, int32(Failed))
	} else {
		atomic.StoreInt32(&h.state, int32(Completed))
	}
	h.cancel()
	close(h.done)
}

// Timeout wraps fn so its context expires after d. The wrapped function returns
// as soon as the deadline passes; fn itself keeps running until it notices.
func Timeout(d time.Duration, fn Func) Func {
	return func(ctx context.Context, arg interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			v   interface{}
			err error
		}
		ch := make(chan result, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- result{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
				}
			}()
			v, err := fn(ctx, arg)
			ch <- result{v: v, err: err}
		}()

		select {
		case r := <-ch:
			return r.v, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out after %v: %w", d, ctx.Err())
		}
	}
}
