package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/deque"
	"gapview/model"
)

var (
	launchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gapview_tasks_launched_total",
		Help: "Tasks handed to a supervisor.",
	})
	finishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapview_tasks_finished_total",
		Help: "Tasks that reached a terminal state.",
	}, []string{"outcome"})
	liveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gapview_tasks_live",
		Help: "Tasks registered and not yet finished.",
	})
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gapview_tasks_pending_cleanup",
		Help: "Finished tasks waiting for an explicit purge.",
	})
	durationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gapview_task_duration_seconds",
		Help:    "Wall time of finished tasks.",
		Buckets: prometheus.DefBuckets,
	})
)

// 通知通道容量，Run 未运行时 worker 会阻塞在发送上
const noticeBuffer = 64

// Supervisor owns the live registry and the retired handles. Retired handles
// accumulate until Purge is called.
type Supervisor struct {
	mu      sync.Mutex
	live    map[string]*Handle
	pending *deque.ListDeque[*Handle]

	notices chan notice
	pub     bus.Publisher
}

func NewSupervisor(pub bus.Publisher) *Supervisor {
	if pub == nil {
		pub = bus.Discard
	}
	return &Supervisor{
		live:    map[string]*Handle{},
		pending: deque.NewListDeque[*Handle](0),
		notices: make(chan notice, noticeBuffer),
		pub:     pub,
	}
}

// Run drains start and finish notices until ctx ends. Callbacks run on this goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notices:
			switch n.kind {
			case noticeStarted:
				s.onStarted(n.h)
			case noticeFinished:
				s.onFinished(n.h)
			}
		}
	}
}

// Launch registers h and starts it. A handle runs at most once and ids must be unique among live tasks.
func (s *Supervisor) Launch(h *Handle) error {
	if h == nil || h.fn == nil {
		return fmt.Errorf("%w: task without function", model.ErrInvalidArgument)
	}
	s.mu.Lock()
	if _, ok := s.live[h.id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %s is already running", model.ErrInvalidArgument, h.id)
	}
	if !atomic.CompareAndSwapInt32(&h.launched, 0, 1) {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %s was already launched", model.ErrInvalidArgument, h.id)
	}
	s.live[h.id] = h
	liveGauge.Set(float64(len(s.live)))
	s.mu.Unlock()

	launchedTotal.Inc()
	log.WithField("id", h.id).Debug("task launched")
	go h.run(s.notices)
	return nil
}

// Submit is NewHandle followed by Launch.
func (s *Supervisor) Submit(fn Func, opts ...Option) (*Handle, error) {
	h := NewHandle(fn, opts...)
	if err := s.Launch(h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Supervisor) onStarted(h *Handle) {
	s.mu.Lock()
	_, ok := s.live[h.id]
	s.mu.Unlock()
	if !ok {
		bus.Publishf(s.pub, bus.Warning, "Cannot start task with id <%s> not found", h.id)
		return
	}
	if h.onStart != nil {
		s.callback(h, "start", h.onStart)
		return
	}
	bus.Publishf(s.pub, bus.Warning, "Task with id <%s> started", h.id)
}

func (s *Supervisor) onFinished(h *Handle) {
	s.mu.Lock()
	cur, ok := s.live[h.id]
	s.mu.Unlock()
	if !ok || cur != h {
		return
	}

	defer s.retire(h)

	o := h.outcome
	result := "completed"
	if o.Failed {
		result = "failed"
	}
	finishedTotal.WithLabelValues(result).Inc()
	durationSeconds.Observe(h.Elapsed().Seconds())
	log.WithFields(log.Fields{
		"id":      h.id,
		"outcome": result,
		"elapsed": h.Elapsed(),
	}).Info("task finished")

	if h.onComplete == nil {
		if o.Failed {
			bus.Publishf(s.pub, bus.Error, "Task with id <%s> Failed with Error", h.id)
			s.pub.Publish(bus.Message{Text: o.Err.Error(), Kind: bus.Error})
		} else {
			bus.Publishf(s.pub, bus.Success, "Task with id <%s> Completed", h.id)
		}
	} else {
		s.callback(h, "complete", func() { h.onComplete(o) })
	}
}

// retire 从存活表移入待清理队列
func (s *Supervisor) retire(h *Handle) {
	s.mu.Lock()
	delete(s.live, h.id)
	s.pending.AddLast(h)
	liveGauge.Set(float64(len(s.live)))
	pendingGauge.Set(float64(s.pending.Size()))
	s.mu.Unlock()
}

// callback runs f on the Run goroutine; a panic is logged and published instead of ending Run.
func (s *Supervisor) callback(h *Handle, what string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"id":       h.id,
				"callback": what,
				"panic":    r,
				"stack":    string(debug.Stack()),
			}).Error("task callback panicked")
			bus.Publishf(s.pub, bus.Error, "Task with id <%s> %s callback panicked: %v", h.id, what, r)
		}
	}()
	f()
}

// Kill cancels the context of a live task. The goroutine cannot be stopped;
// the task still reports an outcome and whatever it produced is undefined.
func (s *Supervisor) Kill(id string) bool {
	s.mu.Lock()
	h, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	bus.Publishf(s.pub, bus.Warning, "Task with id <%s> killed", id)
	return true
}

// Purge drops every retired handle and returns how many were dropped. Live tasks are untouched.
func (s *Supervisor) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.pending.Size()
	s.pending.Clear()
	pendingGauge.Set(0)
	return n
}

// Live returns the ids of running tasks, sorted.
func (s *Supervisor) Live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pending is the number of retired handles not yet purged.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Size()
}

// Get finds a live handle, or the most recent retired one with that id.
func (s *Supervisor) Get(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.live[id]; ok {
		return h, true
	}
	var found *Handle
	s.pending.Traverse(func(_ int, h *Handle) bool {
		if h.id == id {
			found = h
		}
		return true
	})
	return found, found != nil
}
