package viewer

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gapview/model"
)

// player 周期性推进帧序号并推送当前帧
type player struct {
	mu      sync.Mutex
	running bool
	owner   string
	stop    chan struct{}
	stopped chan struct{}
}

func newPlayer() *player {
	return &player{}
}

func (p *player) startSignal() {
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	p.running = true
}

func (p *player) stopSignal() {
	close(p.stop)
	<-p.stopped
	p.running = false
	p.owner = ""
}

// Play steps the frame index every interval and hands the new frame to fn.
// A running player is restarted with the new interval and owner.
func (v *Viewer) Play(owner string, interval time.Duration, fn func(i int, m *model.MeshFrame)) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	p := v.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.stopSignal()
	}
	p.startSignal()
	p.owner = owner
	log.WithFields(log.Fields{"interval": interval, "owner": owner}).Debug("animation started")

	go func(stop, stopped chan struct{}) {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				i, ok := v.Step()
				if !ok {
					continue
				}
				m, err := v.Frame(i)
				if err != nil {
					continue
				}
				fn(i, m)
			}
		}
	}(p.stop, p.stopped)
}

// Pause stops the player; pausing a stopped player is a no-op.
func (v *Viewer) Pause() {
	p := v.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.stopSignal()
	log.Debug("animation paused")
}

// Release stops the player only when owner started it, reporting whether it did.
func (v *Viewer) Release(owner string) bool {
	p := v.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.owner != owner {
		return false
	}
	p.stopSignal()
	log.WithField("owner", owner).Debug("animation released")
	return true
}

func (v *Viewer) Playing() bool {
	p := v.player
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
