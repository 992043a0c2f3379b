// Package bus carries user facing status messages.
package bus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gapview/deque"
)

type Kind string

const (
	Info    Kind = "info"
	Warning Kind = "warning"
	Error   Kind = "error"
	Success Kind = "success"
	Event   Kind = "event"
)

// ParseKind maps a name to a Kind, anything unknown is Info.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Warning, Error, Success, Event:
		return k
	}
	return Info
}

type Message struct {
	Text string    `json:"text" msgpack:"text"`
	Kind Kind      `json:"kind" msgpack:"kind"`
	Time time.Time `json:"time" msgpack:"time"`
}

type Publisher interface {
	Publish(m Message)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(m Message)

func (f PublisherFunc) Publish(m Message) {
	f(m)
}

// Discard drops every message.
var Discard Publisher = PublisherFunc(func(Message) {})

// Publishf is a shorthand for publishing a formatted message.
func Publishf(p Publisher, kind Kind, format string, args ...interface{}) {
	if p == nil {
		return
	}
	p.Publish(Message{Text: fmt.Sprintf(format, args...), Kind: kind})
}

type Stats struct {
	Published   int          `json:"published"`
	Dropped     int          `json:"dropped"`
	Subscribers int          `json:"subscribers"`
	ByKind      map[Kind]int `json:"byKind"`
}

// Bus fans messages out to subscribers without blocking and keeps a bounded history.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]chan<- Message
	history *deque.ArrDeque[Message]
	stats   Stats
	closed  bool
}

func New(historySize int) *Bus {
	return &Bus{
		subs:    map[string]chan<- Message{},
		history: deque.NewArrDeque[Message](historySize),
		stats:   Stats{ByKind: map[Kind]int{}},
	}
}

func (b *Bus) Publish(m Message) {
	if m.Kind == "" {
		m.Kind = Info
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	logMessage(m)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history.Push(m)
	b.stats.Published++
	b.stats.ByKind[m.Kind]++
	for id, ch := range b.subs {
		select {
		case ch <- m:
		default:
			b.stats.Dropped++
			log.WithField("subscriber", id).Debug("subscriber full, message dropped")
		}
	}
}

func logMessage(m Message) {
	entry := log.WithField("kind", m.Kind)
	switch m.Kind {
	case Error:
		entry.Error(m.Text)
	case Warning:
		entry.Warn(m.Text)
	case Event:
		entry.Debug(m.Text)
	default:
		entry.Info(m.Text)
	}
}

// Subscribe registers ch under id, replacing any earlier channel with that id.
func (b *Bus) Subscribe(id string, ch chan<- Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.subs[id] = ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// History returns the retained messages, oldest first.
func (b *Bus) History() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return deque.Slice[Message](b.history)
}

func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Subscribers = len(b.subs)
	s.ByKind = make(map[Kind]int, len(b.stats.ByKind))
	for k, v := range b.stats.ByKind {
		s.ByKind[k] = v
	}
	return s
}

// Close detaches all subscribers; later messages are only logged.
// Subscriber channels are not closed, they belong to their owners.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[string]chan<- Message{}
}
