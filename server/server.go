package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/model"
	"gapview/task"
	"gapview/viewer"
)

type Server struct {
	addr     string
	upgrader websocket.Upgrader

	v   *viewer.Viewer
	b   *bus.Bus
	sup *task.Supervisor

	// 默认播放间隔
	interval time.Duration
	metrics  bool
}

func NewServer(addr string, upgrader websocket.Upgrader, v *viewer.Viewer, b *bus.Bus, sup *task.Supervisor) *Server {
	return &Server{
		addr:     addr,
		upgrader: upgrader,
		v:        v,
		b:        b,
		sup:      sup,
		interval: 100 * time.Millisecond,
		metrics:  true,
	}
}

func (s *Server) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

func (s *Server) EnableMetrics(on bool) {
	s.metrics = on
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Error("websocket upgrade failed")
		return
	}
	hub := NewHub(conn, s)
	defer hub.close()

	go hub.handleRequest()
	go hub.handleResponse()
	hub.hello()
	for {
		var msg model.Msg
		if err = conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("err", err).Warn("websocket read failed")
			}
			return
		}
		select {
		case hub.msg <- msg:
		case <-hub.done:
			return
		}
	}
}

// Handler routes /ws and, when enabled, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	if s.metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

func (s *Server) Serve() error {
	log.WithField("addr", s.addr).Info("server listening")
	return http.ListenAndServe(s.addr, s.Handler())
}
