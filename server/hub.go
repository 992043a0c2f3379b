package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/label"
	"gapview/model"
	"gapview/profile"
	"gapview/viewer"
)

const (
	writeWait = 10 * time.Second
	// 发送队列，渲染端跟不上时丢弃新消息
	outBuffer = 32
)

// Hub serves one websocket connection: requests are handled on one goroutine,
// every write to the connection happens on another.
type Hub struct {
	id   string
	conn *websocket.Conn
	s    *Server

	// request
	msg chan model.Msg
	// response，文本与二进制帧共用一个队列以保持顺序
	out  chan outbound
	logs chan bus.Message

	done      chan struct{}
	closeOnce sync.Once
}

type outbound struct {
	reply *model.Msg
	frame []byte
}

type profileRequest struct {
	Policy    string  `json:"policy"`
	Thickness float64 `json:"thickness"`
}

type Status struct {
	Frames  int      `json:"frames"`
	Index   int      `json:"index"`
	Playing bool     `json:"playing"`
	Live    []string `json:"live"`
	Pending int      `json:"pending"`
}

func NewHub(conn *websocket.Conn, s *Server) *Hub {
	h := &Hub{
		id:   uuid.New().String(),
		conn: conn,
		s:    s,
		msg:  make(chan model.Msg, 10),
		out:  make(chan outbound, outBuffer),
		logs: make(chan bus.Message, 64),
		done: make(chan struct{}),
	}
	s.b.Subscribe(h.id, h.logs)
	s.v.Watch(h.id, h.onChange)
	return h
}

func (h *Hub) close() {
	h.closeOnce.Do(func() {
		h.s.b.Unsubscribe(h.id)
		h.s.v.Unwatch(h.id)
		h.s.v.Release(h.id)
		close(h.done)
		h.conn.Close()
	})
}

// hello 连接建立后推送当前状态与当前帧
func (h *Hub) hello() {
	h.reply("status", h.status())
	if h.s.v.Len() > 0 {
		h.pushCurrent()
	}
}

func (h *Hub) handleResponse() {
	for {
		select {
		case o := <-h.out:
			if o.reply != nil {
				h.write(func() error { return h.conn.WriteJSON(o.reply) })
			} else {
				h.write(func() error { return h.conn.WriteMessage(websocket.BinaryMessage, o.frame) })
			}
		case m := <-h.logs:
			content, _ := json.Marshal(m)
			reply := model.Msg{Type: "log", Content: string(content)}
			h.write(func() error { return h.conn.WriteJSON(&reply) })
		case <-h.done:
			return
		}
	}
}

func (h *Hub) write(f func() error) {
	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := f(); err != nil {
		log.WithFields(log.Fields{"hub": h.id, "err": err}).Warn("websocket write failed")
		h.close()
	}
}

func (h *Hub) handleRequest() {
	for {
		select {
		case msg := <-h.msg:
			if err := h.dispatch(msg); err != nil {
				h.reply("error", err.Error())
			}
		case <-h.done:
			return
		}
	}
}

func (h *Hub) dispatch(msg model.Msg) error {
	v := h.s.v
	switch msg.Type {
	case "load":
		if _, err := v.Load(strings.TrimSpace(msg.Content)); err != nil {
			return err
		}
	case "profile":
		var req profileRequest
		if err := json.Unmarshal([]byte(msg.Content), &req); err != nil {
			return fmt.Errorf("%w: profile request: %v", model.ErrInvalidArgument, err)
		}
		p, err := profile.ParsePolicy(req.Policy)
		if err != nil {
			return err
		}
		if err := v.SetProfile(p, req.Thickness); err != nil {
			return err
		}
		if v.Len() > 0 {
			if _, err := v.Rebuild(); err != nil {
				return err
			}
		}
	case "detail":
		d, err := label.ParseDetail(msg.Content)
		if err != nil {
			return err
		}
		if err := v.SetDetail(d); err != nil {
			return err
		}
	case "frame":
		i, err := strconv.Atoi(strings.TrimSpace(msg.Content))
		if err != nil {
			return fmt.Errorf("%w: frame %q", model.ErrInvalidArgument, msg.Content)
		}
		if !v.SetIndex(i) {
			return fmt.Errorf("%w: frame %d of %d", model.ErrNotFound, i, v.Len())
		}
		h.pushCurrent()
	case "play":
		interval := h.s.interval
		if ms, err := strconv.Atoi(strings.TrimSpace(msg.Content)); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
		v.Play(h.id, interval, h.pushFrame)
		h.reply("status", h.status())
	case "pause":
		v.Pause()
		h.reply("status", h.status())
	case "purge":
		n := h.s.sup.Purge()
		log.WithFields(log.Fields{"hub": h.id, "purged": n}).Info("retired tasks purged")
		h.reply("status", h.status())
	case "status":
		h.reply("status", h.status())
	default:
		log.WithField("type", msg.Type).Warn("no such type")
		return fmt.Errorf("%w: message type %q", model.ErrNotImplemented, msg.Type)
	}
	return nil
}

func (h *Hub) onChange(c viewer.Change) {
	switch c.Kind {
	case viewer.Loaded, viewer.Rebuilt:
		content, _ := json.Marshal(c)
		h.reply(string(c.Kind), string(content))
	}
	h.pushCurrent()
}

func (h *Hub) status() string {
	v := h.s.v
	content, _ := json.Marshal(Status{
		Frames:  v.Len(),
		Index:   v.Current(),
		Playing: v.Playing(),
		Live:    h.s.sup.Live(),
		Pending: h.s.sup.Pending(),
	})
	return string(content)
}

// reply 可能在监督 goroutine 中调用，不能阻塞
func (h *Hub) reply(typ, content string) {
	select {
	case h.out <- outbound{reply: &model.Msg{Type: typ, Content: content}}:
	case <-h.done:
	default:
		log.WithFields(log.Fields{"hub": h.id, "type": typ}).Warn("reply dropped")
	}
}

func (h *Hub) pushCurrent() {
	i := h.s.v.Current()
	m, err := h.s.v.Frame(i)
	if err != nil {
		return
	}
	h.pushFrame(i, m)
}

// pushFrame 非阻塞，缓冲已满时丢弃
func (h *Hub) pushFrame(i int, m *model.MeshFrame) {
	data, err := EncodeFrame(i, h.s.v.Len(), m, h.s.v.Labels())
	if err != nil {
		log.WithFields(log.Fields{"hub": h.id, "err": err}).Error("frame encoding failed")
		return
	}
	select {
	case h.out <- outbound{frame: data}:
	case <-h.done:
	default:
		log.WithField("hub", h.id).Debug("frame dropped")
	}
}
