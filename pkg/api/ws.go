package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

// WSMessage is the envelope pushed to dashboard subscribers.
type WSMessage struct {
	Type    string      `json:"type"`              // e.g. nodes
	Payload interface{} `json:"payload,omitempty"` // arbitrary JSON
}

// Hub fans fleet updates out to connected dashboards. The last message is
// replayed to new subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	last     *WSMessage
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(msg WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(msg)
}

func (s *subscriber) writeLocked(msg WSMessage) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:  logger,
		subs: map[*subscriber]struct{}{},
	}
}

// HandleWS upgrades a dashboard connection and registers it.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	sub := &subscriber{conn: c}
	// hold the subscriber until the replay is written so a concurrent
	// Publish cannot overtake it
	sub.mu.Lock()
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	last := h.last
	h.mu.Unlock()
	h.log.WithField("remote", r.RemoteAddr).Debug("dashboard subscriber connected")
	if last != nil {
		err = sub.writeLocked(*last)
	}
	sub.mu.Unlock()
	if err != nil {
		h.drop(sub)
		return
	}
	go h.readLoop(sub)
}

// Publish sends msg to every subscriber and keeps it for late joiners.
func (h *Hub) Publish(msg WSMessage) {
	h.mu.Lock()
	h.last = &msg
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		if err := s.write(msg); err != nil {
			h.log.WithError(err).Debug("ws send failed")
			h.drop(s)
		}
	}
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[*subscriber]struct{}{}
	h.mu.Unlock()
	for s := range subs {
		_ = s.conn.Close()
	}
}

// readLoop only watches for the peer going away; dashboards send nothing.
func (h *Hub) readLoop(s *subscriber) {
	defer h.drop(s)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	_ = s.conn.Close()
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		h.log.Debug("dashboard subscriber disconnected")
	}
}
