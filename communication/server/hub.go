package server

import (
	"sync"
	"time"

	"damatronics/gamemaster"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

type subscriber struct {
	conn *websocket.Conn
	send chan gamemaster.Event
}

// hub fans game master events out to every connected socket. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type hub struct {
	mutex       sync.Mutex
	subscribers map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subscribers: map[*subscriber]struct{}{}}
}

func (h *hub) publish(ev gamemaster.Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for s := range h.subscribers {
		select {
		case s.send <- ev:
		default:
			log.Warn().Str("remote", s.conn.RemoteAddr().String()).Msgf("dropped %s event", ev.Kind)
		}
	}
}

func (h *hub) add(conn *websocket.Conn) *subscriber {
	s := &subscriber{conn: conn, send: make(chan gamemaster.Event, sendBuffer)}
	h.mutex.Lock()
	h.subscribers[s] = struct{}{}
	h.mutex.Unlock()
	go s.writeLoop()
	return s
}

func (h *hub) remove(s *subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
	}
}

func (h *hub) count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subscribers)
}

func (s *subscriber) writeLoop() {
	defer s.conn.Close()
	for ev := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("event socket write failed")
			return
		}
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
