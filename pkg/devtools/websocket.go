package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// handleEvents upgrades the request and streams events for one runtime:
// the buffered ring first, then live events as they arrive.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, replay, ok := s.registry.subscribe(id)
	if !ok {
		http.Error(w, "unknown runtime", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.unsubscribe(sub)
		s.logger.Error("websocket upgrade failed", "runtime", id, "error", err)
		return
	}
	st := &stream{
		server: s,
		conn:   conn,
		sub:    sub,
		done:   make(chan struct{}),
		logger: s.logger.With("runtime", id),
	}
	go st.readLoop()
	st.writeLoop(replay)
}

// stream is one live event subscription over a websocket. The handler
// goroutine owns all writes; readLoop only watches for the peer going
// away.
type stream struct {
	server *Server
	conn   *websocket.Conn
	sub    *subscriber
	done   chan struct{}
	logger *slog.Logger
}

// readLoop consumes inbound frames until the connection dies. The
// stream is one-way; reads exist to process control frames and to
// notice disconnects.
func (st *stream) readLoop() {
	defer close(st.done)

	pongWait := 2 * st.server.config.HeartbeatInterval
	st.conn.SetReadLimit(512)
	st.conn.SetReadDeadline(time.Now().Add(pongWait))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := st.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				st.logger.Debug("event stream read ended", "error", err)
			}
			return
		}
	}
}

// writeLoop replays the buffered events, then forwards live ones,
// pinging on idle. It returns when the subscription closes, the peer
// disconnects, or a write fails.
func (st *stream) writeLoop(replay []EventRecord) {
	ticker := time.NewTicker(st.server.config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		st.server.registry.unsubscribe(st.sub)
		st.conn.Close()
	}()

	for _, rec := range replay {
		if err := st.writeRecord(rec); err != nil {
			return
		}
	}
	for {
		select {
		case rec, ok := <-st.sub.ch:
			if !ok {
				// Dropped for falling behind, or the runtime was
				// unregistered. Tell the peer and stop.
				st.writeClose(websocket.CloseGoingAway, "event stream closed")
				return
			}
			if err := st.writeRecord(rec); err != nil {
				return
			}
		case <-ticker.C:
			st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteTimeout))
			if err := st.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-st.done:
			return
		}
	}
}

func (st *stream) writeRecord(rec EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteTimeout))
	if err := st.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		st.logger.Debug("event stream write failed", "error", err)
		return err
	}
	return nil
}

func (st *stream) writeClose(code int, reason string) {
	st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteTimeout))
	st.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
