package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	// Default time allowed between frames or pongs from the peer.
	wsPongWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleChatWS serves the websocket transport: every text frame is one turn with the same
// request and reply shapes as POST /api/chat. Turns on one connection run sequentially.
func (h *Handler) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	// Server shutdown cancels the request context; closing the conn unblocks the read.
	stopWatch := context.AfterFunc(r.Context(), func() { _ = conn.Close() })
	defer stopWatch()

	conn.SetReadLimit(maxBodyBytes)
	pongWait := h.pongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, pongWait*9/10, done)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debugw("websocket read ended", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var (
			req  chatRequest
			body any
		)
		if err := json.Unmarshal(data, &req); err != nil {
			body = validationResponse{Errors: map[string][]string{"body": {"invalid JSON"}}}
		} else {
			_, body = h.turn(r.Context(), req)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(body); err != nil {
			h.logger.Warnw("websocket write failed", "error", err)
			return
		}
		// The turn may have outlasted the previous deadline.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// pingLoop keeps the peer's pongs flowing so the read deadline only expires on dead peers.
func (h *Handler) pingLoop(conn *websocket.Conn, period time.Duration, done <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			// WriteControl is safe to call concurrently with WriteJSON.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
