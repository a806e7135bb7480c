package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/manas/ai/orchestrator"
)

const (
	maxMessageBytes = 32 << 20
	writeWait       = 10 * time.Second
)

// streamError is written in place of chunks when a turn cannot start.
type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type streamRequest struct {
	body *turnRequest
	err  error
}

// handleStream upgrades to a websocket. Each text frame is a turn request,
// answered by that turn's chunks in order. Closing the socket abandons the
// turn in flight.
func (s *Server) handleStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	authUser := authenticatedUser(c)
	reqs := make(chan streamRequest)
	go func() {
		defer cancel()
		defer close(reqs)

		conn.SetReadLimit(maxMessageBytes)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket read ended", "error", err)
				}
				return
			}

			var r streamRequest
			var body turnRequest
			if err := json.Unmarshal(data, &body); err != nil {
				r.err = err
			} else {
				r.body = &body
			}
			select {
			case reqs <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	for r := range reqs {
		if r.err != nil {
			if err := writeFrame(conn, streamError{Type: "error", Error: "invalid request: " + r.err.Error()}); err != nil {
				return nil
			}
			continue
		}
		if !s.streamTurn(ctx, conn, r.body.toTurnRequest(authUser)) {
			return nil
		}
	}
	return nil
}

// streamTurn forwards one turn's chunks. It returns false once the socket is unusable.
func (s *Server) streamTurn(ctx context.Context, conn *websocket.Conn, req *orchestrator.TurnRequest) bool {
	chunks, err := s.turns.StreamTurn(ctx, req)
	if err != nil {
		return writeFrame(conn, streamError{Type: "error", Error: err.Error()}) == nil
	}

	for chunk := range chunks {
		if err := writeFrame(conn, chunk); err != nil {
			slog.Debug("websocket write failed, abandoning turn", "turn_id", chunk.TurnID, "error", err)
			return false
		}
	}
	return ctx.Err() == nil
}

func writeFrame(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
