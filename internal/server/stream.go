// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// streamSession forwards the session's messages to the socket in order
// until the final message is sent or the client goes away. A client that
// leaves early tears the queue down.
func (s *Server) streamSession(conn *websocket.Conn) {
	id := conn.Params("id")
	log := s.log.With(zap.String("session_id", id))

	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	// The client never sends anything we use; reading only detects the close.
	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	final := false
	defer func() {
		if !final {
			s.stream.Close(id)
			log.Info("stream consumer left before the final message")
		}
		_ = conn.Close()
	}()

	for {
		msg, err := s.stream.Next(ctx, id)
		if err != nil {
			log.Debug("stream ended", zap.Error(err))
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Warn("writing stream message", zap.Error(err))
			return
		}
		if msg.IsFinal {
			final = true
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete"))
			return
		}
	}
}
