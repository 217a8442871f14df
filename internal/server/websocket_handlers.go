package server

import (
	"log/slog"

	"carlot/internal/middleware"
	"carlot/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CarFeedUpgrade rejects plain HTTP requests to the feed endpoint.
func (s *Server) CarFeedUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// CarFeedHandler streams car events to the connection. The feed is public;
// the session user, if any, is only recorded on the client.
func (s *Server) CarFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals(middleware.LocalUserID).(uint)

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("car feed registration failed",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// The connection goes back to the pool when this handler returns,
		// so wait for the writer before leaving.
		written := make(chan struct{})
		go func() {
			defer close(written)
			client.WritePump()
		}()
		client.ReadPump()
		<-written
	})
}
