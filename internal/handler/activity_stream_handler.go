package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/service"
)

const streamPingInterval = 30 * time.Second

// ActivityStreamHandler pushes newly recorded activities over a websocket.
type ActivityStreamHandler struct {
	events service.ActivityEventBus
	logger zerolog.Logger
}

// NewActivityStreamHandler constructs the live stream handler.
func NewActivityStreamHandler(events service.ActivityEventBus, logger zerolog.Logger) *ActivityStreamHandler {
	return &ActivityStreamHandler{
		events: events,
		logger: logger.With().Str("component", "activity_stream_handler").Logger(),
	}
}

// Register binds the stream route. It must be registered before any
// parameterised activity routes.
func (h *ActivityStreamHandler) Register(router fiber.Router) {
	router.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(middleware.LocalCorrelationID, middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/stream", websocket.New(h.handleConnection))
}

func (h *ActivityStreamHandler) handleConnection(conn *websocket.Conn) {
	correlation, _ := conn.Locals(middleware.LocalCorrelationID).(string)
	logger := h.logger.With().Str("correlation_id", correlation).Logger()

	updates, cancel := h.events.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("activity stream connected")
	defer logger.Info().Msg("activity stream disconnected")

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case activity, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(activity); err != nil {
				logger.Debug().Err(err).Msg("activity stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
