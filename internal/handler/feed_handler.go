package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/middleware"
	"github.com/noah-isme/latemark-go-api/internal/service"
)

const feedPingInterval = 30 * time.Second

// FeedHandler upgrades dashboard clients onto the live ledger feed.
type FeedHandler struct {
	service service.FeedService
	logger  zerolog.Logger
}

// NewFeedHandler constructs a handler instance.
func NewFeedHandler(service service.FeedService, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		service: service,
		logger:  logger.With().Str("component", "feed_handler").Logger(),
	}
}

// Register binds the websocket feed route.
func (h *FeedHandler) Register(router fiber.Router) {
	router.Use("/feed", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/feed", websocket.New(h.handleConnection))
}

func (h *FeedHandler) handleConnection(conn *websocket.Conn) {
	actor := localStringFromConn(conn, middleware.LocalActorID)
	h.logger.Info().Str("actor_id", actor).Msg("feed websocket connected")

	events, cleanup := h.service.Subscribe()
	defer cleanup()

	done := make(chan struct{})

	// Drain client frames so close and pong handling keep working.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug().Err(err).Msg("feed ping failed")
				return
			}
		case <-done:
			h.logger.Info().Str("actor_id", actor).Msg("feed websocket disconnected")
			return
		}
	}
}

func localStringFromConn(conn *websocket.Conn, key string) string {
	if value := conn.Locals(key); value != nil {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}
