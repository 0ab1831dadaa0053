package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/latemark-go-api/internal/middleware"
	"github.com/noah-isme/latemark-go-api/internal/service"
)

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:    localString(c, middleware.LocalActorID),
		Name:  localString(c, middleware.LocalActorName),
		Email: localString(c, middleware.LocalActorEmail),
		Role:  localString(c, middleware.LocalActorRole),
	}
}

func metaFromRequest(c *fiber.Ctx) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func localString(c *fiber.Ctx, key string) string {
	value := c.Locals(key)
	if value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", value)
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return value, nil
}
