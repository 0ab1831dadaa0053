package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// InsightsHandler exposes the derived risk report.
type InsightsHandler struct {
	service service.InsightsService
	logger  zerolog.Logger
}

// NewInsightsHandler constructs a handler instance.
func NewInsightsHandler(service service.InsightsService, logger zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		service: service,
		logger:  logger.With().Str("component", "insights_handler").Logger(),
	}
}

// Register binds the insights routes.
func (h *InsightsHandler) Register(router fiber.Router) {
	router.Get("/", h.insights)
}

func (h *InsightsHandler) insights(c *fiber.Ctx) error {
	withNarrative := c.QueryBool("narrative", false)

	resp, err := h.service.Insights(requestContext(c), withNarrative)
	if err != nil {
		h.logger.Error().Err(err).Msg("insights generation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "tardiness insights", resp)
}
