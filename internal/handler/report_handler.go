package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// ReportHandler exposes the derived reporting endpoints.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a handler instance.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register binds the report routes.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/late-today", h.lateToday)
	router.Get("/period/:period", h.period)
	router.Get("/leaderboard", h.leaderboard)
	router.Get("/financial-summary", h.financialSummary)
}

func (h *ReportHandler) lateToday(c *fiber.Ctx) error {
	resp, err := h.service.LateToday(requestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("late today report failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "students late today", resp)
}

func (h *ReportHandler) period(c *fiber.Ctx) error {
	resp, err := h.service.RecordsForPeriod(requestContext(c), c.Params("period"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownPeriod) {
			return utils.SendError(c, fiber.StatusBadRequest, "period must be week, month or semester")
		}
		h.logger.Error().Err(err).Msg("period report failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "late records for period", resp)
}

func (h *ReportHandler) leaderboard(c *fiber.Ctx) error {
	resp, err := h.service.Leaderboard(requestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("leaderboard report failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "tardiness leaderboard", resp)
}

func (h *ReportHandler) financialSummary(c *fiber.Ctx) error {
	resp, err := h.service.FinancialSummary(requestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("financial summary failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "fine collection summary", resp)
}
