package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// AuditHandler exposes the read side of the audit trail.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs a handler instance.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register binds the audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	resp, err := h.service.List(requestContext(c), dto.AuditListRequest{
		Page:     page,
		PageSize: pageSize,
		Action:   c.Query("action"),
		RollNo:   c.Query("roll_no"),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("audit list failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "audit trail", resp)
}
