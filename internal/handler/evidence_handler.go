package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// EvidenceHandler accepts evidence photo uploads for late marks.
type EvidenceHandler struct {
	service service.EvidenceService
	logger  zerolog.Logger
}

// NewEvidenceHandler constructs a handler instance.
func NewEvidenceHandler(service service.EvidenceService, logger zerolog.Logger) *EvidenceHandler {
	return &EvidenceHandler{
		service: service,
		logger:  logger.With().Str("component", "evidence_handler").Logger(),
	}
}

// Register binds the evidence routes.
func (h *EvidenceHandler) Register(router fiber.Router) {
	router.Post("/", h.upload)
}

func (h *EvidenceHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "photo file is required")
	}

	resp, err := h.service.Upload(requestContext(c), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEvidenceTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "evidence photo exceeds maximum allowed size")
		case errors.Is(err, service.ErrEvidenceTypeNotAllowed):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, "evidence must be an image")
		}
		h.logger.Error().Err(err).Msg("evidence upload failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evidence stored", resp)
}
