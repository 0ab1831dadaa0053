package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/repository"
	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// LedgerHandler exposes the mark-late, undo and fine payment endpoints.
type LedgerHandler struct {
	service service.LedgerService
	logger  zerolog.Logger
}

// NewLedgerHandler constructs a handler instance.
func NewLedgerHandler(service service.LedgerService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		logger:  logger.With().Str("component", "ledger_handler").Logger(),
	}
}

// Register binds the ledger routes.
func (h *LedgerHandler) Register(router fiber.Router) {
	router.Post("/mark-late", h.markLate)
	router.Post("/undo-late/:rollNo", h.undoLate)
	router.Post("/pay-fine", h.payFine)
	router.Get("/students/:rollNo", h.getStudent)
}

func (h *LedgerHandler) markLate(c *fiber.Ctx) error {
	var req dto.MarkLateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.MarkLate(requestContext(c), req, actorFromContext(c), metaFromRequest(c))
	if err != nil {
		return h.sendLedgerError(c, err)
	}

	status := fiber.StatusOK
	if resp.Registered {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, resp.Message, resp)
}

func (h *LedgerHandler) undoLate(c *fiber.Ctx) error {
	rollNo := c.Params("rollNo")

	resp, err := h.service.UndoLate(requestContext(c), rollNo, actorFromContext(c), metaFromRequest(c))
	if err != nil {
		return h.sendLedgerError(c, err)
	}

	return utils.SendSuccess(c, "late entry undone", resp)
}

func (h *LedgerHandler) payFine(c *fiber.Ctx) error {
	var req dto.PayFineRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.PayFine(requestContext(c), req, actorFromContext(c), metaFromRequest(c))
	if err != nil {
		return h.sendLedgerError(c, err)
	}

	return utils.SendSuccess(c, "fine payment recorded", resp)
}

func (h *LedgerHandler) getStudent(c *fiber.Ctx) error {
	resp, err := h.service.GetStudent(requestContext(c), c.Params("rollNo"))
	if err != nil {
		return h.sendLedgerError(c, err)
	}

	return utils.SendSuccess(c, "student record", resp)
}

// sendLedgerError maps service errors onto HTTP statuses. Business
// rejections carry their structured context in the response data.
func (h *LedgerHandler) sendLedgerError(c *fiber.Ctx, err error) error {
	var dupErr *service.DuplicateEventError
	if errors.As(err, &dupErr) {
		return utils.SendErrorWithData(c, fiber.StatusConflict, "student already marked late today", dupErr.Info)
	}

	var winErr *service.WindowExpiredError
	if errors.As(err, &winErr) {
		return utils.SendErrorWithData(c, fiber.StatusConflict, "undo window has expired", winErr.Info)
	}

	var regErr *service.RegistrationError
	if errors.As(err, &regErr) {
		return utils.SendErrorWithData(c, fiber.StatusBadRequest, "registration details required", fiber.Map{
			"roll_no": regErr.RollNo,
			"missing": regErr.Missing,
		})
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrNothingToUndo):
		return utils.SendError(c, fiber.StatusNotFound, "no late entry recorded today")
	case errors.Is(err, service.ErrNoPendingFines):
		return utils.SendError(c, fiber.StatusConflict, "student has no pending fines")
	case errors.Is(err, service.ErrPaymentExceedsFines):
		return utils.SendError(c, fiber.StatusBadRequest, "payment exceeds outstanding fines")
	case errors.Is(err, repository.ErrConflict):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "ledger busy, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "ledger store timed out, please retry")
	}

	h.logger.Error().Err(err).Str("path", c.Path()).Msg("ledger operation failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
