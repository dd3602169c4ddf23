package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clearwave/api/internal/middleware"
	"github.com/clearwave/api/internal/model"
	"github.com/clearwave/api/internal/service"
	"github.com/clearwave/api/pkg/response"
)

type ProcessHandler struct {
	service   *service.ProcessingService
	validator *validator.Validate
}

func NewProcessHandler(svc *service.ProcessingService, v *validator.Validate) *ProcessHandler {
	return &ProcessHandler{
		service:   svc,
		validator: v,
	}
}

// RemoveNoise handles POST /api/files/:id/noise-removal
func (h *ProcessHandler) RemoveNoise(c *fiber.Ctx) error {
	return h.submit(c, model.OperationNoiseRemoval, "")
}

// RemoveVocals handles POST /api/files/:id/vocal-removal
func (h *ProcessHandler) RemoveVocals(c *fiber.Ctx) error {
	return h.submit(c, model.OperationVocalRemoval, "")
}

// RemoveMelody handles POST /api/files/:id/melody-removal
func (h *ProcessHandler) RemoveMelody(c *fiber.Ctx) error {
	return h.submit(c, model.OperationMelodyRemoval, "")
}

// Enhance handles POST /api/files/:id/enhancement
func (h *ProcessHandler) Enhance(c *fiber.Ctx) error {
	var req model.EnhanceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return h.submit(c, model.OperationEnhancement, req.Preset)
}

// Presets handles GET /api/presets
func (h *ProcessHandler) Presets(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"presets": h.service.Presets()})
}

func (h *ProcessHandler) submit(c *fiber.Ctx, op model.Operation, preset string) error {
	fileID, err := parseFileID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid file id", nil)
	}

	resp, err := h.service.Submit(c.Context(), middleware.UserID(c), fileID, op, preset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return response.Accepted(c, resp)
}
