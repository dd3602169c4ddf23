package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clearwave/api/internal/middleware"
	"github.com/clearwave/api/internal/service"
	"github.com/clearwave/api/pkg/response"
)

type TranscriptionHandler struct {
	service   *service.TranscriptionService
	validator *validator.Validate
}

func NewTranscriptionHandler(svc *service.TranscriptionService, v *validator.Validate) *TranscriptionHandler {
	return &TranscriptionHandler{
		service:   svc,
		validator: v,
	}
}

type startTranscriptionRequest struct {
	Language string `json:"language"`
}

type transcriptionCallbackRequest struct {
	Result string `json:"result" validate:"required"`
}

// Start handles POST /api/files/:id/transcription
func (h *TranscriptionHandler) Start(c *fiber.Ctx) error {
	fileID, err := parseFileID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid file id", nil)
	}

	var req startTranscriptionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.service.Start(c.Context(), middleware.UserID(c), []int64{fileID}, req.Language); err != nil {
		return mapServiceError(c, err)
	}
	return response.Accepted(c, fiber.Map{"fileId": fileID})
}

// Callback handles POST /api/files/callback/:userId/:filename. The
// transcription service calls it back with the finished text; the route is
// keyed by storage key rather than file id because that is all the external
// service knows.
func (h *TranscriptionHandler) Callback(c *fiber.Ctx) error {
	userID := c.Params("userId")
	filename := c.Params("filename")
	if userID == "" || filename == "" {
		return response.ValidationError(c, "Missing storage key", nil)
	}

	var req transcriptionCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.service.HandleCallback(c.Context(), userID+"/"+filename, req.Result); err != nil {
		return mapServiceError(c, err)
	}
	return response.OK(c, fiber.Map{"status": "recorded"})
}
