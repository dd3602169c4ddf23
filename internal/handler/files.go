package handler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clearwave/api/internal/audio"
	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/middleware"
	"github.com/clearwave/api/internal/model"
	"github.com/clearwave/api/internal/service"
	"github.com/clearwave/api/internal/storage/sqlite"
	"github.com/clearwave/api/pkg/response"
)

const maxUploadSize = 200 * 1024 * 1024 // 200MB

type FileHandler struct {
	service   *service.FileService
	validator *validator.Validate
}

func NewFileHandler(svc *service.FileService, v *validator.Validate) *FileHandler {
	return &FileHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/files
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	tmpDir, err := os.MkdirTemp("", "upload_")
	if err != nil {
		return response.ServiceError(c, "Failed to stage upload")
	}
	defer os.RemoveAll(tmpDir)

	srcPath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, srcPath); err != nil {
		return response.ServiceError(c, "Failed to stage upload")
	}

	created, err := h.service.Upload(c.Context(), userID, srcPath, file.Filename)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.Created(c, model.UploadResponse{
		FileID:      created.ID,
		StorageKey:  created.StorageKey,
		Status:      created.Status,
		DisplayName: created.DisplayName,
		Duration:    created.Duration,
	})
}

// List handles GET /api/files
func (h *FileHandler) List(c *fiber.Ctx) error {
	files, err := h.service.List(c.Context(), middleware.UserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return response.OK(c, fiber.Map{"files": files})
}

// Get handles GET /api/files/:id
func (h *FileHandler) Get(c *fiber.Ctx) error {
	fileID, err := parseFileID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid file id", nil)
	}

	file, err := h.service.Get(c.Context(), middleware.UserID(c), fileID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return response.OK(c, file)
}

// Download handles GET /api/files/:id/download. The optional result query
// parameter selects an operation's output instead of the source; a Range
// header selects a byte range of the blob.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	fileID, err := parseFileID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid file id", nil)
	}

	result := model.Operation(c.Query("result"))
	if result != "" && !result.Valid() {
		return response.ValidationError(c, "Unknown result type", nil)
	}

	offset, length, ranged := parseRangeHeader(c.Get("Range"))

	obj, name, err := h.service.Download(c.Context(), middleware.UserID(c), fileID, result, offset, length)
	if err != nil {
		return mapServiceError(c, err)
	}

	return sendBlob(c, obj, name, ranged)
}

// DownloadByKey handles GET /api/files/content/:userId/:filename. The route is
// unauthenticated: it serves machine consumers addressed by storage key, like
// the transcription service fetching audio it was handed a URL for.
func (h *FileHandler) DownloadByKey(c *fiber.Ctx) error {
	userID := c.Params("userId")
	filename := c.Params("filename")
	if userID == "" || filename == "" {
		return response.ValidationError(c, "Missing storage key", nil)
	}

	obj, name, err := h.service.DownloadByKey(c.Context(), userID+"/"+filename)
	if err != nil {
		return mapServiceError(c, err)
	}

	return sendBlob(c, obj, name, false)
}

// sendBlob streams an opened blob, answering ranged reads with the range
// metadata the store reported.
func sendBlob(c *fiber.Ctx, obj *client.Object, name string, ranged bool) error {
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	if ranged {
		c.Status(fiber.StatusPartialContent)
		if obj.ContentRange != "" {
			c.Set(fiber.HeaderContentRange, obj.ContentRange)
		}
	}
	if obj.ContentLength > 0 {
		return c.SendStream(obj.Body, int(obj.ContentLength))
	}
	return c.SendStream(obj.Body)
}

// Delete handles DELETE /api/files/:id
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	fileID, err := parseFileID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid file id", nil)
	}

	if err := h.service.Delete(c.Context(), middleware.UserID(c), fileID); err != nil {
		return mapServiceError(c, err)
	}
	return response.NoContent(c)
}

func parseFileID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// parseRangeHeader understands single "bytes=start-end" ranges, including the
// suffix form "bytes=-N" (reported as a negative offset); anything else falls
// back to a whole-object read.
func parseRangeHeader(header string) (offset, length int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	if parts[0] == "" {
		suffix, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || suffix <= 0 {
			return 0, 0, false
		}
		return -suffix, 0, true
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if parts[1] == "" {
		return start, 0, true
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end - start + 1, true
}

// mapServiceError translates service-layer sentinels into HTTP responses.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, sqlite.ErrNotFound), errors.Is(err, client.ErrObjectNotFound):
		return response.NotFound(c, "File not found")
	case errors.Is(err, service.ErrFileAccessDenied):
		return response.Forbidden(c, "File belongs to another user")
	case errors.Is(err, service.ErrOperationInProgress):
		return response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvalidOperation), errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrUnknownPreset):
		return response.ValidationError(c, err.Error(), nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
