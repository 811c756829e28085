package handlers

import (
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"teamboard/internal/middleware"
	"teamboard/internal/models"
	"teamboard/pkg/logger"
)

const (
	maxUploadSize = 5 << 20
	uploadsPrefix = "/api/uploads/"
)

var allowedExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".pdf": true, ".txt": true}

func validateFile(file *multipart.FileHeader) error {
	// maksimal 5MB
	if file.Size > maxUploadSize {
		return models.Invalid("File size exceeds the limit of 5MB")
	}

	// cek ekstensi file
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return models.Invalid("File type not allowed")
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "image") &&
		!strings.Contains(contentType, "pdf") && !strings.HasPrefix(contentType, "text/") &&
		contentType != "application/octet-stream" {
		return models.Invalid("File must be an image, PDF or text file")
	}
	return nil
}

// UploadAttachment stores the multipart "file" field under the upload dir and
// records its URL on the task.
func (h *Handler) UploadAttachment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	taskID := c.Params("id")
	userID := middleware.UserID(c)

	// hanya owner dan member project yang boleh upload
	if err := h.deps.Tasks.Authorize(ctx, taskID, userID); err != nil {
		return respondError(c, err)
	}

	// ambil file dari form
	file, err := c.FormFile("file")
	if err != nil {
		logger.AuditLogger.Warn("Missing upload file", zap.Error(err))
		return message(c, fiber.StatusBadRequest, "Error uploading file")
	}
	if err := validateFile(file); err != nil {
		return respondError(c, err)
	}

	// nama file diganti dengan uuid
	newFilename := models.NewID() + strings.ToLower(filepath.Ext(file.Filename))
	filePath := filepath.Join(h.deps.Config.UploadDir, newFilename)
	if err := c.SaveFile(file, filePath); err != nil {
		logger.ErrorLogger.Error("Error saving file", zap.Error(err))
		return message(c, fiber.StatusInternalServerError, "Server error")
	}

	t, err := h.deps.Tasks.AddAttachment(ctx, taskID, userID, uploadsPrefix+newFilename)
	if err != nil {
		// hapus file jika gagal dicatat di task
		_ = os.Remove(filePath)
		return respondError(c, err)
	}
	logger.AuditLogger.Info("File uploaded", zap.String("filename", newFilename), zap.Int64("size", file.Size))
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) GetFile(c *fiber.Ctx) error {
	// cegah path traversal
	filename := filepath.Base(c.Params("filename"))
	if filename == "." || filename == string(filepath.Separator) || strings.HasPrefix(filename, "..") {
		return message(c, fiber.StatusNotFound, "File not found")
	}
	filePath := filepath.Join(h.deps.Config.UploadDir, filename)
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return message(c, fiber.StatusNotFound, "File not found")
		}
		return respondError(c, err)
	}
	return c.SendFile(filePath)
}
