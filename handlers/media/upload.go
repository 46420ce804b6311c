package media

import (
	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/services/media"
	"github.com/suhanipatel/faceglow-api/utils/response"
)

// Upload size caps per media kind
const (
	maxImageSize = 10 * 1024 * 1024  // 10MB
	maxVideoSize = 500 * 1024 * 1024 // 500MB
)

// MediaHandler handles admin media uploads for course and lesson assets
type MediaHandler struct {
	spaces *media.SpacesClient
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(spaces *media.SpacesClient) *MediaHandler {
	return &MediaHandler{
		spaces: spaces,
	}
}

// Upload handles POST /api/v1/admin/media. The form carries the file and an
// optional folder ("courses", "lessons", "exercises"); the stored key is
// always generated server side.
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	if h.spaces == nil {
		return response.ServiceUnavailable(c, "Media storage is not configured")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "File is required")
	}

	if !media.IsAllowedMediaType(file.Filename) {
		return response.BadRequest(c, "Unsupported media type")
	}

	contentType := media.GetContentType(file.Filename)
	maxSize := int64(maxImageSize)
	if contentType == "video/mp4" || contentType == "video/quicktime" || contentType == "video/webm" {
		maxSize = maxVideoSize
	}
	if file.Size > maxSize {
		return response.BadRequest(c, "File size exceeds the allowed maximum")
	}

	folder := c.FormValue("folder", "courses")
	switch folder {
	case "courses", "lessons", "exercises":
	default:
		return response.BadRequest(c, "Invalid folder. Must be one of: courses, lessons, exercises")
	}

	fileContent, err := file.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to open file")
	}
	defer fileContent.Close()

	key := media.GenerateKey(folder, file.Filename)
	url, err := h.spaces.UploadFile(c.Context(), key, fileContent, contentType)
	if err != nil {
		return response.InternalServerError(c, "Failed to upload media")
	}

	return response.Created(c, fiber.Map{
		"key": key,
		"url": url,
	})
}

// Delete handles DELETE /api/v1/admin/media/:key
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	if h.spaces == nil {
		return response.ServiceUnavailable(c, "Media storage is not configured")
	}

	key := c.Params("*")
	if key == "" {
		return response.BadRequest(c, "Media key is required")
	}

	if err := h.spaces.DeleteFile(c.Context(), key); err != nil {
		return response.InternalServerError(c, "Failed to delete media")
	}

	return response.SuccessWithMessage(c, "Media deleted successfully", nil)
}
