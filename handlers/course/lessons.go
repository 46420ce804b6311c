package course

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/services"
	"github.com/suhanipatel/faceglow-api/utils/middleware"
	"github.com/suhanipatel/faceglow-api/utils/response"
	"github.com/suhanipatel/faceglow-api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// toJSONArray converts ordered step strings into a jsonb column value
func toJSONArray(items []string) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// LessonHandler handles lesson and exercise requests
type LessonHandler struct {
	db        *gorm.DB
	access    *services.AccessService
	validator *validation.Validator
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(db *gorm.DB, accessService *services.AccessService) *LessonHandler {
	return &LessonHandler{
		db:        db,
		access:    accessService,
		validator: validation.NewValidator(),
	}
}

// LessonRequest represents the body for creating or updating a lesson or
// exercise
type LessonRequest struct {
	Title        string   `json:"title" validate:"required,min=1,max=255"`
	Description  string   `json:"description" validate:"omitempty,max=5000"`
	Duration     int      `json:"duration" validate:"min=0"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	ImageURL     string   `json:"image_url" validate:"omitempty,url"`
	VideoURL     string   `json:"video_url" validate:"omitempty,url"`
	Instructions []string `json:"instructions"`
	Benefits     []string `json:"benefits"`
	Category     string   `json:"category" validate:"omitempty,max=50"`
	TargetArea   string   `json:"target_area" validate:"omitempty,max=50"`
}

// GetLesson handles GET /api/v1/lessons/:id. The video URL is withheld
// unless the caller has access to a course containing the lesson.
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	id := c.Params("id")

	var lesson model.Lesson
	if err := h.db.First(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	userID, _ := middleware.GetUserID(c)
	if !h.access.HasAccessToLesson(c.Context(), userID, lesson.ID) {
		lesson.VideoURL = ""
	}

	return response.Success(c, lesson)
}

// GetExercise handles GET /api/v1/exercises/:id with the same gating
func (h *LessonHandler) GetExercise(c *fiber.Ctx) error {
	id := c.Params("id")

	var exercise model.Exercise
	if err := h.db.First(&exercise, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Exercise not found")
		}
		return response.InternalServerError(c, "Failed to fetch exercise")
	}

	userID, _ := middleware.GetUserID(c)
	if !h.access.HasAccessToExercise(c.Context(), userID, exercise.ID) {
		exercise.VideoURL = ""
	}

	return response.Success(c, exercise)
}

// ListLessons handles GET /api/v1/admin/lessons
func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	var lessons []model.Lesson
	if err := h.db.Order("created_at DESC").Find(&lessons).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch lessons")
	}
	return response.Success(c, lessons)
}

// ListExercises handles GET /api/v1/admin/exercises
func (h *LessonHandler) ListExercises(c *fiber.Ctx) error {
	var exercises []model.Exercise
	if err := h.db.Order("created_at DESC").Find(&exercises).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch exercises")
	}
	return response.Success(c, exercises)
}

// CreateLesson handles POST /api/v1/admin/lessons
func (h *LessonHandler) CreateLesson(c *fiber.Ctx) error {
	var req LessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	instructions, err := toJSONArray(req.Instructions)
	if err != nil {
		return response.BadRequest(c, "Invalid instructions")
	}
	benefits, err := toJSONArray(req.Benefits)
	if err != nil {
		return response.BadRequest(c, "Invalid benefits")
	}

	lesson := model.Lesson{
		Title:        validation.SanitizeString(req.Title),
		Description:  validation.SanitizeString(req.Description),
		Duration:     req.Duration,
		Difficulty:   req.Difficulty,
		ImageURL:     req.ImageURL,
		VideoURL:     req.VideoURL,
		Instructions: instructions,
		Benefits:     benefits,
		Category:     req.Category,
		TargetArea:   req.TargetArea,
	}

	if err := h.db.Create(&lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to create lesson")
	}
	return response.Created(c, lesson)
}

// UpdateLesson handles PUT /api/v1/admin/lessons/:id
func (h *LessonHandler) UpdateLesson(c *fiber.Ctx) error {
	id := c.Params("id")

	var req LessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var lesson model.Lesson
	if err := h.db.First(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	instructions, err := toJSONArray(req.Instructions)
	if err != nil {
		return response.BadRequest(c, "Invalid instructions")
	}
	benefits, err := toJSONArray(req.Benefits)
	if err != nil {
		return response.BadRequest(c, "Invalid benefits")
	}

	lesson.Title = validation.SanitizeString(req.Title)
	lesson.Description = validation.SanitizeString(req.Description)
	lesson.Duration = req.Duration
	lesson.Difficulty = req.Difficulty
	lesson.ImageURL = req.ImageURL
	lesson.VideoURL = req.VideoURL
	lesson.Instructions = instructions
	lesson.Benefits = benefits
	lesson.Category = req.Category
	lesson.TargetArea = req.TargetArea

	if err := h.db.Save(&lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to update lesson")
	}
	return response.SuccessWithMessage(c, "Lesson updated successfully", lesson)
}

// DeleteLesson handles DELETE /api/v1/admin/lessons/:id. Section links to
// the lesson become dangling and are filtered out on read.
func (h *LessonHandler) DeleteLesson(c *fiber.Ctx) error {
	id := c.Params("id")

	res := h.db.Delete(&model.Lesson{}, "id = ?", id)
	if res.Error != nil {
		return response.InternalServerError(c, "Failed to delete lesson")
	}
	if res.RowsAffected == 0 {
		return response.NotFound(c, "Lesson not found")
	}
	return response.SuccessWithMessage(c, "Lesson deleted successfully", nil)
}

// CreateExercise handles POST /api/v1/admin/exercises
func (h *LessonHandler) CreateExercise(c *fiber.Ctx) error {
	var req LessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	instructions, err := toJSONArray(req.Instructions)
	if err != nil {
		return response.BadRequest(c, "Invalid instructions")
	}
	benefits, err := toJSONArray(req.Benefits)
	if err != nil {
		return response.BadRequest(c, "Invalid benefits")
	}

	exercise := model.Exercise{
		Title:        validation.SanitizeString(req.Title),
		Description:  validation.SanitizeString(req.Description),
		Duration:     req.Duration,
		Difficulty:   req.Difficulty,
		ImageURL:     req.ImageURL,
		VideoURL:     req.VideoURL,
		Instructions: instructions,
		Benefits:     benefits,
		TargetArea:   req.TargetArea,
	}

	if err := h.db.Create(&exercise).Error; err != nil {
		return response.InternalServerError(c, "Failed to create exercise")
	}
	return response.Created(c, exercise)
}

// DeleteExercise handles DELETE /api/v1/admin/exercises/:id
func (h *LessonHandler) DeleteExercise(c *fiber.Ctx) error {
	id := c.Params("id")

	res := h.db.Delete(&model.Exercise{}, "id = ?", id)
	if res.Error != nil {
		return response.InternalServerError(c, "Failed to delete exercise")
	}
	if res.RowsAffected == 0 {
		return response.NotFound(c, "Exercise not found")
	}
	return response.SuccessWithMessage(c, "Exercise deleted successfully", nil)
}
