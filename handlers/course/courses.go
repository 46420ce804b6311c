package course

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/services"
	"github.com/suhanipatel/faceglow-api/utils/response"
	"github.com/suhanipatel/faceglow-api/utils/validation"
	"gorm.io/gorm"
)

// CourseHandler handles course catalog requests
type CourseHandler struct {
	courses   *services.CourseService
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courseService *services.CourseService) *CourseHandler {
	return &CourseHandler{
		courses:   courseService,
		validator: validation.NewValidator(),
	}
}

// LessonRef is a reference to a lesson or exercise inside a section payload.
// Clients historically sent either a bare id string or an object carrying the
// id, so both decode to the canonical string form.
type LessonRef struct {
	ID string
}

// UnmarshalJSON accepts "abc-123", {"id": "abc-123"} or {"lesson_id": "abc-123"}
func (r *LessonRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = s
		return nil
	}

	var obj struct {
		ID       string `json:"id"`
		LessonID string `json:"lesson_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid lesson reference: %w", err)
	}
	if obj.ID != "" {
		r.ID = obj.ID
	} else {
		r.ID = obj.LessonID
	}
	return nil
}

// MarshalJSON writes the canonical string form
func (r LessonRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// SectionRequest represents one section in a course create/update payload
type SectionRequest struct {
	Title       string      `json:"title" validate:"required,min=1,max=255"`
	Description string      `json:"description" validate:"omitempty,max=2000"`
	Lessons     []LessonRef `json:"lessons"`
	Exercises   []LessonRef `json:"exercises"`
}

// CourseRequest represents the request body for creating or updating a course
type CourseRequest struct {
	Title                      string           `json:"title" validate:"required,min=3,max=255"`
	Description                string           `json:"description" validate:"omitempty,max=5000"`
	ImageURL                   string           `json:"image_url" validate:"omitempty,url"`
	WelcomeVideo               string           `json:"welcome_video" validate:"omitempty,url"`
	Difficulty                 string           `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Duration                   string           `json:"duration" validate:"omitempty,max=50"`
	Price                      float64          `json:"price" validate:"min=0"`
	Currency                   string           `json:"currency" validate:"omitempty,len=3"`
	IsPublished                bool             `json:"is_published"`
	AccessType                 string           `json:"access_type" validate:"omitempty,oneof=lifetime subscription trial"`
	TrialDurationDays          int              `json:"trial_duration_days" validate:"min=0"`
	SubscriptionDurationMonths int              `json:"subscription_duration_months" validate:"min=0"`
	Sections                   []SectionRequest `json:"sections" validate:"dive"`
}

// toInput normalizes the request into the service input shape
func (req *CourseRequest) toInput() services.CourseInput {
	input := services.CourseInput{
		Title:                      validation.SanitizeString(req.Title),
		Description:                validation.SanitizeString(req.Description),
		ImageURL:                   req.ImageURL,
		WelcomeVideo:               req.WelcomeVideo,
		Difficulty:                 req.Difficulty,
		Duration:                   req.Duration,
		Price:                      req.Price,
		Currency:                   req.Currency,
		IsPublished:                req.IsPublished,
		AccessType:                 req.AccessType,
		TrialDurationDays:          req.TrialDurationDays,
		SubscriptionDurationMonths: req.SubscriptionDurationMonths,
	}
	for _, section := range req.Sections {
		input.Sections = append(input.Sections, services.SectionInput{
			Title:       validation.SanitizeString(section.Title),
			Description: validation.SanitizeString(section.Description),
			Lessons:     refIDs(section.Lessons),
			Exercises:   refIDs(section.Exercises),
		})
	}
	return input
}

func refIDs(refs []LessonRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.courses.FetchCourses(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}
	return response.Success(c, courses)
}

// ListAllCourses handles GET /api/v1/admin/courses including drafts
func (h *CourseHandler) ListAllCourses(c *fiber.Ctx) error {
	courses, err := h.courses.FetchAllCourses(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}
	return response.Success(c, courses)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	course, err := h.courses.GetCourse(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	return response.Success(c, course)
}

// GetCourseSections handles GET /api/v1/courses/:id/sections
func (h *CourseHandler) GetCourseSections(c *fiber.Ctx) error {
	courseID := c.Params("id")

	sections, err := h.courses.FetchCourseSections(c.Context(), courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch sections")
	}
	return response.Success(c, sections)
}

// GetSectionLessons handles GET /api/v1/sections/:id/lessons
func (h *CourseHandler) GetSectionLessons(c *fiber.Ctx) error {
	sectionID := c.Params("id")

	lessons, err := h.courses.FetchSectionLessons(c.Context(), sectionID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch section lessons")
	}
	return response.Success(c, lessons)
}

// GetSectionExercises handles GET /api/v1/sections/:id/exercises
func (h *CourseHandler) GetSectionExercises(c *fiber.Ctx) error {
	sectionID := c.Params("id")

	exercises, err := h.courses.FetchSectionExercises(c.Context(), sectionID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch section exercises")
	}
	return response.Success(c, exercises)
}

// GetCourseLessons handles GET /api/v1/courses/:id/lessons and returns
// section id to ordered lessons
func (h *CourseHandler) GetCourseLessons(c *fiber.Ctx) error {
	courseID := c.Params("id")

	lessons, err := h.courses.FetchCourseLessons(c.Context(), courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch course lessons")
	}
	return response.Success(c, lessons)
}

// CreateCourse handles POST /api/v1/admin/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.CreateCourse(c.Context(), req.toInput())
	if err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/admin/courses/:id. The section list is
// replaced wholesale; section ids are not stable across updates.
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.UpdateCourse(c.Context(), id, req.toInput())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to update course")
	}

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/admin/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.courses.DeleteCourse(c.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to delete course")
	}

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
