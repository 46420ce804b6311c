package services

import (
	"context"
	"log"
	"time"

	"github.com/suhanipatel/faceglow-api/model"
	"gorm.io/gorm"
)

// AccessService decides whether a user may view a course, lesson or exercise.
// All boolean checks fail closed: lookup errors are logged and reported as
// "no access", never returned to the caller.
type AccessService struct {
	db *gorm.DB
}

// NewAccessService creates a new access service
func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// HasAccessToCourse reports whether the user currently has access to the course.
// Check order: free course, then access grant (expiry-aware), then completed
// purchase. An expired grant does not deny on its own; a completed purchase for
// the same pair still grants access.
func (s *AccessService) HasAccessToCourse(ctx context.Context, userID, courseID string) bool {
	// Unauthenticated users never have access
	if userID == "" {
		return false
	}

	// Free courses are open to everyone
	var course model.Course
	if err := s.db.WithContext(ctx).Select("id", "price").First(&course, "id = ?", courseID).Error; err != nil {
		log.Printf("Error checking course %s: %v", courseID, err)
		return false
	}
	if course.IsFree() {
		return true
	}

	// Check the access grant
	var access model.CourseAccess
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&access).Error
	switch {
	case err == nil:
		if access.IsActive(time.Now()) {
			return true
		}
		// Expired grant: fall through to the purchase check
	case err != gorm.ErrRecordNotFound:
		log.Printf("Error checking course access for user %s: %v", userID, err)
		return false
	}

	// No valid grant; a completed purchase still counts
	var count int64
	err = s.db.WithContext(ctx).
		Model(&model.CoursePurchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		Count(&count).Error
	if err != nil {
		log.Printf("Error checking course purchases for user %s: %v", userID, err)
		return false
	}

	return count > 0
}

// HasAccessToLesson reports whether the user may view the lesson. A lesson
// that belongs to no course section is free; otherwise access to any owning
// course is enough.
func (s *AccessService) HasAccessToLesson(ctx context.Context, userID, lessonID string) bool {
	courseIDs, err := s.lessonCourseIDs(ctx, lessonID)
	if err != nil {
		log.Printf("Error finding courses for lesson %s: %v", lessonID, err)
		return false
	}

	if len(courseIDs) == 0 {
		return true
	}

	for _, courseID := range courseIDs {
		if s.HasAccessToCourse(ctx, userID, courseID) {
			return true
		}
	}
	return false
}

// HasAccessToExercise reports whether the user may view the exercise, with
// the same free-when-unattached rule as lessons.
func (s *AccessService) HasAccessToExercise(ctx context.Context, userID, exerciseID string) bool {
	var courseIDs []string
	err := s.db.WithContext(ctx).
		Model(&model.SectionExercise{}).
		Joins("JOIN course_sections ON course_sections.id = section_exercises.section_id").
		Where("section_exercises.exercise_id = ?", exerciseID).
		Distinct().
		Pluck("course_sections.course_id", &courseIDs).Error
	if err != nil {
		log.Printf("Error finding courses for exercise %s: %v", exerciseID, err)
		return false
	}

	if len(courseIDs) == 0 {
		return true
	}

	for _, courseID := range courseIDs {
		if s.HasAccessToCourse(ctx, userID, courseID) {
			return true
		}
	}
	return false
}

// TouchLastAccessed stamps the access grant after a content view
func (s *AccessService) TouchLastAccessed(ctx context.Context, userID, courseID string) error {
	return s.db.WithContext(ctx).
		Model(&model.CourseAccess{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Update("last_accessed_at", time.Now()).Error
}

// FetchUserAccess returns all access grants for a user, newest first
func (s *AccessService) FetchUserAccess(ctx context.Context, userID string) ([]model.CourseAccess, error) {
	var access []model.CourseAccess
	err := s.db.WithContext(ctx).
		Preload("Course").
		Preload("Purchase").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&access).Error
	return access, err
}

func (s *AccessService) lessonCourseIDs(ctx context.Context, lessonID string) ([]string, error) {
	var courseIDs []string
	err := s.db.WithContext(ctx).
		Model(&model.SectionLesson{}).
		Joins("JOIN course_sections ON course_sections.id = section_lessons.section_id").
		Where("section_lessons.lesson_id = ?", lessonID).
		Distinct().
		Pluck("course_sections.course_id", &courseIDs).Error
	return courseIDs, err
}
