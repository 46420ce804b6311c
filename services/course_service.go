package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/utils/cache"
	"gorm.io/gorm"
)

const (
	publishedCoursesCacheKey = "courses:published"
	sectionsCacheKeyFormat   = "course:%s:sections"
	courseCacheTTL           = 5 * time.Minute
)

// SectionInput describes one section in a create/update request. Lesson and
// exercise references are canonical id strings, normalized at the handler
// boundary.
type SectionInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []string `json:"lessons"`
	Exercises   []string `json:"exercises"`
}

// CourseInput carries the course fields shared by create and update
type CourseInput struct {
	Title                      string  `json:"title"`
	Description                string  `json:"description"`
	ImageURL                   string  `json:"image_url"`
	WelcomeVideo               string  `json:"welcome_video"`
	Difficulty                 string  `json:"difficulty"`
	Duration                   string  `json:"duration"`
	Price                      float64 `json:"price"`
	Currency                   string  `json:"currency"`
	IsPublished                bool    `json:"is_published"`
	AccessType                 string  `json:"access_type"`
	TrialDurationDays          int     `json:"trial_duration_days"`
	SubscriptionDurationMonths int     `json:"subscription_duration_months"`

	Sections []SectionInput `json:"sections"`
}

// CourseService assembles the course/section/lesson aggregate from flat rows
// and owns the course write paths. The read cache is optional; when present
// it is invalidated on every write.
type CourseService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewCourseService creates a new course service. cache may be nil.
func NewCourseService(db *gorm.DB, redisCache *cache.RedisCache) *CourseService {
	return &CourseService{
		db:    db,
		cache: redisCache,
	}
}

// FetchCourses returns published courses, newest first
func (s *CourseService) FetchCourses(ctx context.Context) ([]model.Course, error) {
	if s.cache != nil {
		var cached []model.Course
		if err := s.cache.GetJSON(ctx, publishedCoursesCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var courses []model.Course
	err := s.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, publishedCoursesCacheKey, courses, courseCacheTTL); err != nil {
			log.Printf("Failed to cache published courses: %v", err)
		}
	}
	return courses, nil
}

// FetchAllCourses returns every course including unpublished drafts
func (s *CourseService) FetchAllCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&courses).Error
	return courses, err
}

// GetCourse returns a single course by id
func (s *CourseService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FetchCourseSections returns the course's sections in display order
func (s *CourseService) FetchCourseSections(ctx context.Context, courseID string) ([]model.CourseSection, error) {
	cacheKey := fmt.Sprintf(sectionsCacheKeyFormat, courseID)
	if s.cache != nil {
		var cached []model.CourseSection
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var sections []model.CourseSection
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("order_index ASC").
		Find(&sections).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, sections, courseCacheTTL); err != nil {
			log.Printf("Failed to cache sections for course %s: %v", courseID, err)
		}
	}
	return sections, nil
}

// FetchSectionLessons returns the section's lesson links in order. Links
// whose joined lesson no longer exists are filtered out rather than
// surfaced as partial items.
func (s *CourseService) FetchSectionLessons(ctx context.Context, sectionID string) ([]model.SectionLesson, error) {
	var links []model.SectionLesson
	err := s.db.WithContext(ctx).
		Preload("Lesson").
		Where("section_id = ?", sectionID).
		Order("order_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return filterDanglingLessons(links), nil
}

// FetchSectionExercises returns the section's exercise links in order,
// dangling references filtered
func (s *CourseService) FetchSectionExercises(ctx context.Context, sectionID string) ([]model.SectionExercise, error) {
	var links []model.SectionExercise
	err := s.db.WithContext(ctx).
		Preload("Exercise").
		Where("section_id = ?", sectionID).
		Order("order_index ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	valid := make([]model.SectionExercise, 0, len(links))
	for _, link := range links {
		if link.Exercise == nil || link.Exercise.ID == "" {
			continue
		}
		valid = append(valid, link)
	}
	return valid, nil
}

// FetchCourseLessons returns every section's ordered lesson links keyed by
// section id
func (s *CourseService) FetchCourseLessons(ctx context.Context, courseID string) (map[string][]model.SectionLesson, error) {
	var sectionIDs []string
	err := s.db.WithContext(ctx).
		Model(&model.CourseSection{}).
		Where("course_id = ?", courseID).
		Pluck("id", &sectionIDs).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string][]model.SectionLesson)
	if len(sectionIDs) == 0 {
		return result, nil
	}

	var links []model.SectionLesson
	err = s.db.WithContext(ctx).
		Preload("Lesson").
		Where("section_id IN ?", sectionIDs).
		Order("order_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	for _, link := range filterDanglingLessons(links) {
		result[link.SectionID] = append(result[link.SectionID], link)
	}
	return result, nil
}

// CreateCourse inserts a course and its nested sections in one transaction
func (s *CourseService) CreateCourse(ctx context.Context, input CourseInput) (*model.Course, error) {
	course := model.Course{
		Title:                      input.Title,
		Description:                input.Description,
		ImageURL:                   input.ImageURL,
		WelcomeVideo:               input.WelcomeVideo,
		Difficulty:                 input.Difficulty,
		Duration:                   input.Duration,
		Price:                      input.Price,
		Currency:                   input.Currency,
		IsPublished:                input.IsPublished,
		AccessType:                 input.AccessType,
		TrialDurationDays:          input.TrialDurationDays,
		SubscriptionDurationMonths: input.SubscriptionDurationMonths,
	}
	if course.Currency == "" {
		course.Currency = "usd"
	}
	if course.AccessType == "" {
		course.AccessType = model.AccessTypeLifetime
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
		return s.createSections(tx, course.ID, input.Sections)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, course.ID)
	return &course, nil
}

// UpdateCourse updates course fields and rewrites its section list. The
// rewrite is destructive-then-recreate: every existing section and its
// lesson/exercise links are deleted and the new list is inserted with fresh
// sequential order indexes, so all section ids change on every edit. Both
// steps run in one transaction so concurrent edits cannot interleave.
func (s *CourseService) UpdateCourse(ctx context.Context, courseID string, input CourseInput) (*model.Course, error) {
	var course model.Course

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&course, "id = ?", courseID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":                        input.Title,
			"description":                  input.Description,
			"image_url":                    input.ImageURL,
			"welcome_video":                input.WelcomeVideo,
			"difficulty":                   input.Difficulty,
			"duration":                     input.Duration,
			"price":                        input.Price,
			"is_published":                 input.IsPublished,
			"access_type":                  input.AccessType,
			"trial_duration_days":          input.TrialDurationDays,
			"subscription_duration_months": input.SubscriptionDurationMonths,
		}
		if input.Currency != "" {
			updates["currency"] = input.Currency
		}
		if input.AccessType == "" {
			updates["access_type"] = course.AccessType
		}
		if err := tx.Model(&course).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}

		// Drop existing section links, then the sections themselves
		var sectionIDs []string
		if err := tx.Model(&model.CourseSection{}).
			Where("course_id = ?", courseID).
			Pluck("id", &sectionIDs).Error; err != nil {
			return fmt.Errorf("failed to list existing sections: %w", err)
		}
		if len(sectionIDs) > 0 {
			if err := tx.Where("section_id IN ?", sectionIDs).Delete(&model.SectionLesson{}).Error; err != nil {
				return fmt.Errorf("failed to delete section lessons: %w", err)
			}
			if err := tx.Where("section_id IN ?", sectionIDs).Delete(&model.SectionExercise{}).Error; err != nil {
				return fmt.Errorf("failed to delete section exercises: %w", err)
			}
			if err := tx.Where("course_id = ?", courseID).Delete(&model.CourseSection{}).Error; err != nil {
				return fmt.Errorf("failed to delete sections: %w", err)
			}
		}

		return s.createSections(tx, courseID, input.Sections)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, courseID)

	if err := s.db.WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// DeleteCourse removes a course; sections, links, purchases and access rows
// cascade
func (s *CourseService) DeleteCourse(ctx context.Context, courseID string) error {
	res := s.db.WithContext(ctx).Delete(&model.Course{}, "id = ?", courseID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.invalidate(ctx, courseID)
	return nil
}

// createSections inserts sections with sequential order indexes starting at
// 0, then their lesson/exercise links ordered by input position
func (s *CourseService) createSections(tx *gorm.DB, courseID string, sections []SectionInput) error {
	for i, input := range sections {
		section := model.CourseSection{
			CourseID:    courseID,
			Title:       input.Title,
			Description: input.Description,
			OrderIndex:  i,
		}
		if err := tx.Create(&section).Error; err != nil {
			return fmt.Errorf("failed to create section %q: %w", input.Title, err)
		}

		for j, lessonID := range input.Lessons {
			if lessonID == "" {
				continue
			}
			link := model.SectionLesson{
				SectionID: section.ID,
				LessonID:  lessonID,
				OrderID:   j,
			}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link lesson %s: %w", lessonID, err)
			}
		}

		for j, exerciseID := range input.Exercises {
			if exerciseID == "" {
				continue
			}
			link := model.SectionExercise{
				SectionID:  section.ID,
				ExerciseID: exerciseID,
				OrderIndex: j,
			}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link exercise %s: %w", exerciseID, err)
			}
		}
	}
	return nil
}

// invalidate drops the cache entries the write may have changed
func (s *CourseService) invalidate(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	keys := []string{
		publishedCoursesCacheKey,
		fmt.Sprintf(sectionsCacheKeyFormat, courseID),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil && !errors.Is(err, cache.ErrNotFound) {
		log.Printf("Failed to invalidate course cache for %s: %v", courseID, err)
	}
}

func filterDanglingLessons(links []model.SectionLesson) []model.SectionLesson {
	valid := make([]model.SectionLesson, 0, len(links))
	for _, link := range links {
		if link.Lesson == nil || link.Lesson.ID == "" {
			continue
		}
		valid = append(valid, link)
	}
	return valid
}
