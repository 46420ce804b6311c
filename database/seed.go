package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/utils/auth"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedLessons(); err != nil {
		return fmt.Errorf("failed to seed lessons: %w", err)
	}

	if err := s.SeedExercises(); err != nil {
		return fmt.Errorf("failed to seed exercises: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         "admin",
		TokenVersion: 0,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedLessons creates sample face-yoga lessons
func (s *Seeder) SeedLessons() error {
	var count int64
	if err := s.db.Model(&model.Lesson{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Lessons already exist, skipping...")
		return nil
	}

	lessons := []model.Lesson{
		{
			Title:       "Forehead Smoothing Basics",
			Description: "Gentle strokes to release forehead tension and soften expression lines.",
			Duration:    8,
			Difficulty:  "beginner",
			Category:    "anti-aging",
			TargetArea:  "forehead",
			Instructions: mustJSON([]string{
				"Warm your hands and apply a light facial oil",
				"Place both palms flat on your forehead",
				"Sweep outward from the center ten times",
				"Finish with gentle tapping along the hairline",
			}),
			Benefits: mustJSON([]string{
				"Relaxes the frontalis muscle",
				"Softens horizontal forehead lines",
			}),
		},
		{
			Title:       "Jawline Definition Flow",
			Description: "A sequence to tone the lower face and sharpen the jawline.",
			Duration:    12,
			Difficulty:  "intermediate",
			Category:    "toning",
			TargetArea:  "jawline",
			Instructions: mustJSON([]string{
				"Tilt your head back slightly",
				"Press your tongue to the roof of your mouth",
				"Trace your jawline with your knuckles, center to ear",
				"Repeat fifteen times per side",
			}),
			Benefits: mustJSON([]string{
				"Strengthens the platysma",
				"Improves lymphatic drainage along the jaw",
			}),
		},
		{
			Title:       "Eye Area Revival",
			Description: "Light acupressure around the orbital bone to reduce puffiness.",
			Duration:    10,
			Difficulty:  "beginner",
			Category:    "de-puffing",
			TargetArea:  "eyes",
			Instructions: mustJSON([]string{
				"Close your eyes and breathe deeply",
				"Press gently at the inner corner of each brow",
				"Glide your ring fingers along the under-eye area",
				"Repeat the circuit eight times",
			}),
			Benefits: mustJSON([]string{
				"Reduces morning puffiness",
				"Eases eye strain",
			}),
		},
	}

	if err := s.db.Create(&lessons).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d lessons\n", len(lessons))
	return nil
}

// SeedExercises creates sample standalone exercises
func (s *Seeder) SeedExercises() error {
	var count int64
	if err := s.db.Model(&model.Exercise{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Exercises already exist, skipping...")
		return nil
	}

	exercises := []model.Exercise{
		{
			Title:       "Cheek Lifter",
			Description: "Quick daily exercise to lift the cheek muscles.",
			Duration:    3,
			Difficulty:  "beginner",
			TargetArea:  "cheeks",
			Instructions: mustJSON([]string{
				"Smile as wide as you comfortably can",
				"Place your fingertips on the tops of your cheeks",
				"Lift the cheeks toward your eyes and hold for ten seconds",
				"Repeat five times",
			}),
			Benefits: mustJSON([]string{"Tones the zygomaticus muscles"}),
		},
		{
			Title:       "Neck Release Stretch",
			Description: "A slow stretch for the neck and decolletage.",
			Duration:    5,
			Difficulty:  "beginner",
			TargetArea:  "neck",
			Instructions: mustJSON([]string{
				"Sit tall and drop your shoulders",
				"Tilt your head to one side until you feel a stretch",
				"Hold for twenty seconds, then switch sides",
			}),
			Benefits: mustJSON([]string{"Releases neck tension", "Improves posture"}),
		},
	}

	if err := s.db.Create(&exercises).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d exercises\n", len(exercises))
	return nil
}

// SeedCourses creates sample courses with sections linking the seeded
// lessons and exercises
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	var lessons []model.Lesson
	if err := s.db.Order("created_at ASC").Find(&lessons).Error; err != nil {
		return err
	}
	var exercises []model.Exercise
	if err := s.db.Order("created_at ASC").Find(&exercises).Error; err != nil {
		return err
	}

	courses := []model.Course{
		{
			Title:       "FaceGlow Foundations",
			Description: "A free introduction to face yoga: posture, breathing and the first massage strokes.",
			Difficulty:  "beginner",
			Duration:    "1 week",
			Price:       0,
			Currency:    "usd",
			IsPublished: true,
			AccessType:  model.AccessTypeLifetime,
		},
		{
			Title:       "21-Day Sculpt & Lift",
			Description: "The full program: daily routines for every facial zone with progressive difficulty.",
			Difficulty:  "intermediate",
			Duration:    "3 weeks",
			Price:       49.99,
			Currency:    "usd",
			IsPublished: true,
			AccessType:  model.AccessTypeLifetime,
		},
		{
			Title:                      "Glow Club Monthly",
			Description:                "Rotating monthly routines with seasonal focus areas.",
			Difficulty:                 "beginner",
			Duration:                   "ongoing",
			Price:                      9.99,
			Currency:                   "usd",
			IsPublished:                true,
			AccessType:                 model.AccessTypeSubscription,
			SubscriptionDurationMonths: 1,
		},
	}

	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	// Give the paid flagship course two sections over the seed content
	if len(lessons) >= 3 && len(exercises) >= 2 {
		sections := []model.CourseSection{
			{CourseID: courses[1].ID, Title: "Week 1: Release", Description: "Letting go of tension.", OrderIndex: 0},
			{CourseID: courses[1].ID, Title: "Week 2: Sculpt", Description: "Building muscle tone.", OrderIndex: 1},
		}
		if err := s.db.Create(&sections).Error; err != nil {
			return err
		}

		links := []model.SectionLesson{
			{SectionID: sections[0].ID, LessonID: lessons[0].ID, OrderID: 0},
			{SectionID: sections[0].ID, LessonID: lessons[2].ID, OrderID: 1},
			{SectionID: sections[1].ID, LessonID: lessons[1].ID, OrderID: 0},
		}
		if err := s.db.Create(&links).Error; err != nil {
			return err
		}

		exerciseLinks := []model.SectionExercise{
			{SectionID: sections[0].ID, ExerciseID: exercises[1].ID, OrderIndex: 0},
			{SectionID: sections[1].ID, ExerciseID: exercises[0].ID, OrderIndex: 0},
		}
		if err := s.db.Create(&exerciseLinks).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Created %d courses\n", len(courses))
	return nil
}

// RunSeeds seeds the database with initial data
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}

func mustJSON(items []string) datatypes.JSON {
	b, err := json.Marshal(items)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}
