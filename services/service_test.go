package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/suhanipatel/faceglow-api/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database with the full schema.
// cache=shared keeps every pooled connection on the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseSection{},
		&model.Lesson{},
		&model.Exercise{},
		&model.SectionLesson{},
		&model.SectionExercise{},
		&model.CoursePurchase{},
		&model.CourseAccess{},
	)
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()

	user := &model.User{
		Email:        fmt.Sprintf("user-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "not-a-real-hash",
		Name:         "Test User",
		Role:         "student",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestCourse(t *testing.T, db *gorm.DB, price float64) *model.Course {
	t.Helper()

	course := &model.Course{
		Title:       "Test Course",
		Price:       price,
		Currency:    "usd",
		IsPublished: true,
		AccessType:  model.AccessTypeLifetime,
	}
	require.NoError(t, db.Create(course).Error)
	return course
}
