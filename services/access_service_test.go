package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suhanipatel/faceglow-api/model"
	"gorm.io/gorm"
)

func grantAccessRow(t *testing.T, db *gorm.DB, userID, courseID string, expiresAt *time.Time) *model.CourseAccess {
	t.Helper()

	purchase := &model.CoursePurchase{
		UserID:          userID,
		CourseID:        courseID,
		Amount:          49.99,
		Currency:        "usd",
		Status:          model.PurchaseStatusCompleted,
		PaymentIntentID: "pi_" + userID[:8] + courseID[:8],
		PaymentMethod:   "stripe",
	}
	require.NoError(t, db.Create(purchase).Error)

	access := &model.CourseAccess{
		UserID:     userID,
		CourseID:   courseID,
		PurchaseID: purchase.ID,
		AccessType: model.AccessTypeLifetime,
		StartsAt:   time.Now().Add(-time.Hour),
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, db.Create(access).Error)
	return access
}

func TestHasAccessToCourseAnonymousDenied(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	course := createTestCourse(t, db, 0) // even free courses deny anonymous callers

	assert.False(t, svc.HasAccessToCourse(context.Background(), "", course.ID))
}

func TestHasAccessToCourseFree(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 0)

	// No access or purchase rows exist
	assert.True(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHasAccessToCourseUnknownCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)

	assert.False(t, svc.HasAccessToCourse(context.Background(), user.ID, "00000000-0000-0000-0000-000000000000"))
}

func TestHasAccessToCourseActiveGrant(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	future := time.Now().Add(24 * time.Hour)
	grantAccessRow(t, db, user.ID, course.ID, &future)

	assert.True(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHasAccessToCoursePerpetualGrant(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	grantAccessRow(t, db, user.ID, course.ID, nil)

	assert.True(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHasAccessToCourseExpiredGrantFallsThroughToPurchase(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	// Expired grant backed by a completed purchase still resolves to access
	expired := time.Now().Add(-time.Second)
	grantAccessRow(t, db, user.ID, course.ID, &expired)

	assert.True(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHasAccessToCourseExpiredGrantNoPurchase(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	expired := time.Now().Add(-time.Second)
	access := grantAccessRow(t, db, user.ID, course.ID, &expired)

	// Remove the backing purchase so only the expired grant remains
	require.NoError(t, db.Unscoped().Delete(&model.CoursePurchase{}, "id = ?", access.PurchaseID).Error)

	assert.False(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHasAccessToCourseNoRows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	assert.False(t, svc.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func linkLessonToCourse(t *testing.T, db *gorm.DB, courseID string) *model.Lesson {
	t.Helper()

	lesson := &model.Lesson{Title: "Linked Lesson"}
	require.NoError(t, db.Create(lesson).Error)

	section := &model.CourseSection{CourseID: courseID, Title: "Section", OrderIndex: 0}
	require.NoError(t, db.Create(section).Error)

	link := &model.SectionLesson{SectionID: section.ID, LessonID: lesson.ID, OrderID: 0}
	require.NoError(t, db.Create(link).Error)
	return lesson
}

func TestHasAccessToLessonUnattachedIsFree(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)

	lesson := &model.Lesson{Title: "Orphan Lesson"}
	require.NoError(t, db.Create(lesson).Error)

	assert.True(t, svc.HasAccessToLesson(context.Background(), user.ID, lesson.ID))
}

func TestHasAccessToLessonGatedByCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)
	lesson := linkLessonToCourse(t, db, course.ID)

	assert.False(t, svc.HasAccessToLesson(context.Background(), user.ID, lesson.ID))

	grantAccessRow(t, db, user.ID, course.ID, nil)

	assert.True(t, svc.HasAccessToLesson(context.Background(), user.ID, lesson.ID))
}

func TestHasAccessToLessonInFreeCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 0)
	lesson := linkLessonToCourse(t, db, course.ID)

	assert.True(t, svc.HasAccessToLesson(context.Background(), user.ID, lesson.ID))
}

func TestHasAccessToExerciseGatedByCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)

	exercise := &model.Exercise{Title: "Cheek Lifter"}
	require.NoError(t, db.Create(exercise).Error)

	section := &model.CourseSection{CourseID: course.ID, Title: "Section", OrderIndex: 0}
	require.NoError(t, db.Create(section).Error)
	require.NoError(t, db.Create(&model.SectionExercise{
		SectionID:  section.ID,
		ExerciseID: exercise.ID,
		OrderIndex: 0,
	}).Error)

	assert.False(t, svc.HasAccessToExercise(context.Background(), user.ID, exercise.ID))

	grantAccessRow(t, db, user.ID, course.ID, nil)

	assert.True(t, svc.HasAccessToExercise(context.Background(), user.ID, exercise.ID))
}

func TestTouchLastAccessed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 49.99)
	grantAccessRow(t, db, user.ID, course.ID, nil)

	require.NoError(t, svc.TouchLastAccessed(context.Background(), user.ID, course.ID))

	var access model.CourseAccess
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&access).Error)
	require.NotNil(t, access.LastAccessedAt)
	assert.WithinDuration(t, time.Now(), *access.LastAccessedAt, 5*time.Second)
}

func TestFetchUserAccess(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)
	user := createTestUser(t, db)
	courseA := createTestCourse(t, db, 49.99)
	courseB := createTestCourse(t, db, 19.99)

	grantAccessRow(t, db, user.ID, courseA.ID, nil)
	grantAccessRow(t, db, user.ID, courseB.ID, nil)

	access, err := svc.FetchUserAccess(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, access, 2)
	for _, a := range access {
		assert.NotEmpty(t, a.Course.ID, "course should be preloaded")
	}
}
