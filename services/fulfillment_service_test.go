package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/services/stripe"
)

// fakeGateway records calls and returns canned intents
type fakeGateway struct {
	calls   int
	lastReq struct {
		amount   int64
		currency string
		metadata map[string]string
	}
	err error
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	f.calls++
	f.lastReq.amount = amount
	f.lastReq.currency = currency
	f.lastReq.metadata = metadata
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("pi_test_%d", f.calls)
	return &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amount,
		Currency:     currency,
		Status:       "requires_payment_method",
		Metadata:     metadata,
	}, nil
}

func TestCreatePaymentIntentRequiresSignIn(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	course := createTestCourse(t, db, 10)

	_, err := svc.CreatePaymentIntent(context.Background(), "", course.ID)
	assert.ErrorIs(t, err, ErrSignInRequired)
}

func TestCreatePaymentIntentRequiresCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCreatePaymentIntentUnknownCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCreatePaymentIntentRejectsFreeCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 0)

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	assert.ErrorIs(t, err, ErrCourseNotPurchasable)
}

func TestCreatePaymentIntentCreatesPendingPurchase(t *testing.T) {
	db := setupTestDB(t)
	gateway := &fakeGateway{}
	svc := NewFulfillmentService(db, gateway)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10.50)

	result, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	// Decimal price converted to minor units without float drift
	assert.Equal(t, int64(1050), result.Amount)
	assert.Equal(t, int64(1050), gateway.lastReq.amount)
	assert.Equal(t, course.ID, gateway.lastReq.metadata["courseId"])
	assert.Equal(t, user.ID, gateway.lastReq.metadata["userId"])
	assert.NotEmpty(t, result.ClientSecret)

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", result.PaymentIntentID).First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusPending, purchase.Status)
	assert.Equal(t, user.ID, purchase.UserID)
	assert.False(t, purchase.NeedsReconciliation)
}

func TestHandlePaymentSuccessEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	access := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	require.False(t, access.HasAccessToCourse(context.Background(), user.ID, course.ID))

	result, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	// Simulate gateway success
	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), result.PaymentIntentID, course.ID, user.ID))

	var purchases []model.CoursePurchase
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&purchases).Error)
	require.Len(t, purchases, 1)
	assert.Equal(t, model.PurchaseStatusCompleted, purchases[0].Status)

	var grants []model.CourseAccess
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&grants).Error)
	require.Len(t, grants, 1)
	assert.Equal(t, model.AccessTypeLifetime, grants[0].AccessType)
	assert.Nil(t, grants[0].ExpiresAt)

	assert.True(t, access.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHandlePaymentSuccessIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	result, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	// Client confirmation and a redelivered webhook both fulfill
	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), result.PaymentIntentID, course.ID, user.ID))
	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), result.PaymentIntentID, course.ID, user.ID))

	var accessCount int64
	require.NoError(t, db.Model(&model.CourseAccess{}).
		Where("user_id = ? AND course_id = ?", user.ID, course.ID).
		Count(&accessCount).Error)
	assert.Equal(t, int64(1), accessCount)

	var purchaseCount int64
	require.NoError(t, db.Model(&model.CoursePurchase{}).
		Where("payment_intent_id = ?", result.PaymentIntentID).
		Count(&purchaseCount).Error)
	assert.Equal(t, int64(1), purchaseCount)
}

func TestHandlePaymentSuccessWebhookOnlyFlow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	// No pending row exists; the webhook inserts a completed purchase directly
	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), "pi_webhook_only", course.ID, user.ID))

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", "pi_webhook_only").First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusCompleted, purchase.Status)
	assert.Equal(t, course.Price, purchase.Amount)
}

func TestHandlePaymentSuccessMissingFields(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})

	err := svc.HandlePaymentSuccess(context.Background(), "", "course", "user")
	assert.ErrorIs(t, err, ErrMissingFields)
	err = svc.HandlePaymentSuccess(context.Background(), "pi", "", "user")
	assert.ErrorIs(t, err, ErrMissingFields)
	err = svc.HandlePaymentSuccess(context.Background(), "pi", "course", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestHandlePaymentSuccessRefundedIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	purchase := &model.CoursePurchase{
		UserID:          user.ID,
		CourseID:        course.ID,
		Amount:          course.Price,
		Currency:        "usd",
		Status:          model.PurchaseStatusRefunded,
		PaymentIntentID: "pi_refunded",
		PaymentMethod:   "stripe",
	}
	require.NoError(t, db.Create(purchase).Error)

	err := svc.HandlePaymentSuccess(context.Background(), "pi_refunded", course.ID, user.ID)
	assert.ErrorIs(t, err, ErrPurchaseAlreadyTerminal)

	var reloaded model.CoursePurchase
	require.NoError(t, db.First(&reloaded, "id = ?", purchase.ID).Error)
	assert.Equal(t, model.PurchaseStatusRefunded, reloaded.Status)
}

func TestAccessExpiryTrial(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)

	course := &model.Course{
		Title:             "Trial Course",
		Price:             10,
		Currency:          "usd",
		IsPublished:       true,
		AccessType:        model.AccessTypeTrial,
		TrialDurationDays: 7,
	}
	require.NoError(t, db.Create(course).Error)

	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), "pi_trial", course.ID, user.ID))

	var grant model.CourseAccess
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&grant).Error)
	require.NotNil(t, grant.ExpiresAt)
	assert.Equal(t, grant.StartsAt.AddDate(0, 0, 7).Unix(), grant.ExpiresAt.Unix())
}

func TestAccessExpirySubscription(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)

	course := &model.Course{
		Title:                      "Subscription Course",
		Price:                      10,
		Currency:                   "usd",
		IsPublished:                true,
		AccessType:                 model.AccessTypeSubscription,
		SubscriptionDurationMonths: 3,
	}
	require.NoError(t, db.Create(course).Error)

	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), "pi_sub", course.ID, user.ID))

	var grant model.CourseAccess
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&grant).Error)
	require.NotNil(t, grant.ExpiresAt)
	assert.Equal(t, grant.StartsAt.AddDate(0, 3, 0).Unix(), grant.ExpiresAt.Unix())
}

func TestMarkPaymentFailed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	result, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaymentFailed(context.Background(), result.PaymentIntentID))

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", result.PaymentIntentID).First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusFailed, purchase.Status)

	// A failure event after completion leaves the completed row alone
	require.NoError(t, db.Model(&purchase).Update("status", model.PurchaseStatusCompleted).Error)
	require.NoError(t, svc.MarkPaymentFailed(context.Background(), result.PaymentIntentID))
	require.NoError(t, db.First(&purchase, "id = ?", purchase.ID).Error)
	assert.Equal(t, model.PurchaseStatusCompleted, purchase.Status)
}

func TestHandleRefundExpiresAccess(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	access := NewAccessService(db)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), "pi_refund_me", course.ID, user.ID))
	require.True(t, access.HasAccessToCourse(context.Background(), user.ID, course.ID))

	require.NoError(t, svc.HandleRefund(context.Background(), "pi_refund_me"))

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", "pi_refund_me").First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusRefunded, purchase.Status)

	var grant model.CourseAccess
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&grant).Error)
	require.NotNil(t, grant.ExpiresAt)
	assert.False(t, grant.ExpiresAt.After(time.Now()))

	// Refunded purchase no longer counts as a completed-purchase fallback
	assert.False(t, access.HasAccessToCourse(context.Background(), user.ID, course.ID))
}

func TestHandleRefundDoubleRefund(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	require.NoError(t, svc.HandlePaymentSuccess(context.Background(), "pi_once", course.ID, user.ID))
	require.NoError(t, svc.HandleRefund(context.Background(), "pi_once"))

	err := svc.HandleRefund(context.Background(), "pi_once")
	assert.ErrorIs(t, err, ErrPurchaseAlreadyTerminal)
}

func TestReconcileAccessGrants(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	// A completed purchase whose grant never landed
	purchase := &model.CoursePurchase{
		UserID:              user.ID,
		CourseID:            course.ID,
		Amount:              course.Price,
		Currency:            "usd",
		Status:              model.PurchaseStatusCompleted,
		PaymentIntentID:     "pi_needs_repair",
		PaymentMethod:       "stripe",
		NeedsReconciliation: true,
	}
	require.NoError(t, db.Create(purchase).Error)

	repaired, err := svc.ReconcileAccessGrants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	var grant model.CourseAccess
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&grant).Error)
	assert.Equal(t, purchase.ID, grant.PurchaseID)

	var reloaded model.CoursePurchase
	require.NoError(t, db.First(&reloaded, "id = ?", purchase.ID).Error)
	assert.False(t, reloaded.NeedsReconciliation)

	// Second pass finds nothing to repair
	repaired, err = svc.ReconcileAccessGrants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}

func TestExpireStalePendingPurchases(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFulfillmentService(db, &fakeGateway{})
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	stale := &model.CoursePurchase{
		UserID:          user.ID,
		CourseID:        course.ID,
		Amount:          course.Price,
		Currency:        "usd",
		Status:          model.PurchaseStatusPending,
		PaymentIntentID: "pi_stale",
		PaymentMethod:   "stripe",
	}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Model(stale).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := &model.CoursePurchase{
		UserID:          user.ID,
		CourseID:        course.ID,
		Amount:          course.Price,
		Currency:        "usd",
		Status:          model.PurchaseStatusPending,
		PaymentIntentID: "pi_fresh",
		PaymentMethod:   "stripe",
	}
	require.NoError(t, db.Create(fresh).Error)

	expired, err := svc.ExpireStalePendingPurchases(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	var reloaded model.CoursePurchase
	require.NoError(t, db.First(&reloaded, "id = ?", stale.ID).Error)
	assert.Equal(t, model.PurchaseStatusFailed, reloaded.Status)

	reloaded = model.CoursePurchase{}
	require.NoError(t, db.First(&reloaded, "id = ?", fresh.ID).Error)
	assert.Equal(t, model.PurchaseStatusPending, reloaded.Status)
}

func TestCreatePaymentIntentGatewayError(t *testing.T) {
	db := setupTestDB(t)
	gateway := &fakeGateway{err: errors.New("stripe unavailable")}
	svc := NewFulfillmentService(db, gateway)
	user := createTestUser(t, db)
	course := createTestCourse(t, db, 10)

	_, err := svc.CreatePaymentIntent(context.Background(), user.ID, course.ID)
	require.Error(t, err)

	// No partial purchase row is left behind
	var count int64
	require.NoError(t, db.Model(&model.CoursePurchase{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
