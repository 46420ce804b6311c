package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/services/stripe"
	"gorm.io/gorm"
)

var (
	// ErrSignInRequired means the caller had no authenticated session
	ErrSignInRequired = errors.New("please sign in to make a purchase")
	// ErrMissingFields means required purchase parameters were absent
	ErrMissingFields = errors.New("missing required fields: courseId and amount")
	// ErrCourseNotFound means the course does not exist
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseNotPurchasable means the course is free or unpublished
	ErrCourseNotPurchasable = errors.New("course cannot be purchased")
	// ErrPurchaseAlreadyTerminal means the purchase already reached a final status
	ErrPurchaseAlreadyTerminal = errors.New("purchase already finalized")

	// ErrAccessGrantFailed is the paid-but-not-granted case: the payment
	// completed and the purchase row exists, but the access insert failed.
	// Callers must surface this distinctly; the purchase is flagged for
	// reconciliation and retried by the background job.
	ErrAccessGrantFailed = errors.New("payment recorded but access grant failed")
)

// PaymentGateway is the part of the Stripe client fulfillment needs
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
}

// FulfillmentService turns confirmed payments into durable purchase and
// access records. Both the client confirmation path and the webhook call
// into the same idempotent fulfillment.
type FulfillmentService struct {
	db      *gorm.DB
	gateway PaymentGateway
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(db *gorm.DB, gateway PaymentGateway) *FulfillmentService {
	return &FulfillmentService{
		db:      db,
		gateway: gateway,
	}
}

// PaymentIntentResult is returned to the client to drive card confirmation
type PaymentIntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"` // minor units
	Currency        string `json:"currency"`
}

// CreatePaymentIntent starts a purchase: it creates the gateway intent and a
// pending CoursePurchase row carrying the intent id. The decimal price is
// converted to minor units before transmission.
func (s *FulfillmentService) CreatePaymentIntent(ctx context.Context, userID, courseID string) (*PaymentIntentResult, error) {
	if userID == "" {
		return nil, ErrSignInRequired
	}
	if courseID == "" {
		return nil, ErrMissingFields
	}

	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	if course.IsFree() {
		return nil, ErrCourseNotPurchasable
	}

	amount := stripe.AmountInMinorUnits(course.Price)
	intent, err := s.gateway.CreatePaymentIntent(ctx, amount, course.Currency, map[string]string{
		"courseId": course.ID,
		"userId":   userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	purchase := model.CoursePurchase{
		UserID:          userID,
		CourseID:        course.ID,
		Amount:          course.Price,
		Currency:        course.Currency,
		Status:          model.PurchaseStatusPending,
		PaymentIntentID: intent.ID,
		PaymentMethod:   "stripe",
	}
	if err := s.db.WithContext(ctx).Create(&purchase).Error; err != nil {
		// The gateway intent exists but we lost the local record; the client
		// can retry, and the confirmation path recreates the row if needed.
		log.Printf("Failed to record pending purchase for intent %s: %v", intent.ID, err)
		return nil, fmt.Errorf("failed to record pending purchase: %w", err)
	}

	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        course.Currency,
	}, nil
}

// HandlePaymentSuccess records a confirmed payment and grants course access.
// It is idempotent: redelivered webhooks and a racing client confirmation
// converge on one completed purchase and one access row.
func (s *FulfillmentService) HandlePaymentSuccess(ctx context.Context, paymentIntentID, courseID, userID string) error {
	if paymentIntentID == "" || courseID == "" || userID == "" {
		return ErrMissingFields
	}

	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("failed to load course: %w", err)
	}

	purchase, err := s.completePurchase(ctx, &course, paymentIntentID, userID)
	if err != nil {
		return err
	}

	if err := s.grantAccess(ctx, &course, purchase); err != nil {
		// Paid but not granted: flag the purchase and surface the failure
		// loudly. The reconcile job retries until the grant succeeds.
		log.Printf("SEVERE: access grant failed for purchase %s (user %s, course %s): %v",
			purchase.ID, userID, course.ID, err)
		if markErr := s.db.WithContext(ctx).
			Model(&model.CoursePurchase{}).
			Where("id = ?", purchase.ID).
			Update("needs_reconciliation", true).Error; markErr != nil {
			log.Printf("SEVERE: failed to flag purchase %s for reconciliation: %v", purchase.ID, markErr)
		}
		return fmt.Errorf("%w: %v", ErrAccessGrantFailed, err)
	}

	return nil
}

// completePurchase reconciles the two historical creation flows into one
// lifecycle: a pending row (created at intent time) is promoted to completed
// with a status-guarded update; a missing row (webhook-only flow) is inserted
// directly as completed.
func (s *FulfillmentService) completePurchase(ctx context.Context, course *model.Course, paymentIntentID, userID string) (*model.CoursePurchase, error) {
	var purchase model.CoursePurchase
	err := s.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&purchase).Error

	switch {
	case err == nil:
		if purchase.Status == model.PurchaseStatusCompleted {
			return &purchase, nil
		}
		if purchase.IsTerminal() {
			return nil, fmt.Errorf("%w: status is %q", ErrPurchaseAlreadyTerminal, purchase.Status)
		}

		// Guarded transition: only a pending row may complete, exactly once
		res := s.db.WithContext(ctx).
			Model(&model.CoursePurchase{}).
			Where("id = ? AND status = ?", purchase.ID, model.PurchaseStatusPending).
			Update("status", model.PurchaseStatusCompleted)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to complete purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race; re-read and accept whatever terminal state won
			if err := s.db.WithContext(ctx).First(&purchase, "id = ?", purchase.ID).Error; err != nil {
				return nil, fmt.Errorf("failed to reload purchase: %w", err)
			}
			if purchase.Status != model.PurchaseStatusCompleted {
				return nil, fmt.Errorf("%w: status is %q", ErrPurchaseAlreadyTerminal, purchase.Status)
			}
			return &purchase, nil
		}
		purchase.Status = model.PurchaseStatusCompleted
		return &purchase, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		purchase = model.CoursePurchase{
			UserID:          userID,
			CourseID:        course.ID,
			Amount:          course.Price,
			Currency:        course.Currency,
			Status:          model.PurchaseStatusCompleted,
			PaymentIntentID: paymentIntentID,
			PaymentMethod:   "stripe",
		}
		if createErr := s.db.WithContext(ctx).Create(&purchase).Error; createErr != nil {
			// A concurrent fulfillment may have inserted the same intent id;
			// the unique index turns that into one row we can re-read.
			if isUniqueViolation(createErr) {
				var existing model.CoursePurchase
				if err := s.db.WithContext(ctx).
					Where("payment_intent_id = ?", paymentIntentID).
					First(&existing).Error; err == nil {
					return &existing, nil
				}
			}
			return nil, fmt.Errorf("failed to record purchase: %w", createErr)
		}
		return &purchase, nil

	default:
		return nil, fmt.Errorf("failed to look up purchase: %w", err)
	}
}

// grantAccess inserts the CourseAccess row unless one already exists for the
// (user, course) pair. Expiry derives from the course's access type.
func (s *FulfillmentService) grantAccess(ctx context.Context, course *model.Course, purchase *model.CoursePurchase) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.CourseAccess{}).
		Where("user_id = ? AND course_id = ?", purchase.UserID, course.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check existing access: %w", err)
	}
	if count > 0 {
		// Already granted; fulfillment is a no-op
		return nil
	}

	now := time.Now()
	access := model.CourseAccess{
		UserID:     purchase.UserID,
		CourseID:   course.ID,
		PurchaseID: purchase.ID,
		AccessType: course.AccessType,
		StartsAt:   now,
		ExpiresAt:  accessExpiry(course, now),
	}
	if err := s.db.WithContext(ctx).Create(&access).Error; err != nil {
		if isUniqueViolation(err) {
			// A concurrent fulfillment won; the invariant holds
			return nil
		}
		return fmt.Errorf("failed to insert access grant: %w", err)
	}
	return nil
}

// accessExpiry computes the grant expiry from the course's access type:
// lifetime is perpetual (nil), trial and subscription use date arithmetic.
func accessExpiry(course *model.Course, startsAt time.Time) *time.Time {
	switch course.AccessType {
	case model.AccessTypeTrial:
		expires := startsAt.AddDate(0, 0, course.TrialDurationDays)
		return &expires
	case model.AccessTypeSubscription:
		expires := startsAt.AddDate(0, course.SubscriptionDurationMonths, 0)
		return &expires
	default:
		return nil
	}
}

// MarkPaymentFailed transitions a pending purchase to failed. Terminal
// purchases are left untouched.
func (s *FulfillmentService) MarkPaymentFailed(ctx context.Context, paymentIntentID string) error {
	res := s.db.WithContext(ctx).
		Model(&model.CoursePurchase{}).
		Where("payment_intent_id = ? AND status = ?", paymentIntentID, model.PurchaseStatusPending).
		Update("status", model.PurchaseStatusFailed)
	if res.Error != nil {
		return fmt.Errorf("failed to mark purchase failed: %w", res.Error)
	}
	return nil
}

// HandleRefund marks a completed purchase refunded and expires its access
// grant immediately.
func (s *FulfillmentService) HandleRefund(ctx context.Context, paymentIntentID string) error {
	var purchase model.CoursePurchase
	err := s.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no purchase for payment intent %s", paymentIntentID)
		}
		return fmt.Errorf("failed to look up purchase: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&model.CoursePurchase{}).
		Where("id = ? AND status = ?", purchase.ID, model.PurchaseStatusCompleted).
		Update("status", model.PurchaseStatusRefunded)
	if res.Error != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: status is %q", ErrPurchaseAlreadyTerminal, purchase.Status)
	}

	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&model.CourseAccess{}).
		Where("purchase_id = ?", purchase.ID).
		Update("expires_at", now).Error
}

// FetchUserPurchases returns all purchases for a user, newest first
func (s *FulfillmentService) FetchUserPurchases(ctx context.Context, userID string) ([]model.CoursePurchase, error) {
	var purchases []model.CoursePurchase
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

// ReconcileAccessGrants retries the access insert for completed purchases
// flagged needs_reconciliation. Returns the number repaired.
func (s *FulfillmentService) ReconcileAccessGrants(ctx context.Context) (int, error) {
	var purchases []model.CoursePurchase
	err := s.db.WithContext(ctx).
		Where("status = ? AND needs_reconciliation = ?", model.PurchaseStatusCompleted, true).
		Find(&purchases).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list purchases needing reconciliation: %w", err)
	}

	repaired := 0
	for i := range purchases {
		purchase := &purchases[i]

		var course model.Course
		if err := s.db.WithContext(ctx).First(&course, "id = ?", purchase.CourseID).Error; err != nil {
			log.Printf("Reconcile: failed to load course %s for purchase %s: %v", purchase.CourseID, purchase.ID, err)
			continue
		}

		if err := s.grantAccess(ctx, &course, purchase); err != nil {
			log.Printf("Reconcile: access grant still failing for purchase %s: %v", purchase.ID, err)
			continue
		}

		if err := s.db.WithContext(ctx).
			Model(&model.CoursePurchase{}).
			Where("id = ?", purchase.ID).
			Update("needs_reconciliation", false).Error; err != nil {
			log.Printf("Reconcile: failed to clear flag on purchase %s: %v", purchase.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// ExpireStalePendingPurchases fails pending purchases older than maxAge.
// Intents that were never confirmed would otherwise stay pending forever.
func (s *FulfillmentService) ExpireStalePendingPurchases(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.db.WithContext(ctx).
		Model(&model.CoursePurchase{}).
		Where("status = ? AND created_at < ?", model.PurchaseStatusPending, cutoff).
		Update("status", model.PurchaseStatusFailed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire stale pending purchases: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// isUniqueViolation matches unique constraint errors from Postgres and sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
