package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suhanipatel/faceglow-api/model"
	"github.com/suhanipatel/faceglow-api/services"
	"github.com/suhanipatel/faceglow-api/services/stripe"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "whsec_handler_test"

func setupWebhookApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CoursePurchase{},
		&model.CourseAccess{},
	))

	fulfillment := services.NewFulfillmentService(db, nil)
	handler := NewStripeHandler(fulfillment, testSecret)

	app := fiber.New()
	app.Post("/webhooks/stripe", handler.HandleWebhook)
	return app, db
}

func seedUserAndCourse(t *testing.T, db *gorm.DB) (*model.User, *model.Course) {
	t.Helper()
	user := &model.User{
		Email:        fmt.Sprintf("webhook-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "x",
		Name:         "Webhook Test",
	}
	require.NoError(t, db.Create(user).Error)
	course := &model.Course{
		Title:       "Gated Course",
		Price:       10,
		Currency:    "usd",
		IsPublished: true,
		AccessType:  model.AccessTypeLifetime,
	}
	require.NoError(t, db.Create(course).Error)
	return user, course
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sigHeader string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &parsed))
	}
	return resp.StatusCode, parsed
}

func sign(payload []byte) string {
	ts := time.Now().Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, stripe.ComputeSignature(ts, payload, testSecret))
}

func successEvent(intentID, courseID, userID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": %d,
		"data": {"object": {"id": %q, "metadata": {"courseId": %q, "userId": %q}}}
	}`, time.Now().Unix(), intentID, courseID, userID))
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedUserAndCourse(t, db)

	status, _ := postWebhook(t, app, successEvent("pi_unsigned", course.ID, user.ID), "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	var count int64
	require.NoError(t, db.Model(&model.CoursePurchase{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedUserAndCourse(t, db)

	payload := successEvent("pi_forged", course.ID, user.ID)
	ts := time.Now().Unix()
	forged := fmt.Sprintf("t=%d,v1=%s", ts, stripe.ComputeSignature(ts, payload, "whsec_wrong"))

	status, _ := postWebhook(t, app, payload, forged)
	assert.Equal(t, fiber.StatusBadRequest, status)

	var count int64
	require.NoError(t, db.Model(&model.CoursePurchase{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWebhookPaymentSucceededGrantsAccess(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedUserAndCourse(t, db)

	payload := successEvent("pi_hook_1", course.ID, user.ID)
	status, body := postWebhook(t, app, payload, sign(payload))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", "pi_hook_1").First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusCompleted, purchase.Status)

	var grant model.CourseAccess
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&grant).Error)
	assert.Nil(t, grant.ExpiresAt)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedUserAndCourse(t, db)

	payload := successEvent("pi_hook_2", course.ID, user.ID)
	status, _ := postWebhook(t, app, payload, sign(payload))
	require.Equal(t, fiber.StatusOK, status)
	status, _ = postWebhook(t, app, payload, sign(payload))
	require.Equal(t, fiber.StatusOK, status)

	var count int64
	require.NoError(t, db.Model(&model.CourseAccess{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookChargeRefunded(t *testing.T) {
	app, db := setupWebhookApp(t)
	user, course := seedUserAndCourse(t, db)

	payload := successEvent("pi_hook_3", course.ID, user.ID)
	status, _ := postWebhook(t, app, payload, sign(payload))
	require.Equal(t, fiber.StatusOK, status)

	refund := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"type": "charge.refunded",
		"created": %d,
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_hook_3", "refunded": true}}
	}`, time.Now().Unix()))

	status, _ = postWebhook(t, app, refund, sign(refund))
	require.Equal(t, fiber.StatusOK, status)

	var purchase model.CoursePurchase
	require.NoError(t, db.Where("payment_intent_id = ?", "pi_hook_3").First(&purchase).Error)
	assert.Equal(t, model.PurchaseStatusRefunded, purchase.Status)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	app, _ := setupWebhookApp(t)

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_3",
		"type": "customer.created",
		"created": %d,
		"data": {"object": {}}
	}`, time.Now().Unix()))

	status, body := postWebhook(t, app, payload, sign(payload))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
}
