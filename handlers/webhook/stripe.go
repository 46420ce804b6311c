package webhook

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/services"
	"github.com/suhanipatel/faceglow-api/services/stripe"
	"github.com/suhanipatel/faceglow-api/utils/response"
)

// StripeHandler receives payment gateway webhooks. Signature verification
// happens before any state change; an unverifiable payload is rejected with
// 400 and never touches the database.
type StripeHandler struct {
	fulfillment   *services.FulfillmentService
	webhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(fulfillment *services.FulfillmentService, webhookSecret string) *StripeHandler {
	return &StripeHandler{
		fulfillment:   fulfillment,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook handles POST /api/v1/webhooks/stripe
func (h *StripeHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	event, err := stripe.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Printf("Rejected webhook: %v", err)
		return response.BadRequest(c, "Invalid webhook signature")
	}

	switch event.Type {
	case stripe.EventPaymentIntentSucceeded:
		return h.handlePaymentSucceeded(c, event)
	case stripe.EventPaymentIntentFailed:
		return h.handlePaymentFailed(c, event)
	case stripe.EventChargeRefunded:
		return h.handleChargeRefunded(c, event)
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying
		log.Printf("Ignoring webhook event type %s", event.Type)
		return response.Success(c, fiber.Map{"received": true})
	}
}

func (h *StripeHandler) handlePaymentSucceeded(c *fiber.Ctx, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return response.BadRequest(c, "Malformed payment intent payload")
	}

	courseID := intent.Metadata["courseId"]
	userID := intent.Metadata["userId"]

	err := h.fulfillment.HandlePaymentSuccess(c.Context(), intent.ID, courseID, userID)
	if err != nil {
		if errors.Is(err, services.ErrAccessGrantFailed) {
			// The purchase is recorded and flagged; acknowledge so the
			// event is not redelivered while reconciliation retries.
			log.Printf("Webhook %s: access grant deferred for intent %s", event.ID, intent.ID)
			return response.Success(c, fiber.Map{"received": true})
		}
		log.Printf("Webhook %s: fulfillment failed for intent %s: %v", event.ID, intent.ID, err)
		return response.InternalServerError(c, "Failed to process payment")
	}

	return response.Success(c, fiber.Map{"received": true})
}

func (h *StripeHandler) handlePaymentFailed(c *fiber.Ctx, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return response.BadRequest(c, "Malformed payment intent payload")
	}

	if err := h.fulfillment.MarkPaymentFailed(c.Context(), intent.ID); err != nil {
		log.Printf("Webhook %s: failed to mark intent %s failed: %v", event.ID, intent.ID, err)
		return response.InternalServerError(c, "Failed to process payment failure")
	}

	return response.Success(c, fiber.Map{"received": true})
}

func (h *StripeHandler) handleChargeRefunded(c *fiber.Ctx, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return response.BadRequest(c, "Malformed charge payload")
	}
	if charge.PaymentIntent == "" {
		return response.BadRequest(c, "Charge has no payment intent")
	}

	if err := h.fulfillment.HandleRefund(c.Context(), charge.PaymentIntent); err != nil {
		log.Printf("Webhook %s: failed to process refund for intent %s: %v", event.ID, charge.PaymentIntent, err)
		return response.InternalServerError(c, "Failed to process refund")
	}

	return response.Success(c, fiber.Map{"received": true})
}
