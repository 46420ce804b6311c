package purchase

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/services"
	"github.com/suhanipatel/faceglow-api/utils/middleware"
	"github.com/suhanipatel/faceglow-api/utils/response"
	"github.com/suhanipatel/faceglow-api/utils/validation"
)

// PurchaseHandler handles purchase and access requests
type PurchaseHandler struct {
	fulfillment *services.FulfillmentService
	access      *services.AccessService
	validator   *validation.Validator
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(fulfillment *services.FulfillmentService, access *services.AccessService) *PurchaseHandler {
	return &PurchaseHandler{
		fulfillment: fulfillment,
		access:      access,
		validator:   validation.NewValidator(),
	}
}

// CreateIntentRequest represents the body for starting a purchase
type CreateIntentRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid4"`
}

// ConfirmRequest represents the client-side confirmation body
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	CourseID        string `json:"course_id" validate:"required,uuid4"`
}

// CreateIntent handles POST /api/v1/purchases/intent
func (h *PurchaseHandler) CreateIntent(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return response.Unauthorized(c, "Please sign in to make a purchase")
	}

	var req CreateIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CourseID == "" {
		return response.BadRequest(c, "course_id is required")
	}

	result, err := h.fulfillment.CreatePaymentIntent(c.Context(), userID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSignInRequired):
			return response.Unauthorized(c, err.Error())
		case errors.Is(err, services.ErrMissingFields):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrCourseNotPurchasable):
			return response.BadRequest(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to create payment intent")
		}
	}

	return response.Success(c, result)
}

// Confirm handles POST /api/v1/purchases/confirm, the client-side success
// path. Fulfillment is idempotent so a webhook racing this call is harmless.
func (h *PurchaseHandler) Confirm(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return response.Unauthorized(c, "Please sign in to continue")
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	err := h.fulfillment.HandlePaymentSuccess(c.Context(), req.PaymentIntentID, req.CourseID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrAccessGrantFailed):
			// Payment is safe; the grant retries in the background
			return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
				"Payment received but access could not be granted yet",
				"ACCESS_GRANT_PENDING",
				"Access will be granted automatically. Contact support if it does not appear shortly.")
		default:
			return response.InternalServerError(c, "Failed to confirm purchase")
		}
	}

	return response.SuccessWithMessage(c, "Purchase confirmed", fiber.Map{
		"course_id": req.CourseID,
	})
}

// ListPurchases handles GET /api/v1/me/purchases
func (h *PurchaseHandler) ListPurchases(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return response.Unauthorized(c, "Please sign in to continue")
	}

	purchases, err := h.fulfillment.FetchUserPurchases(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch purchases")
	}
	return response.Success(c, purchases)
}

// ListAccess handles GET /api/v1/me/access
func (h *PurchaseHandler) ListAccess(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return response.Unauthorized(c, "Please sign in to continue")
	}

	access, err := h.access.FetchUserAccess(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch access")
	}
	return response.Success(c, access)
}

// CheckAccess handles GET /api/v1/courses/:id/access. Works for anonymous
// callers too, where only free courses resolve to true.
func (h *PurchaseHandler) CheckAccess(c *fiber.Ctx) error {
	courseID := c.Params("id")
	userID, _ := middleware.GetUserID(c)

	hasAccess := h.access.HasAccessToCourse(c.Context(), userID, courseID)
	if hasAccess && userID != "" {
		// Best effort; a failed touch never blocks the answer
		_ = h.access.TouchLastAccessed(c.Context(), userID, courseID)
	}

	return response.Success(c, fiber.Map{
		"course_id":  courseID,
		"has_access": hasAccess,
	})
}
