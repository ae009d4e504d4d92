package handlers

import (
	"errors"
	"strings"

	"tontinehub/internal/core/domain"
	"tontinehub/internal/core/services"
	"tontinehub/internal/pkg/pagination"
	"tontinehub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles contribution payment endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordPayment records a pending contribution
// @Summary Record payment
// @Description Record a member contribution for an installment, pending validation
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.RecordPaymentInput true "Payment data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments [post]
func (h *PaymentHandler) RecordPayment(c *fiber.Ctx) error {
	var input services.RecordPaymentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	payment, err := h.paymentService.RecordPayment(c.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Pool, user, installment and a positive amount are required")
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrNotPoolMember):
			return response.BadRequest(c, "User is not a member of this pool")
		default:
			return response.InternalServerError(c, "Failed to record payment")
		}
	}

	return response.Created(c, "Payment recorded successfully", payment)
}

// Validate marks a pending payment as validated (treasurer action)
// @Summary Validate payment
// @Description Validate a pending contribution
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id}/validate [post]
func (h *PaymentHandler) Validate(c *fiber.Ctx) error {
	paymentID, err := c.ParamsInt("id")
	if err != nil || paymentID < 1 {
		return response.BadRequest(c, "Invalid payment ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	payment, err := h.paymentService.Validate(c.Context(), uint(paymentID), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Payment not found")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.Conflict(c, "Payment is not pending")
		default:
			return response.InternalServerError(c, "Failed to validate payment")
		}
	}

	return response.Success(c, "Payment validated successfully", payment)
}

// Reject marks a pending payment as rejected (treasurer action)
// @Summary Reject payment
// @Description Reject a pending contribution with a reason
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *fiber.Ctx) error {
	paymentID, err := c.ParamsInt("id")
	if err != nil || paymentID < 1 {
		return response.BadRequest(c, "Invalid payment ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return response.BadRequest(c, "Rejection reason is required")
	}

	payment, err := h.paymentService.Reject(c.Context(), uint(paymentID), userID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Payment not found")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.Conflict(c, "Payment is not pending")
		default:
			return response.InternalServerError(c, "Failed to reject payment")
		}
	}

	return response.Success(c, "Payment rejected", payment)
}

// ListByPool returns the payments recorded against a pool
// @Summary List pool payments
// @Description List contributions for a pool with pagination
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /pools/{id}/payments [get]
func (h *PaymentHandler) ListByPool(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	params := pagination.GetParams(c)

	payments, total, err := h.paymentService.ListByPool(c.Context(), uint(poolID), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list payments")
	}

	return response.Paginated(c, "Payments retrieved successfully", payments, pagination.GetMeta(params, total))
}
