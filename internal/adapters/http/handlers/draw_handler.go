package handlers

import (
	"errors"
	"fmt"

	"tontinehub/internal/core/domain"
	"tontinehub/internal/core/services"
	"tontinehub/internal/pkg/pagination"
	"tontinehub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DrawHandler handles round lifecycle endpoints
type DrawHandler struct {
	drawService *services.DrawService
}

// NewDrawHandler creates a new draw handler
func NewDrawHandler(drawService *services.DrawService) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// StartRound opens a new round for a pool
// @Summary Start round
// @Description Start a draw round: evaluate eligibility, open the opt-in window, notify candidates
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/rounds [post]
func (h *DrawHandler) StartRound(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	handle, err := h.drawService.StartRound(c.Context(), uint(poolID), userID)
	if err != nil {
		var insufficient *domain.InsufficientPaymentsError
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrPoolNotActive):
			return response.Conflict(c, "Pool is not active")
		case errors.Is(err, domain.ErrRoundInProgress):
			return response.Conflict(c, "A round is already in progress for this pool")
		case errors.Is(err, domain.ErrNoEligibleMembers):
			return response.BadRequest(c, "No eligible members for this round")
		case errors.As(err, &insufficient):
			return response.BadRequest(c, fmt.Sprintf("Insufficient validated payments: %d/%d for round %d",
				insufficient.Validated, insufficient.Required, insufficient.RoundNumber))
		default:
			return response.InternalServerError(c, "Failed to start round")
		}
	}

	return response.Created(c, "Round started, opt-in window open", handle)
}

// RespondRequest represents an opt-in window response body
type RespondRequest struct {
	WantsToParticipate *bool `json:"wants_to_participate"`
}

// Respond records a member's opt-in decision for the current round
// @Summary Respond to round
// @Description Record the caller's opt-in or opt-out for the open round
// @Tags Draws
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param body body RespondRequest true "Decision"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 410 {object} response.Response
// @Router /pools/{id}/rounds/respond [post]
func (h *DrawHandler) Respond(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.WantsToParticipate == nil {
		return response.BadRequest(c, "wants_to_participate is required")
	}

	if err := h.drawService.Respond(c.Context(), uint(poolID), userID, *req.WantsToParticipate); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoOpenWindow):
			return response.NotFound(c, "No open opt-in window for this pool")
		case errors.Is(err, domain.ErrWindowClosed):
			return response.Error(c, fiber.StatusGone, "Opt-in window is closed")
		case errors.Is(err, domain.ErrNotPoolMember):
			return response.Forbidden(c, "You were not notified for this round")
		default:
			return response.InternalServerError(c, "Failed to record response")
		}
	}

	return response.Success(c, "Response recorded", nil)
}

// AbortRound cancels the in-flight round before a winner is committed
// @Summary Abort round
// @Description Abort the current round while its opt-in window is still open
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /pools/{id}/rounds/current [delete]
func (h *DrawHandler) AbortRound(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	if err := h.drawService.AbortRound(c.Context(), uint(poolID)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoOpenWindow):
			return response.NotFound(c, "No round in progress for this pool")
		default:
			return response.InternalServerError(c, "Failed to abort round")
		}
	}

	return response.Success(c, "Round aborted", nil)
}

// GetRoundResult returns the committed draw for a round
// @Summary Get round result
// @Description Get the committed draw for a round, including the audit payload
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param round path int true "Round number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /pools/{id}/rounds/{round} [get]
func (h *DrawHandler) GetRoundResult(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}
	roundNumber, err := c.ParamsInt("round")
	if err != nil || roundNumber < 1 {
		return response.BadRequest(c, "Invalid round number")
	}

	result, err := h.drawService.GetRoundResult(c.Context(), uint(poolID), roundNumber)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDrawNotFound):
			return response.NotFound(c, "No draw recorded for this round")
		default:
			return response.InternalServerError(c, "Failed to get round result")
		}
	}

	return response.Success(c, "Round result retrieved successfully", result)
}

// ListRounds returns the draw history for a pool
// @Summary List rounds
// @Description List committed draws for a pool with pagination
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /pools/{id}/rounds [get]
func (h *DrawHandler) ListRounds(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	params := pagination.GetParams(c)

	results, total, err := h.drawService.ListRounds(c.Context(), uint(poolID), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list rounds")
	}

	return response.Paginated(c, "Rounds retrieved successfully", results, pagination.GetMeta(params, total))
}

// CancelDrawRequest represents a draw cancellation request body
type CancelDrawRequest struct {
	Reason string `json:"reason"`
}

// CancelDraw flips a committed draw to CANCELLED
// @Summary Cancel draw
// @Description Cancel a committed draw with a mandatory reason; the ledger entry is kept
// @Tags Draws
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Draw ID"
// @Param body body CancelDrawRequest true "Cancellation reason"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /draws/{id}/cancel [post]
func (h *DrawHandler) CancelDraw(c *fiber.Ctx) error {
	drawID, err := c.ParamsInt("id")
	if err != nil || drawID < 1 {
		return response.BadRequest(c, "Invalid draw ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req CancelDrawRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.drawService.CancelDraw(c.Context(), uint(drawID), req.Reason, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrCancelReasonTooShort):
			return response.BadRequest(c, "Cancellation reason must be at least 10 characters")
		case errors.Is(err, domain.ErrDrawNotFound):
			return response.NotFound(c, "Draw not found")
		case errors.Is(err, domain.ErrDrawAlreadyCancelled):
			return response.Conflict(c, "Draw is already cancelled")
		default:
			return response.InternalServerError(c, "Failed to cancel draw")
		}
	}

	return response.Success(c, "Draw cancelled", nil)
}

// ManualDrawRequest represents a manual draw request body
type ManualDrawRequest struct {
	WinnerID uint `json:"winner_id"`
}

// ManualDraw commits an operator-chosen winner for the next round
// @Summary Manual draw
// @Description Commit an operator-chosen winner, bypassing the opt-in window
// @Tags Draws
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param body body ManualDrawRequest true "Winner"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/rounds/manual [post]
func (h *DrawHandler) ManualDraw(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req ManualDrawRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.WinnerID == 0 {
		return response.BadRequest(c, "Winner ID is required")
	}

	result, err := h.drawService.CommitManualDraw(c.Context(), uint(poolID), req.WinnerID, userID)
	if err != nil {
		var conflict *domain.RoundConflictError
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrPoolNotActive):
			return response.Conflict(c, "Pool is not active")
		case errors.Is(err, domain.ErrRoundInProgress):
			return response.Conflict(c, "A round is already in progress for this pool")
		case errors.Is(err, domain.ErrNotPoolMember):
			return response.BadRequest(c, "Winner must be a pool member")
		case errors.Is(err, domain.ErrWinnerAlreadyWon):
			return response.Conflict(c, "Winner already won a previous round")
		case errors.As(err, &conflict):
			return response.Conflict(c, conflict.Error())
		default:
			return response.InternalServerError(c, "Failed to commit manual draw")
		}
	}

	return response.Created(c, "Manual draw committed", result)
}
