package handlers

import (
	"errors"

	"tontinehub/internal/core/domain"
	"tontinehub/internal/core/services"
	"tontinehub/internal/pkg/pagination"
	"tontinehub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PoolHandler handles pool management endpoints
type PoolHandler struct {
	poolService *services.PoolService
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(poolService *services.PoolService) *PoolHandler {
	return &PoolHandler{poolService: poolService}
}

// CreatePool handles pool creation
// @Summary Create pool
// @Description Create a new savings pool in PENDING state
// @Tags Pools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreatePoolInput true "Pool data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools [post]
func (h *PoolHandler) CreatePool(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.CreatePoolInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	pool, err := h.poolService.CreatePool(c.Context(), userID, &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Name and a positive amount are required")
		case errors.Is(err, domain.ErrInvalidWindowMins):
			return response.BadRequest(c, "Opt-in window must be between 5 and 1440 minutes")
		case errors.Is(err, domain.ErrPoolNameTaken):
			return response.Conflict(c, "Pool name already in use")
		default:
			return response.InternalServerError(c, "Failed to create pool")
		}
	}

	return response.Created(c, "Pool created successfully", pool)
}

// GetPool returns a single pool with its roster
// @Summary Get pool
// @Description Get pool details including roster
// @Tags Pools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /pools/{id} [get]
func (h *PoolHandler) GetPool(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	pool, err := h.poolService.GetPool(c.Context(), uint(poolID))
	if err != nil {
		return response.NotFound(c, "Pool not found")
	}

	return response.Success(c, "Pool retrieved successfully", pool)
}

// ListPools returns a paginated pool list
// @Summary List pools
// @Description List pools with pagination
// @Tags Pools
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /pools [get]
func (h *PoolHandler) ListPools(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	pools, total, err := h.poolService.ListPools(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list pools")
	}

	return response.Paginated(c, "Pools retrieved successfully", pools, pagination.GetMeta(params, total))
}

// AddMember adds a user to a pending pool's roster
// @Summary Add pool member
// @Description Add a user to the roster of a PENDING pool
// @Tags Pools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Param body body services.AddMemberInput true "Member data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/members [post]
func (h *PoolHandler) AddMember(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var input services.AddMemberInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UserID == 0 {
		return response.BadRequest(c, "User ID is required")
	}

	member, err := h.poolService.AddMember(c.Context(), uint(poolID), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		case errors.Is(err, domain.ErrPoolNotPending):
			return response.Conflict(c, "Roster can only change while the pool is pending")
		case errors.Is(err, domain.ErrAlreadyMember):
			return response.Conflict(c, "User is already a member of this pool")
		default:
			return response.InternalServerError(c, "Failed to add member")
		}
	}

	return response.Created(c, "Member added successfully", member)
}

// SetTreasurer assigns the pool treasurer
// @Summary Set treasurer
// @Description Assign a roster member as the pool treasurer
// @Tags Pools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /pools/{id}/treasurer [put]
func (h *PoolHandler) SetTreasurer(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return response.BadRequest(c, "User ID is required")
	}

	if err := h.poolService.SetTreasurer(c.Context(), uint(poolID), req.UserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrNotPoolMember):
			return response.BadRequest(c, "Treasurer must be a pool member")
		default:
			return response.InternalServerError(c, "Failed to set treasurer")
		}
	}

	return response.Success(c, "Treasurer assigned successfully", nil)
}

// Activate transitions a pool from PENDING to ACTIVE
// @Summary Activate pool
// @Description Activate a pool once its roster and treasurer are in place
// @Tags Pools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/activate [post]
func (h *PoolHandler) Activate(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	pool, err := h.poolService.Activate(c.Context(), uint(poolID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrPoolNotPending):
			return response.Conflict(c, "Pool is not pending")
		case errors.Is(err, domain.ErrRosterTooSmall):
			return response.BadRequest(c, "Pool roster is below the minimum size")
		case errors.Is(err, domain.ErrNoTreasurer):
			return response.BadRequest(c, "Pool has no assigned treasurer")
		default:
			return response.InternalServerError(c, "Failed to activate pool")
		}
	}

	return response.Success(c, "Pool activated successfully", pool)
}

// Suspend pauses an active pool
// @Summary Suspend pool
// @Description Suspend an ACTIVE pool, blocking new rounds
// @Tags Pools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/suspend [post]
func (h *PoolHandler) Suspend(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	if err := h.poolService.Suspend(c.Context(), uint(poolID)); err != nil {
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrPoolNotActive):
			return response.Conflict(c, "Pool is not active")
		default:
			return response.InternalServerError(c, "Failed to suspend pool")
		}
	}

	return response.Success(c, "Pool suspended successfully", nil)
}

// Resume reactivates a suspended pool
// @Summary Resume pool
// @Description Resume a SUSPENDED pool
// @Tags Pools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Pool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /pools/{id}/resume [post]
func (h *PoolHandler) Resume(c *fiber.Ctx) error {
	poolID, err := c.ParamsInt("id")
	if err != nil || poolID < 1 {
		return response.BadRequest(c, "Invalid pool ID")
	}

	if err := h.poolService.Resume(c.Context(), uint(poolID)); err != nil {
		switch {
		case errors.Is(err, domain.ErrPoolNotFound):
			return response.NotFound(c, "Pool not found")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.Conflict(c, "Pool is not suspended")
		default:
			return response.InternalServerError(c, "Failed to resume pool")
		}
	}

	return response.Success(c, "Pool resumed successfully", nil)
}
