package handler

import (
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/apperror"
	"book-rental-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// RewardHandler handles reward evaluation endpoints.
type RewardHandler struct {
	rewardSvc ports.RewardService
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewardSvc ports.RewardService) *RewardHandler {
	return &RewardHandler{rewardSvc: rewardSvc}
}

// Evaluate handles POST /api/v1/rewards/evaluate. Re-invoking is safe: books
// already covered by a claim never qualify again.
func (h *RewardHandler) Evaluate(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	claim, err := h.rewardSvc.EvaluateRewards(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claim == nil {
		// Nothing newly qualified
		response.OK(c, gin.H{"claim": nil})
		return
	}

	response.Created(c, claim)
}

// ListClaims handles GET /api/v1/rewards.
func (h *RewardHandler) ListClaims(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	claims, err := h.rewardSvc.ListClaims(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, claims)
}
