package handler

import (
	"book-rental-engine/internal/adapter/http/dto"
	"book-rental-engine/internal/adapter/http/middleware"
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/apperror"
	"book-rental-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContractHandler handles rental contract endpoints.
type ContractHandler struct {
	contractSvc ports.ContractService
}

// NewContractHandler creates a new ContractHandler.
func NewContractHandler(contractSvc ports.ContractService) *ContractHandler {
	return &ContractHandler{contractSvc: contractSvc}
}

// userFromContext retrieves the authenticated user ID set by JWTAuth.
func userFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// contractID parses the :id path parameter.
func contractID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid contract id")
	}
	return id, nil
}

// Create handles POST /api/v1/contracts. The authenticated caller is the
// borrower requesting the rental.
func (h *ContractHandler) Create(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	view, err := h.contractSvc.Create(c.Request.Context(), ports.CreateContractInput{
		BookID:          req.BookID,
		OwnerID:         req.OwnerID,
		BorrowerID:      userID,
		DailyPrice:      req.DailyPrice,
		LateDailyPrice:  req.LateDailyPrice,
		NewBookPriceCap: req.NewBookPriceCap,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, view)
}

// Get handles GET /api/v1/contracts/:id.
func (h *ContractHandler) Get(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := contractID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.contractSvc.Get(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}

// List handles GET /api/v1/contracts — contracts where the caller is a party.
func (h *ContractHandler) List(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	views, err := h.contractSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, views)
}

// Agree handles POST /api/v1/contracts/:id/agree.
func (h *ContractHandler) Agree(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := contractID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.contractSvc.Agree(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}

// RequestReturn handles POST /api/v1/contracts/:id/return.
func (h *ContractHandler) RequestReturn(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := contractID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.contractSvc.RequestReturn(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}

// AgreeReturn handles POST /api/v1/contracts/:id/return/agree.
func (h *ContractHandler) AgreeReturn(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := contractID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.contractSvc.AgreeReturn(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}
