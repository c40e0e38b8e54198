package handler

import (
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// BillingHandler exposes the billing run trigger for the platform scheduler.
type BillingHandler struct {
	billingSvc ports.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingSvc ports.BillingService) *BillingHandler {
	return &BillingHandler{billingSvc: billingSvc}
}

// Run handles POST /internal/billing/run. The operation is idempotent: a
// concurrent run is fenced out by the run lease and per-row locks, and a
// re-run selects nothing until the next charge times come due.
func (h *BillingHandler) Run(c *gin.Context) {
	report, err := h.billingSvc.ProcessDueContracts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, report)
}
