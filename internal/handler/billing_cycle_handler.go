package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type cycleService interface {
	Enqueue(orgID, rawMonth string) (string, error)
}

// BillingCycleHandler queues monthly close runs.
type BillingCycleHandler struct {
	cycles cycleService
}

// NewBillingCycleHandler constructs BillingCycleHandler.
func NewBillingCycleHandler(cycles cycleService) *BillingCycleHandler {
	return &BillingCycleHandler{cycles: cycles}
}

// Run godoc
// @Summary Queue a billing cycle for a month
// @Tags Billing cycle
// @Accept json
// @Produce json
// @Param payload body dto.RunCycleRequest true "Cycle payload"
// @Success 202 {object} response.Envelope
// @Router /billing-cycles [post]
func (h *BillingCycleHandler) Run(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RunCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	jobID, err := h.cycles.Enqueue(claims.OrganizationID, req.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID, "month": req.Month})
}
