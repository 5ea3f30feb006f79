package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
	"github.com/skrillzofficial/eventry-api/internal/service"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
	"github.com/skrillzofficial/eventry-api/pkg/response"
)

// TransactionHandler exposes the service-fee payment handoff over HTTP. The
// initialize endpoint hands control to the gateway; the verify endpoint is
// hit when the gateway redirects the organizer back.
type TransactionHandler struct {
	handoffs *service.HandoffService
	metrics  *service.MetricsService
}

// NewTransactionHandler creates a new handler.
func NewTransactionHandler(handoffs *service.HandoffService, metrics *service.MetricsService) *TransactionHandler {
	return &TransactionHandler{handoffs: handoffs, metrics: metrics}
}

// InitializeServiceFee godoc
// @Summary Initialize service fee payment
// @Description Persist the payment handoff and return the gateway redirect URL
// @Tags Transactions
// @Accept json
// @Produce json
// @Param payload body dto.InitializeServiceFeeRequest true "Service fee payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /transactions/service-fee/initialize [post]
func (h *TransactionHandler) InitializeServiceFee(c *gin.Context) {
	var req dto.InitializeServiceFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid service fee payload"))
		return
	}

	res, err := h.handoffs.Begin(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// VerifyServiceFee godoc
// @Summary Verify service fee payment
// @Description Resume the payment handoff after the gateway redirect
// @Tags Transactions
// @Produce json
// @Param reference path string true "Gateway reference"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /transactions/service-fee/verify/{reference} [get]
func (h *TransactionHandler) VerifyServiceFee(c *gin.Context) {
	result := h.handoffs.Resume(c.Request.Context(), c.Param("reference"))
	h.metrics.RecordHandoff(string(result.State), string(result.Reason))
	response.JSON(c, handoffStatus(result), result, nil)
}

// handoffStatus maps a terminal handoff result to an HTTP status. The body
// always carries the full result; the status is a coarse summary for clients
// that only look at codes.
func handoffStatus(result *models.HandoffResult) int {
	switch result.State {
	case models.HandoffSucceeded:
		return http.StatusOK
	case models.HandoffVerifyingReturn:
		return http.StatusAccepted
	}
	switch result.Reason {
	case models.FailureMissingReference:
		return http.StatusBadRequest
	case models.FailureExpiredOrUntracked:
		return http.StatusGone
	case models.FailureEventNotReturned:
		return http.StatusBadGateway
	default:
		return http.StatusPaymentRequired
	}
}
