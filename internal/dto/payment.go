package dto

import "github.com/skrillzofficial/eventry-api/internal/models"

// InitializeServiceFeeRequest begins the service-fee payment handoff for a
// publish-ready free event. EventID references the stored draft row so that
// verification publishes it in place; when absent the snapshot in EventData
// is published as a new row.
type InitializeServiceFeeRequest struct {
	EventID         string            `json:"eventId"`
	EventData       models.EventDraft `json:"eventData" validate:"required"`
	ServiceFee      string            `json:"serviceFee" validate:"required"`
	AttendanceRange string            `json:"attendanceRange" validate:"required"`
	TermsAccepted   bool              `json:"termsAccepted" validate:"required"`
}

// InitializeServiceFeeResponse carries the gateway redirect target. Control
// leaves the application entirely after this response.
type InitializeServiceFeeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// VerifyServiceFeeResponse is returned from the return-redirect verification.
type VerifyServiceFeeResponse struct {
	Event       *models.Event       `json:"event,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	IsDraft     bool                `json:"is_draft"`
}
