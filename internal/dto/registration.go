package dto

import "github.com/skrillzofficial/eventry-api/internal/models"

// RegisterRequest claims one ticket tier of a published event. Answers are
// required when the chosen tier is approval-gated.
type RegisterRequest struct {
	TicketName models.TicketName       `json:"ticketName" validate:"required,oneof=Regular VIP VVIP"`
	Answers    []models.ApprovalAnswer `json:"answers,omitempty"`
}

// RegistrationDecisionRequest approves or declines a pending registration.
type RegistrationDecisionRequest struct {
	Note string `json:"note,omitempty"`
}
