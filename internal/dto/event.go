package dto

import "github.com/skrillzofficial/eventry-api/internal/models"

// PublicationCheck is the outcome of running the publication validator over
// an event draft. BlockingReasons is exhaustive, never short-circuited.
type PublicationCheck struct {
	Publishable       bool                `json:"publishable"`
	BlockingReasons   []string            `json:"blocking_reasons"`
	NormalizedTickets []models.TicketType `json:"normalized_tickets"`
}

// SaveEventRequest creates or updates an event draft. Images are filenames
// previously stored through the upload endpoint.
type SaveEventRequest struct {
	Draft  models.EventDraft `json:"draft"`
	Images []string          `json:"images,omitempty"`
}

// PublishResponse reports what happened on a publish attempt. When the
// organizer still owes a platform service fee the event is left in draft and
// ServiceFeeRequired is set instead.
type PublishResponse struct {
	Event              *models.Event    `json:"event,omitempty"`
	Check              PublicationCheck `json:"check"`
	ServiceFeeRequired bool             `json:"service_fee_required"`
	ServiceFee         string           `json:"service_fee,omitempty"`
	AttendanceRange    string           `json:"attendance_range,omitempty"`
}
