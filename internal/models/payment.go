package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HandoffState enumerates the payment handoff state machine.
type HandoffState string

const (
	HandoffIdle             HandoffState = "idle"
	HandoffAgreementPending HandoffState = "agreement_pending"
	HandoffAwaitingRedirect HandoffState = "awaiting_gateway_redirect"
	HandoffVerifyingReturn  HandoffState = "verifying_return"
	HandoffSucceeded        HandoffState = "succeeded"
	HandoffFailed           HandoffState = "failed"
)

// HandoffFailureReason classifies terminal failures of the handoff flow.
type HandoffFailureReason string

const (
	FailureMissingReference   HandoffFailureReason = "missing_reference"
	FailureExpiredOrUntracked HandoffFailureReason = "expired_or_untracked"
	FailureEventNotReturned   HandoffFailureReason = "event_not_returned"
	FailureVerificationFailed HandoffFailureReason = "verification_failed"
)

// Agreement is the signed service-fee agreement captured before payment.
type Agreement struct {
	AttendanceRange string          `json:"attendance_range"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	TermsAccepted   bool            `json:"terms_accepted"`
	SignedBy        string          `json:"signed_by"`
	SignedAt        time.Time       `json:"signed_at"`
}

// PaymentHandoff is the ephemeral record bridging the gateway redirect round
// trip. It is persisted durably (Redis), consumed exactly once, and deleted
// on success, on unrecoverable failure, or when older than the handoff TTL.
type PaymentHandoff struct {
	Reference       string          `json:"reference"`
	OrganizerID     string          `json:"organizer_id"`
	EventID         string          `json:"event_id,omitempty"`
	Agreement       Agreement       `json:"agreement"`
	EventData       EventDraft      `json:"event_data"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	AttendanceRange string          `json:"attendance_range"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExpiredAt reports whether the handoff is older than ttl at the given time.
func (h PaymentHandoff) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(h.CreatedAt) > ttl
}

// HandoffSummary is the minimal duplicate of a handoff kept alongside the
// full record for resilience; enough to identify a payment, not to resume it.
type HandoffSummary struct {
	Reference       string          `json:"reference"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	AttendanceRange string          `json:"attendance_range"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HandoffResult is the terminal outcome of resuming a payment handoff.
type HandoffResult struct {
	State     HandoffState         `json:"state"`
	Reason    HandoffFailureReason `json:"reason,omitempty"`
	Reference string               `json:"reference,omitempty"`
	Event     *Event               `json:"event,omitempty"`
	Detail    string               `json:"detail,omitempty"`
}

// TransactionKind tags what a gateway transaction paid for.
type TransactionKind string

const (
	TransactionServiceFee TransactionKind = "service_fee"
	TransactionTicket     TransactionKind = "ticket"
)

// TransactionStatus is the recorded gateway outcome.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction is a persisted record of a gateway payment attempt.
type Transaction struct {
	ID            string            `db:"id" json:"id"`
	Reference     string            `db:"reference" json:"reference"`
	EventID       *string           `db:"event_id" json:"event_id,omitempty"`
	UserID        string            `db:"user_id" json:"user_id"`
	Kind          TransactionKind   `db:"kind" json:"kind"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Status        TransactionStatus `db:"status" json:"status"`
	GatewayStatus *string           `db:"gateway_status" json:"gateway_status,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}
