package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RegistrationStatus tracks an attendee's place for an event.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationDeclined  RegistrationStatus = "declined"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// ApprovalAnswer pairs an approval question with the attendee's answer.
type ApprovalAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ApprovalAnswerList stores answers as a JSONB column.
type ApprovalAnswerList []ApprovalAnswer

// Value implements driver.Valuer.
func (l ApprovalAnswerList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ApprovalAnswerList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported answer list source %T", src)
	}
}

// Registration is an attendee's claim on one ticket of an event.
type Registration struct {
	ID         string             `db:"id" json:"id"`
	EventID    string             `db:"event_id" json:"event_id"`
	UserID     string             `db:"user_id" json:"user_id"`
	TicketName TicketName         `db:"ticket_name" json:"ticket_name"`
	Status     RegistrationStatus `db:"status" json:"status"`
	Answers    ApprovalAnswerList `db:"answers" json:"answers,omitempty"`
	DecidedBy  *string            `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt  *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationFilter captures listing criteria for registrations.
type RegistrationFilter struct {
	EventID  string
	UserID   string
	Status   *RegistrationStatus
	Page     int
	PageSize int
}
