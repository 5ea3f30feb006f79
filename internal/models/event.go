package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType distinguishes where an event takes place.
type EventType string

const (
	EventTypePhysical EventType = "physical"
	EventTypeVirtual  EventType = "virtual"
	EventTypeHybrid   EventType = "hybrid"
)

// EventStatus tracks the publication lifecycle of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// TicketAccessType is only meaningful for hybrid events.
type TicketAccessType string

const (
	TicketAccessBoth     TicketAccessType = "both"
	TicketAccessVirtual  TicketAccessType = "virtual"
	TicketAccessPhysical TicketAccessType = "physical"
)

// TicketName is the fixed set of ticket tiers an organizer can configure.
type TicketName string

const (
	TicketNameRegular TicketName = "Regular"
	TicketNameVIP     TicketName = "VIP"
	TicketNameVVIP    TicketName = "VVIP"
)

// Limits applied to draft collections.
const (
	MaxTicketTypes       = 3
	MaxTags              = 10
	MaxRequirements      = 10
	MaxImages            = 3
	MaxApprovalQuestions = 5
)

// StartLayout is the single interpretation of a draft's start instant:
// start date plus time-of-day, read in UTC.
const StartLayout = "2006-01-02 15:04"

// ApprovalQuestion is one organizer-defined question answered at registration.
type ApprovalQuestion struct {
	Question string `json:"question"`
	Required bool   `json:"required"`
}

// DraftTicket is a ticket tier exactly as entered in the event form.
// Numeric fields stay strings until normalization so that "not yet filled in"
// is distinguishable from zero.
type DraftTicket struct {
	Name              TicketName         `json:"name"`
	Price             string             `json:"price"`
	Capacity          string             `json:"capacity"`
	AccessType        TicketAccessType   `json:"accessType,omitempty"`
	Description       string             `json:"description,omitempty"`
	Benefits          []string           `json:"benefits,omitempty"`
	RequiresApproval  bool               `json:"requiresApproval"`
	MaxAttendees      string             `json:"maxAttendees,omitempty"`
	ApprovalDeadline  string             `json:"approvalDeadline,omitempty"`
	ApprovalQuestions []ApprovalQuestion `json:"approvalQuestions,omitempty"`
}

// ApprovalSettings holds the approval sub-fields for legacy single-ticket
// pricing. The web form historically stashed these inside ticketTypes[0];
// they are modelled explicitly here but still travel with the synthesized
// Regular ticket on normalization.
type ApprovalSettings struct {
	RequiresApproval  bool               `json:"requiresApproval"`
	MaxAttendees      string             `json:"maxAttendees,omitempty"`
	ApprovalDeadline  string             `json:"approvalDeadline,omitempty"`
	ApprovalQuestions []ApprovalQuestion `json:"approvalQuestions,omitempty"`
}

// EventDraft is the full form snapshot handed to the publication validator.
// Dates use "2006-01-02", times-of-day "15:04".
type EventDraft struct {
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	LongDescription   string           `json:"longDescription,omitempty"`
	Category          string           `json:"category,omitempty"`
	StartDate         string           `json:"startDate"`
	EndDate           string           `json:"endDate,omitempty"`
	Time              string           `json:"time"`
	EndTime           string           `json:"endTime"`
	IsMultiDay        bool             `json:"isMultiDay"`
	EventType         EventType        `json:"eventType"`
	Venue             string           `json:"venue,omitempty"`
	Address           string           `json:"address,omitempty"`
	State             string           `json:"state,omitempty"`
	City              string           `json:"city,omitempty"`
	VirtualEventLink  string           `json:"virtualEventLink,omitempty"`
	UseLegacyPricing  bool             `json:"useLegacyPricing"`
	Price             string           `json:"price,omitempty"`
	Capacity          string           `json:"capacity,omitempty"`
	TicketDescription string           `json:"ticketDescription,omitempty"`
	TicketBenefits    []string         `json:"ticketBenefits,omitempty"`
	LegacyApproval    ApprovalSettings `json:"legacyApproval,omitempty"`
	TicketTypes       []DraftTicket    `json:"ticketTypes,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	Requirements      []string         `json:"requirements,omitempty"`
}

// StartInstant resolves the draft's start date and time-of-day into a UTC
// instant. The boolean is false when either component is missing or malformed.
func (d EventDraft) StartInstant() (time.Time, bool) {
	if d.StartDate == "" || d.Time == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(StartLayout, d.StartDate+" "+d.Time, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// TicketType is a normalized, validated ticket tier ready for persistence.
type TicketType struct {
	Name              TicketName         `json:"name"`
	Price             decimal.Decimal    `json:"price"`
	Capacity          int                `json:"capacity"`
	AccessType        TicketAccessType   `json:"accessType"`
	Description       string             `json:"description,omitempty"`
	Benefits          []string           `json:"benefits,omitempty"`
	RequiresApproval  bool               `json:"requiresApproval"`
	MaxAttendees      *int               `json:"maxAttendees,omitempty"`
	ApprovalDeadline  *time.Time         `json:"approvalDeadline,omitempty"`
	ApprovalQuestions []ApprovalQuestion `json:"approvalQuestions,omitempty"`
}

// Free reports whether the ticket costs nothing.
func (t TicketType) Free() bool {
	return t.Price.IsZero()
}

// TicketTypeList stores normalized tickets as a JSONB column.
type TicketTypeList []TicketType

// Value implements driver.Valuer.
func (l TicketTypeList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *TicketTypeList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported ticket list source %T", src)
	}
}

// Event is a persisted event record.
type Event struct {
	ID               string         `db:"id" json:"id"`
	OrganizerID      string         `db:"organizer_id" json:"organizer_id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	LongDescription  *string        `db:"long_description" json:"long_description,omitempty"`
	Category         *string        `db:"category" json:"category,omitempty"`
	StartDate        string         `db:"start_date" json:"start_date"`
	EndDate          string         `db:"end_date" json:"end_date"`
	Time             string         `db:"time" json:"time"`
	EndTime          string         `db:"end_time" json:"end_time"`
	EventType        EventType      `db:"event_type" json:"event_type"`
	Venue            *string        `db:"venue" json:"venue,omitempty"`
	Address          *string        `db:"address" json:"address,omitempty"`
	State            *string        `db:"state" json:"state,omitempty"`
	City             *string        `db:"city" json:"city,omitempty"`
	VirtualEventLink *string        `db:"virtual_event_link" json:"virtual_event_link,omitempty"`
	TicketTypes      TicketTypeList `db:"ticket_types" json:"ticket_types"`
	Tags             StringList     `db:"tags" json:"tags,omitempty"`
	Requirements     StringList     `db:"requirements" json:"requirements,omitempty"`
	Images           StringList     `db:"images" json:"images,omitempty"`
	Draft            *DraftRecord   `db:"draft" json:"draft,omitempty"`
	Status           EventStatus    `db:"status" json:"status"`
	PublishedAt      *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DraftRecord stores the raw form snapshot as a JSONB column while an event
// is still editable, so publish-time validation sees exactly what was typed.
type DraftRecord EventDraft

// Value implements driver.Valuer.
func (d DraftRecord) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *DraftRecord) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("unsupported draft source %T", src)
	}
}

// StringList stores ordered string collections as a JSONB column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list source %T", src)
	}
}

// EventFilter captures listing criteria for events.
type EventFilter struct {
	OrganizerID string
	Status      *EventStatus
	Category    string
	Search      string
	Page        int
	PageSize    int
}
