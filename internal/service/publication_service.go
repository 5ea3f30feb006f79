package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
)

// Blocking reasons surfaced by the publication validator. These back the
// "why can't I publish" panel, so wording is user-facing.
const (
	reasonDescriptionRequired  = "Event description is required"
	reasonCategoryRequired     = "Event category is required"
	reasonStartDateRequired    = "Start date is required"
	reasonStartTimeRequired    = "Start time is required"
	reasonEndTimeRequired      = "End time is required"
	reasonStartInvalid         = "Start date and time could not be read"
	reasonVenueRequired        = "Venue is required for in-person events"
	reasonAddressRequired      = "Address is required for in-person events"
	reasonStateRequired        = "State is required for in-person events"
	reasonCityRequired         = "City is required for in-person events"
	reasonVirtualLinkRequired  = "Virtual event link is required for virtual events"
	reasonEndDateRequired      = "End date is required for multi-day events"
	reasonEndDateInvalid       = "End date could not be read"
	reasonEndBeforeStart       = "End date cannot be before the start date"
	reasonTicketSetInvalid     = "Every ticket type needs a valid price and a capacity of at least 1"
	reasonNoTicketTypes        = "At least one ticket type is required"
	reasonTooManyTicketTypes   = "No more than three ticket types are allowed"
	reasonDuplicateTicketNames = "Ticket names must be unique"
	reasonLegacyPriceRequired  = "Ticket price is required"
	reasonLegacyPriceInvalid   = "Ticket price could not be read"
	reasonLegacyCapRequired    = "Ticket capacity is required"
	reasonLegacyCapInvalid     = "Ticket capacity must be a whole number of at least 1"
	reasonMaxAttendeesInvalid  = "Approval attendee limit must be at least 1"
	reasonDeadlineInvalid      = "Approval deadline is not a valid date"
	reasonDeadlineAfterStart   = "Approval deadline must be on or before the event start"
	reasonTooManyQuestions     = "No more than five approval questions are allowed"
)

// Accepted layouts for approval deadlines; the first matches the web form's
// datetime-local input.
var deadlineLayouts = []string{"2006-01-02T15:04", time.RFC3339, models.StartLayout}

// PublicationService decides whether an event draft is complete enough to
// publish and produces the normalized ticket payload to submit. It is pure:
// no I/O, no clock reads, and identical input always yields identical output.
type PublicationService struct{}

// NewPublicationService constructs the validator.
func NewPublicationService() *PublicationService {
	return &PublicationService{}
}

// Validate runs every publication rule over the draft. All failures are
// collected; nothing short-circuits and nothing is auto-corrected.
func (s *PublicationService) Validate(draft models.EventDraft) dto.PublicationCheck {
	reasons := []string{}

	reasons = append(reasons, s.metadataReasons(draft)...)
	reasons = append(reasons, s.locationReasons(draft)...)
	reasons = append(reasons, s.dateReasons(draft)...)
	reasons = append(reasons, s.ticketReasons(draft)...)
	reasons = append(reasons, s.approvalReasons(draft)...)

	return dto.PublicationCheck{
		Publishable:       len(reasons) == 0,
		BlockingReasons:   reasons,
		NormalizedTickets: s.Normalize(draft),
	}
}

func (s *PublicationService) metadataReasons(draft models.EventDraft) []string {
	var reasons []string
	if blank(draft.Description) {
		reasons = append(reasons, reasonDescriptionRequired)
	}
	if blank(draft.Category) {
		reasons = append(reasons, reasonCategoryRequired)
	}
	if blank(draft.StartDate) {
		reasons = append(reasons, reasonStartDateRequired)
	}
	if blank(draft.Time) {
		reasons = append(reasons, reasonStartTimeRequired)
	}
	if blank(draft.EndTime) {
		reasons = append(reasons, reasonEndTimeRequired)
	}
	if !blank(draft.StartDate) && !blank(draft.Time) {
		if _, ok := draft.StartInstant(); !ok {
			reasons = append(reasons, reasonStartInvalid)
		}
	}
	return reasons
}

func (s *PublicationService) locationReasons(draft models.EventDraft) []string {
	var reasons []string
	if draft.EventType != models.EventTypeVirtual {
		if blank(draft.Venue) {
			reasons = append(reasons, reasonVenueRequired)
		}
		if blank(draft.Address) {
			reasons = append(reasons, reasonAddressRequired)
		}
		if blank(draft.State) {
			reasons = append(reasons, reasonStateRequired)
		}
		if blank(draft.City) {
			reasons = append(reasons, reasonCityRequired)
		}
	}
	// Hybrid events keep the link optional.
	if draft.EventType == models.EventTypeVirtual && blank(draft.VirtualEventLink) {
		reasons = append(reasons, reasonVirtualLinkRequired)
	}
	return reasons
}

func (s *PublicationService) dateReasons(draft models.EventDraft) []string {
	if !draft.IsMultiDay {
		return nil
	}
	if blank(draft.EndDate) {
		return []string{reasonEndDateRequired}
	}
	start, startErr := time.ParseInLocation("2006-01-02", draft.StartDate, time.UTC)
	end, endErr := time.ParseInLocation("2006-01-02", draft.EndDate, time.UTC)
	if startErr != nil || endErr != nil {
		// Unreadable start date already reported by the metadata rules.
		if endErr != nil {
			return []string{reasonEndDateInvalid}
		}
		return nil
	}
	if end.Before(start) {
		return []string{reasonEndBeforeStart}
	}
	return nil
}

func (s *PublicationService) ticketReasons(draft models.EventDraft) []string {
	if draft.UseLegacyPricing {
		var reasons []string
		if blank(draft.Price) {
			reasons = append(reasons, reasonLegacyPriceRequired)
		} else if price, ok := parsePrice(draft.Price); !ok || price.IsNegative() {
			reasons = append(reasons, reasonLegacyPriceInvalid)
		}
		if blank(draft.Capacity) {
			reasons = append(reasons, reasonLegacyCapRequired)
		} else if cap, ok := parseCount(draft.Capacity); !ok || cap < 1 {
			reasons = append(reasons, reasonLegacyCapInvalid)
		}
		return reasons
	}

	var reasons []string
	if len(draft.TicketTypes) == 0 {
		return []string{reasonNoTicketTypes}
	}
	if len(draft.TicketTypes) > models.MaxTicketTypes {
		reasons = append(reasons, reasonTooManyTicketTypes)
	}

	// A violation in any entry fails the whole set with one aggregated reason.
	setValid := true
	for _, t := range draft.TicketTypes {
		price, priceOK := parsePrice(t.Price)
		if !priceOK || price.IsNegative() {
			setValid = false
		}
		if cap, capOK := parseCount(t.Capacity); !capOK || cap < 1 {
			setValid = false
		}
	}
	if !setValid {
		reasons = append(reasons, reasonTicketSetInvalid)
	}

	// Uniqueness is owned by the mutation layer; re-check defensively.
	seen := make(map[models.TicketName]struct{}, len(draft.TicketTypes))
	for _, t := range draft.TicketTypes {
		if _, dup := seen[t.Name]; dup {
			reasons = append(reasons, reasonDuplicateTicketNames)
			break
		}
		seen[t.Name] = struct{}{}
	}
	return reasons
}

// approvalReasons checks the free-ticket approval configuration. A ticket
// only counts as free once its price parses to exactly zero; an empty price
// is "not yet specified" and is caught by the ticket rules instead.
func (s *PublicationService) approvalReasons(draft models.EventDraft) []string {
	start, haveStart := draft.StartInstant()

	var reasons []string
	appendOnce := func(reason string) {
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
	}

	check := func(price string, settings models.ApprovalSettings) {
		p, ok := parsePrice(price)
		if !ok || !p.IsZero() || !settings.RequiresApproval {
			return
		}
		if !blank(settings.MaxAttendees) {
			if n, ok := parseCount(settings.MaxAttendees); !ok || n < 1 {
				appendOnce(reasonMaxAttendeesInvalid)
			}
		}
		if !blank(settings.ApprovalDeadline) {
			deadline, ok := parseDeadline(settings.ApprovalDeadline)
			switch {
			case !ok:
				appendOnce(reasonDeadlineInvalid)
			case haveStart && deadline.After(start):
				appendOnce(reasonDeadlineAfterStart)
			}
		}
		if len(settings.ApprovalQuestions) > models.MaxApprovalQuestions {
			appendOnce(reasonTooManyQuestions)
		}
	}

	if draft.UseLegacyPricing {
		check(draft.Price, legacyApprovalSettings(draft))
		return reasons
	}
	for _, t := range draft.TicketTypes {
		check(t.Price, models.ApprovalSettings{
			RequiresApproval:  t.RequiresApproval,
			MaxAttendees:      t.MaxAttendees,
			ApprovalDeadline:  t.ApprovalDeadline,
			ApprovalQuestions: t.ApprovalQuestions,
		})
	}
	return reasons
}

// Normalize coerces the draft's tickets into their persisted shape: decimal
// prices, integer capacities, defaulted access types, and stripped empty
// questions and benefits. In legacy mode a single Regular ticket is
// synthesized from the flat fields plus the legacy approval settings.
func (s *PublicationService) Normalize(draft models.EventDraft) []models.TicketType {
	if draft.UseLegacyPricing {
		approval := legacyApprovalSettings(draft)
		return []models.TicketType{normalizeTicket(models.DraftTicket{
			Name:              models.TicketNameRegular,
			Price:             draft.Price,
			Capacity:          draft.Capacity,
			Description:       draft.TicketDescription,
			Benefits:          draft.TicketBenefits,
			RequiresApproval:  approval.RequiresApproval,
			MaxAttendees:      approval.MaxAttendees,
			ApprovalDeadline:  approval.ApprovalDeadline,
			ApprovalQuestions: approval.ApprovalQuestions,
		})}
	}

	normalized := make([]models.TicketType, 0, len(draft.TicketTypes))
	for _, t := range draft.TicketTypes {
		normalized = append(normalized, normalizeTicket(t))
	}
	return normalized
}

// legacyApprovalSettings resolves where a single-ticket event keeps its
// approval configuration. Older clients stored it inside ticketTypes[0]; the
// explicit field wins when set, the first ticket entry is the fallback.
func legacyApprovalSettings(draft models.EventDraft) models.ApprovalSettings {
	a := draft.LegacyApproval
	if a.RequiresApproval || !blank(a.MaxAttendees) || !blank(a.ApprovalDeadline) || len(a.ApprovalQuestions) > 0 {
		return a
	}
	if len(draft.TicketTypes) > 0 {
		first := draft.TicketTypes[0]
		return models.ApprovalSettings{
			RequiresApproval:  first.RequiresApproval,
			MaxAttendees:      first.MaxAttendees,
			ApprovalDeadline:  first.ApprovalDeadline,
			ApprovalQuestions: first.ApprovalQuestions,
		}
	}
	return a
}

func normalizeTicket(t models.DraftTicket) models.TicketType {
	price, _ := parsePrice(t.Price)
	capacity, _ := parseCount(t.Capacity)

	access := t.AccessType
	if access == "" {
		access = models.TicketAccessBoth
	}

	out := models.TicketType{
		Name:        t.Name,
		Price:       price,
		Capacity:    capacity,
		AccessType:  access,
		Description: strings.TrimSpace(t.Description),
		Benefits:    stripBlank(t.Benefits),
	}

	// Approval settings only survive on free tickets.
	if !price.IsZero() || !t.RequiresApproval {
		return out
	}
	out.RequiresApproval = true
	if n, ok := parseCount(t.MaxAttendees); ok && n > 0 {
		out.MaxAttendees = &n
	}
	if deadline, ok := parseDeadline(t.ApprovalDeadline); ok {
		out.ApprovalDeadline = &deadline
	}
	for _, q := range t.ApprovalQuestions {
		if blank(q.Question) {
			continue
		}
		out.ApprovalQuestions = append(out.ApprovalQuestions, models.ApprovalQuestion{
			Question: strings.TrimSpace(q.Question),
			Required: q.Required,
		})
	}
	return out
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func parseCount(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseDeadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func stripBlank(values []string) []string {
	var kept []string
	for _, v := range values {
		if !blank(v) {
			kept = append(kept, strings.TrimSpace(v))
		}
	}
	return kept
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
