package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrillzofficial/eventry-api/internal/models"
)

func completeDraft() models.EventDraft {
	return models.EventDraft{
		Title:       "Lagos Tech Meetup",
		Description: "An evening of talks and networking",
		Category:    "Technology",
		StartDate:   "2025-06-01",
		Time:        "18:00",
		EndTime:     "21:00",
		EventType:   models.EventTypePhysical,
		Venue:       "Landmark Centre",
		Address:     "Water Corporation Rd",
		State:       "Lagos",
		City:        "Lagos",
		TicketTypes: []models.DraftTicket{
			{Name: models.TicketNameRegular, Price: "0", Capacity: "100"},
		},
	}
}

func TestValidateCompleteDraftIsPublishable(t *testing.T) {
	svc := NewPublicationService()

	check := svc.Validate(completeDraft())

	assert.True(t, check.Publishable)
	assert.Empty(t, check.BlockingReasons)
	require.Len(t, check.NormalizedTickets, 1)
	assert.Equal(t, 100, check.NormalizedTickets[0].Capacity)
}

func TestValidateIsDeterministic(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.Description = ""
	draft.TicketTypes[0].Capacity = "0"

	first := svc.Validate(draft)
	second := svc.Validate(draft)

	assert.Equal(t, first, second)
}

func TestValidateCollectsAllReasons(t *testing.T) {
	svc := NewPublicationService()

	check := svc.Validate(models.EventDraft{EventType: models.EventTypePhysical})

	assert.False(t, check.Publishable)
	assert.Contains(t, check.BlockingReasons, reasonDescriptionRequired)
	assert.Contains(t, check.BlockingReasons, reasonCategoryRequired)
	assert.Contains(t, check.BlockingReasons, reasonStartDateRequired)
	assert.Contains(t, check.BlockingReasons, reasonStartTimeRequired)
	assert.Contains(t, check.BlockingReasons, reasonEndTimeRequired)
	assert.Contains(t, check.BlockingReasons, reasonVenueRequired)
	assert.Contains(t, check.BlockingReasons, reasonAddressRequired)
	assert.Contains(t, check.BlockingReasons, reasonStateRequired)
	assert.Contains(t, check.BlockingReasons, reasonCityRequired)
	assert.Contains(t, check.BlockingReasons, reasonNoTicketTypes)
}

func TestValidateEventTypeFlipSwapsLocationRules(t *testing.T) {
	svc := NewPublicationService()

	draft := completeDraft()
	physical := svc.Validate(draft)
	assert.True(t, physical.Publishable)

	// Same draft as virtual: the venue fields stop mattering and the link
	// starts mattering.
	draft.EventType = models.EventTypeVirtual
	draft.Venue, draft.Address, draft.State, draft.City = "", "", "", ""
	virtual := svc.Validate(draft)
	assert.False(t, virtual.Publishable)
	assert.Equal(t, []string{reasonVirtualLinkRequired}, virtual.BlockingReasons)

	draft.VirtualEventLink = "https://meet.example.com/lagos"
	assert.True(t, svc.Validate(draft).Publishable)
}

func TestValidateHybridLinkOptional(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.EventType = models.EventTypeHybrid

	check := svc.Validate(draft)

	assert.True(t, check.Publishable)
}

func TestValidateMultiDayEndDate(t *testing.T) {
	svc := NewPublicationService()

	draft := completeDraft()
	draft.IsMultiDay = true
	check := svc.Validate(draft)
	assert.Contains(t, check.BlockingReasons, reasonEndDateRequired)

	draft.EndDate = "2025-05-30"
	check = svc.Validate(draft)
	assert.Contains(t, check.BlockingReasons, reasonEndBeforeStart)

	draft.EndDate = "2025-06-03"
	assert.True(t, svc.Validate(draft).Publishable)
}

func TestValidateMultiDayEndDateMalformed(t *testing.T) {
	svc := NewPublicationService()

	draft := completeDraft()
	draft.IsMultiDay = true
	draft.EndDate = "sometime in June"

	check := svc.Validate(draft)

	assert.False(t, check.Publishable)
	assert.Contains(t, check.BlockingReasons, reasonEndDateInvalid)
	assert.NotContains(t, check.BlockingReasons, reasonEndBeforeStart)
}

func TestValidateLegacyFlatFieldsMustParse(t *testing.T) {
	svc := NewPublicationService()

	base := completeDraft()
	base.UseLegacyPricing = true
	base.TicketTypes = nil
	base.Price = "0"
	base.Capacity = "100"
	require.True(t, svc.Validate(base).Publishable)

	// An unreadable price must block, not normalize to a free ticket.
	draft := base
	draft.Price = "abc"
	check := svc.Validate(draft)
	assert.False(t, check.Publishable)
	assert.Contains(t, check.BlockingReasons, reasonLegacyPriceInvalid)

	draft = base
	draft.Price = "-500"
	assert.Contains(t, svc.Validate(draft).BlockingReasons, reasonLegacyPriceInvalid)

	draft = base
	draft.Capacity = "lots"
	assert.Contains(t, svc.Validate(draft).BlockingReasons, reasonLegacyCapInvalid)

	draft = base
	draft.Capacity = "0"
	assert.Contains(t, svc.Validate(draft).BlockingReasons, reasonLegacyCapInvalid)

	// Blank fields keep their dedicated reasons.
	draft = base
	draft.Price = ""
	draft.Capacity = " "
	check = svc.Validate(draft)
	assert.Contains(t, check.BlockingReasons, reasonLegacyPriceRequired)
	assert.Contains(t, check.BlockingReasons, reasonLegacyCapRequired)
}

func TestValidateTicketSetSingleAggregatedReason(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{
		{Name: models.TicketNameRegular, Price: "0", Capacity: "100"},
		{Name: models.TicketNameVIP, Price: "5000", Capacity: "0"},
		{Name: models.TicketNameVVIP, Price: "not-a-number", Capacity: "10"},
	}

	check := svc.Validate(draft)

	assert.False(t, check.Publishable)
	// Two bad entries still collapse into one set-level reason.
	count := 0
	for _, r := range check.BlockingReasons {
		if r == reasonTicketSetInvalid {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestValidateDuplicateTicketNames(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{
		{Name: models.TicketNameRegular, Price: "0", Capacity: "50"},
		{Name: models.TicketNameRegular, Price: "1000", Capacity: "50"},
	}

	check := svc.Validate(draft)

	assert.Contains(t, check.BlockingReasons, reasonDuplicateTicketNames)
}

func TestValidateEmptyPriceIsNotFree(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	// Approval config that would be rejected on a free ticket; an empty
	// price means "not yet specified", so only the ticket rules fire.
	draft.TicketTypes = []models.DraftTicket{{
		Name:             models.TicketNameRegular,
		Price:            "",
		Capacity:         "100",
		RequiresApproval: true,
		MaxAttendees:     "0",
	}}

	check := svc.Validate(draft)

	assert.Contains(t, check.BlockingReasons, reasonTicketSetInvalid)
	assert.NotContains(t, check.BlockingReasons, reasonMaxAttendeesInvalid)
}

func TestValidateApprovalDeadlineOrdering(t *testing.T) {
	svc := NewPublicationService()

	base := completeDraft() // starts 2025-06-01 18:00 UTC
	base.TicketTypes = []models.DraftTicket{{
		Name:             models.TicketNameRegular,
		Price:            "0",
		Capacity:         "100",
		RequiresApproval: true,
		ApprovalDeadline: "2025-06-02T00:00",
	}}
	check := svc.Validate(base)
	assert.Contains(t, check.BlockingReasons, reasonDeadlineAfterStart)

	base.TicketTypes[0].ApprovalDeadline = "2025-05-30T00:00"
	assert.True(t, svc.Validate(base).Publishable)

	// The event start itself is an acceptable deadline.
	base.TicketTypes[0].ApprovalDeadline = "2025-06-01T18:00"
	assert.True(t, svc.Validate(base).Publishable)
}

func TestValidateApprovalRulesOnlyOnFreeTickets(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{{
		Name:             models.TicketNameVIP,
		Price:            "5000",
		Capacity:         "50",
		RequiresApproval: true,
		MaxAttendees:     "0", // would be invalid on a free ticket
	}}

	check := svc.Validate(draft)

	assert.True(t, check.Publishable)
}

func TestValidateTooManyApprovalQuestions(t *testing.T) {
	svc := NewPublicationService()
	questions := make([]models.ApprovalQuestion, 6)
	for i := range questions {
		questions[i] = models.ApprovalQuestion{Question: "q", Required: true}
	}
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{{
		Name:              models.TicketNameRegular,
		Price:             "0",
		Capacity:          "100",
		RequiresApproval:  true,
		ApprovalQuestions: questions,
	}}

	check := svc.Validate(draft)

	assert.Contains(t, check.BlockingReasons, reasonTooManyQuestions)
}

func TestNormalizeLegacyMatchesSingleEntry(t *testing.T) {
	svc := NewPublicationService()

	legacy := completeDraft()
	legacy.UseLegacyPricing = true
	legacy.Price = "5000"
	legacy.Capacity = "100"
	legacy.TicketTypes = nil

	multi := completeDraft()
	multi.TicketTypes = []models.DraftTicket{
		{Name: models.TicketNameRegular, Price: "5000", Capacity: "100"},
	}

	legacyTickets := svc.Normalize(legacy)
	multiTickets := svc.Normalize(multi)

	require.Len(t, legacyTickets, 1)
	require.Len(t, multiTickets, 1)
	assert.Equal(t, multiTickets[0].Name, legacyTickets[0].Name)
	assert.True(t, multiTickets[0].Price.Equal(legacyTickets[0].Price))
	assert.Equal(t, multiTickets[0].Capacity, legacyTickets[0].Capacity)
	assert.Equal(t, multiTickets[0].AccessType, legacyTickets[0].AccessType)
}

func TestNormalizeLegacyApprovalExplicitFieldWins(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.UseLegacyPricing = true
	draft.Price = "0"
	draft.Capacity = "100"
	draft.LegacyApproval = models.ApprovalSettings{RequiresApproval: true, MaxAttendees: "25"}
	// A stale ticket entry that must lose to the explicit field.
	draft.TicketTypes = []models.DraftTicket{{Name: models.TicketNameRegular, RequiresApproval: true, MaxAttendees: "999"}}

	tickets := svc.Normalize(draft)

	require.Len(t, tickets, 1)
	require.NotNil(t, tickets[0].MaxAttendees)
	assert.Equal(t, 25, *tickets[0].MaxAttendees)
}

func TestNormalizeLegacyApprovalFallsBackToFirstTicket(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.UseLegacyPricing = true
	draft.Price = "0"
	draft.Capacity = "100"
	draft.TicketTypes = []models.DraftTicket{{Name: models.TicketNameRegular, RequiresApproval: true, MaxAttendees: "40"}}

	tickets := svc.Normalize(draft)

	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].RequiresApproval)
	require.NotNil(t, tickets[0].MaxAttendees)
	assert.Equal(t, 40, *tickets[0].MaxAttendees)
}

func TestNormalizeStripsApprovalFromPaidTickets(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{{
		Name:              models.TicketNameVIP,
		Price:             "5000",
		Capacity:          "50",
		RequiresApproval:  true,
		MaxAttendees:      "10",
		ApprovalDeadline:  "2025-05-01T00:00",
		ApprovalQuestions: []models.ApprovalQuestion{{Question: "Why?", Required: true}},
	}}

	tickets := svc.Normalize(draft)

	require.Len(t, tickets, 1)
	assert.False(t, tickets[0].RequiresApproval)
	assert.Nil(t, tickets[0].MaxAttendees)
	assert.Nil(t, tickets[0].ApprovalDeadline)
	assert.Empty(t, tickets[0].ApprovalQuestions)
}

func TestNormalizeDefaultsAndStripsBlanks(t *testing.T) {
	svc := NewPublicationService()
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{{
		Name:             models.TicketNameRegular,
		Price:            "0",
		Capacity:         "100",
		Benefits:         []string{"  Swag  ", "", "   "},
		RequiresApproval: true,
		ApprovalQuestions: []models.ApprovalQuestion{
			{Question: "  Company?  ", Required: true},
			{Question: "   ", Required: false},
		},
	}}

	tickets := svc.Normalize(draft)

	require.Len(t, tickets, 1)
	assert.Equal(t, models.TicketAccessBoth, tickets[0].AccessType)
	assert.Equal(t, []string{"Swag"}, tickets[0].Benefits)
	require.Len(t, tickets[0].ApprovalQuestions, 1)
	assert.Equal(t, "Company?", tickets[0].ApprovalQuestions[0].Question)
}
