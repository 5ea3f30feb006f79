package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
}

// Attendance tiers for the platform service fee owed by free events. Paid
// events settle platform fees out of ticket sales instead.
type feeTier struct {
	UpTo  int
	Label string
	Fee   decimal.Decimal
}

var serviceFeeTiers = []feeTier{
	{UpTo: 100, Label: "1-100", Fee: decimal.NewFromInt(5000)},
	{UpTo: 500, Label: "101-500", Fee: decimal.NewFromInt(10000)},
	{UpTo: 1000, Label: "501-1000", Fee: decimal.NewFromInt(25000)},
	{UpTo: 0, Label: "1000+", Fee: decimal.NewFromInt(50000)},
}

// ServiceFeeForCapacity maps a total attendee capacity onto its fee tier.
func ServiceFeeForCapacity(capacity int) (decimal.Decimal, string) {
	for _, tier := range serviceFeeTiers {
		if tier.UpTo > 0 && capacity <= tier.UpTo {
			return tier.Fee, tier.Label
		}
	}
	last := serviceFeeTiers[len(serviceFeeTiers)-1]
	return last.Fee, last.Label
}

// EventService owns the event lifecycle: drafts are mutated freely, publish
// is gated by the publication validator, and free events owing a service fee
// are diverted into the payment handoff instead of publishing directly.
type EventService struct {
	repo        eventRepository
	publication *PublicationService
	logger      *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(repo eventRepository, publication *PublicationService, logger *zap.Logger) *EventService {
	if publication == nil {
		publication = NewPublicationService()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, publication: publication, logger: logger}
}

// Create stores a new draft. Drafts may be arbitrarily incomplete; only
// publishing is validated.
func (s *EventService) Create(ctx context.Context, actor *models.JWTClaims, draft models.EventDraft, images []string) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := draftLimits(draft, images); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := s.eventFromDraft(draft)
	event.ID = uuid.NewString()
	event.OrganizerID = actor.UserID
	event.Images = images
	event.Status = models.EventStatusDraft
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update replaces the draft snapshot of an event the actor owns.
func (s *EventService) Update(ctx context.Context, actor *models.JWTClaims, id string, draft models.EventDraft, images []string) (*models.Event, error) {
	existing, err := s.requireOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.EventStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrEventNotEditable, "cancelled events cannot be edited")
	}
	if err := draftLimits(draft, images); err != nil {
		return nil, err
	}

	updated := s.eventFromDraft(draft)
	updated.ID = existing.ID
	updated.OrganizerID = existing.OrganizerID
	updated.Status = existing.Status
	updated.PublishedAt = existing.PublishedAt
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	if len(images) > 0 {
		updated.Images = images
	} else {
		updated.Images = existing.Images
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return updated, nil
}

// Get returns a single event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// List returns events matching the filter with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// CheckPublication runs the validator without changing anything; backs the
// "why can't I publish" affordance.
func (s *EventService) CheckPublication(ctx context.Context, actor *models.JWTClaims, id string) (*dto.PublicationCheck, error) {
	event, err := s.requireOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	check := s.publication.Validate(s.draftOf(event))
	return &check, nil
}

// Publish validates the draft and either publishes immediately or reports
// that a service fee is owed first. Validation failures are not errors: they
// come back as blocking reasons for the UI to render.
func (s *EventService) Publish(ctx context.Context, actor *models.JWTClaims, id string) (*dto.PublishResponse, error) {
	event, err := s.requireOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "event is already published")
	}
	if event.Status == models.EventStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrEventNotEditable, "cancelled events cannot be published")
	}

	check := s.publication.Validate(s.draftOf(event))
	if !check.Publishable {
		return &dto.PublishResponse{Check: check}, nil
	}

	if fee, tier, owed := serviceFeeOwed(check.NormalizedTickets); owed {
		return &dto.PublishResponse{
			Check:              check,
			ServiceFeeRequired: true,
			ServiceFee:         fee.String(),
			AttendanceRange:    tier,
		}, nil
	}

	published, err := s.markPublished(ctx, event, check.NormalizedTickets)
	if err != nil {
		return nil, err
	}
	return &dto.PublishResponse{Event: published, Check: check}, nil
}

// Cancel marks an event cancelled; registrations are handled downstream.
func (s *EventService) Cancel(ctx context.Context, actor *models.JWTClaims, id string) (*models.Event, error) {
	event, err := s.requireOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCancelled {
		return event, nil
	}
	event.Status = models.EventStatusCancelled
	event.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
	}
	return event, nil
}

// CreateFromHandoff publishes the event carried by a verified service-fee
// handoff. When the handoff references a stored draft row, that row is
// published in place; the snapshot is only materialized as a new row when
// no stored draft survives. Called exactly once per consumed handoff.
func (s *EventService) CreateFromHandoff(ctx context.Context, handoff *models.PaymentHandoff) (*models.Event, error) {
	if handoff == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing payment handoff")
	}

	check := s.publication.Validate(handoff.EventData)
	if !check.Publishable {
		// The draft was validated before payment; a failure here means the
		// snapshot degraded in transit and needs manual reconciliation.
		return nil, appErrors.Clone(appErrors.ErrNotPublishable, "paid draft failed publication validation")
	}

	if handoff.EventID != "" {
		existing, err := s.repo.FindByID(ctx, handoff.EventID)
		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paid draft")
		case err == nil && existing.Status == models.EventStatusPublished:
			// A retried verification after the update landed; nothing to do.
			return existing, nil
		case err == nil && existing.OrganizerID == handoff.OrganizerID && existing.Status == models.EventStatusDraft:
			published, perr := s.markPublished(ctx, existing, check.NormalizedTickets)
			if perr != nil {
				return nil, perr
			}
			s.logger.Info("published draft from service fee handoff",
				zap.String("event_id", published.ID),
				zap.String("reference", handoff.Reference))
			return published, nil
		}
		// The referenced row is gone or no longer publishable; the paid
		// snapshot still becomes a published event below.
	}

	now := time.Now().UTC()
	event := s.eventFromDraft(handoff.EventData)
	event.ID = uuid.NewString()
	event.OrganizerID = handoff.OrganizerID
	event.TicketTypes = check.NormalizedTickets
	event.Draft = nil
	event.Status = models.EventStatusPublished
	event.PublishedAt = &now
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create paid event")
	}

	s.logger.Info("published event from service fee handoff",
		zap.String("event_id", event.ID),
		zap.String("reference", handoff.Reference))
	return event, nil
}

func (s *EventService) markPublished(ctx context.Context, event *models.Event, tickets []models.TicketType) (*models.Event, error) {
	now := time.Now().UTC()
	event.TicketTypes = tickets
	event.Status = models.EventStatusPublished
	event.PublishedAt = &now
	event.UpdatedAt = now
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish event")
	}
	return event, nil
}

func (s *EventService) requireOwned(ctx context.Context, actor *models.JWTClaims, id string) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this event")
	}
	return event, nil
}

// eventFromDraft maps a raw form snapshot onto the persisted shape. The raw
// draft rides along so later publish attempts validate the original input.
func (s *EventService) eventFromDraft(draft models.EventDraft) *models.Event {
	endDate := draft.EndDate
	if !draft.IsMultiDay || endDate == "" {
		endDate = draft.StartDate
	}
	record := models.DraftRecord(draft)
	return &models.Event{
		Title:            draft.Title,
		Description:      draft.Description,
		LongDescription:  optional(draft.LongDescription),
		Category:         optional(draft.Category),
		StartDate:        draft.StartDate,
		EndDate:          endDate,
		Time:             draft.Time,
		EndTime:          draft.EndTime,
		EventType:        draft.EventType,
		Venue:            optional(draft.Venue),
		Address:          optional(draft.Address),
		State:            optional(draft.State),
		City:             optional(draft.City),
		VirtualEventLink: optional(draft.VirtualEventLink),
		TicketTypes:      s.publication.Normalize(draft),
		Tags:             draft.Tags,
		Requirements:     draft.Requirements,
		Draft:            &record,
	}
}

// draftOf recovers the raw snapshot for validation, falling back to a
// reconstruction from persisted fields for rows created before draft
// snapshots were stored.
func (s *EventService) draftOf(event *models.Event) models.EventDraft {
	if event.Draft != nil {
		return models.EventDraft(*event.Draft)
	}

	draft := models.EventDraft{
		Title:            event.Title,
		Description:      event.Description,
		LongDescription:  deref(event.LongDescription),
		Category:         deref(event.Category),
		StartDate:        event.StartDate,
		EndDate:          event.EndDate,
		Time:             event.Time,
		EndTime:          event.EndTime,
		IsMultiDay:       event.EndDate != "" && event.EndDate != event.StartDate,
		EventType:        event.EventType,
		Venue:            deref(event.Venue),
		Address:          deref(event.Address),
		State:            deref(event.State),
		City:             deref(event.City),
		VirtualEventLink: deref(event.VirtualEventLink),
		Tags:             event.Tags,
		Requirements:     event.Requirements,
	}
	for _, t := range event.TicketTypes {
		dt := models.DraftTicket{
			Name:             t.Name,
			Price:            t.Price.String(),
			Capacity:         itoa(t.Capacity),
			AccessType:       t.AccessType,
			Description:      t.Description,
			Benefits:         t.Benefits,
			RequiresApproval: t.RequiresApproval,
		}
		if t.MaxAttendees != nil {
			dt.MaxAttendees = itoa(*t.MaxAttendees)
		}
		if t.ApprovalDeadline != nil {
			dt.ApprovalDeadline = t.ApprovalDeadline.UTC().Format("2006-01-02T15:04")
		}
		dt.ApprovalQuestions = t.ApprovalQuestions
		draft.TicketTypes = append(draft.TicketTypes, dt)
	}
	return draft
}

func serviceFeeOwed(tickets []models.TicketType) (decimal.Decimal, string, bool) {
	totalCapacity := 0
	for _, t := range tickets {
		if !t.Free() {
			return decimal.Zero, "", false
		}
		totalCapacity += t.Capacity
	}
	if len(tickets) == 0 {
		return decimal.Zero, "", false
	}
	fee, tier := ServiceFeeForCapacity(totalCapacity)
	return fee, tier, true
}

// draftLimits bounds the draft's open-ended collections. Tickets and
// approval questions are bounded by the publication validator instead.
func draftLimits(draft models.EventDraft, images []string) error {
	if len(images) > models.MaxImages {
		return appErrors.Clone(appErrors.ErrValidation, "an event can carry at most three images")
	}
	if len(draft.Tags) > models.MaxTags {
		return appErrors.Clone(appErrors.ErrValidation, "an event can carry at most ten tags")
	}
	if len(draft.Requirements) > models.MaxRequirements {
		return appErrors.Clone(appErrors.ErrValidation, "an event can carry at most ten requirements")
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
