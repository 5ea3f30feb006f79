package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
	"github.com/skrillzofficial/eventry-api/pkg/export"
)

type registrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	Update(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error)
	CountActive(ctx context.Context, eventID string, ticket models.TicketName) (int, error)
}

type registrationEventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type registrationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type ticketRenderer interface {
	Render(doc export.TicketDocument) ([]byte, error)
}

type registrationExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

// RegistrationService handles attendee registration, organizer approval of
// approval-gated tickets, and ticket artifacts.
type RegistrationService struct {
	repo     registrationRepository
	events   registrationEventReader
	users    registrationUserReader
	tickets  ticketRenderer
	exporter registrationExporter
	logger   *zap.Logger
	issuer   string
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(repo registrationRepository, events registrationEventReader, users registrationUserReader, tickets ticketRenderer, exporter registrationExporter, logger *zap.Logger, issuer string) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if issuer == "" {
		issuer = "Eventry"
	}
	return &RegistrationService{
		repo:     repo,
		events:   events,
		users:    users,
		tickets:  tickets,
		exporter: exporter,
		logger:   logger,
		issuer:   issuer,
	}
}

// Register claims one ticket tier of a published event. Approval-gated free
// tickets enter pending with the attendee's answers; everything else is
// confirmed immediately.
func (s *RegistrationService) Register(ctx context.Context, actor *models.JWTClaims, eventID string, req dto.RegisterRequest) (*models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event is not open for registration")
	}

	ticket, found := findTicket(event.TicketTypes, req.TicketName)
	if !found {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("event has no %s ticket", req.TicketName))
	}

	if existing, err := s.repo.FindByEventAndUser(ctx, eventID, actor.UserID); err == nil &&
		existing != nil && existing.Status != models.RegistrationCancelled && existing.Status != models.RegistrationDeclined {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you are already registered for this event")
	}

	taken, err := s.repo.CountActive(ctx, eventID, ticket.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	limit := ticket.Capacity
	if ticket.MaxAttendees != nil && *ticket.MaxAttendees < limit {
		limit = *ticket.MaxAttendees
	}
	if taken >= limit {
		return nil, appErrors.Clone(appErrors.ErrSoldOut, fmt.Sprintf("%s tickets are sold out", ticket.Name))
	}

	now := time.Now().UTC()
	status := models.RegistrationConfirmed
	var answers models.ApprovalAnswerList

	if ticket.RequiresApproval && ticket.Free() {
		if ticket.ApprovalDeadline != nil && now.After(*ticket.ApprovalDeadline) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "the approval deadline for this ticket has passed")
		}
		answers, err = matchAnswers(ticket.ApprovalQuestions, req.Answers)
		if err != nil {
			return nil, err
		}
		status = models.RegistrationPending
	}

	reg := &models.Registration{
		ID:         uuid.NewString(),
		EventID:    eventID,
		UserID:     actor.UserID,
		TicketName: ticket.Name,
		Status:     status,
		Answers:    answers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	return reg, nil
}

// Approve confirms a pending registration on the owning organizer's behalf.
func (s *RegistrationService) Approve(ctx context.Context, actor *models.JWTClaims, registrationID string) (*models.Registration, error) {
	return s.decide(ctx, actor, registrationID, models.RegistrationConfirmed)
}

// Decline rejects a pending registration.
func (s *RegistrationService) Decline(ctx context.Context, actor *models.JWTClaims, registrationID string) (*models.Registration, error) {
	return s.decide(ctx, actor, registrationID, models.RegistrationDeclined)
}

// Cancel withdraws the actor's own registration.
func (s *RegistrationService) Cancel(ctx context.Context, actor *models.JWTClaims, registrationID string) (*models.Registration, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your registration")
	}
	if reg.Status == models.RegistrationCancelled {
		return reg, nil
	}
	reg.Status = models.RegistrationCancelled
	reg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
	}
	return reg, nil
}

// ListForEvent returns an event's registrations to its organizer.
func (s *RegistrationService) ListForEvent(ctx context.Context, actor *models.JWTClaims, eventID string, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	if _, err := s.requireOrganizer(ctx, actor, eventID); err != nil {
		return nil, nil, err
	}
	filter.EventID = eventID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	regs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// TicketPDF renders the attendee's ticket for a confirmed registration.
func (s *RegistrationService) TicketPDF(ctx context.Context, actor *models.JWTClaims, registrationID string) ([]byte, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != actor.UserID && event.OrganizerID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your registration")
	}
	if reg.Status != models.RegistrationConfirmed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only confirmed registrations have a ticket")
	}

	attendee, err := s.users.FindByID(ctx, reg.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendee")
	}

	price := "Free"
	if ticket, ok := findTicket(event.TicketTypes, reg.TicketName); ok && !ticket.Free() {
		price = ticket.Price.String()
	}

	doc := export.TicketDocument{
		Issuer:         s.issuer,
		EventTitle:     event.Title,
		EventDate:      event.StartDate,
		EventTime:      event.Time,
		Venue:          deref(event.Venue),
		City:           deref(event.City),
		TicketName:     string(reg.TicketName),
		AttendeeName:   attendee.FullName,
		AttendeeEmail:  attendee.Email,
		RegistrationID: reg.ID,
		Price:          price,
	}
	pdf, err := s.tickets.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ticket")
	}
	return pdf, nil
}

// ExportCSV produces the organizer's registration roster as CSV.
func (s *RegistrationService) ExportCSV(ctx context.Context, actor *models.JWTClaims, eventID string) ([]byte, error) {
	if _, err := s.requireOrganizer(ctx, actor, eventID); err != nil {
		return nil, err
	}
	regs, _, err := s.repo.List(ctx, models.RegistrationFilter{EventID: eventID, Page: 1, PageSize: 10000})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}

	data := export.Dataset{
		Headers: []string{"registration_id", "user_id", "ticket", "status", "registered_at"},
	}
	for _, reg := range regs {
		data.Rows = append(data.Rows, map[string]string{
			"registration_id": reg.ID,
			"user_id":         reg.UserID,
			"ticket":          string(reg.TicketName),
			"status":          string(reg.Status),
			"registered_at":   reg.CreatedAt.Format(time.RFC3339),
		})
	}
	out, err := s.exporter.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export registrations")
	}
	return out, nil
}

func (s *RegistrationService) decide(ctx context.Context, actor *models.JWTClaims, registrationID string, outcome models.RegistrationStatus) (*models.Registration, error) {
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOrganizer(ctx, actor, reg.EventID); err != nil {
		return nil, err
	}
	if reg.Status != models.RegistrationPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration has already been decided")
	}

	now := time.Now().UTC()
	reg.Status = outcome
	reg.DecidedBy = &actor.UserID
	reg.DecidedAt = &now
	reg.UpdatedAt = now
	if err := s.repo.Update(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	return reg, nil
}

func (s *RegistrationService) requireOrganizer(ctx context.Context, actor *models.JWTClaims, eventID string) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not organize this event")
	}
	return event, nil
}

func (s *RegistrationService) loadEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func (s *RegistrationService) loadRegistration(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return reg, nil
}

func findTicket(tickets []models.TicketType, name models.TicketName) (models.TicketType, bool) {
	for _, t := range tickets {
		if t.Name == name {
			return t, true
		}
	}
	return models.TicketType{}, false
}

// matchAnswers pairs attendee answers with the ticket's approval questions
// and rejects missing answers to required ones.
func matchAnswers(questions []models.ApprovalQuestion, answers []models.ApprovalAnswer) (models.ApprovalAnswerList, error) {
	byQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		byQuestion[strings.TrimSpace(a.Question)] = strings.TrimSpace(a.Answer)
	}

	matched := make(models.ApprovalAnswerList, 0, len(questions))
	for _, q := range questions {
		answer := byQuestion[q.Question]
		if q.Required && answer == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("an answer to %q is required", q.Question))
		}
		matched = append(matched, models.ApprovalAnswer{Question: q.Question, Answer: answer})
	}
	return matched, nil
}
