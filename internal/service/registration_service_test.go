package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
	"github.com/skrillzofficial/eventry-api/pkg/export"
)

type mockRegistrationRepo struct {
	mu     sync.Mutex
	items  map[string]*models.Registration
	active map[string]int
}

func newMockRegistrationRepo() *mockRegistrationRepo {
	return &mockRegistrationRepo{
		items:  make(map[string]*models.Registration),
		active: make(map[string]int),
	}
}

func (m *mockRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.items[reg.ID] = &cp
	return nil
}

func (m *mockRegistrationRepo) Update(ctx context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.items[reg.ID] = &cp
	return nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg, ok := m.items[id]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Registration
	for _, reg := range m.items {
		if reg.EventID != eventID || reg.UserID != userID {
			continue
		}
		if latest == nil || reg.CreatedAt.After(latest.CreatedAt) {
			latest = reg
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (m *mockRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, reg := range m.items {
		if filter.EventID != "" && reg.EventID != filter.EventID {
			continue
		}
		if filter.Status != nil && reg.Status != *filter.Status {
			continue
		}
		out = append(out, *reg)
	}
	return out, len(out), nil
}

func (m *mockRegistrationRepo) CountActive(ctx context.Context, eventID string, ticket models.TicketName) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[eventID+":"+string(ticket)], nil
}

type mockEventReader struct {
	events map[string]*models.Event
}

func (m *mockEventReader) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if ev, ok := m.events[id]; ok {
		return ev, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockTicketRenderer struct {
	lastDoc export.TicketDocument
}

func (m *mockTicketRenderer) Render(doc export.TicketDocument) ([]byte, error) {
	m.lastDoc = doc
	return []byte("%PDF-1.4 fake"), nil
}

type mockRosterExporter struct {
	lastData export.Dataset
}

func (m *mockRosterExporter) Render(data export.Dataset) ([]byte, error) {
	m.lastData = data
	return []byte("csv"), nil
}

func attendeeClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Email: "attendee@example.com", FullName: "Attendee One", Role: models.RoleAttendee}
}

func publishedEvent() *models.Event {
	deadline := time.Now().UTC().Add(48 * time.Hour)
	maxRegular := 100
	return &models.Event{
		ID:          "event-1",
		OrganizerID: "org-1",
		Title:       "Lagos Tech Summit",
		StartDate:   "2025-06-01",
		Time:        "18:00",
		Status:      models.EventStatusPublished,
		TicketTypes: models.TicketTypeList{
			{
				Name:             models.TicketNameRegular,
				Price:            decimal.Zero,
				Capacity:         200,
				MaxAttendees:     &maxRegular,
				RequiresApproval: true,
				ApprovalDeadline: &deadline,
				ApprovalQuestions: []models.ApprovalQuestion{
					{Question: "Company?", Required: true},
					{Question: "Dietary needs?", Required: false},
				},
			},
			{
				Name:     models.TicketNameVIP,
				Price:    decimal.NewFromInt(5000),
				Capacity: 20,
			},
		},
	}
}

type registrationFixture struct {
	svc      *RegistrationService
	repo     *mockRegistrationRepo
	events   *mockEventReader
	tickets  *mockTicketRenderer
	exporter *mockRosterExporter
}

func newRegistrationFixture() *registrationFixture {
	repo := newMockRegistrationRepo()
	events := &mockEventReader{events: map[string]*models.Event{"event-1": publishedEvent()}}
	users := &mockUserReader{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "attendee@example.com", FullName: "Attendee One"},
	}}
	tickets := &mockTicketRenderer{}
	exporter := &mockRosterExporter{}
	svc := NewRegistrationService(repo, events, users, tickets, exporter, zap.NewNop(), "Eventry")
	return &registrationFixture{svc: svc, repo: repo, events: events, tickets: tickets, exporter: exporter}
}

func TestRegisterPaidTicketConfirmedImmediately(t *testing.T) {
	f := newRegistrationFixture()

	reg, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, reg.Status)
	assert.Empty(t, reg.Answers)
}

func TestRegisterApprovalGatedTicketEntersPending(t *testing.T) {
	f := newRegistrationFixture()

	reg, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers: []models.ApprovalAnswer{
			{Question: "Company?", Answer: "Acme"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, reg.Status)
	require.Len(t, reg.Answers, 2)
	assert.Equal(t, "Acme", reg.Answers[0].Answer)
	assert.Equal(t, "", reg.Answers[1].Answer)
}

func TestRegisterRequiredAnswerMissing(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers: []models.ApprovalAnswer{
			{Question: "Company?", Answer: "   "},
		},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	f := newRegistrationFixture()
	claims := attendeeClaims()

	_, err := f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterAgainAfterCancellation(t *testing.T) {
	f := newRegistrationFixture()
	claims := attendeeClaims()

	reg, err := f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), claims, reg.ID)
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	assert.NoError(t, err)
}

func TestRegisterSoldOutAtEffectiveLimit(t *testing.T) {
	f := newRegistrationFixture()
	// Capacity is 200 but max attendees caps Regular at 100.
	f.repo.active["event-1:Regular"] = 100

	_, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers:    []models.ApprovalAnswer{{Question: "Company?", Answer: "Acme"}},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSoldOut.Code, appErrors.FromError(err).Code)
}

func TestRegisterUnpublishedEventRejected(t *testing.T) {
	f := newRegistrationFixture()
	f.events.events["event-1"].Status = models.EventStatusDraft

	_, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.Error(t, err)
}

func TestRegisterPastApprovalDeadline(t *testing.T) {
	f := newRegistrationFixture()
	past := time.Now().UTC().Add(-time.Hour)
	f.events.events["event-1"].TicketTypes[0].ApprovalDeadline = &past

	_, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers:    []models.ApprovalAnswer{{Question: "Company?", Answer: "Acme"}},
	})
	require.Error(t, err)
}

func TestApproveByOrganizer(t *testing.T) {
	f := newRegistrationFixture()
	reg, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers:    []models.ApprovalAnswer{{Question: "Company?", Answer: "Acme"}},
	})
	require.NoError(t, err)

	organizer := &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}
	decided, err := f.svc.Approve(context.Background(), organizer, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "org-1", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)

	// A decision is final.
	_, err = f.svc.Decline(context.Background(), organizer, reg.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDecideRejectsNonOrganizer(t *testing.T) {
	f := newRegistrationFixture()
	reg, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers:    []models.ApprovalAnswer{{Question: "Company?", Answer: "Acme"}},
	})
	require.NoError(t, err)

	stranger := &models.JWTClaims{UserID: "org-2", Role: models.RoleOrganizer}
	_, err = f.svc.Approve(context.Background(), stranger, reg.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCancelIsIdempotentAndOwnerOnly(t *testing.T) {
	f := newRegistrationFixture()
	claims := attendeeClaims()
	reg, err := f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)

	other := &models.JWTClaims{UserID: "user-2", Role: models.RoleAttendee}
	_, err = f.svc.Cancel(context.Background(), other, reg.ID)
	require.Error(t, err)

	first, err := f.svc.Cancel(context.Background(), claims, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, first.Status)

	second, err := f.svc.Cancel(context.Background(), claims, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, second.Status)
}

func TestTicketPDFOnlyForConfirmed(t *testing.T) {
	f := newRegistrationFixture()
	claims := attendeeClaims()
	reg, err := f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{
		TicketName: models.TicketNameRegular,
		Answers:    []models.ApprovalAnswer{{Question: "Company?", Answer: "Acme"}},
	})
	require.NoError(t, err)

	_, err = f.svc.TicketPDF(context.Background(), claims, reg.ID)
	require.Error(t, err, "pending registration has no ticket")

	organizer := &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}
	_, err = f.svc.Approve(context.Background(), organizer, reg.ID)
	require.NoError(t, err)

	pdf, err := f.svc.TicketPDF(context.Background(), claims, reg.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Equal(t, "Lagos Tech Summit", f.tickets.lastDoc.EventTitle)
	assert.Equal(t, "Free", f.tickets.lastDoc.Price)
	assert.Equal(t, "Attendee One", f.tickets.lastDoc.AttendeeName)
}

func TestTicketPDFShowsPaidPrice(t *testing.T) {
	f := newRegistrationFixture()
	claims := attendeeClaims()
	reg, err := f.svc.Register(context.Background(), claims, "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)

	_, err = f.svc.TicketPDF(context.Background(), claims, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "5000", f.tickets.lastDoc.Price)

	require.Equal(t, models.RegistrationConfirmed, reg.Status)
}

func TestExportCSVIncludesRoster(t *testing.T) {
	f := newRegistrationFixture()
	_, err := f.svc.Register(context.Background(), attendeeClaims(), "event-1", dto.RegisterRequest{TicketName: models.TicketNameVIP})
	require.NoError(t, err)

	organizer := &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}
	out, err := f.svc.ExportCSV(context.Background(), organizer, "event-1")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, []string{"registration_id", "user_id", "ticket", "status", "registered_at"}, f.exporter.lastData.Headers)
	require.Len(t, f.exporter.lastData.Rows, 1)
	assert.Equal(t, "VIP", f.exporter.lastData.Rows[0]["ticket"])
}

func TestListForEventRequiresOrganizer(t *testing.T) {
	f := newRegistrationFixture()
	_, _, err := f.svc.ListForEvent(context.Background(), attendeeClaims(), "event-1", models.RegistrationFilter{})
	require.Error(t, err)

	organizer := &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}
	_, page, err := f.svc.ListForEvent(context.Background(), organizer, "event-1", models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}
