package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
)

type mockEventRepo struct {
	mu     sync.Mutex
	events map[string]*models.Event
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*models.Event)}
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *event
	return &clone, nil
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, event := range m.events {
		if filter.OrganizerID != "" && event.OrganizerID != filter.OrganizerID {
			continue
		}
		if filter.Status != nil && event.Status != *filter.Status {
			continue
		}
		out = append(out, *event)
	}
	return out, len(out), nil
}

func (m *mockEventRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newEventFixture() (*EventService, *mockEventRepo) {
	repo := newMockEventRepo()
	return NewEventService(repo, NewPublicationService(), zap.NewNop()), repo
}

func paidDraft() models.EventDraft {
	draft := completeDraft()
	draft.TicketTypes = []models.DraftTicket{
		{Name: models.TicketNameRegular, Price: "5000", Capacity: "100"},
	}
	return draft
}

func TestServiceFeeForCapacityTiers(t *testing.T) {
	cases := []struct {
		capacity int
		fee      int64
		label    string
	}{
		{1, 5000, "1-100"},
		{100, 5000, "1-100"},
		{101, 10000, "101-500"},
		{500, 10000, "101-500"},
		{501, 25000, "501-1000"},
		{1000, 25000, "501-1000"},
		{1001, 50000, "1000+"},
	}
	for _, tc := range cases {
		fee, label := ServiceFeeForCapacity(tc.capacity)
		assert.True(t, fee.Equal(decimal.NewFromInt(tc.fee)), "capacity %d", tc.capacity)
		assert.Equal(t, tc.label, label, "capacity %d", tc.capacity)
	}
}

func TestPublishFreeEventDivertsToServiceFee(t *testing.T) {
	svc, repo := newEventFixture()
	event, err := svc.Create(context.Background(), organizerClaims(), completeDraft(), nil)
	require.NoError(t, err)

	resp, err := svc.Publish(context.Background(), organizerClaims(), event.ID)
	require.NoError(t, err)
	assert.True(t, resp.ServiceFeeRequired)
	assert.Equal(t, "5000", resp.ServiceFee)
	assert.Equal(t, "1-100", resp.AttendanceRange)
	assert.Nil(t, resp.Event)

	// The row stays a draft until the fee settles.
	stored, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDraft, stored.Status)
	assert.Nil(t, stored.PublishedAt)
}

func TestPublishPaidEventDirectly(t *testing.T) {
	svc, repo := newEventFixture()
	event, err := svc.Create(context.Background(), organizerClaims(), paidDraft(), nil)
	require.NoError(t, err)

	resp, err := svc.Publish(context.Background(), organizerClaims(), event.ID)
	require.NoError(t, err)
	assert.False(t, resp.ServiceFeeRequired)
	require.NotNil(t, resp.Event)
	assert.Equal(t, models.EventStatusPublished, resp.Event.Status)
	assert.NotNil(t, resp.Event.PublishedAt)

	stored, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPublished, stored.Status)
}

func TestPublishBlockedDraftReturnsReasonsNotError(t *testing.T) {
	svc, _ := newEventFixture()
	draft := completeDraft()
	draft.Description = ""
	event, err := svc.Create(context.Background(), organizerClaims(), draft, nil)
	require.NoError(t, err)

	resp, err := svc.Publish(context.Background(), organizerClaims(), event.ID)
	require.NoError(t, err)
	assert.False(t, resp.Check.Publishable)
	assert.NotEmpty(t, resp.Check.BlockingReasons)
	assert.False(t, resp.ServiceFeeRequired)
	assert.Nil(t, resp.Event)
}

func TestPublishGuardsTerminalStatuses(t *testing.T) {
	svc, _ := newEventFixture()
	event, err := svc.Create(context.Background(), organizerClaims(), paidDraft(), nil)
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), organizerClaims(), event.ID)
	require.NoError(t, err)

	_, err = svc.Publish(context.Background(), organizerClaims(), event.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	cancelled, err := svc.Create(context.Background(), organizerClaims(), paidDraft(), nil)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), organizerClaims(), cancelled.ID)
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), organizerClaims(), cancelled.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEventNotEditable.Code, appErrors.FromError(err).Code)
}

func TestCreateEnforcesCollectionLimits(t *testing.T) {
	svc, _ := newEventFixture()
	claims := organizerClaims()

	tooMany := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "x"
		}
		return out
	}

	draft := completeDraft()
	draft.Tags = tooMany(models.MaxTags + 1)
	_, err := svc.Create(context.Background(), claims, draft, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	draft = completeDraft()
	draft.Requirements = tooMany(models.MaxRequirements + 1)
	_, err = svc.Create(context.Background(), claims, draft, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), claims, completeDraft(), tooMany(models.MaxImages+1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// The same bounds hold on update.
	event, err := svc.Create(context.Background(), claims, completeDraft(), nil)
	require.NoError(t, err)
	draft = completeDraft()
	draft.Tags = tooMany(models.MaxTags + 1)
	_, err = svc.Update(context.Background(), claims, event.ID, draft, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateFromHandoffPublishesExistingDraft(t *testing.T) {
	svc, repo := newEventFixture()
	event, err := svc.Create(context.Background(), organizerClaims(), completeDraft(), nil)
	require.NoError(t, err)

	published, err := svc.CreateFromHandoff(context.Background(), &models.PaymentHandoff{
		Reference:   "evsf_existing",
		OrganizerID: "org-1",
		EventID:     event.ID,
		EventData:   completeDraft(),
	})
	require.NoError(t, err)
	assert.Equal(t, event.ID, published.ID)
	assert.Equal(t, models.EventStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	// The stored draft was published in place; no duplicate row appears.
	assert.Equal(t, 1, repo.count())
	stored, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPublished, stored.Status)
}

func TestCreateFromHandoffRetryReturnsPublishedRow(t *testing.T) {
	svc, repo := newEventFixture()
	event, err := svc.Create(context.Background(), organizerClaims(), completeDraft(), nil)
	require.NoError(t, err)

	handoff := &models.PaymentHandoff{
		Reference:   "evsf_retry",
		OrganizerID: "org-1",
		EventID:     event.ID,
		EventData:   completeDraft(),
	}
	first, err := svc.CreateFromHandoff(context.Background(), handoff)
	require.NoError(t, err)
	second, err := svc.CreateFromHandoff(context.Background(), handoff)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.count())
}

func TestCreateFromHandoffFallsBackWhenRowMissing(t *testing.T) {
	svc, repo := newEventFixture()

	published, err := svc.CreateFromHandoff(context.Background(), &models.PaymentHandoff{
		Reference:   "evsf_gone",
		OrganizerID: "org-1",
		EventID:     "deleted-row",
		EventData:   completeDraft(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, "deleted-row", published.ID)
	assert.Equal(t, models.EventStatusPublished, published.Status)
	assert.Equal(t, 1, repo.count())
}

func TestCreateFromHandoffWithoutEventIDCreatesRow(t *testing.T) {
	svc, repo := newEventFixture()

	published, err := svc.CreateFromHandoff(context.Background(), &models.PaymentHandoff{
		Reference:   "evsf_snapshot",
		OrganizerID: "org-1",
		EventData:   completeDraft(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPublished, published.Status)
	assert.Equal(t, "org-1", published.OrganizerID)
	require.Len(t, published.TicketTypes, 1)
	assert.Equal(t, 1, repo.count())
}

func TestCreateFromHandoffDegradedSnapshotRejected(t *testing.T) {
	svc, repo := newEventFixture()

	draft := completeDraft()
	draft.Description = ""
	_, err := svc.CreateFromHandoff(context.Background(), &models.PaymentHandoff{
		Reference:   "evsf_degraded",
		OrganizerID: "org-1",
		EventData:   draft,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotPublishable.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.count())
}
