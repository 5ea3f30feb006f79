package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/skrillzofficial/eventry-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func registrationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "user_id", "ticket_name", "status", "answers", "decided_by", "decided_at", "created_at", "updated_at"})
}

func TestRegistrationRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	reg := &models.Registration{
		EventID:    "event-1",
		UserID:     "user-1",
		TicketName: models.TicketNameRegular,
		Status:     models.RegistrationConfirmed,
	}
	require.NoError(t, repo.Create(context.Background(), reg))
	require.NotEmpty(t, reg.ID)

	now := time.Now()
	rows := registrationRows().
		AddRow(reg.ID, reg.EventID, reg.UserID, reg.TicketName, reg.Status, []byte("[]"), nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, user_id, ticket_name, status")).
		WithArgs(reg.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), reg.ID)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationConfirmed, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCountActive(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND ticket_name = $2 AND status IN ('pending', 'confirmed')")).
		WithArgs("event-1", models.TicketNameVIP).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountActive(context.Background(), "event-1", models.TicketNameVIP)
	require.NoError(t, err)
	require.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindByEventAndUser(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	now := time.Now()
	rows := registrationRows().
		AddRow("reg-2", "event-1", "user-1", models.TicketNameRegular, models.RegistrationPending, []byte(`[{"question":"Company?","answer":"Acme"}]`), nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 1")).
		WithArgs("event-1", "user-1").
		WillReturnRows(rows)

	found, err := repo.FindByEventAndUser(context.Background(), "event-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, models.RegistrationPending, found.Status)
	require.Len(t, found.Answers, 1)
	require.Equal(t, "Acme", found.Answers[0].Answer)
}

func TestRegistrationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	now := time.Now()
	status := models.RegistrationPending
	rows := registrationRows().
		AddRow("reg-1", "event-1", "user-1", models.TicketNameRegular, status, []byte("[]"), nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE 1=1 AND event_id = $1 AND status = $2")).
		WithArgs("event-1", status).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE 1=1 AND event_id = $1 AND status = $2")).
		WithArgs("event-1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	regs, total, err := repo.List(context.Background(), models.RegistrationFilter{
		EventID: "event-1",
		Status:  &status,
		Page:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, regs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
