package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
)

func sampleHandoff() *models.PaymentHandoff {
	return &models.PaymentHandoff{
		Reference:       "evsf_abc",
		OrganizerID:     "org-1",
		ServiceFee:      decimal.NewFromInt(5000),
		AttendanceRange: "1-100",
		CreatedAt:       time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandoffSaveWritesBothKeysWithTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	handoff := sampleHandoff()
	payload, err := json.Marshal(handoff)
	require.NoError(t, err)
	summary, err := json.Marshal(models.HandoffSummary{
		Reference:       handoff.Reference,
		ServiceFee:      handoff.ServiceFee,
		AttendanceRange: handoff.AttendanceRange,
		CreatedAt:       handoff.CreatedAt,
	})
	require.NoError(t, err)

	mock.ExpectSet("service_fee_handoff:evsf_abc", payload, 24*time.Hour).SetVal("OK")
	mock.ExpectSet("service_fee_handoff_min:evsf_abc", summary, 24*time.Hour).SetVal("OK")

	require.NoError(t, repo.Save(context.Background(), handoff, 24*time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandoffSaveSurvivesSummaryFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	handoff := sampleHandoff()
	payload, err := json.Marshal(handoff)
	require.NoError(t, err)
	summary, err := json.Marshal(models.HandoffSummary{
		Reference:       handoff.Reference,
		ServiceFee:      handoff.ServiceFee,
		AttendanceRange: handoff.AttendanceRange,
		CreatedAt:       handoff.CreatedAt,
	})
	require.NoError(t, err)

	mock.ExpectSet("service_fee_handoff:evsf_abc", payload, time.Hour).SetVal("OK")
	mock.ExpectSet("service_fee_handoff_min:evsf_abc", summary, time.Hour).SetErr(errors.New("oom"))

	// The full record made it; the summary is best effort.
	assert.NoError(t, repo.Save(context.Background(), handoff, time.Hour))
}

func TestHandoffFindRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	handoff := sampleHandoff()
	payload, err := json.Marshal(handoff)
	require.NoError(t, err)
	mock.ExpectGet("service_fee_handoff:evsf_abc").SetVal(string(payload))

	got, err := repo.Find(context.Background(), "evsf_abc")
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.OrganizerID)
	assert.True(t, got.ServiceFee.Equal(decimal.NewFromInt(5000)))
	assert.True(t, got.CreatedAt.Equal(handoff.CreatedAt))
}

func TestHandoffFindMissReturnsCacheMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	mock.ExpectGet("service_fee_handoff:evsf_gone").RedisNil()

	_, err := repo.Find(context.Background(), "evsf_gone")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestHandoffFindMinimal(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	summary, err := json.Marshal(models.HandoffSummary{Reference: "evsf_abc", AttendanceRange: "1-100"})
	require.NoError(t, err)
	mock.ExpectGet("service_fee_handoff_min:evsf_abc").SetVal(string(summary))

	got, err := repo.FindMinimal(context.Background(), "evsf_abc")
	require.NoError(t, err)
	assert.Equal(t, "1-100", got.AttendanceRange)

	mock.ExpectGet("service_fee_handoff_min:evsf_gone").RedisNil()
	_, err = repo.FindMinimal(context.Background(), "evsf_gone")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestHandoffDeleteRemovesBothKeys(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewHandoffRepository(client, zap.NewNop())

	mock.ExpectDel("service_fee_handoff:evsf_abc", "service_fee_handoff_min:evsf_abc").SetVal(2)

	require.NoError(t, repo.Delete(context.Background(), "evsf_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
