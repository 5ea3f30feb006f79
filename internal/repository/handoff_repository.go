package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
)

const (
	handoffKeyPrefix        = "service_fee_handoff:"
	handoffSummaryKeyPrefix = "service_fee_handoff_min:"
)

// HandoffRepository persists payment handoff records in Redis. Each handoff
// is written twice, a full record and a minimal summary, both under the same
// TTL so an interrupted write still leaves something to diagnose with.
type HandoffRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewHandoffRepository constructs a handoff repository.
func NewHandoffRepository(client *redis.Client, logger *zap.Logger) *HandoffRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandoffRepository{client: client, logger: logger}
}

// Save stores the full handoff and its summary, each expiring after ttl.
func (r *HandoffRepository) Save(ctx context.Context, handoff *models.PaymentHandoff, ttl time.Duration) error {
	payload, err := json.Marshal(handoff)
	if err != nil {
		return fmt.Errorf("marshal handoff %s: %w", handoff.Reference, err)
	}
	if err := r.client.Set(ctx, handoffKey(handoff.Reference), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set handoff %s: %w", handoff.Reference, err)
	}

	summary := models.HandoffSummary{
		Reference:       handoff.Reference,
		ServiceFee:      handoff.ServiceFee,
		AttendanceRange: handoff.AttendanceRange,
		CreatedAt:       handoff.CreatedAt,
	}
	minPayload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal handoff summary %s: %w", handoff.Reference, err)
	}
	if err := r.client.Set(ctx, handoffSummaryKey(handoff.Reference), minPayload, ttl).Err(); err != nil {
		// The full record is already durable; log and carry on.
		r.logger.Warn("failed to store handoff summary",
			zap.String("reference", handoff.Reference), zap.Error(err))
	}
	return nil
}

// Find returns the full handoff record, or ErrCacheMiss when the key is
// gone (expired, consumed, or never written).
func (r *HandoffRepository) Find(ctx context.Context, reference string) (*models.PaymentHandoff, error) {
	raw, err := r.client.Get(ctx, handoffKey(reference)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get handoff %s: %w", reference, err)
	}

	var handoff models.PaymentHandoff
	if err := json.Unmarshal(raw, &handoff); err != nil {
		return nil, fmt.Errorf("unmarshal handoff %s: %w", reference, err)
	}
	return &handoff, nil
}

// FindMinimal returns the summary record, or ErrCacheMiss when absent.
func (r *HandoffRepository) FindMinimal(ctx context.Context, reference string) (*models.HandoffSummary, error) {
	raw, err := r.client.Get(ctx, handoffSummaryKey(reference)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get handoff summary %s: %w", reference, err)
	}

	var summary models.HandoffSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal handoff summary %s: %w", reference, err)
	}
	return &summary, nil
}

// Delete removes both records for a reference. Missing keys are not errors.
func (r *HandoffRepository) Delete(ctx context.Context, reference string) error {
	if err := r.client.Del(ctx, handoffKey(reference), handoffSummaryKey(reference)).Err(); err != nil {
		return fmt.Errorf("redis delete handoff %s: %w", reference, err)
	}
	return nil
}

func handoffKey(reference string) string {
	return handoffKeyPrefix + reference
}

func handoffSummaryKey(reference string) string {
	return handoffSummaryKeyPrefix + reference
}
