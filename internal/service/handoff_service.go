package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/gateway/paystack"
	"github.com/skrillzofficial/eventry-api/internal/models"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
)

type handoffStore interface {
	Save(ctx context.Context, handoff *models.PaymentHandoff, ttl time.Duration) error
	Find(ctx context.Context, reference string) (*models.PaymentHandoff, error)
	FindMinimal(ctx context.Context, reference string) (*models.HandoffSummary, error)
	Delete(ctx context.Context, reference string) error
}

type handoffGateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResponse, error)
}

type handoffEventCreator interface {
	CreateFromHandoff(ctx context.Context, handoff *models.PaymentHandoff) (*models.Event, error)
}

type handoffTransactionWriter interface {
	Create(ctx context.Context, tx *models.Transaction) error
	UpdateStatus(ctx context.Context, reference string, status models.TransactionStatus, gatewayStatus *string) error
	AttachEvent(ctx context.Context, reference, eventID string) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
}

// HandoffConfig tunes the payment handoff flow.
type HandoffConfig struct {
	TTL         time.Duration
	CallbackURL string
}

// HandoffService coordinates the service-fee publish flow across the payment
// gateway redirect boundary: agreement capture, gateway initialization, the
// return-redirect verification, and idempotent event publication. The
// persisted handoff record is the continuation; there is no in-process
// callback across the redirect.
type HandoffService struct {
	store        handoffStore
	gateway      handoffGateway
	events       handoffEventCreator
	transactions handoffTransactionWriter
	publication  *PublicationService
	validator    *validator.Validate
	logger       *zap.Logger
	config       HandoffConfig

	// inFlight guards against a second verification call for the same
	// reference while one is still resolving.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewHandoffService constructs the coordinator.
func NewHandoffService(store handoffStore, gw handoffGateway, events handoffEventCreator, transactions handoffTransactionWriter, publication *PublicationService, validate *validator.Validate, logger *zap.Logger, cfg HandoffConfig) *HandoffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publication == nil {
		publication = NewPublicationService()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &HandoffService{
		store:        store,
		gateway:      gw,
		events:       events,
		transactions: transactions,
		publication:  publication,
		validator:    validate,
		logger:       logger,
		config:       cfg,
		inFlight:     make(map[string]struct{}),
	}
}

// Begin confirms the signed agreement, persists the handoff record, and asks
// the gateway for an authorization URL. Nothing is persisted and no external
// call happens if any precondition fails, so abandoning before this point is
// free.
func (s *HandoffService) Begin(ctx context.Context, actor *models.JWTClaims, req dto.InitializeServiceFeeRequest) (*dto.InitializeServiceFeeResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service fee payload")
	}
	if !req.TermsAccepted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "service fee agreement must be accepted")
	}

	fee, err := decimal.NewFromString(strings.TrimSpace(req.ServiceFee))
	if err != nil || !fee.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "service fee must be a positive amount")
	}

	check := s.publication.Validate(req.EventData)
	if !check.Publishable {
		return nil, appErrors.Clone(appErrors.ErrNotPublishable, strings.Join(check.BlockingReasons, "; "))
	}

	reference := fmt.Sprintf("evsf_%s", uuid.NewString())
	now := time.Now().UTC()

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       actor.Email,
		Amount:      fee,
		Reference:   reference,
		CallbackURL: s.config.CallbackURL + "?type=service_fee",
		Metadata: map[string]interface{}{
			"kind":             string(models.TransactionServiceFee),
			"attendance_range": req.AttendanceRange,
		},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to initialize service fee payment")
	}
	if init.Reference != "" {
		reference = init.Reference
	}

	handoff := &models.PaymentHandoff{
		Reference:   reference,
		OrganizerID: actor.UserID,
		EventID:     strings.TrimSpace(req.EventID),
		Agreement: models.Agreement{
			AttendanceRange: req.AttendanceRange,
			ServiceFee:      fee,
			TermsAccepted:   true,
			SignedBy:        actor.UserID,
			SignedAt:        now,
		},
		EventData:       req.EventData,
		ServiceFee:      fee,
		AttendanceRange: req.AttendanceRange,
		CreatedAt:       now,
	}
	if err := s.store.Save(ctx, handoff, s.config.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payment handoff")
	}

	if err := s.transactions.Create(ctx, &models.Transaction{
		ID:        uuid.NewString(),
		Reference: reference,
		UserID:    actor.UserID,
		Kind:      models.TransactionServiceFee,
		Amount:    fee,
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		s.logger.Warn("failed to record pending service fee transaction",
			zap.String("reference", reference), zap.Error(err))
	}

	return &dto.InitializeServiceFeeResponse{
		AuthorizationURL: init.AuthorizationURL,
		Reference:        reference,
	}, nil
}

// Resume handles the gateway's return redirect. It never returns an error:
// every outcome, including infrastructure trouble, is a terminal
// HandoffResult so callers can render an actionable message with the
// reference attached. The verification endpoint is called at most once per
// reference at a time, and the persisted handoff is only deleted once a
// terminal outcome is known.
func (s *HandoffService) Resume(ctx context.Context, reference string) *models.HandoffResult {
	if strings.TrimSpace(reference) == "" {
		return &models.HandoffResult{
			State:  models.HandoffFailed,
			Reason: models.FailureMissingReference,
			Detail: "the payment provider did not return a reference",
		}
	}

	if !s.acquire(reference) {
		// A concurrent resume for this reference is still resolving; report
		// progress without issuing a second verification call.
		return &models.HandoffResult{
			State:     models.HandoffVerifyingReturn,
			Reference: reference,
		}
	}
	defer s.release(reference)

	handoff, err := s.store.Find(ctx, reference)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) || appErrors.FromError(err).Code == appErrors.ErrCacheMiss.Code {
			return s.failUntracked(ctx, reference)
		}
		return &models.HandoffResult{
			State:     models.HandoffFailed,
			Reason:    models.FailureVerificationFailed,
			Reference: reference,
			Detail:    fmt.Sprintf("could not load payment session: %v", err),
		}
	}

	if handoff.ExpiredAt(time.Now().UTC(), s.config.TTL) {
		if err := s.store.Delete(ctx, reference); err != nil {
			s.logger.Warn("failed to drop expired handoff", zap.String("reference", reference), zap.Error(err))
		}
		return &models.HandoffResult{
			State:     models.HandoffFailed,
			Reason:    models.FailureExpiredOrUntracked,
			Reference: reference,
			Detail:    "payment session expired; contact support with your reference",
		}
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		// Payment may have been captured even though verification did not
		// complete, so the handoff stays intact and nothing is retried
		// automatically.
		return &models.HandoffResult{
			State:     models.HandoffFailed,
			Reason:    models.FailureVerificationFailed,
			Reference: reference,
			Detail:    err.Error(),
		}
	}
	if !verification.Successful() {
		s.recordOutcome(ctx, reference, models.TransactionFailed, verification.Status)
		return &models.HandoffResult{
			State:     models.HandoffFailed,
			Reason:    models.FailureVerificationFailed,
			Reference: reference,
			Detail:    fmt.Sprintf("payment not settled (gateway status %q)", verification.Status),
		}
	}

	event, err := s.events.CreateFromHandoff(ctx, handoff)
	if err != nil || event == nil {
		// The fee was captured but no event came back. Keep the handoff for
		// manual reconciliation and surface the reference for support.
		detail := "payment verified but no event was created; contact support with your reference"
		if err != nil {
			detail = fmt.Sprintf("%s: %v", detail, err)
		}
		s.logger.Error("service fee verified without resulting event",
			zap.String("reference", reference), zap.Error(err))
		return &models.HandoffResult{
			State:     models.HandoffFailed,
			Reason:    models.FailureEventNotReturned,
			Reference: reference,
			Detail:    detail,
		}
	}

	s.recordOutcome(ctx, reference, models.TransactionSuccess, verification.Status)
	if err := s.transactions.AttachEvent(ctx, reference, event.ID); err != nil {
		s.logger.Warn("failed to link transaction to event",
			zap.String("reference", reference), zap.String("event_id", event.ID), zap.Error(err))
	}

	// Verify-before-delete: the handoff is only removed now that the
	// terminal outcome is known.
	if err := s.store.Delete(ctx, reference); err != nil {
		s.logger.Warn("failed to delete consumed handoff", zap.String("reference", reference), zap.Error(err))
	}

	return &models.HandoffResult{
		State:     models.HandoffSucceeded,
		Reference: reference,
		Event:     event,
	}
}

func (s *HandoffService) failUntracked(ctx context.Context, reference string) *models.HandoffResult {
	if summary, err := s.store.FindMinimal(ctx, reference); err == nil && summary != nil {
		s.logger.Warn("primary handoff record missing, minimal record survived",
			zap.String("reference", reference),
			zap.String("attendance_range", summary.AttendanceRange),
			zap.Time("created_at", summary.CreatedAt))
	}
	if err := s.store.Delete(ctx, reference); err != nil {
		s.logger.Warn("failed to clean up untracked handoff keys", zap.String("reference", reference), zap.Error(err))
	}

	// A settled transaction means this handoff was already consumed, most
	// likely a second visit to the return URL.
	detail := "no payment session found for this reference; contact support"
	if tx, err := s.transactions.FindByReference(ctx, reference); err == nil && tx.Status == models.TransactionSuccess {
		detail = "this payment was already processed"
	}
	return &models.HandoffResult{
		State:     models.HandoffFailed,
		Reason:    models.FailureExpiredOrUntracked,
		Reference: reference,
		Detail:    detail,
	}
}

func (s *HandoffService) recordOutcome(ctx context.Context, reference string, status models.TransactionStatus, gatewayStatus string) {
	gs := gatewayStatus
	if err := s.transactions.UpdateStatus(ctx, reference, status, &gs); err != nil {
		s.logger.Warn("failed to record transaction outcome",
			zap.String("reference", reference), zap.Error(err))
	}
}

func (s *HandoffService) acquire(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[reference]; busy {
		return false
	}
	s.inFlight[reference] = struct{}{}
	return true
}

func (s *HandoffService) release(reference string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, reference)
}
