package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skrillzofficial/eventry-api/internal/models"
)

// TransactionRepository provides database access for gateway transactions.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction record.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	const query = `INSERT INTO transactions (id, reference, event_id, user_id, kind, amount, status, gateway_status, created_at, updated_at) VALUES (:id, :reference, :event_id, :user_id, :kind, :amount, :status, :gateway_status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// UpdateStatus records the gateway outcome for a reference.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, reference string, status models.TransactionStatus, gatewayStatus *string) error {
	const query = `UPDATE transactions SET status = $2, gateway_status = $3, updated_at = $4 WHERE reference = $1`
	if _, err := r.db.ExecContext(ctx, query, reference, status, gatewayStatus, time.Now().UTC()); err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

// AttachEvent links a settled transaction to the event it paid for.
func (r *TransactionRepository) AttachEvent(ctx context.Context, reference, eventID string) error {
	const query = `UPDATE transactions SET event_id = $2, updated_at = $3 WHERE reference = $1`
	if _, err := r.db.ExecContext(ctx, query, reference, eventID, time.Now().UTC()); err != nil {
		return fmt.Errorf("attach event to transaction: %w", err)
	}
	return nil
}

// FindByReference returns a transaction by its gateway reference.
func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	const query = `SELECT id, reference, event_id, user_id, kind, amount, status, gateway_status, created_at, updated_at FROM transactions WHERE reference = $1 LIMIT 1`
	var tx models.Transaction
	if err := r.db.GetContext(ctx, &tx, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find transaction by reference: %w", err)
	}
	return &tx, nil
}
