package repository

import (
	"context"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	OutboxPendingStatus   = "pending"
	OutboxDeliveredStatus = "delivered"
	OutboxFailedStatus    = "failed"

	// Outbox topics understood by the CRM dispatcher.
	OutboxDriverSignedUpTopic    = "crm.driver_signed_up"
	OutboxMerchantOnboardedTopic = "crm.merchant_onboarded"
	OutboxArrivalCompletedTopic  = "crm.arrival_completed"
)

type OutboxRepository interface {
	Insert(topic string, payload []byte, tx *sqlx.Tx) (string, error)
	ClaimPending(limit int, now time.Time) ([]models.OutboxEvent, error)
	MarkDelivered(id string) error
	MarkFailed(id, lastError string, nextAttempt time.Time, final bool) error
}

type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &OutboxRepositoryImpl{db: db}
}

// Insert queues an event. Callers that change domain state in a transaction
// pass it in so the event commits or rolls back together with the change;
// that is the whole point of the outbox.
func (repo *OutboxRepositoryImpl) Insert(topic string, payload []byte, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO outbox_events (topic, payload)
		VALUES ($1, $2)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query, topic, payload).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query, topic, payload)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

// ClaimPending returns due events, oldest first. The dispatcher runs as a
// single worker per deployment; delivery to the CRM is idempotent on its side
// so the occasional double-send during a rolling restart is acceptable.
func (repo *OutboxRepositoryImpl) ClaimPending(limit int, now time.Time) ([]models.OutboxEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var events []models.OutboxEvent

	query := `
		SELECT * FROM outbox_events
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at ASC
		LIMIT $3`

	err := repo.db.SelectContext(ctx, &events, query, OutboxPendingStatus, now, limit)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (repo *OutboxRepositoryImpl) MarkDelivered(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE outbox_events
		SET status = $1, delivered_at = NOW()
		WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, OutboxDeliveredStatus, id)
	return err
}

func (repo *OutboxRepositoryImpl) MarkFailed(id, lastError string, nextAttempt time.Time, final bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	status := OutboxPendingStatus
	if final {
		status = OutboxFailedStatus
	}

	query := `
		UPDATE outbox_events
		SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $4`

	_, err := repo.db.ExecContext(ctx, query, status, lastError, nextAttempt, id)
	return err
}
