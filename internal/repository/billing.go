package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

const BillingQualifiedVisitKind = "qualified_visit"

type BillingRepository interface {
	Insert(event *models.BillingEvent) (*models.BillingEvent, bool, error)
	ListByMerchant(merchantID string, limit, offset int) ([]models.BillingEvent, error)
}

type BillingRepositoryImpl struct {
	db *sqlx.DB
}

func NewBillingRepository(db *sqlx.DB) BillingRepository {
	return &BillingRepositoryImpl{db: db}
}

// Insert derives at most one billing event per arrival session. The unique
// constraint on arrival_session_id makes redelivered completion messages
// no-ops; the bool reports whether a new event was actually written.
func (repo *BillingRepositoryImpl) Insert(event *models.BillingEvent) (*models.BillingEvent, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var inserted models.BillingEvent

	query := `
		INSERT INTO billing_events (merchant_id, arrival_session_id, kind, amount_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (arrival_session_id) DO NOTHING
		RETURNING *`

	err := repo.db.GetContext(ctx, &inserted, query,
		event.MerchantID,
		event.ArrivalSessionID,
		event.Kind,
		event.AmountCents,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &inserted, true, nil
}

func (repo *BillingRepositoryImpl) ListByMerchant(merchantID string, limit, offset int) ([]models.BillingEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var events []models.BillingEvent

	query := `
		SELECT * FROM billing_events
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &events, query, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}

	return events, nil
}
