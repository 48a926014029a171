package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type PerkRepository interface {
	Insert(perk *models.Perk) (string, error)
	GetOne(id string) (*models.Perk, bool, error)
	ListByMerchant(merchantID string, activeOnly bool) ([]models.Perk, error)
	ListActiveByMerchantIDs(merchantIDs []string) ([]models.Perk, error)
	SetStatus(id, status string) error
}

const (
	PerkActiveStatus   = "active"
	PerkInactiveStatus = "inactive"
)

type PerkRepositoryImpl struct {
	db *sqlx.DB
}

func NewPerkRepository(db *sqlx.DB) PerkRepository {
	return &PerkRepositoryImpl{db: db}
}

func (repo *PerkRepositoryImpl) Insert(perk *models.Perk) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO perks (merchant_id, title, description, nova_reward_cents, redeem_price_cents, min_dwell_seconds, min_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		perk.MerchantID,
		perk.Title,
		perk.Description,
		perk.NovaRewardCents,
		perk.RedeemPriceCents,
		perk.MinDwellSeconds,
		perk.MinTier,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *PerkRepositoryImpl) GetOne(id string) (*models.Perk, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var perk models.Perk

	query := `SELECT * FROM perks WHERE id = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &perk, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &perk, true, nil
}

func (repo *PerkRepositoryImpl) ListByMerchant(merchantID string, activeOnly bool) ([]models.Perk, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var perks []models.Perk

	query := `
		SELECT * FROM perks
		WHERE merchant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	if activeOnly {
		query = `
			SELECT * FROM perks
			WHERE merchant_id = $1 AND deleted_at IS NULL AND status = 'active'
			ORDER BY created_at DESC`
	}

	err := repo.db.SelectContext(ctx, &perks, query, merchantID)
	if err != nil {
		return nil, err
	}

	return perks, nil
}

func (repo *PerkRepositoryImpl) ListActiveByMerchantIDs(merchantIDs []string) ([]models.Perk, error) {
	if len(merchantIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query, args, err := sqlx.In(`
		SELECT * FROM perks
		WHERE merchant_id IN (?) AND deleted_at IS NULL AND status = 'active'
		ORDER BY nova_reward_cents DESC`, merchantIDs)
	if err != nil {
		return nil, err
	}

	var perks []models.Perk

	err = repo.db.SelectContext(ctx, &perks, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	return perks, nil
}

func (repo *PerkRepositoryImpl) SetStatus(id, status string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE perks SET status = $1 WHERE id = $2 AND deleted_at IS NULL`

	_, err := repo.db.ExecContext(ctx, query, status, id)
	return err
}
