package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type IntentRepository interface {
	Insert(intent *models.DriverIntent) (string, error)
	GetOne(id string) (*models.DriverIntent, bool, error)
	LatestByDriver(driverID string) (*models.DriverIntent, bool, error)
}

type IntentRepositoryImpl struct {
	db *sqlx.DB
}

func NewIntentRepository(db *sqlx.DB) IntentRepository {
	return &IntentRepositoryImpl{db: db}
}

func (repo *IntentRepositoryImpl) Insert(intent *models.DriverIntent) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO driver_intents (driver_id, charger_id, lat, lng, accuracy_m, confidence_tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		intent.DriverID,
		intent.ChargerID,
		intent.Lat,
		intent.Lng,
		intent.AccuracyM,
		intent.ConfidenceTier,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *IntentRepositoryImpl) GetOne(id string) (*models.DriverIntent, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var intent models.DriverIntent

	query := `SELECT * FROM driver_intents WHERE id = $1`

	err := repo.db.GetContext(ctx, &intent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &intent, true, nil
}

func (repo *IntentRepositoryImpl) LatestByDriver(driverID string) (*models.DriverIntent, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var intent models.DriverIntent

	query := `
		SELECT * FROM driver_intents
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := repo.db.GetContext(ctx, &intent, query, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &intent, true, nil
}
