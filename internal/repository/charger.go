package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type ChargerRepository interface {
	Upsert(charger *models.Charger, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.Charger, bool, error)
	Nearby(lat, lng, radiusM float64) ([]models.Charger, error)
	Count() (int, error)
}

const (
	ChargerSourceNrel     = "nrel"
	ChargerSourceOverpass = "overpass"
	ChargerSourceSeed     = "seed"
)

type ChargerRepositoryImpl struct {
	db *sqlx.DB
}

func NewChargerRepository(db *sqlx.DB) ChargerRepository {
	return &ChargerRepositoryImpl{db: db}
}

// Upsert inserts a charger keyed by its provider ID, refreshing name and
// position on conflict so re-running the seeder converges instead of piling
// up duplicates.
func (repo *ChargerRepositoryImpl) Upsert(charger *models.Charger, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO chargers (external_id, source, network, name, lat, lng, connector_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			network = EXCLUDED.network, connector_types = EXCLUDED.connector_types
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query,
			charger.ExternalID,
			charger.Source,
			charger.Network,
			charger.Name,
			charger.Lat,
			charger.Lng,
			charger.ConnectorTypes,
		).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query,
			charger.ExternalID,
			charger.Source,
			charger.Network,
			charger.Name,
			charger.Lat,
			charger.Lng,
			charger.ConnectorTypes,
		)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *ChargerRepositoryImpl) GetOne(id string) (*models.Charger, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var charger models.Charger

	query := `SELECT * FROM chargers WHERE id = $1`

	err := repo.db.GetContext(ctx, &charger, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &charger, true, nil
}

// Nearby does a bounding-box prefilter; callers refine with haversine.
func (repo *ChargerRepositoryImpl) Nearby(lat, lng, radiusM float64) ([]models.Charger, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	degrees := radiusM / 111000

	var chargers []models.Charger

	query := `
		SELECT * FROM chargers
		WHERE status = 'active'
			AND lat BETWEEN $1 AND $2
			AND lng BETWEEN $3 AND $4`

	err := repo.db.SelectContext(ctx, &chargers, query,
		lat-degrees, lat+degrees,
		lng-degrees, lng+degrees,
	)
	if err != nil {
		return nil, err
	}

	return chargers, nil
}

func (repo *ChargerRepositoryImpl) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var count int

	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chargers`)
	if err != nil {
		return 0, err
	}

	return count, nil
}
