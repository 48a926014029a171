package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type MerchantRepository interface {
	Insert(merchant *models.Merchant, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.Merchant, bool, error)
	List(limit, offset int) ([]models.Merchant, error)
	Update(merchant *models.Merchant) error
	UpdateLogo(id, logoURL string) error
	Nearby(lat, lng, radiusM float64) ([]models.Merchant, error)
}

const (
	MerchantActiveStatus = "active"
	MerchantPausedStatus = "paused"
)

type MerchantRepositoryImpl struct {
	db *sqlx.DB
}

func NewMerchantRepository(db *sqlx.DB) MerchantRepository {
	return &MerchantRepositoryImpl{db: db}
}

func (repo *MerchantRepositoryImpl) Insert(merchant *models.Merchant, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO merchants (name, category, phone_number, email, lat, lng, radius_m, place_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query,
			merchant.Name,
			merchant.Category,
			merchant.PhoneNumber,
			merchant.Email,
			merchant.Lat,
			merchant.Lng,
			merchant.RadiusM,
			merchant.PlaceID,
		).Scan(&id)
		if err != nil {
			return "", err
		}

		return id, nil
	}

	err := repo.db.GetContext(ctx, &id, query,
		merchant.Name,
		merchant.Category,
		merchant.PhoneNumber,
		merchant.Email,
		merchant.Lat,
		merchant.Lng,
		merchant.RadiusM,
		merchant.PlaceID,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *MerchantRepositoryImpl) GetOne(id string) (*models.Merchant, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var merchant models.Merchant

	query := `SELECT * FROM merchants WHERE id = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &merchant, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &merchant, true, nil
}

func (repo *MerchantRepositoryImpl) List(limit, offset int) ([]models.Merchant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var merchants []models.Merchant

	query := `
		SELECT * FROM merchants
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	err := repo.db.SelectContext(ctx, &merchants, query, limit, offset)
	if err != nil {
		return nil, err
	}

	return merchants, nil
}

func (repo *MerchantRepositoryImpl) Update(merchant *models.Merchant) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE merchants
		SET name = $1, category = $2, phone_number = $3, email = $4,
			lat = $5, lng = $6, radius_m = $7, status = $8, updated_at = NOW()
		WHERE id = $9 AND deleted_at IS NULL`

	_, err := repo.db.ExecContext(ctx, query,
		merchant.Name,
		merchant.Category,
		merchant.PhoneNumber,
		merchant.Email,
		merchant.Lat,
		merchant.Lng,
		merchant.RadiusM,
		merchant.Status,
		merchant.ID,
	)
	return err
}

func (repo *MerchantRepositoryImpl) UpdateLogo(id, logoURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE merchants SET logo_url = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := repo.db.ExecContext(ctx, query, logoURL, id)
	return err
}

// Nearby does a coarse bounding-box prefilter in SQL; callers refine with the
// haversine distance. One degree of latitude is ~111km.
func (repo *MerchantRepositoryImpl) Nearby(lat, lng, radiusM float64) ([]models.Merchant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	degrees := radiusM / 111000

	var merchants []models.Merchant

	query := `
		SELECT * FROM merchants
		WHERE deleted_at IS NULL AND status = $1
			AND lat BETWEEN $2 AND $3
			AND lng BETWEEN $4 AND $5`

	err := repo.db.SelectContext(ctx, &merchants, query,
		MerchantActiveStatus,
		lat-degrees, lat+degrees,
		lng-degrees, lng+degrees,
	)
	if err != nil {
		return nil, err
	}

	return merchants, nil
}
