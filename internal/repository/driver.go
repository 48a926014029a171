package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type DriverRepository interface {
	CheckIfPhoneNumberExist(phoneNumber string) (bool, error)
	Insert(driver *models.Driver, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.Driver, bool, error)
	GetByEmail(email string) (*models.Driver, bool, error)
	Verify(id string, tx *sqlx.Tx) error
	UpdatePassword(id, password string) error
	UpdateVehicle(id, plateNumber, vin string) error
	Lock(id string) error
}

const (
	// DriverAccountPendingStatus is the default status after registration,
	// before the driver's email has been verified.
	DriverAccountPendingStatus = "pending"

	// DriverAccountActiveStatus indicates the driver can log in, post intents
	// and run arrival sessions.
	DriverAccountActiveStatus = "active"

	// DriverAccountLockedStatus indicates the account has been locked, for
	// example after repeated failed login attempts. A locked account cannot
	// be accessed until unlocked.
	DriverAccountLockedStatus = "locked"
)

type DriverRepositoryImpl struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) DriverRepository {
	return &DriverRepositoryImpl{db: db}
}

func (repo *DriverRepositoryImpl) CheckIfPhoneNumberExist(phoneNumber string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM drivers WHERE phone_number = $1 AND deleted_at IS NULL)`

	err := repo.db.GetContext(ctx, &exists, query, phoneNumber)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (repo *DriverRepositoryImpl) Insert(driver *models.Driver, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO drivers (first_name, last_name, phone_number, email, hashed_password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query,
			driver.FirstName,
			driver.LastName,
			driver.PhoneNumber,
			driver.Email,
			driver.HashedPassword,
		).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query,
			driver.FirstName,
			driver.LastName,
			driver.PhoneNumber,
			driver.Email,
			driver.HashedPassword,
		)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *DriverRepositoryImpl) GetOne(id string) (*models.Driver, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var driver models.Driver

	query := `SELECT * FROM drivers WHERE id = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &driver, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &driver, true, nil
}

func (repo *DriverRepositoryImpl) GetByEmail(email string) (*models.Driver, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var driver models.Driver

	query := `SELECT * FROM drivers WHERE email = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &driver, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &driver, true, nil
}

func (repo *DriverRepositoryImpl) Verify(id string, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE drivers SET verified_at = NOW(), status = $1 WHERE id = $2`

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, DriverAccountActiveStatus, id)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, DriverAccountActiveStatus, id)
	return err
}

func (repo *DriverRepositoryImpl) UpdatePassword(id, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE drivers SET hashed_password = $1 WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, password, id)
	return err
}

func (repo *DriverRepositoryImpl) UpdateVehicle(id, plateNumber, vin string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE drivers SET plate_number = $1, vin = $2 WHERE id = $3`

	_, err := repo.db.ExecContext(ctx, query, plateNumber, vin, id)
	return err
}

func (repo *DriverRepositoryImpl) Lock(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, DriverAccountLockedStatus, id)
	return err
}
