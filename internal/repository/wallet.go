package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type WalletRepository interface {
	Insert(wallet *models.Wallet, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.Wallet, bool, error)
	GetByDriverId(driverID string) (*models.Wallet, bool, error)
	Lock(id string) error
}

const (
	WalletActiveStatus = "active"
	WalletOnHoldStatus = "on-hold"
)

type WalletRepositoryImpl struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &WalletRepositoryImpl{db: db}
}

func (repo *WalletRepositoryImpl) Insert(wallet *models.Wallet, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO driver_wallets (driver_id)
		VALUES ($1)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query, wallet.DriverID).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query, wallet.DriverID)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *WalletRepositoryImpl) GetOne(id string) (*models.Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet models.Wallet

	query := `
		SELECT * FROM driver_wallets WHERE id = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

func (repo *WalletRepositoryImpl) GetByDriverId(driverID string) (*models.Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet models.Wallet

	query := `
		SELECT * FROM driver_wallets WHERE driver_id = $1 AND deleted_at IS NULL`

	err := repo.db.GetContext(ctx, &wallet, query, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

func (repo *WalletRepositoryImpl) Lock(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE driver_wallets SET status = $1 WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, WalletOnHoldStatus, id)
	return err
}
