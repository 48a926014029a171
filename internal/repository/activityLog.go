// Logging is a critical part of the system
// Every action (synchronous or asynchronous) should be logged.
// This helps in audit and will also be used to trace activites.
// ...
// We used polymorphism to define entity and entity_id
// This allow our table to be used for different part of the application
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	CountConsecutiveFailedLoginAttempts(driverID, actionDesc string) int
	Insert(log *models.ActivityLog) (*models.ActivityLog, error)
}

const (
	// ActivityLogDriverEntity is used in activities that has to do with the driver account and the drivers table
	ActivityLogDriverEntity = "driver"

	// ActivityLogWalletEntity is used in activities that has to do with wallets and the nova ledger
	ActivityLogWalletEntity = "wallet"

	// ActivityLogArrivalEntity is used in activities around arrival sessions
	ActivityLogArrivalEntity = "arrival_session"

	// ActivityLogMerchantEntity is used in activities around merchant records
	ActivityLogMerchantEntity = "merchant"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var inserted models.ActivityLog

	query := `
		INSERT INTO activity_logs (driver_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := repo.db.GetContext(ctx, &inserted, query,
		log.DriverID,
		log.Entity,
		log.EntityId,
		log.Description,
	)

	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

// CountConsecutiveFailedLoginAttempts counts the number of consecutive failed login attempts for a driver.
// This function is used to determine if an account should be temporarily locked after 3 consecutive failures.
// It checks the most recent login attempts in descending order and counts failures until a successful login or the limit is reached.
func (repo *ActivityRepositoryImpl) CountConsecutiveFailedLoginAttempts(driverID, actionDesc string) int {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var descriptions []string

	query := `
		SELECT description
		FROM activity_logs
		WHERE driver_id = $1 AND entity = $2
		ORDER BY created_at DESC
		LIMIT 3
	`
	err := repo.db.SelectContext(ctx, &descriptions, query, driverID, ActivityLogDriverEntity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0
		}
		return 0
	}

	count := 0
	for _, desc := range descriptions {
		if desc == actionDesc {
			count++
		} else {
			break
		}
	}

	return count
}
