package models

import (
	"database/sql"
	"time"
)

type Wallet struct {
	ID           string       `db:"id"`
	DriverID     string       `db:"driver_id"`
	BalanceCents int64        `db:"balance_cents"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
	DeletedAt    sql.NullTime `db:"deleted_at"`
}
