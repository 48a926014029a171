package models

import (
	"database/sql"
	"time"
)

type Driver struct {
	ID             string         `db:"id"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	PhoneNumber    string         `db:"phone_number"`
	Email          string         `db:"email"`
	HashedPassword string         `db:"hashed_password"`
	PlateNumber    sql.NullString `db:"plate_number"`
	Vin            sql.NullString `db:"vin"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	VerifiedAt     sql.NullTime   `db:"verified_at"`
	DeletedAt      sql.NullTime   `db:"deleted_at"`
}
