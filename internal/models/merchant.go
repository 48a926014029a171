package models

import (
	"database/sql"
	"time"
)

type Merchant struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Category    string         `db:"category"`
	PhoneNumber sql.NullString `db:"phone_number"`
	Email       sql.NullString `db:"email"`
	Lat         float64        `db:"lat"`
	Lng         float64        `db:"lng"`
	RadiusM     int            `db:"radius_m"`
	PlaceID     sql.NullString `db:"place_id"`
	LogoURL     sql.NullString `db:"logo_url"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
	DeletedAt   sql.NullTime   `db:"deleted_at"`
}
