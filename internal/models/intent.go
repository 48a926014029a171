package models

import (
	"database/sql"
	"time"
)

type DriverIntent struct {
	ID             string          `db:"id"`
	DriverID       string          `db:"driver_id"`
	ChargerID      sql.NullString  `db:"charger_id"`
	Lat            float64         `db:"lat"`
	Lng            float64         `db:"lng"`
	AccuracyM      sql.NullFloat64 `db:"accuracy_m"`
	ConfidenceTier string          `db:"confidence_tier"`
	CreatedAt      time.Time       `db:"created_at"`
}
