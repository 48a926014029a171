package models

import (
	"database/sql"
	"time"
)

type Charger struct {
	ID             string         `db:"id"`
	ExternalID     string         `db:"external_id"`
	Source         string         `db:"source"`
	Network        sql.NullString `db:"network"`
	Name           string         `db:"name"`
	Lat            float64        `db:"lat"`
	Lng            float64        `db:"lng"`
	ConnectorTypes sql.NullString `db:"connector_types"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
}
