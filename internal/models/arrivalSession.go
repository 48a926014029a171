package models

import (
	"database/sql"
	"time"
)

type ArrivalSession struct {
	ID             string         `db:"id"`
	DriverID       string         `db:"driver_id"`
	MerchantID     string         `db:"merchant_id"`
	ChargerID      sql.NullString `db:"charger_id"`
	PerkID         sql.NullString `db:"perk_id"`
	IntentID       sql.NullString `db:"intent_id"`
	Status         string         `db:"status"`
	ConfidenceTier sql.NullString `db:"confidence_tier"`
	ReplyCode      string         `db:"reply_code"`
	DwellSeconds   int            `db:"dwell_seconds"`
	LastPingAt     sql.NullTime   `db:"last_ping_at"`
	VerifiedAt     sql.NullTime   `db:"verified_at"`
	NotifiedAt     sql.NullTime   `db:"notified_at"`
	CompletedAt    sql.NullTime   `db:"completed_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	CreatedAt      time.Time      `db:"created_at"`
}
