package models

import "time"

type BillingEvent struct {
	ID               string    `db:"id"`
	MerchantID       string    `db:"merchant_id"`
	ArrivalSessionID string    `db:"arrival_session_id"`
	Kind             string    `db:"kind"`
	AmountCents      int64     `db:"amount_cents"`
	CreatedAt        time.Time `db:"created_at"`
}
