package models

import (
	"database/sql"
	"time"
)

type Perk struct {
	ID               string         `db:"id"`
	MerchantID       string         `db:"merchant_id"`
	Title            string         `db:"title"`
	Description      sql.NullString `db:"description"`
	NovaRewardCents  int64          `db:"nova_reward_cents"`
	RedeemPriceCents int64          `db:"redeem_price_cents"`
	MinDwellSeconds  int            `db:"min_dwell_seconds"`
	MinTier          string         `db:"min_tier"`
	Status           string         `db:"status"`
	CreatedAt        time.Time      `db:"created_at"`
	DeletedAt        sql.NullTime   `db:"deleted_at"`
}
