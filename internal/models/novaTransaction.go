package models

import (
	"time"
)

// NovaTransaction is a single immutable row in the Nova ledger. Balances are
// always derivable by summing grants minus redemptions for a wallet, which is
// what the reconciliation check does.
type NovaTransaction struct {
	ID             string    `db:"id"`
	WalletID       string    `db:"wallet_id"`
	Type           string    `db:"type"`
	AmountCents    int64     `db:"amount_cents"`
	Reference      string    `db:"reference"`
	IdempotencyKey string    `db:"idempotency_key"`
	BalanceAfter   int64     `db:"balance_after"`
	CreatedAt      time.Time `db:"created_at"`
}
