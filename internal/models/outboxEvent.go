package models

import (
	"database/sql"
	"time"
)

type OutboxEvent struct {
	ID            string         `db:"id"`
	Topic         string         `db:"topic"`
	Payload       []byte         `db:"payload"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	LastError     sql.NullString `db:"last_error"`
	NextAttemptAt time.Time      `db:"next_attempt_at"`
	CreatedAt     time.Time      `db:"created_at"`
	DeliveredAt   sql.NullTime   `db:"delivered_at"`
}
