package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyNew        IdempotencyStatus = "NEW"
	IdempotencyInProgress IdempotencyStatus = "IN_PROGRESS"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
)

// IdempotencyKey records the first attempt made under a caller-supplied key.
type IdempotencyKey struct {
	Key         string            `db:"idempotency_key"`
	RequestHash string            `db:"request_hash"`
	Status      IdempotencyStatus `db:"status"`
	Response    []byte            `db:"response_body"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}
