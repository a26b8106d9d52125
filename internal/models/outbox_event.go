package models

import "time"

// OutboxEvent is written in the same transaction as the change it describes and
// only ever mutated to set SentAt.
type OutboxEvent struct {
	ID        string     `json:"event_id" db:"event_id"`
	EventType string     `json:"event_type" db:"event_type"`
	Payload   []byte     `json:"payload" db:"payload"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}
