package models

import "time"

// SyncTask represents a queued best-effort job: mirroring a booking to
// the external calendar or notifying the business owner. Side effects
// never run on the customer-facing path; they are persisted here and
// retried by the worker.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// WebhookEvent is the durable idempotency ledger row for a processed
// gateway callback. Unique over (gateway, event_id).
type WebhookEvent struct {
	ID          int64     `json:"id"`
	Gateway     string    `json:"gateway"`
	EventID     string    `json:"event_id"`
	BookingID   int64     `json:"booking_id"`
	Outcome     string    `json:"outcome"`
	ProcessedAt time.Time `json:"processed_at"`
}
