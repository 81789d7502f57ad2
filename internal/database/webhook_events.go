package database

import (
	"context"
	"errors"
	"fmt"

	"slotify/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// RecordWebhookEvent appends a processed callback to the idempotency
// ledger. The (gateway, event_id) unique constraint makes the insert
// itself the dedup check: a replayed callback gets ErrWebhookProcessed.
func (db *DB) RecordWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error {
	query := `INSERT INTO webhook_events (gateway, event_id, booking_id, outcome)
              VALUES (?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, ev.Gateway, ev.EventID, ev.BookingID, ev.Outcome)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrWebhookProcessed
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	return nil
}

// WebhookEventSeen reports whether a callback with this event id has
// already been applied.
func (db *DB) WebhookEventSeen(ctx context.Context, gateway, eventID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_events WHERE gateway = ? AND event_id = ?`,
		gateway, eventID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return count > 0, nil
}
