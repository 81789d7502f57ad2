package domain

import (
	"context"
	"time"

	"slotify/internal/models"
)

// Repository is the booking store. Implemented by internal/database.
type Repository interface {
	GetBusiness(ctx context.Context, id int64) (*models.Business, error)
	GetCalendarConfig(ctx context.Context, businessID int64) (*models.CalendarConfig, error)
	GetGatewayCredentials(ctx context.Context, businessID int64, gateway string) (*models.GatewayCredentials, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetBlockedRanges(ctx context.Context, businessID int64, date string) ([]*models.BlockedRange, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetActiveBookingsForDate(ctx context.Context, businessID int64, date string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, businessID int64, from, to string) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	SetBookingReference(ctx context.Context, id int64, reference string) error
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
	ApplyPaymentOutcome(ctx context.Context, id int64, paymentStatus, bookingStatus string) error
	CancelBooking(ctx context.Context, id int64, reason string) error
	DeleteBooking(ctx context.Context, id int64) error

	RecordWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error
	WebhookEventSeen(ctx context.Context, gateway, eventID string) (bool, error)
}

// SyncWorker accepts best-effort side effects for asynchronous
// execution after the authoritative state transition commits.
type SyncWorker interface {
	EnqueueCalendarCreate(ctx context.Context, booking *models.Booking) error
	EnqueueCalendarDelete(ctx context.Context, bookingID int64, eventID string, businessID int64) error
	EnqueueNotify(ctx context.Context, booking *models.Booking, event string) error
}

// EventPublisher is the in-process event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CalendarWriter mirrors bookings onto an external calendar.
// Implementations must treat not-found and expired-credential on delete
// as success.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, businessID int64, booking *models.Booking) (string, error)
	DeleteEvent(ctx context.Context, businessID int64, eventID string) error
}

// Notifier delivers owner-facing notifications. Failures are logged,
// never surfaced.
type Notifier interface {
	NotifyBooking(ctx context.Context, chatID int64, booking *models.Booking, event string) error
}

// DedupStore is the fast-path webhook dedup cache in front of the
// durable webhook_events ledger.
type DedupStore interface {
	MarkProcessed(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error)
	Seen(ctx context.Context, gateway, eventID string) (bool, error)
}
