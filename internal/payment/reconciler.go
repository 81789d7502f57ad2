package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slotify/internal/database"
	"slotify/internal/domain"
	"slotify/internal/events"
	"slotify/internal/metrics"
	"slotify/internal/models"

	"github.com/rs/zerolog"
)

// Reconciler applies asynchronous payment callbacks to booking state
// exactly once per outcome. It is safely re-entrant: the same payload
// applied N times yields the same end state as applied once, and a
// paid booking is never regressed by a late or replayed failure.
type Reconciler struct {
	repo     domain.Repository
	registry *Registry
	dedup    domain.DedupStore
	worker   domain.SyncWorker
	bus      domain.EventPublisher
	logger   zerolog.Logger
}

func NewReconciler(repo domain.Repository, registry *Registry, dedup domain.DedupStore, worker domain.SyncWorker, bus domain.EventPublisher, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		registry: registry,
		dedup:    dedup,
		worker:   worker,
		bus:      bus,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Process handles one inbound callback for the named gateway.
// ErrUnrecognizedWebhook (wrapped) means the callback could not be tied
// to a booking; any nil return means the callback is acknowledged,
// including duplicates and stale outcomes.
func (rc *Reconciler) Process(ctx context.Context, gatewayName string, r *http.Request) error {
	gw, err := rc.registry.Get(gatewayName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnrecognizedWebhook, err)
	}

	result, err := gw.ParseWebhook(r)
	if err != nil {
		metrics.IncWebhook(gatewayName, "unrecognized")
		return err
	}

	// Dedup is read-only before the transition: the cache key and the
	// ledger row are written only after the state change committed, so a
	// transient apply failure never poisons the gateway's retry of the
	// same callback. Best effort: a cache miss falls through.
	eventID := result.EventID
	if eventID == "" {
		eventID = fmt.Sprintf("%s:%s", result.Reference, result.Outcome)
	}
	if rc.dedup != nil {
		seen, derr := rc.dedup.Seen(ctx, gatewayName, eventID)
		if derr == nil && seen {
			metrics.IncWebhook(gatewayName, "duplicate")
			rc.logger.Debug().Str("event_id", eventID).Msg("duplicate webhook short-circuited")
			return nil
		}
	}

	// The ledger is the durable authority on processed callbacks.
	seen, err := rc.repo.WebhookEventSeen(ctx, gatewayName, eventID)
	if err != nil {
		rc.logger.Error().Err(err).Str("event_id", eventID).Msg("webhook ledger lookup failed")
	} else if seen {
		metrics.IncWebhook(gatewayName, "duplicate")
		rc.markDedup(ctx, gatewayName, eventID)
		return nil
	}

	booking, err := rc.repo.GetBookingByReference(ctx, result.Reference)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncWebhook(gatewayName, "unrecognized")
			return fmt.Errorf("%w: reference %q", ErrUnrecognizedWebhook, result.Reference)
		}
		return fmt.Errorf("resolve booking by reference: %w", err)
	}

	paymentStatus, bookingStatus := rc.mapOutcome(result.Outcome, booking)

	// The lattice inside ApplyPaymentOutcome is the authority: a replay
	// or an out-of-order callback lands on ErrStalePayment and is
	// acknowledged without side effects.
	if err := rc.repo.ApplyPaymentOutcome(ctx, booking.ID, paymentStatus, bookingStatus); err != nil {
		if errors.Is(err, database.ErrStalePayment) {
			metrics.IncWebhook(gatewayName, "stale")
			rc.markDedup(ctx, gatewayName, eventID)
			rc.logger.Info().
				Int64("booking_id", booking.ID).
				Str("outcome", result.Outcome).
				Msg("ignoring callback that would regress payment state")
			return nil
		}
		return fmt.Errorf("apply payment outcome: %w", err)
	}

	// Durable ledger entry; a unique-constraint hit here means another
	// worker won the race after our state transition already became a
	// no-op for it.
	ledgerErr := rc.repo.RecordWebhookEvent(ctx, &models.WebhookEvent{
		Gateway:   gatewayName,
		EventID:   eventID,
		BookingID: booking.ID,
		Outcome:   result.Outcome,
	})
	if ledgerErr != nil && !errors.Is(ledgerErr, database.ErrWebhookProcessed) {
		rc.logger.Error().Err(ledgerErr).Int64("booking_id", booking.ID).Msg("failed to record webhook event")
	}
	rc.markDedup(ctx, gatewayName, eventID)

	metrics.IncWebhook(gatewayName, "applied")
	rc.logger.Info().
		Int64("booking_id", booking.ID).
		Str("gateway", gatewayName).
		Str("outcome", result.Outcome).
		Str("payment_status", paymentStatus).
		Msg("webhook applied")

	rc.dispatchSideEffects(ctx, booking.ID, result.Outcome)
	return nil
}

// markDedup writes the fast-path cache key once the callback's outcome
// is settled. Best effort.
func (rc *Reconciler) markDedup(ctx context.Context, gateway, eventID string) {
	if rc.dedup == nil {
		return
	}
	if _, err := rc.dedup.MarkProcessed(ctx, gateway, eventID, time.Duration(models.WebhookDedupTTL)*time.Second); err != nil {
		rc.logger.Debug().Err(err).Str("event_id", eventID).Msg("dedup cache write failed")
	}
}

// mapOutcome translates the canonical outcome into the target payment
// and booking statuses. A failed payment leaves the booking pending so
// staff can follow up manually; nothing is deleted.
func (rc *Reconciler) mapOutcome(outcome string, booking *models.Booking) (paymentStatus, bookingStatus string) {
	if outcome != OutcomeSuccess {
		return models.PaymentFailed, models.StatusPending
	}
	if booking.PaymentType == models.PaymentTypeDeposit {
		return models.PaymentPartial, models.StatusConfirmed
	}
	return models.PaymentPaid, models.StatusConfirmed
}

// dispatchSideEffects queues calendar sync and notification after the
// authoritative transition committed. Failures here are logged, never
// propagated: the booking state is already correct.
func (rc *Reconciler) dispatchSideEffects(ctx context.Context, bookingID int64, outcome string) {
	booking, err := rc.repo.GetBooking(ctx, bookingID)
	if err != nil {
		rc.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("reload booking for side effects")
		return
	}

	if outcome == OutcomeSuccess {
		if err := rc.bus.PublishJSON(events.EventPaymentReceived, bookingPayload(booking)); err != nil {
			rc.logger.Error().Err(err).Msg("publish payment event")
		}
		if rc.worker != nil {
			if err := rc.worker.EnqueueCalendarCreate(ctx, booking); err != nil {
				rc.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("enqueue calendar sync")
			}
			if err := rc.worker.EnqueueNotify(ctx, booking, events.EventPaymentReceived); err != nil {
				rc.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("enqueue notification")
			}
		}
		return
	}

	if err := rc.bus.PublishJSON(events.EventPaymentFailed, bookingPayload(booking)); err != nil {
		rc.logger.Error().Err(err).Msg("publish payment event")
	}
	if rc.worker != nil {
		if err := rc.worker.EnqueueNotify(ctx, booking, events.EventPaymentFailed); err != nil {
			rc.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("enqueue notification")
		}
	}
}

func bookingPayload(b *models.Booking) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:     b.ID,
		BusinessID:    b.BusinessID,
		ServiceID:     b.ServiceID,
		ServiceName:   b.ServiceName,
		Date:          b.Date,
		Time:          b.Time,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CustomerName:  b.CustomerName,
		OccurredAt:    time.Now(),
	}
}
