package database

import "errors"

var (
	// ErrSlotTaken is returned when an active booking already occupies
	// the requested (business, date, time). Recoverable: the caller
	// re-runs availability and asks the customer to pick again.
	ErrSlotTaken = errors.New("slot is already taken")

	// ErrNotFound is returned for lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when an optimistic-version
	// update matched no row.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrStalePayment is returned when a payment transition would
	// violate the monotonic lattice (e.g. a failure callback arriving
	// after the booking is already paid).
	ErrStalePayment = errors.New("payment status transition not allowed")

	// ErrWebhookProcessed is returned when a webhook event id was
	// already recorded in the ledger.
	ErrWebhookProcessed = errors.New("webhook event already processed")

	// ErrPastDate rejects bookings before the minimum advance cutoff.
	ErrPastDate = errors.New("date is before the minimum advance notice")

	// ErrDateTooFar rejects bookings beyond the maximum advance window.
	ErrDateTooFar = errors.New("date is beyond the booking window")
)
