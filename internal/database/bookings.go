package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotify/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, business_id, service_id, service_name, date, time, duration_min,
       customer_name, customer_phone, customer_email, client_id,
       status, payment_method, payment_type, payment_status,
       deposit_amount, total_price,
       COALESCE(calendar_event_id, ''), COALESCE(payment_transaction_id, ''),
       COALESCE(cancel_reason, ''), cancelled_at, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.BusinessID, &b.ServiceID, &b.ServiceName, &b.Date, &b.Time, &b.DurationMin,
		&b.CustomerName, &b.CustomerPhone, &b.CustomerEmail, &b.ClientID,
		&b.Status, &b.PaymentMethod, &b.PaymentType, &b.PaymentStatus,
		&b.DepositAmount, &b.TotalPrice,
		&b.CalendarEventID, &b.PaymentTransactionID,
		&b.CancelReason, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBooking inserts the booking in pending status. The partial
// unique index over active statuses is the conflict check: a losing
// concurrent writer gets ErrSlotTaken straight from the store, there is
// no separate select.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				business_id, service_id, service_name, date, time, duration_min,
				customer_name, customer_phone, customer_email, client_id,
				status, payment_method, payment_type, payment_status,
				deposit_amount, total_price, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.BusinessID,
		booking.ServiceID,
		booking.ServiceName,
		booking.Date,
		booking.Time,
		booking.DurationMin,
		booking.CustomerName,
		booking.CustomerPhone,
		booking.CustomerEmail,
		booking.ClientID,
		models.StatusPending,
		booking.PaymentMethod,
		booking.PaymentType,
		models.PaymentPending,
		booking.DepositAmount,
		booking.TotalPrice,
		now,
		now,
		1,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.Status = models.StatusPending
	booking.PaymentStatus = models.PaymentPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetBookingByReference resolves a booking from the correlation id
// embedded at checkout-session creation.
func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_transaction_id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	return b, nil
}

// GetActiveBookingsForDate returns non-cancelled bookings occupying
// slots on the given date. The result is a read-time snapshot; the
// unique index remains the authority at write time.
func (db *DB) GetActiveBookingsForDate(ctx context.Context, businessID int64, date string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE business_id = ? AND date = ? AND status IN (?, ?)
              ORDER BY time ASC`
	rows, err := db.QueryContext(ctx, query, businessID, date, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for date: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, businessID int64, from, to string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE business_id = ? AND date >= ? AND date <= ?
              ORDER BY date ASC, time ASC`
	rows, err := db.QueryContext(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

// SetBookingReference stores the gateway correlation id issued at
// checkout-session creation.
func (db *DB) SetBookingReference(ctx context.Context, id int64, reference string) error {
	query := `UPDATE bookings SET payment_transaction_id = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, reference, time.Now(), id)
	return err
}

// SetCalendarEventID stores the id of the mirrored external event.
func (db *DB) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	query := `UPDATE bookings SET calendar_event_id = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, eventID, time.Now(), id)
	return err
}

// ApplyPaymentOutcome transitions payment_status and status inside one
// transaction, enforcing the monotonic lattice: a paid booking is never
// regressed regardless of callback arrival order.
func (db *DB) ApplyPaymentOutcome(ctx context.Context, id int64, paymentStatus, bookingStatus string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT payment_status FROM bookings WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read payment status: %w", err)
	}

	if !models.CanAdvancePayment(current, paymentStatus) {
		return ErrStalePayment
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		paymentStatus, bookingStatus, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to apply payment outcome: %w", err)
	}

	return tx.Commit()
}

// CancelBooking marks the booking cancelled and records the reason.
// Cancelled rows leave the active-slot index, freeing the slot.
func (db *DB) CancelBooking(ctx context.Context, id int64, reason string) error {
	now := time.Now()
	query := `UPDATE bookings
              SET status = ?, cancel_reason = ?, cancelled_at = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		models.StatusCancelled, reason, now, now, id, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBooking physically removes a booking. Admin-only path; the
// caller is responsible for having attempted the calendar-event delete.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBookingsByCustomer looks bookings up by phone or email.
func (db *DB) GetBookingsByCustomer(ctx context.Context, businessID int64, phone, email string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE business_id = ? AND (customer_phone = ? OR (customer_email != '' AND customer_email = ?))
              ORDER BY date DESC, time DESC`
	rows, err := db.QueryContext(ctx, query, businessID, phone, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
