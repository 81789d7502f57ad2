// Package booking implements slot resolution and the booking
// lifecycle on top of the store. The conflict guard lives in the
// database layer; this service validates, orchestrates, and fans out
// side effects through the async worker.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotify/internal/database"
	"slotify/internal/domain"
	"slotify/internal/events"
	"slotify/internal/metrics"
	"slotify/internal/models"
	"slotify/internal/schedule"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidRequest = errors.New("invalid booking request")
)

// Clock indirection for the tests.
type Clock func() time.Time

type Service struct {
	repo     domain.Repository
	worker   domain.SyncWorker
	bus      domain.EventPublisher
	calendar domain.CalendarWriter
	now      Clock
	logger   zerolog.Logger
}

func NewService(repo domain.Repository, worker domain.SyncWorker, bus domain.EventPublisher, calendar domain.CalendarWriter, logger *zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		worker:   worker,
		bus:      bus,
		calendar: calendar,
		now:      time.Now,
		logger:   logger.With().Str("component", "booking_service").Logger(),
	}
}

// GetAvailableSlots computes the slot list for a business, date and
// service. The result reflects state as of the read; a slot shown
// available can still be lost to a concurrent booking.
func (s *Service) GetAvailableSlots(ctx context.Context, businessID, serviceID int64, dateStr string) ([]models.Slot, error) {
	date, err := time.ParseInLocation(models.DateLayout, dateStr, s.now().Location())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, dateStr)
	}

	cfg, err := s.repo.GetCalendarConfig(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar config: %w", err)
	}

	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	// A foreign or deactivated service reads the same as a missing one.
	if svc.BusinessID != businessID || !svc.Active {
		return nil, database.ErrNotFound
	}

	slotTimes, err := schedule.SlotTimes(cfg, date, s.now())
	if err != nil {
		return nil, err
	}
	if len(slotTimes) == 0 {
		return []models.Slot{}, nil
	}

	bookings, err := s.repo.GetActiveBookingsForDate(ctx, businessID, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	blocked, err := s.repo.GetBlockedRanges(ctx, businessID, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked ranges: %w", err)
	}

	return schedule.Resolve(slotTimes, svc.DurationMin, schedule.BookingIntervals(bookings), schedule.BlockedIntervals(blocked)), nil
}

// CreateBookingRequest carries customer input for a new booking.
type CreateBookingRequest struct {
	BusinessID    int64  `json:"business_id"`
	ServiceID     int64  `json:"service_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
	PaymentMethod string `json:"payment_method"`
	PaymentType   string `json:"payment_type"`
}

func (r *CreateBookingRequest) validate() error {
	if r.BusinessID == 0 || r.ServiceID == 0 {
		return fmt.Errorf("%w: business_id and service_id are required", ErrInvalidRequest)
	}
	if _, err := time.Parse(models.DateLayout, r.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, r.Date)
	}
	if _, err := schedule.ParseMinute(r.Time); err != nil {
		return fmt.Errorf("%w: invalid time %q", ErrInvalidRequest, r.Time)
	}
	if r.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", ErrInvalidRequest)
	}
	switch r.PaymentMethod {
	case "", models.MethodCash, models.MethodOnline:
	default:
		return fmt.Errorf("%w: unknown payment_method %q", ErrInvalidRequest, r.PaymentMethod)
	}
	switch r.PaymentType {
	case "", models.PaymentTypeFull, models.PaymentTypeDeposit:
	default:
		return fmt.Errorf("%w: unknown payment_type %q", ErrInvalidRequest, r.PaymentType)
	}
	return nil
}

// CreateBooking validates the request against the booking window and
// inserts the booking. The insert itself is the conflict check: a
// taken slot surfaces as database.ErrSlotTaken, never as a stale read.
func (s *Service) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	date, _ := time.ParseInLocation(models.DateLayout, req.Date, now.Location())

	cfg, err := s.repo.GetCalendarConfig(ctx, req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar config: %w", err)
	}

	startMin, _ := schedule.ParseMinute(req.Time)
	start := date.Add(time.Duration(startMin) * time.Minute)
	if start.Before(now.Add(time.Duration(cfg.MinAdvanceHours) * time.Hour)) {
		return nil, database.ErrPastDate
	}
	maxDays := cfg.MaxAdvanceDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxAdvanceDays
	}
	if date.After(now.AddDate(0, 0, maxDays)) {
		return nil, database.ErrDateTooFar
	}

	svc, err := s.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	if svc.BusinessID != req.BusinessID || !svc.Active {
		return nil, database.ErrNotFound
	}

	booking := &models.Booking{
		BusinessID:    req.BusinessID,
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		Date:          req.Date,
		Time:          req.Time,
		DurationMin:   svc.DurationMin,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Status:        models.StatusPending,
		PaymentMethod: req.PaymentMethod,
		PaymentType:   req.PaymentType,
		PaymentStatus: models.PaymentPending,
		DepositAmount: svc.DepositAmount,
		TotalPrice:    svc.Price,
	}
	if booking.PaymentMethod == "" {
		booking.PaymentMethod = models.MethodCash
	}
	if booking.PaymentType == "" {
		booking.PaymentType = models.PaymentTypeFull
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBooking("slot_taken")
			return nil, err
		}
		metrics.IncBooking("error")
		return nil, err
	}
	metrics.IncBooking("created")

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("business_id", booking.BusinessID).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking)
	s.enqueueNotify(ctx, booking, events.EventBookingCreated)

	return booking, nil
}

// ConfirmBooking is the owner-side confirmation for cash bookings.
func (s *Service) ConfirmBooking(ctx context.Context, businessID, bookingID int64) (*models.Booking, error) {
	booking, err := s.loadOwned(ctx, businessID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidRequest, booking.Status)
	}

	if err := s.repo.UpdateBookingStatus(ctx, bookingID, models.StatusConfirmed); err != nil {
		return nil, err
	}
	booking.Status = models.StatusConfirmed

	s.publishEvent(events.EventBookingConfirmed, booking)
	s.enqueueCalendarCreate(ctx, booking)
	s.enqueueNotify(ctx, booking, events.EventBookingConfirmed)

	return booking, nil
}

// CancelBooking frees the slot. Side effects (calendar event removal,
// owner notification) are queued, not awaited; their failure never
// undoes the cancellation.
func (s *Service) CancelBooking(ctx context.Context, businessID, bookingID int64, reason string) error {
	booking, err := s.loadOwned(ctx, businessID, bookingID)
	if err != nil {
		return err
	}

	if err := s.repo.CancelBooking(ctx, bookingID, reason); err != nil {
		return err
	}
	booking.Status = models.StatusCancelled
	booking.CancelReason = reason

	s.publishEvent(events.EventBookingCancelled, booking)

	if booking.CalendarEventID != "" {
		if err := s.worker.EnqueueCalendarDelete(ctx, booking.ID, booking.CalendarEventID, booking.BusinessID); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to enqueue calendar delete")
		}
	}
	s.enqueueNotify(ctx, booking, events.EventBookingCancelled)

	return nil
}

// DeleteBooking removes a booking entirely. The external calendar
// event is removed best effort: a failure is logged and handed to the
// worker queue for retry, and the local delete always proceeds.
func (s *Service) DeleteBooking(ctx context.Context, businessID, bookingID int64) error {
	booking, err := s.loadOwned(ctx, businessID, bookingID)
	if err != nil {
		return err
	}

	if booking.CalendarEventID != "" && s.calendar != nil {
		if err := s.calendar.DeleteEvent(ctx, booking.BusinessID, booking.CalendarEventID); err != nil {
			s.logger.Warn().Err(err).
				Int64("booking_id", booking.ID).
				Str("event_id", booking.CalendarEventID).
				Msg("calendar delete failed, queueing retry")
			if s.worker != nil {
				if qerr := s.worker.EnqueueCalendarDelete(ctx, booking.ID, booking.CalendarEventID, booking.BusinessID); qerr != nil {
					s.logger.Error().Err(qerr).Int64("booking_id", booking.ID).Msg("failed to enqueue calendar delete")
				}
			}
		}
	}

	if err := s.repo.DeleteBooking(ctx, bookingID); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingDeleted, booking)
	return nil
}

// GetBooking returns a booking scoped to its business. A mismatched
// business id reads the same as a missing booking.
func (s *Service) GetBooking(ctx context.Context, businessID, bookingID int64) (*models.Booking, error) {
	return s.loadOwned(ctx, businessID, bookingID)
}

func (s *Service) loadOwned(ctx context.Context, businessID, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BusinessID != businessID {
		return nil, database.ErrNotFound
	}
	return booking, nil
}

func (s *Service) publishEvent(eventType string, b *models.Booking) {
	if s.bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		BusinessID:    b.BusinessID,
		ServiceID:     b.ServiceID,
		ServiceName:   b.ServiceName,
		Date:          b.Date,
		Time:          b.Time,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CustomerName:  b.CustomerName,
		OccurredAt:    s.now(),
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *Service) enqueueCalendarCreate(ctx context.Context, b *models.Booking) {
	if s.worker == nil {
		return
	}
	if err := s.worker.EnqueueCalendarCreate(ctx, b); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to enqueue calendar create")
	}
}

func (s *Service) enqueueNotify(ctx context.Context, b *models.Booking, event string) {
	if s.worker == nil {
		return
	}
	if err := s.worker.EnqueueNotify(ctx, b, event); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to enqueue notification")
	}
}
