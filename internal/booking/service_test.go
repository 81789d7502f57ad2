package booking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"slotify/internal/database"
	"slotify/internal/events"
	"slotify/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWorker struct {
	calendarCreates []int64
	calendarDeletes []string
	notifies        []string
}

func (w *recordingWorker) EnqueueCalendarCreate(_ context.Context, b *models.Booking) error {
	w.calendarCreates = append(w.calendarCreates, b.ID)
	return nil
}

func (w *recordingWorker) EnqueueCalendarDelete(_ context.Context, _ int64, eventID string, _ int64) error {
	w.calendarDeletes = append(w.calendarDeletes, eventID)
	return nil
}

func (w *recordingWorker) EnqueueNotify(_ context.Context, _ *models.Booking, event string) error {
	w.notifies = append(w.notifies, event)
	return nil
}

type stubCalendar struct {
	deleted []string
	err     error
}

func (c *stubCalendar) CreateEvent(_ context.Context, _ int64, _ *models.Booking) (string, error) {
	return "evt-1", c.err
}

func (c *stubCalendar) DeleteEvent(_ context.Context, _ int64, eventID string) error {
	if c.err != nil {
		return c.err
	}
	c.deleted = append(c.deleted, eventID)
	return nil
}

type fixture struct {
	db       *database.DB
	svc      *Service
	worker   *recordingWorker
	calendar *stubCalendar
	bus      *events.EventBus
	business *models.Business
	service  *models.Service
}

// testNow is a Monday morning; the seeded business works Mon-Fri
// 09:00-18:00 with a 2 hour minimum advance.
var testNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.Local)

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	biz := &models.Business{
		Name:     "Barbershop",
		Currency: "USD",
		Calendar: models.CalendarConfig{
			WorkingDays:     []int{1, 2, 3, 4, 5},
			OpenTime:        "09:00",
			CloseTime:       "18:00",
			GranularityMin:  30,
			MinAdvanceHours: 2,
			MaxAdvanceDays:  30,
		},
	}
	require.NoError(t, db.CreateBusiness(ctx, biz))

	service := &models.Service{
		BusinessID: biz.ID, Name: "Haircut", DurationMin: 60, Price: 45, Active: true,
	}
	require.NoError(t, db.CreateService(ctx, service))

	worker := &recordingWorker{}
	calendar := &stubCalendar{}
	bus := events.NewEventBus()

	svc := NewService(db, worker, bus, calendar, &logger)
	svc.now = func() time.Time { return testNow }

	return &fixture{db: db, svc: svc, worker: worker, calendar: calendar, bus: bus, business: biz, service: service}
}

func validRequest(f *fixture) *CreateBookingRequest {
	return &CreateBookingRequest{
		BusinessID:    f.business.ID,
		ServiceID:     f.service.ID,
		Date:          "2026-09-08",
		Time:          "10:00",
		CustomerName:  "Alice",
		CustomerPhone: "+15551234567",
		PaymentMethod: models.MethodOnline,
		PaymentType:   models.PaymentTypeFull,
	}
}

func TestCreateBooking(t *testing.T) {
	f := setup(t)

	var published []string
	f.bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		published = append(published, e.Type)
		return nil
	})

	b, err := f.svc.CreateBooking(context.Background(), validRequest(f))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)
	assert.Equal(t, 60, b.DurationMin, "duration copied from the service")
	assert.Equal(t, 45.0, b.TotalPrice)
	assert.Equal(t, "Haircut", b.ServiceName)

	assert.Equal(t, []string{events.EventBookingCreated}, published)
	assert.Equal(t, []string{events.EventBookingCreated}, f.worker.notifies)
	assert.Empty(t, f.worker.calendarCreates, "calendar sync waits for confirmation")
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, validRequest(f))
	assert.ErrorIs(t, err, database.ErrSlotTaken)
}

func TestCreateBooking_WindowValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("inside minimum advance", func(t *testing.T) {
		req := validRequest(f)
		req.Date = "2026-09-07"
		req.Time = "09:30" // 90 minutes ahead of 08:00, cutoff is 2 hours
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, database.ErrPastDate)
	})

	t.Run("boundary day after cutoff is accepted", func(t *testing.T) {
		req := validRequest(f)
		req.Date = "2026-09-07"
		req.Time = "11:00"
		_, err := f.svc.CreateBooking(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("beyond max advance", func(t *testing.T) {
		req := validRequest(f)
		req.Date = "2026-10-20"
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, database.ErrDateTooFar)
	})
}

func TestCreateBooking_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateBookingRequest)
	}{
		{"missing name", func(r *CreateBookingRequest) { r.CustomerName = "" }},
		{"bad date", func(r *CreateBookingRequest) { r.Date = "09/08/2026" }},
		{"bad time", func(r *CreateBookingRequest) { r.Time = "10am" }},
		{"bad payment method", func(r *CreateBookingRequest) { r.PaymentMethod = "crypto" }},
		{"bad payment type", func(r *CreateBookingRequest) { r.PaymentType = "installments" }},
		{"missing business", func(r *CreateBookingRequest) { r.BusinessID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(f)
			tt.mutate(req)
			_, err := f.svc.CreateBooking(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreateBooking_ForeignServiceReadsAsNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other := &models.Business{
		Name: "Spa", Currency: "USD",
		Calendar: models.CalendarConfig{
			WorkingDays: []int{1, 2, 3, 4, 5}, OpenTime: "09:00", CloseTime: "18:00",
			GranularityMin: 30, MaxAdvanceDays: 30,
		},
	}
	require.NoError(t, f.db.CreateBusiness(ctx, other))
	foreignSvc := &models.Service{BusinessID: other.ID, Name: "Massage", DurationMin: 30, Price: 60, Active: true}
	require.NoError(t, f.db.CreateService(ctx, foreignSvc))

	req := validRequest(f)
	req.ServiceID = foreignSvc.ID
	_, err := f.svc.CreateBooking(ctx, req)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeactivatedServiceIsNotBookable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.db.DeactivateService(ctx, f.service.ID))

	_, err := f.svc.CreateBooking(ctx, validRequest(f))
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.svc.GetAvailableSlots(ctx, f.business.ID, f.service.ID, "2026-09-08")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGetAvailableSlots(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, validRequest(f)) // 10:00, 60 min
	require.NoError(t, err)

	slots, err := f.svc.GetAvailableSlots(ctx, f.business.ID, f.service.ID, "2026-09-08")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	byTime := make(map[string]bool, len(slots))
	for _, s := range slots {
		byTime[s.Time] = s.Available
	}

	// A 60-minute service overlaps the 10:00-11:00 booking from 09:30 on.
	assert.True(t, byTime["09:00"])
	assert.False(t, byTime["09:30"])
	assert.False(t, byTime["10:00"])
	assert.False(t, byTime["10:30"])
	assert.True(t, byTime["11:00"])

	// Unavailable slots are returned, never hidden.
	assert.Contains(t, byTime, "10:00")
}

func TestGetAvailableSlots_NonWorkingDay(t *testing.T) {
	f := setup(t)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.business.ID, f.service.ID, "2026-09-13") // Sunday
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestConfirmBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmBooking(ctx, f.business.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, []int64{b.ID}, f.worker.calendarCreates)

	_, err = f.svc.ConfirmBooking(ctx, f.business.ID, b.ID)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCancelBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)
	require.NoError(t, f.db.SetCalendarEventID(ctx, b.ID, "evt-99"))

	require.NoError(t, f.svc.CancelBooking(ctx, f.business.ID, b.ID, "customer request"))

	got, err := f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "customer request", got.CancelReason)

	// Calendar cleanup goes through the queue, not the request path.
	assert.Equal(t, []string{"evt-99"}, f.worker.calendarDeletes)
	assert.Contains(t, f.worker.notifies, events.EventBookingCancelled)
}

func TestCancelBooking_TenantMismatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)

	err = f.svc.CancelBooking(ctx, f.business.ID+7, b.ID, "")
	assert.ErrorIs(t, err, database.ErrNotFound)

	got, err := f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestDeleteBooking_CalendarFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)
	require.NoError(t, f.db.SetCalendarEventID(ctx, b.ID, "evt-55"))

	require.NoError(t, f.svc.DeleteBooking(ctx, f.business.ID, b.ID))
	assert.Equal(t, []string{"evt-55"}, f.calendar.deleted)

	_, err = f.db.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteBooking_CalendarFailureStillDeletes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, validRequest(f))
	require.NoError(t, err)
	require.NoError(t, f.db.SetCalendarEventID(ctx, b.ID, "evt-55"))

	// A calendar outage never blocks the local mutation; the event
	// removal is retried off the queue instead.
	f.calendar.err = context.DeadlineExceeded
	require.NoError(t, f.svc.DeleteBooking(ctx, f.business.ID, b.ID))

	_, err = f.db.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Equal(t, []string{"evt-55"}, f.worker.calendarDeletes)
}
