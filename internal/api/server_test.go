package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"slotify/internal/booking"
	"slotify/internal/config"
	"slotify/internal/database"
	"slotify/internal/events"
	"slotify/internal/models"
	"slotify/internal/payment"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key-1"

type noopWorker struct {
	calendarCreates int
	notifies        int
}

func (w *noopWorker) EnqueueCalendarCreate(context.Context, *models.Booking) error {
	w.calendarCreates++
	return nil
}

func (w *noopWorker) EnqueueCalendarDelete(context.Context, int64, string, int64) error {
	return nil
}

func (w *noopWorker) EnqueueNotify(context.Context, *models.Booking, string) error {
	w.notifies++
	return nil
}

type noopCalendar struct{}

func (noopCalendar) CreateEvent(context.Context, int64, *models.Booking) (string, error) {
	return "evt-1", nil
}
func (noopCalendar) DeleteEvent(context.Context, int64, string) error { return nil }

// stubGateway answers checkouts with a fixed hosted URL and parses
// webhooks from a plain JSON body.
type stubGateway struct {
	lastReference string
}

func (g *stubGateway) Name() string { return "testpay" }

func (g *stubGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	g.lastReference = req.Reference
	return &payment.CheckoutSession{
		Gateway:     "testpay",
		Reference:   req.Reference,
		CheckoutURL: "https://pay.example.com/session/abc",
	}, nil
}

func (g *stubGateway) ParseWebhook(r *http.Request) (*payment.WebhookResult, error) {
	var body struct {
		EventID   string `json:"event_id"`
		Reference string `json:"reference"`
		Outcome   string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reference == "" {
		return nil, fmt.Errorf("%w: bad payload", payment.ErrUnrecognizedWebhook)
	}
	return &payment.WebhookResult{
		Gateway:   "testpay",
		EventID:   body.EventID,
		Reference: body.Reference,
		Outcome:   body.Outcome,
	}, nil
}

type apiFixture struct {
	handler  http.Handler
	db       *database.DB
	gw       *stubGateway
	worker   *noopWorker
	business *models.Business
	service  *models.Service
	date     string
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Port: 0,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: testAPIKey, Name: "test"}},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	biz := &models.Business{
		Name:     "Clinic",
		Currency: "USD",
		Calendar: models.CalendarConfig{
			WorkingDays:    []int{0, 1, 2, 3, 4, 5, 6},
			OpenTime:       "09:00",
			CloseTime:      "18:00",
			GranularityMin: 30,
			MaxAdvanceDays: 60,
		},
	}
	require.NoError(t, db.CreateBusiness(ctx, biz))

	svc := &models.Service{BusinessID: biz.ID, Name: "Checkup", DurationMin: 60, Price: 120, Active: true}
	require.NoError(t, db.CreateService(ctx, svc))

	require.NoError(t, db.SetGatewayCredentials(ctx, biz.ID, "testpay", &models.GatewayCredentials{
		ClientID: "pk-1", ClientSecret: "sk-1",
	}))

	gw := &stubGateway{}
	registry := payment.NewRegistry(gw)
	worker := &noopWorker{}
	bus := events.NewEventBus()

	bookings := booking.NewService(db, worker, bus, noopCalendar{}, &logger)
	orch := payment.NewOrchestrator(db, registry, "https://book.example.com", "USD", &logger)
	rec := payment.NewReconciler(db, registry, nil, worker, bus, &logger)

	srv := NewHTTPServer(cfg, bookings, orch, rec, nil, &logger)

	return &apiFixture{
		handler:  srv.server.Handler,
		db:       db,
		gw:       gw,
		worker:   worker,
		business: biz,
		service:  svc,
		date:     time.Now().AddDate(0, 0, 7).Format(models.DateLayout),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, withKey bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if withKey {
		req.Header.Set("x-api-key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createBooking(t *testing.T, slot string) *models.Booking {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"business_id":    f.business.ID,
		"service_id":     f.service.ID,
		"date":           f.date,
		"time":           slot,
		"customer_name":  "Dana",
		"customer_phone": "+15550001111",
		"payment_method": "online",
		"payment_type":   "full",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var b models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.NotZero(t, b.ID)
	return &b
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth_NoAuthRequired(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	rec := f.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	slotsPath := fmt.Sprintf("/api/v1/businesses/%d/slots?date=%s&service_id=%d", f.business.ID, f.date, f.service.ID)

	t.Run("missing key", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, slotsPath, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, slotsPath, nil)
		req.Header.Set("x-api-key", "not-the-key")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, slotsPath, nil, true)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	f := newAPIFixture(t, cfg)

	path := fmt.Sprintf("/api/v1/businesses/%d/slots?date=%s&service_id=%d", f.business.ID, f.date, f.service.ID)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, true).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, nil, true).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, path, nil, true).Code)
}

func TestSlots(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.createBooking(t, "10:00")

	rec := f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/businesses/%d/slots?date=%s&service_id=%d", f.business.ID, f.date, f.service.ID),
		nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Slots []models.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Slots)

	byTime := map[string]bool{}
	for _, s := range resp.Slots {
		byTime[s.Time] = s.Available
	}
	assert.False(t, byTime["10:00"])
	assert.True(t, byTime["14:00"])
}

func TestSlots_Validation(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/businesses/%d/slots?service_id=%d", f.business.ID, f.service.ID), nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/businesses/%d/slots?date=%s", f.business.ID, f.date), nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/businesses/abc/slots?date=2026-09-10&service_id=1", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBooking_Conflict(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.createBooking(t, "11:00")

	rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"business_id":   f.business.ID,
		"service_id":    f.service.ID,
		"date":          f.date,
		"time":          "11:00",
		"customer_name": "Eve",
	}, true)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_taken", decodeBody(t, rec)["error"])
}

func TestCreateBooking_BadBody(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader([]byte("{nope")))
		req.Header.Set("x-api-key", testAPIKey)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
			"business_id": f.business.ID,
			"surprise":    true,
		}, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/bookings", nil, true)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestBookingLifecycle(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	b := f.createBooking(t, "12:00")

	get := func() *models.Booking {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d?business_id=%d", b.ID, f.business.ID), nil, true)
		require.Equal(t, http.StatusOK, rec.Code)
		var got models.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		return &got
	}

	assert.Equal(t, models.StatusPending, get().Status)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/confirm", b.ID),
		map[string]any{"business_id": f.business.ID}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusConfirmed, get().Status)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", b.ID),
		map[string]any{"business_id": f.business.ID, "reason": "illness"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	got := get()
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "illness", got.CancelReason)
}

func TestBooking_TenantScoping(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	b := f.createBooking(t, "13:00")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d?business_id=%d", b.ID, f.business.ID+9), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", b.ID), nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "business_id is never inferred")
}

func TestBookingSubtree_Routing(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	rec := f.do(t, http.MethodGet, "/api/v1/bookings/nope", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/bookings/1/reschedule", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	b := f.createBooking(t, "15:00")

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"booking_id":  b.ID,
		"business_id": f.business.ID,
		"gateway":     "testpay",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://pay.example.com/session/abc", decodeBody(t, rec)["checkout_url"])
	assert.NotEmpty(t, f.gw.lastReference)
}

func TestCheckout_Failures(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	b := f.createBooking(t, "16:00")

	t.Run("unsupported gateway is a 400 with details", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
			"booking_id":  b.ID,
			"business_id": f.business.ID,
			"gateway":     "stripe",
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "checkout failed", body["error"])
		assert.Contains(t, body["details"], "unsupported gateway")
	})

	t.Run("foreign tenant reads as not found", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
			"booking_id":  b.ID,
			"business_id": f.business.ID + 9,
			"gateway":     "testpay",
		}, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{"booking_id": b.ID}, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentWebhook(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	b := f.createBooking(t, "17:00")

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"booking_id":  b.ID,
		"business_id": f.business.ID,
		"gateway":     "testpay",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	ref := f.gw.lastReference

	hook := map[string]any{"event_id": "ev-1", "reference": ref, "outcome": "success"}

	// No API key: gateways never carry one.
	rec = f.do(t, http.MethodPost, "/api/v1/payment-webhook?gateway=testpay", hook, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.db.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, 1, f.worker.calendarCreates)

	// A replay is acknowledged without repeating side effects.
	rec = f.do(t, http.MethodPost, "/api/v1/payment-webhook?gateway=testpay", hook, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.worker.calendarCreates)
}

func TestPaymentWebhook_Rejections(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	t.Run("missing gateway param", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/payment-webhook", map[string]any{"reference": "x"}, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown gateway", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/payment-webhook?gateway=stripe", map[string]any{"reference": "x"}, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown reference", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/payment-webhook?gateway=testpay",
			map[string]any{"event_id": "ev-x", "reference": "no-such-ref", "outcome": "success"}, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExport_DisabledWithoutExporter(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	rec := f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/businesses/%d/export?from=2026-09-01&to=2026-09-30", f.business.ID), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
