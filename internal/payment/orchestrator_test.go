package payment

import (
	"context"
	"testing"

	"slotify/internal/database"
	"slotify/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, db *database.DB, gw Gateway) *Orchestrator {
	t.Helper()
	logger := zerolog.Nop()
	return NewOrchestrator(db, NewRegistry(gw), "https://book.example.com", "USD", &logger)
}

func TestOrchestrator_CreateCheckout(t *testing.T) {
	db := setupPaymentDB(t)
	b := seedPaidableBooking(t, db, models.PaymentTypeFull, "")
	require.NoError(t, db.SetGatewayCredentials(context.Background(), b.BusinessID, "test",
		&models.GatewayCredentials{ClientID: "id", ClientSecret: "secret"}))

	gw := &stubGateway{name: "test", session: &CheckoutSession{
		Gateway: "test", ProviderID: "prov-1", CheckoutURL: "https://pay.test/session",
	}}
	o := newTestOrchestrator(t, db, gw)

	url, err := o.CreateCheckout(context.Background(), b.ID, b.BusinessID, "test")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/session", url)

	// The correlation id was stored before the gateway call.
	got, err := db.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.PaymentTransactionID)

	byRef, err := db.GetBookingByReference(context.Background(), got.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byRef.ID)
}

func TestOrchestrator_TenantMismatchReadsAsNotFound(t *testing.T) {
	db := setupPaymentDB(t)
	b := seedPaidableBooking(t, db, models.PaymentTypeFull, "")

	gw := &stubGateway{name: "test", session: &CheckoutSession{CheckoutURL: "https://pay.test"}}
	o := newTestOrchestrator(t, db, gw)

	_, err := o.CreateCheckout(context.Background(), b.ID, b.BusinessID+100, "test")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Zero(t, gw.calls, "gateway must not be touched for a foreign tenant")
}

func TestOrchestrator_UnsupportedGateway(t *testing.T) {
	db := setupPaymentDB(t)
	b := seedPaidableBooking(t, db, models.PaymentTypeFull, "")

	o := newTestOrchestrator(t, db, &stubGateway{name: "test"})
	_, err := o.CreateCheckout(context.Background(), b.ID, b.BusinessID, "stripe")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, ErrUnknownGateway)
}

func TestOrchestrator_MissingCredentials(t *testing.T) {
	db := setupPaymentDB(t)
	b := seedPaidableBooking(t, db, models.PaymentTypeFull, "")

	gw := &stubGateway{name: "test", session: &CheckoutSession{CheckoutURL: "https://pay.test"}}
	o := newTestOrchestrator(t, db, gw)

	_, err := o.CreateCheckout(context.Background(), b.ID, b.BusinessID, "test")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Reason, "not configured")
	assert.Zero(t, gw.calls)
}

func TestOrchestrator_OnlyPendingBookingsPayable(t *testing.T) {
	db := setupPaymentDB(t)
	b := seedPaidableBooking(t, db, models.PaymentTypeFull, "")
	require.NoError(t, db.CancelBooking(context.Background(), b.ID, "changed plans"))
	require.NoError(t, db.SetGatewayCredentials(context.Background(), b.BusinessID, "test",
		&models.GatewayCredentials{ClientID: "id", ClientSecret: "secret"}))

	gw := &stubGateway{name: "test", session: &CheckoutSession{CheckoutURL: "https://pay.test"}}
	o := newTestOrchestrator(t, db, gw)

	_, err := o.CreateCheckout(context.Background(), b.ID, b.BusinessID, "test")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Reason, "cancelled")
}
