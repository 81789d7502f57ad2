package payment

import (
	"context"
	"errors"
	"fmt"

	"slotify/internal/database"
	"slotify/internal/domain"
	"slotify/internal/metrics"
	"slotify/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator opens hosted checkout sessions for pending bookings.
// Credentials are loaded per business immediately before the call;
// every failure surfaces as *GatewayError so the handler can return an
// actionable 400 instead of a 5xx.
type Orchestrator struct {
	repo     domain.Repository
	registry *Registry
	baseURL  string
	currency string
	logger   zerolog.Logger
}

func NewOrchestrator(repo domain.Repository, registry *Registry, baseURL, currency string, logger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		registry: registry,
		baseURL:  baseURL,
		currency: currency,
		logger:   logger.With().Str("component", "payment").Logger(),
	}
}

// CreateCheckout opens a checkout session for the booking and returns
// the hosted page URL. The business id is always threaded explicitly;
// a booking belonging to another tenant is treated as not found.
func (o *Orchestrator) CreateCheckout(ctx context.Context, bookingID, businessID int64, gatewayName string) (string, error) {
	gw, err := o.registry.Get(gatewayName)
	if err != nil {
		return "", gatewayErr(gatewayName, "unsupported gateway", err)
	}

	booking, err := o.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	if booking.BusinessID != businessID {
		return "", database.ErrNotFound
	}
	if booking.Status != models.StatusPending {
		return "", gatewayErr(gatewayName, fmt.Sprintf("booking is %s, only pending bookings can be paid", booking.Status), nil)
	}

	business, err := o.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return "", fmt.Errorf("load business %d: %w", businessID, err)
	}
	currency := business.Currency
	if currency == "" {
		currency = o.currency
	}

	creds, err := o.repo.GetGatewayCredentials(ctx, businessID, gatewayName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", gatewayErr(gatewayName, "gateway is not configured for this business", nil)
		}
		return "", fmt.Errorf("load gateway credentials: %w", err)
	}

	// The correlation id is ours and is stored before the gateway call,
	// so a callback racing the response can already resolve the booking.
	reference := uuid.NewString()
	if err := o.repo.SetBookingReference(ctx, booking.ID, reference); err != nil {
		return "", fmt.Errorf("store checkout reference: %w", err)
	}

	req := CheckoutRequest{
		Reference:     reference,
		Amount:        booking.ChargeAmount(),
		Currency:      currency,
		Description:   fmt.Sprintf("%s on %s %s", booking.ServiceName, booking.Date, booking.Time),
		CustomerName:  booking.CustomerName,
		CustomerEmail: booking.CustomerEmail,
		CustomerPhone: booking.CustomerPhone,
		SuccessURL:    fmt.Sprintf("%s/payment/success?ref=%s", o.baseURL, reference),
		FailureURL:    fmt.Sprintf("%s/payment/failure?ref=%s", o.baseURL, reference),
		NotifyURL:     fmt.Sprintf("%s/api/v1/payment-webhook?gateway=%s", o.baseURL, gatewayName),
		Credentials:   *creds,
	}

	session, err := gw.CreateCheckout(ctx, req)
	if err != nil {
		metrics.IncGateway(gatewayName, "error")
		o.logger.Warn().Err(err).
			Int64("booking_id", booking.ID).
			Int64("business_id", businessID).
			Str("gateway", gatewayName).
			Msg("checkout creation failed")
		return "", err
	}

	metrics.IncGateway(gatewayName, "created")
	o.logger.Info().
		Int64("booking_id", booking.ID).
		Str("gateway", gatewayName).
		Str("reference", reference).
		Msg("checkout session created")

	return session.CheckoutURL, nil
}
