// Package gcal mirrors confirmed bookings onto a business's Google
// Calendar. Strictly best effort: nothing here may ever block or fail a
// booking mutation.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slotify/internal/domain"
	"slotify/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Adapter struct {
	repo         domain.Repository
	clientID     string
	clientSecret string
	logger       zerolog.Logger
}

func NewAdapter(repo domain.Repository, clientID, clientSecret string, logger *zerolog.Logger) *Adapter {
	return &Adapter{
		repo:         repo,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.With().Str("component", "gcal").Logger(),
	}
}

// service builds a calendar client from the business's stored refresh
// token. Credentials are read immediately before use, always scoped by
// business id.
func (a *Adapter) service(ctx context.Context, businessID int64) (*calendar.Service, *models.CalendarSettings, error) {
	business, err := a.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, nil, fmt.Errorf("load business %d: %w", businessID, err)
	}
	settings := business.CalendarSettings
	if settings.RefreshToken == "" || settings.CalendarID == "" {
		return nil, nil, fmt.Errorf("business %d has no calendar credentials", businessID)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: settings.RefreshToken})

	srv, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, &settings, nil
}

// CreateEvent mirrors the booking as a calendar event and returns the
// event id.
func (a *Adapter) CreateEvent(ctx context.Context, businessID int64, booking *models.Booking) (string, error) {
	srv, settings, err := a.service(ctx, businessID)
	if err != nil {
		return "", err
	}

	start, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout,
		booking.Date+" "+booking.Time, time.Local)
	if err != nil {
		return "", fmt.Errorf("parse booking start: %w", err)
	}
	end := start.Add(time.Duration(booking.DurationMin) * time.Minute)

	event := &calendar.Event{
		Summary:     fmt.Sprintf("%s - %s", booking.ServiceName, booking.CustomerName),
		Description: fmt.Sprintf("Booking #%d, %s %s", booking.ID, booking.CustomerPhone, booking.CustomerEmail),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}

	created, err := srv.Events.Insert(settings.CalendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}

	a.logger.Info().
		Int64("booking_id", booking.ID).
		Str("event_id", created.Id).
		Msg("calendar event created")
	return created.Id, nil
}

// DeleteEvent removes the mirrored event. Already-gone (404/410) and
// unauthorized/expired-credential (401/403) responses are non-fatal:
// the local booking mutation proceeds regardless.
func (a *Adapter) DeleteEvent(ctx context.Context, businessID int64, eventID string) error {
	if eventID == "" {
		return nil
	}

	srv, settings, err := a.service(ctx, businessID)
	if err != nil {
		// No credentials is the same class as expired credentials.
		a.logger.Warn().Err(err).Int64("business_id", businessID).Msg("skipping calendar delete")
		return nil
	}

	err = srv.Events.Delete(settings.CalendarID, eventID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case http.StatusNotFound, http.StatusGone,
				http.StatusUnauthorized, http.StatusForbidden:
				a.logger.Warn().
					Int("code", apiErr.Code).
					Str("event_id", eventID).
					Msg("calendar delete tolerated as non-fatal")
				return nil
			}
		}
		return fmt.Errorf("delete calendar event: %w", err)
	}

	a.logger.Info().Str("event_id", eventID).Msg("calendar event deleted")
	return nil
}
