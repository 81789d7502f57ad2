package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"slotify/internal/models"
)

func (db *DB) CreateBusiness(ctx context.Context, b *models.Business) error {
	query := `INSERT INTO businesses (
				name, currency, working_days, open_time, close_time,
				granularity_min, min_advance_hours, max_advance_days,
				calendar_id, calendar_refresh_token, notify_chat_id,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	cal := b.Calendar
	if cal.GranularityMin == 0 {
		cal.GranularityMin = models.DefaultSlotGranularity
	}
	if cal.MaxAdvanceDays == 0 {
		cal.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	result, err := db.ExecContext(ctx, query,
		b.Name, b.Currency,
		joinWorkingDays(cal.WorkingDays), cal.OpenTime, cal.CloseTime,
		cal.GranularityMin, cal.MinAdvanceHours, cal.MaxAdvanceDays,
		b.CalendarSettings.CalendarID, b.CalendarSettings.RefreshToken, b.NotifyChatID,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.Calendar = cal
	b.Calendar.BusinessID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetCalendarConfig reads the slot-generation rules for a business.
// Called on every availability computation; never cached.
func (db *DB) GetCalendarConfig(ctx context.Context, businessID int64) (*models.CalendarConfig, error) {
	query := `SELECT working_days, open_time, close_time, granularity_min, min_advance_hours, max_advance_days
              FROM businesses WHERE id = ?`
	var daysRaw string
	cfg := &models.CalendarConfig{BusinessID: businessID}
	err := db.QueryRowContext(ctx, query, businessID).Scan(
		&daysRaw, &cfg.OpenTime, &cfg.CloseTime,
		&cfg.GranularityMin, &cfg.MinAdvanceHours, &cfg.MaxAdvanceDays,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar config: %w", err)
	}
	cfg.WorkingDays = splitWorkingDays(daysRaw)
	return cfg, nil
}

func (db *DB) UpdateCalendarConfig(ctx context.Context, cfg *models.CalendarConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	query := `UPDATE businesses
              SET working_days = ?, open_time = ?, close_time = ?,
                  granularity_min = ?, min_advance_hours = ?, max_advance_days = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		joinWorkingDays(cfg.WorkingDays), cfg.OpenTime, cfg.CloseTime,
		cfg.GranularityMin, cfg.MinAdvanceHours, cfg.MaxAdvanceDays, time.Now(), cfg.BusinessID)
	if err != nil {
		return fmt.Errorf("failed to update calendar config: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	query := `SELECT id, name, currency, working_days, open_time, close_time,
                     granularity_min, min_advance_hours, max_advance_days,
                     COALESCE(calendar_id, ''), COALESCE(calendar_refresh_token, ''),
                     notify_chat_id, created_at, updated_at
              FROM businesses WHERE id = ?`
	var b models.Business
	var daysRaw string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Currency, &daysRaw, &b.Calendar.OpenTime, &b.Calendar.CloseTime,
		&b.Calendar.GranularityMin, &b.Calendar.MinAdvanceHours, &b.Calendar.MaxAdvanceDays,
		&b.CalendarSettings.CalendarID, &b.CalendarSettings.RefreshToken,
		&b.NotifyChatID, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	b.Calendar.BusinessID = b.ID
	b.Calendar.WorkingDays = splitWorkingDays(daysRaw)
	return &b, nil
}

// GetGatewayCredentials loads per-business secrets for one gateway,
// always scoped by business id. Fetched immediately before use and
// never logged.
func (db *DB) GetGatewayCredentials(ctx context.Context, businessID int64, gateway string) (*models.GatewayCredentials, error) {
	query := `SELECT client_id, client_secret, COALESCE(base_url, '')
              FROM gateway_credentials WHERE business_id = ? AND gateway = ?`
	var creds models.GatewayCredentials
	err := db.QueryRowContext(ctx, query, businessID, gateway).Scan(
		&creds.ClientID, &creds.ClientSecret, &creds.BaseURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway credentials: %w", err)
	}
	return &creds, nil
}

func (db *DB) SetGatewayCredentials(ctx context.Context, businessID int64, gateway string, creds *models.GatewayCredentials) error {
	query := `INSERT INTO gateway_credentials (business_id, gateway, client_id, client_secret, base_url)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(business_id, gateway) DO UPDATE SET
                  client_id = excluded.client_id,
                  client_secret = excluded.client_secret,
                  base_url = excluded.base_url`
	_, err := db.ExecContext(ctx, query, businessID, gateway, creds.ClientID, creds.ClientSecret, creds.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to set gateway credentials: %w", err)
	}
	return nil
}

func joinWorkingDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func splitWorkingDays(raw string) []int {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if d, err := strconv.Atoi(part); err == nil && d >= 0 && d <= 6 {
			days = append(days, d)
		}
	}
	return days
}
