package models

import (
	"fmt"
	"time"
)

// CalendarConfig holds a business's slot-generation rules. One row per
// business; read on every availability computation, never cached.
type CalendarConfig struct {
	BusinessID      int64  `json:"business_id" yaml:"business_id"`
	WorkingDays     []int  `json:"working_days" yaml:"working_days"` // time.Weekday values, 0 = Sunday
	OpenTime        string `json:"open_time" yaml:"open_time"`       // 15:04
	CloseTime       string `json:"close_time" yaml:"close_time"`
	GranularityMin  int    `json:"granularity_min" yaml:"granularity_min"`
	MinAdvanceHours int    `json:"min_advance_hours" yaml:"min_advance_hours"`
	MaxAdvanceDays  int    `json:"max_advance_days" yaml:"max_advance_days"`
}

func (c *CalendarConfig) IsWorkingDay(d time.Weekday) bool {
	for _, wd := range c.WorkingDays {
		if time.Weekday(wd) == d {
			return true
		}
	}
	return false
}

func (c *CalendarConfig) Validate() error {
	if c.GranularityMin <= 0 {
		return fmt.Errorf("slot granularity must be positive, got %d", c.GranularityMin)
	}
	if _, err := time.Parse(TimeLayout, c.OpenTime); err != nil {
		return fmt.Errorf("invalid open_time %q: %w", c.OpenTime, err)
	}
	if _, err := time.Parse(TimeLayout, c.CloseTime); err != nil {
		return fmt.Errorf("invalid close_time %q: %w", c.CloseTime, err)
	}
	return nil
}

// Business is the tenant. Gateway and calendar credentials live here and
// are fetched per business immediately before use.
type Business struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Currency  string         `json:"currency"`
	Calendar  CalendarConfig `json:"calendar"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Settings below are loaded separately and never serialized to JSON.
	GatewayCredentials map[string]GatewayCredentials `json:"-"`
	CalendarSettings   CalendarSettings              `json:"-"`
	NotifyChatID       int64                         `json:"-"`
}

// GatewayCredentials are per-business secrets for one payment gateway.
// Never logged.
type GatewayCredentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// CalendarSettings are per-business Google Calendar credentials.
type CalendarSettings struct {
	CalendarID   string
	RefreshToken string
}

type Service struct {
	ID          int64   `json:"id"`
	BusinessID  int64   `json:"business_id"`
	Name        string  `json:"name"`
	DurationMin int     `json:"duration_min"`
	Price       float64 `json:"price"`
	// DepositAmount is the upfront portion for deposit bookings; 0 means
	// deposits are not offered for this service.
	DepositAmount float64   `json:"deposit_amount"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BlockedRange excludes part of a working day from booking.
type BlockedRange struct {
	ID         int64  `json:"id"`
	BusinessID int64  `json:"business_id"`
	Date       string `json:"date"`       // 2006-01-02
	StartTime  string `json:"start_time"` // 15:04
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
}

// Slot is one customer-visible candidate start time. Unavailable slots
// are returned, never hidden: the UI renders them struck through.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
