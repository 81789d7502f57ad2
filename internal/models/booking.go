package models

import "time"

type Booking struct {
	ID            int64  `json:"id"`
	BusinessID    int64  `json:"business_id"`
	ServiceID     int64  `json:"service_id"`
	ServiceName   string `json:"service_name"`
	Date          string `json:"date"` // 2006-01-02
	Time          string `json:"time"` // 15:04
	DurationMin   int    `json:"duration_min"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
	ClientID      int64  `json:"client_id,omitempty"`

	Status        string  `json:"status"`         // pending, confirmed, completed, cancelled, no_show
	PaymentMethod string  `json:"payment_method"` // cash, online
	PaymentType   string  `json:"payment_type"`   // full, deposit
	PaymentStatus string  `json:"payment_status"` // pending, partial, paid, failed
	DepositAmount float64 `json:"deposit_amount"`
	TotalPrice    float64 `json:"total_price"`

	CalendarEventID      string `json:"calendar_event_id,omitempty"`
	PaymentTransactionID string `json:"payment_transaction_id,omitempty"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// StartMinute returns the booking start as minutes from midnight.
func (b *Booking) StartMinute() (int, error) {
	t, err := time.Parse(TimeLayout, b.Time)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ChargeAmount is the amount collected at checkout: the deposit when
// the customer pays a deposit, otherwise the full price.
func (b *Booking) ChargeAmount() float64 {
	if b.PaymentType == PaymentTypeDeposit && b.DepositAmount > 0 {
		return b.DepositAmount
	}
	return b.TotalPrice
}
