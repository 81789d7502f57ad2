package notify

import (
	"context"
	"errors"
	"testing"

	"slotify/internal/events"
	"slotify/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:            17,
		ServiceName:   "Haircut",
		Date:          "2026-09-12",
		Time:          "10:30",
		CustomerName:  "Alice",
		CustomerPhone: "+15551234567",
		PaymentStatus: models.PaymentPaid,
	}
}

func TestNotifyBooking(t *testing.T) {
	sender := &fakeSender{}
	logger := zerolog.Nop()
	n := NewTelegramNotifierWithSender(sender, &logger)

	err := n.NotifyBooking(context.Background(), 4242, testBooking(), events.EventBookingCreated)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(4242), msg.ChatID)
	assert.Contains(t, msg.Text, "New booking #17")
	assert.Contains(t, msg.Text, "Haircut")
	assert.Contains(t, msg.Text, "+15551234567")
}

func TestNotifyBooking_ZeroChatIDIsNoop(t *testing.T) {
	sender := &fakeSender{}
	logger := zerolog.Nop()
	n := NewTelegramNotifierWithSender(sender, &logger)

	err := n.NotifyBooking(context.Background(), 0, testBooking(), events.EventBookingCreated)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifyBooking_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	logger := zerolog.Nop()
	n := NewTelegramNotifierWithSender(sender, &logger)

	err := n.NotifyBooking(context.Background(), 4242, testBooking(), events.EventBookingCreated)
	assert.ErrorContains(t, err, "chat not found")
}

func TestFormatBookingMessage(t *testing.T) {
	b := testBooking()

	tests := []struct {
		event string
		want  string
	}{
		{events.EventBookingCreated, "New booking"},
		{events.EventPaymentReceived, "Payment received"},
		{events.EventPaymentFailed, "Payment FAILED"},
		{events.EventBookingCancelled, "cancelled"},
		{"something_else", "update"},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			assert.Contains(t, formatBookingMessage(b, tt.event), tt.want)
		})
	}
}
