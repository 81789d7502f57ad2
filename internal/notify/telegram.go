// Package notify delivers owner-facing notifications over Telegram.
// Delivery is best effort and never on a customer-facing path.
package notify

import (
	"context"
	"fmt"

	"slotify/internal/events"
	"slotify/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    Sender
	logger zerolog.Logger
}

func NewTelegramNotifier(token string, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, logger), nil
}

func NewTelegramNotifierWithSender(bot Sender, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

func (n *TelegramNotifier) NotifyBooking(ctx context.Context, chatID int64, booking *models.Booking, event string) error {
	if chatID == 0 {
		return nil
	}

	text := formatBookingMessage(booking, event)
	msg := tgbotapi.NewMessage(chatID, text)

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func formatBookingMessage(b *models.Booking, event string) string {
	switch event {
	case events.EventBookingCreated:
		return fmt.Sprintf("New booking #%d: %s, %s %s - %s (%s)",
			b.ID, b.ServiceName, b.Date, b.Time, b.CustomerName, b.CustomerPhone)
	case events.EventPaymentReceived:
		return fmt.Sprintf("Payment received for booking #%d (%s): %s %s, status %s",
			b.ID, b.ServiceName, b.Date, b.Time, b.PaymentStatus)
	case events.EventPaymentFailed:
		return fmt.Sprintf("Payment FAILED for booking #%d (%s, %s %s) - follow up with %s",
			b.ID, b.ServiceName, b.Date, b.Time, b.CustomerPhone)
	case events.EventBookingCancelled:
		return fmt.Sprintf("Booking #%d cancelled: %s, %s %s", b.ID, b.ServiceName, b.Date, b.Time)
	default:
		return fmt.Sprintf("Booking #%d update (%s): %s %s", b.ID, event, b.Date, b.Time)
	}
}
