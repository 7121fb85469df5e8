package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"shefixes/internal/events"
	"shefixes/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the outbound half of the Telegram API, small enough to fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBotSender connects to the Telegram API in send-only mode.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier pushes marketplace events to the operations chat.
type TelegramNotifier struct {
	sender    Sender
	opsChatID int64
	logger    *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, opsChatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:    sender,
		opsChatID: opsChatID,
		logger:    logger,
	}
}

func (n *TelegramNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	text := fmt.Sprintf("New booking #%d\n%s at %s on %s\nCategory: %s\nAddress: %s",
		booking.ID,
		booking.ClientID,
		minuteClock(booking.StartMinute),
		booking.Date.Format(models.DateLayout),
		booking.Category,
		booking.Address,
	)
	return n.send(text)
}

func (n *TelegramNotifier) NotifyBookingStatusChanged(ctx context.Context, booking *models.Booking, previous string) error {
	text := fmt.Sprintf("Booking #%d: %s -> %s\nTechnician: %s\nDate: %s %s",
		booking.ID,
		previous,
		booking.Status,
		booking.TechnicianID,
		booking.Date.Format(models.DateLayout),
		minuteClock(booking.StartMinute),
	)
	return n.send(text)
}

func (n *TelegramNotifier) NotifyTechnicianApproved(ctx context.Context, tech *models.Technician) error {
	text := fmt.Sprintf("Technician approved: %s (%s)\nCity: %s", tech.Name, tech.ID, tech.City)
	return n.send(text)
}

// Subscribe wires the notifier to the in-process event bus so booking and
// verification events reach the operations chat without the publisher
// knowing about Telegram.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingConfirmed, func(event *events.Event) error {
		payload, err := n.decodeBooking(event)
		if err != nil {
			return err
		}
		return n.NotifyBookingConfirmed(context.Background(), bookingFromPayload(payload))
	})

	bus.Subscribe(events.EventBookingCancelled, func(event *events.Event) error {
		payload, err := n.decodeBooking(event)
		if err != nil {
			return err
		}
		return n.NotifyBookingStatusChanged(context.Background(), bookingFromPayload(payload), payload.Previous)
	})

	bus.Subscribe(events.EventTechnicianApproved, func(event *events.Event) error {
		var payload events.TechnicianEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.Error().Err(err).Msg("notify: decode technician event")
			return err
		}
		return n.NotifyTechnicianApproved(context.Background(), &models.Technician{
			ID:   payload.TechnicianID,
			Name: payload.Name,
			City: payload.City,
		})
	})
}

func (n *TelegramNotifier) decodeBooking(event *events.Event) (events.BookingEventPayload, error) {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("notify: decode booking event")
		return payload, err
	}
	return payload, nil
}

func bookingFromPayload(p events.BookingEventPayload) *models.Booking {
	return &models.Booking{
		ID:           p.BookingID,
		ClientID:     p.ClientID,
		TechnicianID: p.TechnicianID,
		Category:     p.Category,
		Status:       p.Status,
		Address:      p.Address,
		Date:         p.Date,
		StartMinute:  p.StartMinute,
	}
}

func (n *TelegramNotifier) send(text string) error {
	if n.sender == nil || n.opsChatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(n.opsChatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("notify: telegram send failed")
		return err
	}
	return nil
}

func minuteClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
