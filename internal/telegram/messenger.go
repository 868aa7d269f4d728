package telegram

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
)

// Messenger sends outbound messages through the Telegram Bot API. It is the
// Telegram implementation of bot.Messenger.
type Messenger struct {
	tb            *tele.Bot
	providerToken string
}

// NewMessenger wraps a connected telebot instance.
func NewMessenger(tb *tele.Bot, providerToken string) *Messenger {
	return &Messenger{tb: tb, providerToken: providerToken}
}

func recipient(chatID string) (tele.Recipient, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad telegram chat id %q: %w", chatID, err)
	}
	return tele.ChatID(id), nil
}

func markup(kb *bot.Keyboard) *tele.ReplyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.InlineButton{Text: b.Label, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func (m *Messenger) SendText(_ context.Context, chatID, text string, kb *bot.Keyboard) error {
	to, err := recipient(chatID)
	if err != nil {
		return err
	}
	if mk := markup(kb); mk != nil {
		_, err = m.tb.Send(to, text, mk)
	} else {
		_, err = m.tb.Send(to, text)
	}
	return err
}

func (m *Messenger) SendPhoto(_ context.Context, chatID, photoURL, caption string, kb *bot.Keyboard) error {
	to, err := recipient(chatID)
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	if mk := markup(kb); mk != nil {
		_, err = m.tb.Send(to, photo, mk)
	} else {
		_, err = m.tb.Send(to, photo)
	}
	return err
}

func (m *Messenger) SendLocation(_ context.Context, chatID string, lat, lon float64) error {
	to, err := recipient(chatID)
	if err != nil {
		return err
	}
	_, err = m.tb.Send(to, &tele.Location{Lat: float32(lat), Lng: float32(lon)})
	return err
}

func (m *Messenger) SendInvoice(_ context.Context, chatID string, inv bot.Invoice) error {
	to, err := recipient(chatID)
	if err != nil {
		return err
	}
	invoice := tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Token:       m.providerToken,
		Prices: []tele.Price{
			{Label: "Заказ", Amount: inv.AmountMinor},
		},
	}
	_, err = m.tb.Send(to, &invoice)
	return err
}
