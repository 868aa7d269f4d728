package fb

import (
	"context"
	"fmt"
	"strings"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
)

// ChatIDPrefix scopes Messenger PSIDs in the shared conversation store so
// they can never collide with Telegram chat ids.
const ChatIDPrefix = "fb:"

// Messenger adapts the Send API client to bot.Messenger. Keyboards become
// quick replies; capabilities Messenger lacks degrade to text.
type Messenger struct {
	client *Client
}

// NewMessenger wraps a Send API client.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

func psid(chatID string) string {
	return strings.TrimPrefix(chatID, ChatIDPrefix)
}

func quickReplies(kb *bot.Keyboard) []QuickReply {
	if kb == nil {
		return nil
	}
	var out []QuickReply
	for _, row := range kb.Rows {
		for _, b := range row {
			out = append(out, QuickReply{Title: b.Label, Payload: b.Data})
		}
	}
	return out
}

func (m *Messenger) SendText(ctx context.Context, chatID, text string, kb *bot.Keyboard) error {
	return m.client.SendText(ctx, psid(chatID), text, quickReplies(kb))
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID, photoURL, caption string, kb *bot.Keyboard) error {
	if err := m.client.SendImage(ctx, psid(chatID), photoURL); err != nil {
		return err
	}
	return m.client.SendText(ctx, psid(chatID), caption, quickReplies(kb))
}

func (m *Messenger) SendLocation(ctx context.Context, chatID string, lat, lon float64) error {
	text := fmt.Sprintf("Точка на карте: https://maps.yandex.ru/?text=%f,%f", lat, lon)
	return m.client.SendText(ctx, psid(chatID), text, nil)
}

// SendInvoice reports that Messenger has no invoice primitive in this
// integration; the machine then completes the order as payable on receipt.
func (m *Messenger) SendInvoice(_ context.Context, _ string, _ bot.Invoice) error {
	return bot.ErrInvoiceUnsupported
}
