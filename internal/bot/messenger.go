package bot

import (
	"context"
	"errors"
)

// ErrInvoiceUnsupported is returned by SendInvoice on platforms without a
// payment primitive. The machine then completes the order as payable on
// receipt instead of waiting for a payment event that can never arrive.
var ErrInvoiceUnsupported = errors.New("bot: invoices not supported")

// Button is one inline keyboard button. Data is the callback payload
// delivered back as an EventCallback.
type Button struct {
	Label string
	Data  string
}

// Keyboard is rows of inline buttons.
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// Invoice describes a payment request. AmountMinor is in minor currency units.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	AmountMinor int
}

// Messenger abstracts the outbound side of a chat platform. Implementations
// exist for Telegram and Facebook Messenger.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string, kb *Keyboard) error
	SendPhoto(ctx context.Context, chatID, photoURL, caption string, kb *Keyboard) error
	SendLocation(ctx context.Context, chatID string, lat, lon float64) error
	SendInvoice(ctx context.Context, chatID string, inv Invoice) error
}
