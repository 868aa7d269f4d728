// Package bot implements the conversation state machine shared by the
// Telegram and Messenger front ends.
package bot

// State names a position in the ordering conversation. The string value is
// what gets persisted, so renaming a constant is a breaking change for
// conversations in flight.
type State string

const (
	// Start greets the user and shows the menu.
	Start State = "START"
	// HandleMenu waits for a product pick, page flip or cart view.
	HandleMenu State = "HANDLE_MENU"
	// HandleDescription waits on a product card: add to cart, back or cart.
	HandleDescription State = "HANDLE_DESCRIPTION"
	// HandleCart waits on the cart view: remove item, back to menu or pay.
	HandleCart State = "HANDLE_CART"
	// WaitingEmail waits for the customer's email address.
	WaitingEmail State = "WAITING_EMAIL"
	// WaitingGeo waits for a shared location or a typed address.
	WaitingGeo State = "WAITING_GEO"
	// WaitingDeliveryType waits for the delivery or pickup choice.
	WaitingDeliveryType State = "WAITING_DELIVERY_TYPE"
	// WaitingPayment waits for the invoice to be paid.
	WaitingPayment State = "WAITING_PAYMENT"
)

// ParseState maps a persisted state name back to a State. Unknown names fall
// back to Start so that schema drift restarts the conversation instead of
// wedging it.
func ParseState(raw string) State {
	switch State(raw) {
	case Start, HandleMenu, HandleDescription, HandleCart,
		WaitingEmail, WaitingGeo, WaitingDeliveryType, WaitingPayment:
		return State(raw)
	}
	return Start
}
