package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
)

// Callback payloads shared with the front ends.
const (
	// PayloadCart opens the cart view.
	PayloadCart = cbCart
	// PayloadAddPrefix prefixes an add-to-cart product id.
	PayloadAddPrefix = cbAddPrefix
)

const (
	cbCart     = "cart"
	cbBack     = "back"
	cbMenu     = "menu"
	cbPay      = "pay"
	cbDelivery = "delivery"
	cbPickup   = "pickup"

	cbPagePrefix = "page-"
	cbAddPrefix  = "add:"
	cbDelPrefix  = "del:"
)

// menuKeyboard renders one page of products as an inline keyboard. Buttons
// for products already in the cart carry the quantity; navigation arrows
// appear only when there is more than one page.
func menuKeyboard(products []moltin.Product, inCart map[string]int, page, perPage int) *Keyboard {
	pages := (len(products) + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	from := (page - 1) * perPage
	to := from + perPage
	if to > len(products) {
		to = len(products)
	}

	kb := &Keyboard{}
	for _, p := range products[from:to] {
		label := p.Name
		if qty := inCart[p.ID]; qty > 0 {
			label = fmt.Sprintf("%s (%d шт. в корзине)", p.Name, qty)
		}
		kb.Row(Button{Label: label, Data: p.ID})
	}
	if pages > 1 {
		prev := page - 1
		if prev < 1 {
			prev = pages
		}
		next := page + 1
		if next > pages {
			next = 1
		}
		kb.Row(
			Button{Label: "◀", Data: cbPagePrefix + strconv.Itoa(prev)},
			Button{Label: fmt.Sprintf("%d/%d", page, pages), Data: cbPagePrefix + strconv.Itoa(page)},
			Button{Label: "▶", Data: cbPagePrefix + strconv.Itoa(next)},
		)
	}
	kb.Row(Button{Label: "Корзина", Data: cbCart})
	return kb
}

// pageFromPayload parses a "page-N" callback, defaulting to the first page.
func pageFromPayload(payload string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(payload, cbPagePrefix))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// productCaption is the text on a product card.
func productCaption(p moltin.Product) string {
	return fmt.Sprintf("%s\n\n%s\n\n%s", p.Name, p.Price(), p.Description)
}

func productKeyboard(p moltin.Product) *Keyboard {
	kb := &Keyboard{}
	kb.Row(Button{Label: "Положить в корзину", Data: cbAddPrefix + p.ID})
	kb.Row(
		Button{Label: "Назад", Data: cbBack},
		Button{Label: "Корзина", Data: cbCart},
	)
	return kb
}

// cartText renders the cart as the user sees it.
func cartText(cart moltin.Cart) string {
	if len(cart.Items) == 0 {
		return "Ваша корзина пуста. Самое время выбрать пиццу!"
	}
	var b strings.Builder
	for _, item := range cart.Items {
		fmt.Fprintf(&b, "%s\n%s\n%s\n%d шт. в корзине на %s\n\n",
			item.Name, item.Description, item.UnitPrice(), item.Quantity, item.LineTotal())
	}
	fmt.Fprintf(&b, "Всего: %s", cart.TotalFormatted)
	return b.String()
}

func cartKeyboard(cart moltin.Cart) *Keyboard {
	kb := &Keyboard{}
	for _, item := range cart.Items {
		kb.Row(Button{Label: "Убрать из корзины " + item.Name, Data: cbDelPrefix + item.ID})
	}
	kb.Row(Button{Label: "В меню", Data: cbMenu})
	if len(cart.Items) > 0 {
		kb.Row(Button{Label: "Оплатить", Data: cbPay})
	}
	return kb
}

// orderSummary is the text forwarded to the deliveryman after payment.
func orderSummary(cart moltin.Cart, deliveryFormatted string) string {
	var b strings.Builder
	b.WriteString("Новый заказ!\n\n")
	for _, item := range cart.Items {
		fmt.Fprintf(&b, "%s x%d = %s\n", item.Name, item.Quantity, item.LineTotal())
	}
	fmt.Fprintf(&b, "\nИтого по корзине: %s", cart.TotalFormatted)
	if deliveryFormatted != "" {
		fmt.Fprintf(&b, "\nДоставка: %s", deliveryFormatted)
	}
	return b.String()
}

// MenuElement is one card of the cached Messenger menu carousel. The Store
// keeps pages of these serialized per category so the webhook never blocks
// on the catalog.
type MenuElement struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ImageURL string `json:"image_url"`
	// ProductID is empty for service cards like the logo or category links.
	ProductID string `json:"product_id"`
	// ButtonTitle and Payload describe the card's primary button.
	ButtonTitle string `json:"button_title"`
	Payload     string `json:"payload"`
}
