package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/KirillYabl/TgPizzaBot/internal/geo"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
)

func (m *Machine) handleStart(ctx context.Context, ev Event) (State, error) {
	if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
		return Start, err
	}
	return HandleMenu, nil
}

func (m *Machine) handleMenu(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventCallback {
		if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
			return HandleMenu, err
		}
		return HandleMenu, nil
	}

	switch {
	case ev.Text == cbCart:
		if err := m.sendCart(ctx, ev.ChatID); err != nil {
			return HandleMenu, err
		}
		return HandleCart, nil
	case strings.HasPrefix(ev.Text, cbPagePrefix):
		if err := m.sendMenu(ctx, ev.ChatID, pageFromPayload(ev.Text)); err != nil {
			return HandleMenu, err
		}
		return HandleMenu, nil
	case strings.HasPrefix(ev.Text, cbAddPrefix):
		// Messenger menu cards add to cart straight from the carousel.
		productID := strings.TrimPrefix(ev.Text, cbAddPrefix)
		if err := m.commerce.AddCartItem(ctx, ev.ChatID, productID, 1); err != nil {
			return HandleMenu, err
		}
		if err := m.msgr.SendText(ctx, ev.ChatID, "Пицца добавлена в корзину", nil); err != nil {
			return HandleMenu, err
		}
		return HandleMenu, nil
	default:
		// Any other payload is a product pick.
		if err := m.sendProductCard(ctx, ev.ChatID, ev.Text); err != nil {
			return HandleMenu, err
		}
		return HandleDescription, nil
	}
}

func (m *Machine) handleDescription(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventCallback {
		return HandleDescription, nil
	}

	switch {
	case strings.HasPrefix(ev.Text, cbAddPrefix):
		productID := strings.TrimPrefix(ev.Text, cbAddPrefix)
		if err := m.commerce.AddCartItem(ctx, ev.ChatID, productID, 1); err != nil {
			return HandleDescription, err
		}
		if err := m.msgr.SendText(ctx, ev.ChatID, "Пицца добавлена в корзину", nil); err != nil {
			return HandleDescription, err
		}
		return HandleDescription, nil
	case ev.Text == cbCart:
		if err := m.sendCart(ctx, ev.ChatID); err != nil {
			return HandleDescription, err
		}
		return HandleCart, nil
	case ev.Text == cbBack:
		if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
			return HandleDescription, err
		}
		return HandleMenu, nil
	}
	return HandleDescription, nil
}

func (m *Machine) handleCart(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventCallback {
		return HandleCart, nil
	}

	switch {
	case ev.Text == cbMenu:
		if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
			return HandleCart, err
		}
		return HandleMenu, nil
	case strings.HasPrefix(ev.Text, cbDelPrefix):
		itemID := strings.TrimPrefix(ev.Text, cbDelPrefix)
		if err := m.commerce.DeleteCartItem(ctx, ev.ChatID, itemID); err != nil {
			return HandleCart, err
		}
		if err := m.sendCart(ctx, ev.ChatID); err != nil {
			return HandleCart, err
		}
		return HandleCart, nil
	case ev.Text == cbPay:
		if err := m.msgr.SendText(ctx, ev.ChatID, "Хорошо, пришлите, пожалуйста, ваш email", nil); err != nil {
			return HandleCart, err
		}
		return WaitingEmail, nil
	}
	return HandleCart, nil
}

func (m *Machine) handleWaitingEmail(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventText {
		return WaitingEmail, nil
	}
	email := strings.TrimSpace(ev.Text)
	name := ev.Username
	if name == "" {
		name = ev.ChatID
	}

	result, err := m.commerce.CreateCustomer(ctx, name, email)
	if err != nil {
		return WaitingEmail, err
	}

	var customer moltin.Customer
	switch result.Outcome {
	case moltin.CustomerInvalidEmail:
		err := m.msgr.SendText(ctx, ev.ChatID,
			"Кажется, вы ошиблись в email, пришлите еще раз", nil)
		return WaitingEmail, err
	case moltin.CustomerDuplicate:
		customer, err = m.commerce.FindCustomer(ctx, name, email)
		if err != nil {
			if moltin.IsRecoverable(err) {
				sendErr := m.msgr.SendText(ctx, ev.ChatID,
					"Не получилось вас узнать, пришлите email еще раз", nil)
				return WaitingEmail, sendErr
			}
			return WaitingEmail, err
		}
	case moltin.CustomerCreated:
		customer = result.Customer
	}

	sess := m.sessions.Get(ev.ChatID)
	sess.CustomerID = customer.ID

	err = m.msgr.SendText(ctx, ev.ChatID,
		"Хорошо, пришлите нам ваш адрес текстом или геолокацию", nil)
	if err != nil {
		return WaitingEmail, err
	}
	return WaitingGeo, nil
}

func (m *Machine) handleWaitingGeo(ctx context.Context, ev Event) (State, error) {
	var point geo.Point
	switch ev.Kind {
	case EventLocation:
		point = geo.Point{Lat: ev.Location.Lat, Lon: ev.Location.Lon}
	case EventText:
		found := false
		var err error
		point, found, err = m.geocoder.Geocode(ctx, ev.Text)
		if err != nil {
			return WaitingGeo, err
		}
		if !found {
			err := m.msgr.SendText(ctx, ev.ChatID,
				"Не могу распознать этот адрес, попробуйте еще раз", nil)
			return WaitingGeo, err
		}
	default:
		return WaitingGeo, nil
	}

	pizzerias, err := m.pizzerias(ctx)
	if err != nil {
		return WaitingGeo, err
	}
	nearest, distanceKm, ok := geo.Nearest(pizzerias, point)
	if !ok {
		return WaitingGeo, fmt.Errorf("no pizzeria addresses configured")
	}

	sess := m.sessions.Get(ev.ChatID)
	if sess.CustomerID == "" {
		// The customer id did not survive a restart, back up one step.
		err := m.msgr.SendText(ctx, ev.ChatID,
			"Что-то пошло не так, пришлите, пожалуйста, ваш email еще раз", nil)
		return WaitingEmail, err
	}
	sess.Point = point
	sess.Pizzeria = nearest
	sess.DistanceKm = distanceKm

	// Every customer's drop point goes to the addresses flow, pickup included.
	_, err = m.commerce.CreateEntry(ctx, m.flows.CustomerSlug, map[string]any{
		m.flows.CustomerIDField:        sess.CustomerID,
		m.flows.CustomerLongitudeField: point.Lon,
		m.flows.CustomerLatitudeField:  point.Lat,
	})
	if err != nil {
		return WaitingGeo, err
	}

	tier := geo.TierFor(distanceKm)
	kb := &Keyboard{}
	if tier.Deliverable {
		kb.Row(Button{Label: "Доставка", Data: cbDelivery})
	}
	kb.Row(Button{Label: "Самовывоз", Data: cbPickup})

	if err := m.msgr.SendText(ctx, ev.ChatID, tier.Message, kb); err != nil {
		return WaitingGeo, err
	}
	return WaitingDeliveryType, nil
}

func (m *Machine) handleWaitingDeliveryType(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventCallback {
		return WaitingDeliveryType, nil
	}

	// The state survives restarts in the durable store but the session does
	// not; a cold session must back up instead of checking out blind.
	sess := m.sessions.Get(ev.ChatID)
	if sess.CustomerID == "" {
		err := m.msgr.SendText(ctx, ev.ChatID,
			"Что-то пошло не так, пришлите, пожалуйста, ваш email еще раз", nil)
		return WaitingEmail, err
	}
	if sess.Pizzeria == (geo.Pizzeria{}) {
		err := m.msgr.SendText(ctx, ev.ChatID,
			"Что-то пошло не так, пожалуйста, укажите снова свой адрес", nil)
		return WaitingGeo, err
	}

	switch ev.Text {
	case cbPickup:
		cart, err := m.commerce.Cart(ctx, ev.ChatID)
		if err != nil {
			return WaitingDeliveryType, err
		}
		if len(cart.Items) == 0 {
			if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
				return WaitingDeliveryType, err
			}
			return HandleMenu, nil
		}

		sess.Order = &Order{
			Payload:     uuid.NewString(),
			AmountMinor: cart.TotalAmount,
			Confirmation: fmt.Sprintf(
				"Спасибо за ваш заказ, ваша пицца будет ждать вас по адресу: %s",
				sess.Pizzeria.Address),
			Pickup: true,
		}
		return m.issueInvoice(ctx, ev.ChatID, sess)

	case cbDelivery:
		tier := geo.TierFor(sess.DistanceKm)
		if !tier.Deliverable {
			return WaitingDeliveryType, nil
		}

		cart, err := m.commerce.Cart(ctx, ev.ChatID)
		if err != nil {
			return WaitingDeliveryType, err
		}
		if len(cart.Items) == 0 {
			if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
				return WaitingDeliveryType, err
			}
			return HandleMenu, nil
		}

		var deliveryFormatted string
		if tier.PriceMinor > 0 {
			deliveryFormatted = formatMinor(tier.PriceMinor)
		}
		sess.Order = &Order{
			Payload:       uuid.NewString(),
			AmountMinor:   cart.TotalAmount + tier.PriceMinor,
			Summary:       orderSummary(cart, deliveryFormatted),
			Confirmation:  "Спасибо за заказ! Пицца уже готовится",
			CourierChatID: sess.Pizzeria.DeliverymanChatID,
		}
		return m.issueInvoice(ctx, ev.ChatID, sess)
	}
	return WaitingDeliveryType, nil
}

// issueInvoice sends the payment request for the pending order. Platforms
// without invoices complete the order right away as payable on receipt.
func (m *Machine) issueInvoice(ctx context.Context, chatID string, sess *Session) (State, error) {
	inv := Invoice{
		Title:       "Оплата заказа",
		Description: "Оплата заказа пиццы",
		Payload:     sess.Order.Payload,
		Currency:    m.payments.Currency,
		AmountMinor: sess.Order.AmountMinor,
	}
	err := m.msgr.SendInvoice(ctx, chatID, inv)
	if err == nil {
		return WaitingPayment, nil
	}
	if errors.Is(err, ErrInvoiceUnsupported) {
		notice := fmt.Sprintf("К оплате %s, оплата при получении.", formatMinor(inv.AmountMinor))
		if sendErr := m.msgr.SendText(ctx, chatID, notice, nil); sendErr != nil {
			sess.Order = nil
			return WaitingDeliveryType, sendErr
		}
		return m.completeOrder(ctx, chatID, sess, WaitingDeliveryType)
	}
	sess.Order = nil
	return WaitingDeliveryType, err
}

func (m *Machine) handleWaitingPayment(ctx context.Context, ev Event) (State, error) {
	if ev.Kind != EventPayment {
		err := m.msgr.SendText(ctx, ev.ChatID,
			"Счет уже выставлен, оплатите его или отправьте /start, чтобы начать заново", nil)
		return WaitingPayment, err
	}

	sess := m.sessions.Get(ev.ChatID)
	if sess.Order == nil {
		if err := m.sendMenu(ctx, ev.ChatID, 1); err != nil {
			return WaitingPayment, err
		}
		return HandleMenu, nil
	}
	return m.completeOrder(ctx, ev.ChatID, sess, WaitingPayment)
}

// completeOrder finishes the pending order: notifies the courier on delivery,
// confirms to the customer and arms the follow-up timer.
func (m *Machine) completeOrder(ctx context.Context, chatID string, sess *Session, fallback State) (State, error) {
	order := sess.Order

	// Courier notifications must not block the customer's confirmation.
	if order.CourierChatID != "" {
		if err := m.msgr.SendText(ctx, order.CourierChatID, order.Summary, nil); err != nil {
			logger.Error(ctx, "bot.fsm", "deliveryman.notify", slog.String("err", err.Error()))
		}
		if err := m.msgr.SendLocation(ctx, order.CourierChatID, sess.Point.Lat, sess.Point.Lon); err != nil {
			logger.Error(ctx, "bot.fsm", "deliveryman.location", slog.String("err", err.Error()))
		}
	}

	if err := m.msgr.SendText(ctx, chatID, order.Confirmation, nil); err != nil {
		return fallback, err
	}
	if order.Pickup {
		if err := m.msgr.SendLocation(ctx, chatID, sess.Pizzeria.Point.Lat, sess.Pizzeria.Point.Lon); err != nil {
			logger.Error(ctx, "bot.fsm", "pickup.location", slog.String("err", err.Error()))
		}
	}

	sess.Order = nil
	m.followups.Schedule(chatID)
	return Start, nil
}

func (m *Machine) sendMenu(ctx context.Context, chatID string, page int) error {
	if m.renderMenu != nil {
		return m.renderMenu(ctx, chatID, page)
	}
	products, err := m.commerce.Products(ctx, "")
	if err != nil {
		return err
	}
	cart, err := m.commerce.Cart(ctx, chatID)
	if err != nil {
		return err
	}
	inCart := make(map[string]int, len(cart.Items))
	for _, item := range cart.Items {
		inCart[item.ProductID] += item.Quantity
	}
	kb := menuKeyboard(products, inCart, page, m.menu.ProductsPerPage)
	const text = "Пожалуйста, выберите:"
	if m.menu.LogoURL != "" {
		return m.msgr.SendPhoto(ctx, chatID, m.menu.LogoURL, text, kb)
	}
	return m.msgr.SendText(ctx, chatID, text, kb)
}

func (m *Machine) sendCart(ctx context.Context, chatID string) error {
	cart, err := m.commerce.Cart(ctx, chatID)
	if err != nil {
		return err
	}
	if m.menu.CartImageURL != "" && len(cart.Items) > 0 {
		return m.msgr.SendPhoto(ctx, chatID, m.menu.CartImageURL, cartText(cart), cartKeyboard(cart))
	}
	return m.msgr.SendText(ctx, chatID, cartText(cart), cartKeyboard(cart))
}

func (m *Machine) sendProductCard(ctx context.Context, chatID, productID string) error {
	product, err := m.commerce.Product(ctx, productID)
	if err != nil {
		return err
	}

	photoURL := m.menu.LogoURL
	if imageID := product.MainImageID(); imageID != "" {
		if href, err := m.commerce.FileURL(ctx, imageID); err == nil {
			photoURL = href
		} else {
			logger.Warn(ctx, "bot.fsm", "product.image",
				slog.String("product_id", productID),
				slog.String("err", err.Error()),
			)
		}
	}

	caption := productCaption(product)
	kb := productKeyboard(product)
	if photoURL == "" {
		return m.msgr.SendText(ctx, chatID, caption, kb)
	}
	return m.msgr.SendPhoto(ctx, chatID, photoURL, caption, kb)
}

func (m *Machine) pizzerias(ctx context.Context) ([]geo.Pizzeria, error) {
	entries, err := m.commerce.Entries(ctx, m.flows.PizzeriaSlug)
	if err != nil {
		return nil, err
	}
	out := make([]geo.Pizzeria, 0, len(entries))
	for _, e := range entries {
		lat, okLat := e.Float(m.flows.PizzeriaLatitudeField)
		lon, okLon := e.Float(m.flows.PizzeriaLongitudeField)
		if !okLat || !okLon {
			continue
		}
		out = append(out, geo.Pizzeria{
			Address:           e.String(m.flows.PizzeriaAddressField),
			Alias:             e.String("alias"),
			Point:             geo.Point{Lat: lat, Lon: lon},
			DeliverymanChatID: e.String(m.flows.DeliverymanChatIDField),
		})
	}
	return out, nil
}

func formatMinor(minor int) string {
	return fmt.Sprintf("%d руб.", minor/100)
}
