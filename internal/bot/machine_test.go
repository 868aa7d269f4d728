package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/geo"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
	"github.com/KirillYabl/TgPizzaBot/internal/store"
)

type sentMessage struct {
	kind   string
	chatID string
	text   string
	kb     *Keyboard
	inv    Invoice
}

// fakeMessenger records sends under a mutex so follow-up timers firing from
// their own goroutine stay race-free.
type fakeMessenger struct {
	mu         sync.Mutex
	sent       []sentMessage
	invoiceErr error
}

func (f *fakeMessenger) record(msg sentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeMessenger) SendText(_ context.Context, chatID, text string, kb *Keyboard) error {
	f.record(sentMessage{kind: "text", chatID: chatID, text: text, kb: kb})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID, _ string, caption string, kb *Keyboard) error {
	f.record(sentMessage{kind: "photo", chatID: chatID, text: caption, kb: kb})
	return nil
}

func (f *fakeMessenger) SendLocation(_ context.Context, chatID string, _, _ float64) error {
	f.record(sentMessage{kind: "location", chatID: chatID})
	return nil
}

func (f *fakeMessenger) SendInvoice(_ context.Context, chatID string, inv Invoice) error {
	if f.invoiceErr != nil {
		return f.invoiceErr
	}
	f.record(sentMessage{kind: "invoice", chatID: chatID, inv: inv})
	return nil
}

func (f *fakeMessenger) snapshot() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeMessenger) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeCommerce struct {
	products  []moltin.Product
	carts     map[string][]moltin.CartItem
	customers map[string]moltin.Customer
	entries   map[string][]moltin.Entry
	created   []map[string]any

	createOutcome moltin.CustomerOutcome
	findMatches   int
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{
		products: []moltin.Product{
			product("p1", "Маргарита", 40000),
			product("p2", "Пепперони", 50000),
		},
		carts:         make(map[string][]moltin.CartItem),
		customers:     make(map[string]moltin.Customer),
		entries:       make(map[string][]moltin.Entry),
		createOutcome: moltin.CustomerCreated,
		findMatches:   1,
	}
}

func product(id, name string, priceMinor int) moltin.Product {
	var p moltin.Product
	p.ID = id
	p.Name = name
	p.Description = name + " описание"
	p.Meta.DisplayPrice.WithTax.Amount = priceMinor
	p.Meta.DisplayPrice.WithTax.Formatted = fmt.Sprintf("%d RUB", priceMinor/100)
	return p
}

func (f *fakeCommerce) Products(_ context.Context, _ string) ([]moltin.Product, error) {
	return f.products, nil
}

func (f *fakeCommerce) Product(_ context.Context, id string) (moltin.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return moltin.Product{}, moltin.ErrNotFound
}

func (f *fakeCommerce) Categories(_ context.Context) ([]moltin.Category, error) {
	return []moltin.Category{{ID: "cat-main", Name: "Основные"}}, nil
}

func (f *fakeCommerce) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://img.test/" + fileID, nil
}

func (f *fakeCommerce) AddCartItem(_ context.Context, ref, productID string, quantity int) error {
	for _, p := range f.products {
		if p.ID != productID {
			continue
		}
		item := moltin.CartItem{ID: "item-" + productID, ProductID: productID, Name: p.Name, Quantity: quantity}
		unit := p.Meta.DisplayPrice.WithTax.Amount
		item.Meta.DisplayPrice.WithTax.Unit.Amount = unit
		item.Meta.DisplayPrice.WithTax.Value.Amount = unit * quantity
		item.Meta.DisplayPrice.WithTax.Value.Formatted = fmt.Sprintf("%d RUB", unit*quantity/100)
		f.carts[ref] = append(f.carts[ref], item)
		return nil
	}
	return moltin.ErrNotFound
}

func (f *fakeCommerce) Cart(_ context.Context, ref string) (moltin.Cart, error) {
	items := f.carts[ref]
	total := 0
	for _, it := range items {
		total += it.Meta.DisplayPrice.WithTax.Value.Amount
	}
	return moltin.Cart{
		Items:          items,
		TotalAmount:    total,
		TotalFormatted: fmt.Sprintf("%d RUB", total/100),
	}, nil
}

func (f *fakeCommerce) DeleteCartItem(_ context.Context, ref, itemID string) error {
	items := f.carts[ref]
	for i, it := range items {
		if it.ID == itemID {
			f.carts[ref] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return moltin.ErrNotFound
}

func (f *fakeCommerce) FindCustomer(_ context.Context, name, email string) (moltin.Customer, error) {
	if f.findMatches != 1 {
		return moltin.Customer{}, &moltin.ErrAmbiguousCustomer{Matches: f.findMatches}
	}
	return moltin.Customer{ID: "cust-found", Name: name, Email: email}, nil
}

func (f *fakeCommerce) CreateCustomer(_ context.Context, name, email string) (moltin.CustomerResult, error) {
	if f.createOutcome != moltin.CustomerCreated {
		return moltin.CustomerResult{Outcome: f.createOutcome}, nil
	}
	cust := moltin.Customer{ID: "cust-1", Name: name, Email: email}
	f.customers[email] = cust
	return moltin.CustomerResult{Outcome: moltin.CustomerCreated, Customer: cust}, nil
}

func (f *fakeCommerce) CreateEntry(_ context.Context, flowSlug string, fields map[string]any) (string, error) {
	f.created = append(f.created, fields)
	_ = flowSlug
	return "entry-1", nil
}

func (f *fakeCommerce) Entries(_ context.Context, flowSlug string) ([]moltin.Entry, error) {
	return f.entries[flowSlug], nil
}

type fakeGeocoder struct {
	point geo.Point
	found bool
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (geo.Point, bool, error) {
	return f.point, f.found, nil
}

type fixture struct {
	machine  *Machine
	msgr     *fakeMessenger
	commerce *fakeCommerce
	geocoder *fakeGeocoder
	store    *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Moltin: config.MoltinConfig{ClientID: "x"},
	}
	require.NoError(t, config.Normalize(cfg))

	commerce := newFakeCommerce()
	// One pizzeria near Red Square with a deliveryman attached.
	commerce.entries[cfg.Flows.PizzeriaSlug] = []moltin.Entry{{
		cfg.Flows.PizzeriaAddressField:   "Москва, Тверская 1",
		"alias":                          "Тверская",
		cfg.Flows.PizzeriaLatitudeField:  55.7539,
		cfg.Flows.PizzeriaLongitudeField: 37.6208,
		cfg.Flows.DeliverymanChatIDField: "courier-1",
	}}

	msgr := &fakeMessenger{}
	geocoder := &fakeGeocoder{}
	mem := store.NewMemory()
	machine := NewMachine(Options{
		Store:     mem,
		Commerce:  commerce,
		Geocoder:  geocoder,
		Messenger: msgr,
		Menu:      cfg.Menu,
		Flows:     cfg.Flows,
		Payments:  cfg.Payments,
	})
	t.Cleanup(machine.Close)
	return &fixture{machine: machine, msgr: msgr, commerce: commerce, geocoder: geocoder, store: mem}
}

func (fx *fixture) state(t *testing.T, chatID string) State {
	t.Helper()
	raw, err := fx.store.State(context.Background(), chatID)
	require.NoError(t, err)
	return ParseState(raw)
}

func (fx *fixture) dispatch(ev Event) {
	fx.machine.Dispatch(context.Background(), ev)
}

func text(chatID, s string) Event {
	return Event{ChatID: chatID, Kind: EventText, Text: s}
}

func callback(chatID, payload string) Event {
	return Event{ChatID: chatID, Kind: EventCallback, Text: payload}
}

func TestStartShowsMenu(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(text("c1", "/start"))

	assert.Equal(t, HandleMenu, fx.state(t, "c1"))
	last := fx.msgr.last()
	require.NotNil(t, last.kb)
	assert.Equal(t, "Маргарита", last.kb.Rows[0][0].Label)
	assert.Equal(t, "p1", last.kb.Rows[0][0].Data)
}

func TestProductPickShowsCard(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(text("c1", "/start"))
	fx.dispatch(callback("c1", "p1"))

	assert.Equal(t, HandleDescription, fx.state(t, "c1"))
	last := fx.msgr.last()
	assert.Contains(t, last.text, "Маргарита")
	assert.Contains(t, last.text, "400 RUB")
	assert.Equal(t, cbAddPrefix+"p1", last.kb.Rows[0][0].Data)
}

func TestAddToCartKeepsDescriptionState(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(text("c1", "/start"))
	fx.dispatch(callback("c1", "p1"))
	fx.dispatch(callback("c1", cbAddPrefix+"p1"))

	assert.Equal(t, HandleDescription, fx.state(t, "c1"))
	require.Len(t, fx.commerce.carts["c1"], 1)
	assert.Equal(t, "p1", fx.commerce.carts["c1"][0].ProductID)
}

func TestCartShowsItemsAndDeletes(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(text("c1", "/start"))
	fx.dispatch(callback("c1", "p1"))
	fx.dispatch(callback("c1", cbAddPrefix+"p1"))
	fx.dispatch(callback("c1", cbCart))

	assert.Equal(t, HandleCart, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "Всего: 400 RUB")

	fx.dispatch(callback("c1", cbDelPrefix+"item-p1"))
	assert.Equal(t, HandleCart, fx.state(t, "c1"))
	assert.Empty(t, fx.commerce.carts["c1"])
	assert.Contains(t, fx.msgr.last().text, "корзина пуста")
}

func TestPayAsksForEmail(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch(text("c1", "/start"))
	fx.dispatch(callback("c1", "p1"))
	fx.dispatch(callback("c1", cbAddPrefix+"p1"))
	fx.dispatch(callback("c1", cbCart))
	fx.dispatch(callback("c1", cbPay))

	assert.Equal(t, WaitingEmail, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "email")
}

func checkoutToEmail(t *testing.T, fx *fixture, chatID string) {
	t.Helper()
	fx.dispatch(text(chatID, "/start"))
	fx.dispatch(callback(chatID, "p1"))
	fx.dispatch(callback(chatID, cbAddPrefix+"p1"))
	fx.dispatch(callback(chatID, cbCart))
	fx.dispatch(callback(chatID, cbPay))
	require.Equal(t, WaitingEmail, fx.state(t, chatID))
}

func TestInvalidEmailStays(t *testing.T) {
	fx := newFixture(t)
	checkoutToEmail(t, fx, "c1")

	fx.commerce.createOutcome = moltin.CustomerInvalidEmail
	fx.dispatch(text("c1", "not-an-email"))

	assert.Equal(t, WaitingEmail, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "ошиблись")
}

func TestDuplicateEmailResolvesExistingCustomer(t *testing.T) {
	fx := newFixture(t)
	checkoutToEmail(t, fx, "c1")

	fx.commerce.createOutcome = moltin.CustomerDuplicate
	fx.dispatch(text("c1", "ivan@example.com"))

	assert.Equal(t, WaitingGeo, fx.state(t, "c1"))
	assert.Equal(t, "cust-found", fx.machine.sessions.Get("c1").CustomerID)
}

func TestDuplicateEmailAmbiguousLookupReprompts(t *testing.T) {
	fx := newFixture(t)
	checkoutToEmail(t, fx, "c1")

	fx.commerce.createOutcome = moltin.CustomerDuplicate
	fx.commerce.findMatches = 2
	fx.dispatch(text("c1", "ivan@example.com"))

	assert.Equal(t, WaitingEmail, fx.state(t, "c1"))
}

func checkoutToGeo(t *testing.T, fx *fixture, chatID string) {
	t.Helper()
	checkoutToEmail(t, fx, chatID)
	fx.dispatch(text(chatID, "ivan@example.com"))
	require.Equal(t, WaitingGeo, fx.state(t, chatID))
}

func TestGeocodeMissReprompts(t *testing.T) {
	fx := newFixture(t)
	checkoutToGeo(t, fx, "c1")

	fx.geocoder.found = false
	fx.dispatch(text("c1", "фываолдж"))

	assert.Equal(t, WaitingGeo, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "распознать")
}

func TestNearbyLocationOffersFreeDelivery(t *testing.T) {
	fx := newFixture(t)
	checkoutToGeo(t, fx, "c1")

	// Roughly 200 meters from the pizzeria.
	fx.dispatch(Event{ChatID: "c1", Kind: EventLocation, Location: Location{Lat: 55.7525, Lon: 37.6231}})

	assert.Equal(t, WaitingDeliveryType, fx.state(t, "c1"))
	last := fx.msgr.last()
	assert.Contains(t, last.text, "бесплатно")
	require.NotNil(t, last.kb)
	assert.Equal(t, cbDelivery, last.kb.Rows[0][0].Data)

	// The drop point is stored as soon as the address is known.
	require.Len(t, fx.commerce.created, 1)
	assert.Equal(t, "cust-1", fx.commerce.created[0]["customer-addresses-customer-id"])
}

func TestFarLocationOffersPickupOnly(t *testing.T) {
	fx := newFixture(t)
	checkoutToGeo(t, fx, "c1")

	// Saint Petersburg, way outside the 20 km radius.
	fx.dispatch(Event{ChatID: "c1", Kind: EventLocation, Location: Location{Lat: 59.93, Lon: 30.31}})

	assert.Equal(t, WaitingDeliveryType, fx.state(t, "c1"))
	last := fx.msgr.last()
	require.NotNil(t, last.kb)
	require.Len(t, last.kb.Rows, 1)
	assert.Equal(t, cbPickup, last.kb.Rows[0][0].Data)
}

func checkoutToDeliveryType(t *testing.T, fx *fixture, chatID string) {
	t.Helper()
	checkoutToGeo(t, fx, chatID)
	// 2-3 km out, the 100 RUB tier.
	fx.dispatch(Event{ChatID: chatID, Kind: EventLocation, Location: Location{Lat: 55.77, Lon: 37.64}})
	require.Equal(t, WaitingDeliveryType, fx.state(t, chatID))
}

func TestPickupInvoicesCartTotalWithoutFee(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")

	fx.dispatch(callback("c1", cbPickup))

	assert.Equal(t, WaitingPayment, fx.state(t, "c1"))
	last := fx.msgr.last()
	assert.Equal(t, "invoice", last.kind)
	// Cart total only, self-service carries no courier fee.
	assert.Equal(t, 40000, last.inv.AmountMinor)
}

func TestPickupPaymentSendsPizzeriaAddress(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")
	fx.dispatch(callback("c1", cbPickup))

	fx.dispatch(Event{ChatID: "c1", Kind: EventPayment})

	assert.Equal(t, Start, fx.state(t, "c1"))
	sent := fx.msgr.snapshot()
	require.GreaterOrEqual(t, len(sent), 2)
	addr := sent[len(sent)-2]
	assert.Contains(t, addr.text, "Тверская 1")
	assert.Equal(t, "location", sent[len(sent)-1].kind)
	assert.Equal(t, "c1", sent[len(sent)-1].chatID)

	// Self-service never pings the deliveryman.
	for _, msg := range sent {
		assert.NotEqual(t, "courier-1", msg.chatID)
	}
}

func TestDeliveryIssuesInvoiceWithCourierFee(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")

	fx.dispatch(callback("c1", cbDelivery))

	assert.Equal(t, WaitingPayment, fx.state(t, "c1"))
	last := fx.msgr.last()
	assert.Equal(t, "invoice", last.kind)
	// 400 RUB pizza plus the 100 RUB courier fee.
	assert.Equal(t, 50000, last.inv.AmountMinor)
	assert.Equal(t, "RUB", last.inv.Currency)

	order, ok := fx.machine.PendingOrder("c1")
	require.True(t, ok)
	assert.Equal(t, last.inv.Payload, order.Payload)
}

func TestPaymentNotifiesDeliverymanAndRestarts(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")
	fx.dispatch(callback("c1", cbDelivery))

	fx.dispatch(Event{ChatID: "c1", Kind: EventPayment})

	assert.Equal(t, Start, fx.state(t, "c1"))
	_, pending := fx.machine.PendingOrder("c1")
	assert.False(t, pending)

	var courierTexts []string
	for _, msg := range fx.msgr.snapshot() {
		if msg.chatID == "courier-1" && msg.kind == "text" {
			courierTexts = append(courierTexts, msg.text)
		}
	}
	require.Len(t, courierTexts, 1)
	assert.Contains(t, courierTexts[0], "Новый заказ")
	assert.Contains(t, courierTexts[0], "Доставка: 100 руб.")
}

func TestLostSessionInDeliveryTypeRepromptsEmail(t *testing.T) {
	fx := newFixture(t)
	// The durable state survived a restart, the in-memory session did not.
	require.NoError(t, fx.store.SetState(context.Background(), "c1", string(WaitingDeliveryType)))
	require.NoError(t, fx.commerce.AddCartItem(context.Background(), "c1", "p1", 1))

	fx.dispatch(callback("c1", cbDelivery))

	assert.Equal(t, WaitingEmail, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "email")
	assert.Empty(t, fx.commerce.created)
	for _, msg := range fx.msgr.snapshot() {
		assert.NotEqual(t, "invoice", msg.kind)
	}
}

func TestLostPizzeriaInDeliveryTypeRepromptsAddress(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.SetState(context.Background(), "c1", string(WaitingDeliveryType)))
	fx.machine.sessions.Get("c1").CustomerID = "cust-1"

	fx.dispatch(callback("c1", cbPickup))

	assert.Equal(t, WaitingGeo, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "адрес")
}

func TestLostCustomerInGeoRepromptsEmail(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.SetState(context.Background(), "c1", string(WaitingGeo)))

	fx.dispatch(Event{ChatID: "c1", Kind: EventLocation, Location: Location{Lat: 55.7525, Lon: 37.6231}})

	assert.Equal(t, WaitingEmail, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "email")
	assert.Empty(t, fx.commerce.created)
}

func TestInvoiceUnsupportedCompletesOrderImmediately(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")
	fx.msgr.invoiceErr = ErrInvoiceUnsupported

	fx.dispatch(callback("c1", cbDelivery))

	assert.Equal(t, Start, fx.state(t, "c1"))
	_, pending := fx.machine.PendingOrder("c1")
	assert.False(t, pending)

	var courierNotified, payOnReceipt bool
	for _, msg := range fx.msgr.snapshot() {
		if msg.chatID == "courier-1" && msg.kind == "text" {
			courierNotified = true
		}
		if msg.chatID == "c1" && strings.Contains(msg.text, "при получении") {
			payOnReceipt = true
		}
	}
	assert.True(t, courierNotified)
	assert.True(t, payOnReceipt)
}

func TestMenuShowsCartQuantities(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.commerce.AddCartItem(context.Background(), "c1", "p1", 2))

	fx.dispatch(text("c1", "/start"))

	last := fx.msgr.last()
	require.NotNil(t, last.kb)
	assert.Equal(t, "Маргарита (2 шт. в корзине)", last.kb.Rows[0][0].Label)
	assert.Equal(t, "Пепперони", last.kb.Rows[1][0].Label)
}

func TestStartResetsAnyState(t *testing.T) {
	fx := newFixture(t)
	checkoutToGeo(t, fx, "c1")

	fx.dispatch(text("c1", "/start"))
	assert.Equal(t, HandleMenu, fx.state(t, "c1"))
}

func TestStrayTextInPaymentStateReminds(t *testing.T) {
	fx := newFixture(t)
	checkoutToDeliveryType(t, fx, "c1")
	fx.dispatch(callback("c1", cbDelivery))

	fx.dispatch(text("c1", "где моя пицца"))
	assert.Equal(t, WaitingPayment, fx.state(t, "c1"))
	assert.Contains(t, fx.msgr.last().text, "Счет уже выставлен")
}

func TestMenuPagination(t *testing.T) {
	fx := newFixture(t)
	for i := 3; i <= 20; i++ {
		fx.commerce.products = append(fx.commerce.products,
			product(fmt.Sprintf("p%d", i), fmt.Sprintf("Пицца %d", i), 45000))
	}

	fx.dispatch(text("c1", "/start"))
	last := fx.msgr.last()
	// 8 products, nav row, cart row.
	require.Len(t, last.kb.Rows, 10)
	nav := last.kb.Rows[8]
	assert.True(t, strings.HasPrefix(nav[0].Data, cbPagePrefix))

	fx.dispatch(callback("c1", cbPagePrefix+"3"))
	assert.Equal(t, HandleMenu, fx.state(t, "c1"))
	last = fx.msgr.last()
	// Last page holds the remaining 4 products.
	require.Len(t, last.kb.Rows, 6)
	assert.Equal(t, "3/3", last.kb.Rows[4][1].Label)
}
