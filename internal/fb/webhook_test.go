package fb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/geo"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
	"github.com/KirillYabl/TgPizzaBot/internal/store"
)

type fakeCommerce struct {
	products   map[string][]moltin.Product
	categories []moltin.Category
}

func newFakeCommerce() *fakeCommerce {
	main := moltin.Product{ID: "p1", Name: "Маргарита", Description: "Томаты и моцарелла"}
	main.Meta.DisplayPrice.WithTax.Formatted = "400 RUB"
	special := moltin.Product{ID: "p2", Name: "Сырная", Description: "Четыре сыра"}
	special.Meta.DisplayPrice.WithTax.Formatted = "550 RUB"
	return &fakeCommerce{
		products: map[string][]moltin.Product{
			"cat-main":    {main},
			"cat-special": {special},
			"":            {main, special},
		},
		categories: []moltin.Category{
			{ID: "cat-main", Name: "Основные"},
			{ID: "cat-special", Name: "Особые", Description: "Сытные и сырные"},
		},
	}
}

func (f *fakeCommerce) Products(_ context.Context, categoryID string) ([]moltin.Product, error) {
	return f.products[categoryID], nil
}

func (f *fakeCommerce) Product(_ context.Context, id string) (moltin.Product, error) {
	for _, list := range f.products {
		for _, p := range list {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return moltin.Product{}, moltin.ErrNotFound
}

func (f *fakeCommerce) Categories(_ context.Context) ([]moltin.Category, error) {
	return f.categories, nil
}

func (f *fakeCommerce) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://img.test/" + fileID, nil
}

func (f *fakeCommerce) AddCartItem(_ context.Context, _, _ string, _ int) error { return nil }

func (f *fakeCommerce) Cart(_ context.Context, _ string) (moltin.Cart, error) {
	return moltin.Cart{TotalFormatted: "0 RUB"}, nil
}

func (f *fakeCommerce) DeleteCartItem(_ context.Context, _, _ string) error { return nil }

func (f *fakeCommerce) FindCustomer(_ context.Context, name, email string) (moltin.Customer, error) {
	return moltin.Customer{ID: "cust-1", Name: name, Email: email}, nil
}

func (f *fakeCommerce) CreateCustomer(_ context.Context, name, email string) (moltin.CustomerResult, error) {
	return moltin.CustomerResult{Outcome: moltin.CustomerCreated, Customer: moltin.Customer{ID: "cust-1", Name: name, Email: email}}, nil
}

func (f *fakeCommerce) CreateEntry(_ context.Context, _ string, _ map[string]any) (string, error) {
	return "entry-1", nil
}

func (f *fakeCommerce) Entries(_ context.Context, _ string) ([]moltin.Entry, error) {
	return nil, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(_ context.Context, _ string) (geo.Point, bool, error) {
	return geo.Point{}, false, nil
}

type sendCapture struct {
	payloads []map[string]any
}

func newGraphServer(t *testing.T, capture *sendCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/messages", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		capture.payloads = append(capture.payloads, payload)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newWebhookFixture(t *testing.T) (*Webhook, *sendCapture, *store.Memory) {
	t.Helper()
	capture := &sendCapture{}
	graph := newGraphServer(t, capture)

	client := NewClient(ClientOptions{PageAccessToken: "page-token", BaseURL: graph.URL})
	commerce := newFakeCommerce()
	mem := store.NewMemory()
	menuCfg := config.MenuConfig{ProductsPerPage: 8, LogoURL: "https://img.test/logo"}
	menu := NewMenu(mem, commerce, client, menuCfg, "cat-main")

	machine := bot.NewMachine(bot.Options{
		Store:        mem,
		Commerce:     commerce,
		Geocoder:     fakeGeocoder{},
		Messenger:    NewMessenger(client),
		Menu:         menuCfg,
		Payments:     config.PaymentsConfig{Currency: "RUB"},
		MenuRenderer: menu.Renderer(),
	})
	t.Cleanup(machine.Close)

	return NewWebhook(machine, menu, "secret-verify", "moltin-secret"), capture, mem
}

func TestVerifyHandshake(t *testing.T) {
	wh, _, _ := newWebhookFixture(t)
	router := wh.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/?hub.mode=subscribe&hub.verify_token=secret-verify&hub.challenge=12345", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyRejectsBadToken(t *testing.T) {
	wh, _, _ := newWebhookFixture(t)
	router := wh.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "12345")
}

func postEvent(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestIncomingTextSendsCarouselMenu(t *testing.T) {
	wh, capture, mem := newWebhookFixture(t)
	router := wh.Router()

	rec := postEvent(t, router, `{
		"object": "page",
		"entry": [{"messaging": [{"sender": {"id": "psid-1"}, "message": {"text": "хочу пиццу"}}]}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotEmpty(t, capture.payloads)
	last := capture.payloads[len(capture.payloads)-1]
	recipient := last["recipient"].(map[string]any)
	assert.Equal(t, "psid-1", recipient["id"])

	message := last["message"].(map[string]any)
	attachment := message["attachment"].(map[string]any)
	payload := attachment["payload"].(map[string]any)
	assert.Equal(t, "generic", payload["template_type"])

	elements := payload["elements"].([]any)
	// Front card, one product, one other-category card.
	require.Len(t, elements, 3)
	first := elements[0].(map[string]any)
	assert.Equal(t, "Меню", first["title"])
	product := elements[1].(map[string]any)
	assert.Equal(t, "Маргарита (400 RUB)", product["title"])

	state, err := mem.State(context.Background(), ChatIDPrefix+"psid-1")
	require.NoError(t, err)
	assert.Equal(t, string(bot.HandleMenu), state)
}

func TestCategoryPostbackSwitchesCarousel(t *testing.T) {
	wh, capture, mem := newWebhookFixture(t)
	router := wh.Router()

	// Warm up the conversation so the state is HANDLE_MENU.
	postEvent(t, router, `{
		"object": "page",
		"entry": [{"messaging": [{"sender": {"id": "psid-1"}, "message": {"text": "start"}}]}]
	}`)
	before := len(capture.payloads)

	rec := postEvent(t, router, `{
		"object": "page",
		"entry": [{"messaging": [{"sender": {"id": "psid-1"}, "postback": {"payload": "category:cat-special"}}]}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Greater(t, len(capture.payloads), before)

	last := capture.payloads[len(capture.payloads)-1]
	payload := last["message"].(map[string]any)["attachment"].(map[string]any)["payload"].(map[string]any)
	elements := payload["elements"].([]any)
	product := elements[1].(map[string]any)
	assert.Equal(t, "Сырная (550 RUB)", product["title"])

	// Category browsing does not move the conversation state.
	state, err := mem.State(context.Background(), ChatIDPrefix+"psid-1")
	require.NoError(t, err)
	assert.Equal(t, string(bot.HandleMenu), state)
}

func TestIntegrationRefreshRebuildsCache(t *testing.T) {
	wh, _, mem := newWebhookFixture(t)
	router := wh.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/moltin",
		strings.NewReader(`{"configuration": {"secret_key": "moltin-secret"}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	payload, err := mem.Menu(context.Background(), "cat-special")
	require.NoError(t, err)

	var elements []bot.MenuElement
	require.NoError(t, json.Unmarshal(payload, &elements))
	require.Len(t, elements, 3)
	assert.Equal(t, "add:p2", elements[1].Payload)
	assert.Equal(t, "category:cat-main", elements[2].Payload)
}

func TestIntegrationRefreshRejectsBadSecret(t *testing.T) {
	wh, _, mem := newWebhookFixture(t)
	router := wh.Router()

	for _, body := range []string{`{}`, `{"configuration": {"secret_key": "wrong"}}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/moltin", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	_, err := mem.Menu(context.Background(), "cat-special")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendInvoiceReportsUnsupported(t *testing.T) {
	capture := &sendCapture{}
	graph := newGraphServer(t, capture)
	client := NewClient(ClientOptions{PageAccessToken: "page-token", BaseURL: graph.URL})

	err := NewMessenger(client).SendInvoice(context.Background(), ChatIDPrefix+"psid-1", bot.Invoice{AmountMinor: 40000})

	assert.ErrorIs(t, err, bot.ErrInvoiceUnsupported)
	assert.Empty(t, capture.payloads)
}

func TestQuickReplyPayloadBecomesCallback(t *testing.T) {
	ev, ok := normalize("psid-9", &inboundMessage{
		Text:       "Корзина",
		QuickReply: &inboundQuickReply{Payload: "cart"},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, bot.EventCallback, ev.Kind)
	assert.Equal(t, "cart", ev.Text)
	assert.Equal(t, ChatIDPrefix+"psid-9", ev.ChatID)
}

func TestTruncateRespectsRunes(t *testing.T) {
	assert.Equal(t, "Положить в корзину", truncate("Положить в корзину", maxButtonTitle))
	assert.Len(t, []rune(truncate("очень длинная надпись на кнопке", maxButtonTitle)), maxButtonTitle)
}
