package moltin

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withToken(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires":      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(),
		})
	})
}

func TestFindCustomerSingleMatch(t *testing.T) {
	mux := http.NewServeMux()
	withToken(mux)
	mux.HandleFunc("/v2/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq(name,ivan):eq(email,ivan@example.com)", r.URL.Query().Get("filter"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "cust-1", "name": "ivan", "email": "ivan@example.com"}},
		})
	})

	client, _, _ := newTestClient(t, mux)
	cust, err := client.FindCustomer(context.Background(), "ivan", "ivan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", cust.ID)
}

func TestFindCustomerAmbiguous(t *testing.T) {
	for _, matches := range []int{0, 2} {
		mux := http.NewServeMux()
		withToken(mux)
		mux.HandleFunc("/v2/customers", func(w http.ResponseWriter, r *http.Request) {
			data := make([]map[string]any, matches)
			for i := range data {
				data[i] = map[string]any{"id": "c"}
			}
			json.NewEncoder(w).Encode(map[string]any{"data": data})
		})

		client, _, _ := newTestClient(t, mux)
		_, err := client.FindCustomer(context.Background(), "n", "e")

		var ambiguous *ErrAmbiguousCustomer
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, matches, ambiguous.Matches)
	}
}

func TestCreateCustomerOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		outcome CustomerOutcome
	}{
		{"created", http.StatusCreated, CustomerCreated},
		{"duplicate email", http.StatusConflict, CustomerDuplicate},
		{"invalid email", http.StatusUnprocessableEntity, CustomerInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			withToken(mux)
			mux.HandleFunc("/v2/customers", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				if tc.status == http.StatusCreated {
					json.NewEncoder(w).Encode(map[string]any{
						"data": map[string]any{"id": "cust-9", "name": "n", "email": "e"},
					})
				}
			})

			client, _, _ := newTestClient(t, mux)
			res, err := client.CreateCustomer(context.Background(), "n", "e")
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, res.Outcome)
			if tc.outcome == CustomerCreated {
				assert.Equal(t, "cust-9", res.Customer.ID)
			}
		})
	}
}

func TestCreateCustomerServerFault(t *testing.T) {
	mux := http.NewServeMux()
	withToken(mux)
	mux.HandleFunc("/v2/customers", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})

	client, _, _ := newTestClient(t, mux)
	_, err := client.CreateCustomer(context.Background(), "n", "e")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
}

func TestCartReadModel(t *testing.T) {
	mux := http.NewServeMux()
	withToken(mux)
	mux.HandleFunc("/v2/carts/chat-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id": "item-1", "product_id": "p1", "name": "Margherita", "quantity": 2,
					"meta": map[string]any{"display_price": map[string]any{"with_tax": map[string]any{
						"unit":  map[string]any{"amount": 40000, "formatted": "400 RUB"},
						"value": map[string]any{"amount": 80000, "formatted": "800 RUB"},
					}}},
				},
			},
			"meta": map[string]any{"display_price": map[string]any{"with_tax": map[string]any{
				"amount": 80000, "formatted": "800 RUB",
			}}},
		})
	})

	client, _, _ := newTestClient(t, mux)
	cart, err := client.Cart(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "400 RUB", cart.Items[0].UnitPrice())
	assert.Equal(t, "800 RUB", cart.Items[0].LineTotal())
	assert.Equal(t, "800 RUB", cart.TotalFormatted)
	assert.Equal(t, 80000, cart.TotalAmount)
}

func TestProductsFilterByCategory(t *testing.T) {
	mux := http.NewServeMux()
	withToken(mux)
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq(category.id,cat-1)", r.URL.Query().Get("filter"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "p1", "name": "Margherita"}},
		})
	})

	client, _, _ := newTestClient(t, mux)
	products, err := client.Products(context.Background(), "cat-1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Margherita", products[0].Name)
}
