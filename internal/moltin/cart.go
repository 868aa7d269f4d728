package moltin

import (
	"context"
	"net/http"
)

type cartItemsResponse struct {
	Data []CartItem `json:"data"`
	Meta struct {
		DisplayPrice struct {
			WithTax formattedPrice `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

// AddCartItem puts quantity units of a product into the cart referenced by ref.
// Carts are keyed by conversation id, the platform creates them on first use.
func (c *Client) AddCartItem(ctx context.Context, ref, productID string, quantity int) error {
	body := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/carts/"+ref+"/items", nil, body, nil)
}

// Cart returns the items and display totals of the cart referenced by ref.
// An empty or never-used cart yields a Cart with no items.
func (c *Client) Cart(ctx context.Context, ref string) (Cart, error) {
	var resp cartItemsResponse
	if err := c.do(ctx, http.MethodGet, "/v2/carts/"+ref+"/items", nil, nil, &resp); err != nil {
		return Cart{}, err
	}
	return Cart{
		Items:          resp.Data,
		TotalFormatted: resp.Meta.DisplayPrice.WithTax.Formatted,
		TotalAmount:    resp.Meta.DisplayPrice.WithTax.Amount,
	}, nil
}

// DeleteCartItem removes one line from the cart. Deleting an item that is
// already gone reports ErrNotFound.
func (c *Client) DeleteCartItem(ctx context.Context, ref, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/v2/carts/"+ref+"/items/"+itemID, nil, nil, nil)
}
