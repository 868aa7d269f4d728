package moltin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

type customersResponse struct {
	Data []Customer `json:"data"`
}

type customerResponse struct {
	Data Customer `json:"data"`
}

// FindCustomer looks up a customer by name and email. The pair must identify
// exactly one record, anything else is ErrAmbiguousCustomer.
func (c *Client) FindCustomer(ctx context.Context, name, email string) (Customer, error) {
	query := url.Values{
		"filter": []string{fmt.Sprintf("eq(name,%s):eq(email,%s)", name, email)},
	}
	var resp customersResponse
	if err := c.do(ctx, http.MethodGet, "/v2/customers", query, nil, &resp); err != nil {
		return Customer{}, err
	}
	if len(resp.Data) != 1 {
		return Customer{}, &ErrAmbiguousCustomer{Matches: len(resp.Data)}
	}
	return resp.Data[0], nil
}

// CreateCustomer registers a customer record. Duplicate emails and invalid
// emails are expected outcomes reported via CustomerResult, not errors.
func (c *Client) CreateCustomer(ctx context.Context, name, email string) (CustomerResult, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  name,
			"email": email,
		},
	}
	var resp customerResponse
	err := c.do(ctx, http.MethodPost, "/v2/customers", nil, body, &resp)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			switch upstream.Status {
			case http.StatusConflict:
				return CustomerResult{Outcome: CustomerDuplicate}, nil
			case http.StatusUnprocessableEntity:
				return CustomerResult{Outcome: CustomerInvalidEmail}, nil
			}
		}
		return CustomerResult{}, err
	}
	return CustomerResult{Outcome: CustomerCreated, Customer: resp.Data}, nil
}
