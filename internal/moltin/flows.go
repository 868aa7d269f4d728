package moltin

import (
	"context"
	"net/http"
)

// CreateFlow creates a custom data flow and returns its id.
func (c *Client) CreateFlow(ctx context.Context, name, slug, description string) (string, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":        "flow",
			"name":        name,
			"slug":        slug,
			"description": description,
			"enabled":     true,
		},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/flows", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// CreateField attaches a field to a flow. fieldType is one of the platform
// types, e.g. "string" or "float".
func (c *Client) CreateField(ctx context.Context, flowID, name, slug, fieldType string) error {
	body := map[string]any{
		"data": map[string]any{
			"type":        "field",
			"name":        name,
			"slug":        slug,
			"field_type":  fieldType,
			"description": name,
			"required":    true,
			"enabled":     true,
			"relationships": map[string]any{
				"flow": map[string]any{
					"data": map[string]any{
						"type": "flow",
						"id":   flowID,
					},
				},
			},
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/fields", nil, body, nil)
}

// CreateEntry inserts an entry into the flow identified by slug and returns
// its id. Fields are keyed by field slug.
func (c *Client) CreateEntry(ctx context.Context, flowSlug string, fields map[string]any) (string, error) {
	data := map[string]any{"type": "entry"}
	for slug, value := range fields {
		data[slug] = value
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/flows/"+flowSlug+"/entries", nil, map[string]any{"data": data}, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// Entries lists all entries of the flow identified by slug.
func (c *Client) Entries(ctx context.Context, flowSlug string) ([]Entry, error) {
	var resp struct {
		Data []Entry `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/flows/"+flowSlug+"/entries", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateIntegration registers a webhook observer that fires on catalog
// changes, used to invalidate cached menus.
func (c *Client) CreateIntegration(ctx context.Context, name, targetURL string, observes []string) (string, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":             "integration",
			"name":             name,
			"description":      name,
			"enabled":          true,
			"observes":         observes,
			"integration_type": "webhook",
			"configuration": map[string]any{
				"url": targetURL,
			},
		},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/integrations", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}
