package moltin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

type productsResponse struct {
	Data []Product `json:"data"`
}

type productResponse struct {
	Data Product `json:"data"`
}

type categoriesResponse struct {
	Data []Category `json:"data"`
}

// Products lists catalog products, optionally filtered by category.
func (c *Client) Products(ctx context.Context, categoryID string) ([]Product, error) {
	var query url.Values
	if categoryID != "" {
		query = url.Values{"filter": []string{fmt.Sprintf("eq(category.id,%s)", categoryID)}}
	}
	var resp productsResponse
	if err := c.do(ctx, http.MethodGet, "/v2/products", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Product fetches one product by id.
func (c *Client) Product(ctx context.Context, productID string) (Product, error) {
	var resp productResponse
	if err := c.do(ctx, http.MethodGet, "/v2/products/"+productID, nil, nil, &resp); err != nil {
		return Product{}, err
	}
	return resp.Data, nil
}

// Categories lists all catalog categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp categoriesResponse
	if err := c.do(ctx, http.MethodGet, "/v2/categories", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateProduct creates a catalog product from a raw API payload and returns its id.
func (c *Client) CreateProduct(ctx context.Context, product map[string]any) (string, error) {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/products", nil, map[string]any{"data": product}, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// FileURL resolves a file id to its public href.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	var resp struct {
		Data struct {
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/files/"+fileID, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Link.Href, nil
}

// UploadImage registers an image by URL and returns the created file id.
// The files endpoint only accepts multipart form data.
func (c *Client) UploadImage(ctx context.Context, imageURL string) (string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	if err := writer.WriteField("file_location", imageURL); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/files", &form)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if err := statusError(resp.StatusCode, "/v2/files", raw); err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return out.Data.ID, nil
}

// LinkMainImage associates an uploaded image with a product as its main image.
func (c *Client) LinkMainImage(ctx context.Context, productID, imageID string) error {
	body := map[string]any{
		"data": map[string]any{
			"type": "main_image",
			"id":   imageID,
		},
	}
	path := "/v2/products/" + productID + "/relationships/main-image"
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}
