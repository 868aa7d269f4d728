// Package fb is the Facebook Messenger front end: the Graph API send client,
// the webhook routes and the cached menu carousel.
package fb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

const defaultGraphURL = "https://graph.facebook.com/v2.6"

// Messenger template limits.
const (
	maxCarouselElements = 10
	maxQuickReplies     = 13
	maxButtonTitle      = 20
)

// Client sends messages through the Messenger Send API.
type Client struct {
	http  *http.Client
	token string
	base  string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	PageAccessToken string
	// BaseURL defaults to the public Graph API host.
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// NewClient constructs a Send API client.
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultGraphURL
	}
	return &Client{http: httpClient, token: opts.PageAccessToken, base: base}
}

// QuickReply is a tappable chip under a text message.
type QuickReply struct {
	Title   string
	Payload string
}

// SendText delivers a text message, optionally with quick replies.
func (c *Client) SendText(ctx context.Context, psid, text string, replies []QuickReply) error {
	message := map[string]any{"text": text}
	if len(replies) > 0 {
		if len(replies) > maxQuickReplies {
			replies = replies[:maxQuickReplies]
		}
		qrs := make([]map[string]any, 0, len(replies))
		for _, qr := range replies {
			qrs = append(qrs, map[string]any{
				"content_type": "text",
				"title":        truncate(qr.Title, maxButtonTitle),
				"payload":      qr.Payload,
			})
		}
		message["quick_replies"] = qrs
	}
	return c.send(ctx, psid, message)
}

// SendImage delivers an image by URL.
func (c *Client) SendImage(ctx context.Context, psid, imageURL string) error {
	return c.send(ctx, psid, map[string]any{
		"attachment": map[string]any{
			"type": "image",
			"payload": map[string]any{
				"url":         imageURL,
				"is_reusable": true,
			},
		},
	})
}

// SendCarousel delivers menu cards as a generic template, chunked to the
// template's element limit.
func (c *Client) SendCarousel(ctx context.Context, psid string, elements []bot.MenuElement) error {
	for len(elements) > 0 {
		chunk := elements
		if len(chunk) > maxCarouselElements {
			chunk = chunk[:maxCarouselElements]
		}
		elements = elements[len(chunk):]

		cards := make([]map[string]any, 0, len(chunk))
		for _, el := range chunk {
			card := map[string]any{
				"title":    el.Title,
				"subtitle": el.Subtitle,
			}
			if el.ImageURL != "" {
				card["image_url"] = el.ImageURL
			}
			if el.Payload != "" {
				card["buttons"] = []map[string]any{{
					"type":    "postback",
					"title":   truncate(el.ButtonTitle, maxButtonTitle),
					"payload": el.Payload,
				}}
			}
			cards = append(cards, card)
		}

		err := c.send(ctx, psid, map[string]any{
			"attachment": map[string]any{
				"type": "template",
				"payload": map[string]any{
					"template_type": "generic",
					"elements":      cards,
				},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, psid string, message map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"recipient": map[string]any{"id": psid},
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	u := c.base + "/me/messages?" + url.Values{"access_token": []string{c.token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("messenger send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read send response: %w", err)
	}

	logger.Debug(ctx, "fb", "send",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("messenger send returned status %d: %s",
			resp.StatusCode, logger.SanitizeLimit(string(body), 256))
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
