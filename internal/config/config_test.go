package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Moltin:   MoltinConfig{ClientID: "client"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, expected longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Menu.ProductsPerPage != 8 {
		t.Fatalf("products_per_page = %d, expected 8", cfg.Menu.ProductsPerPage)
	}
	if cfg.Store.Driver != StoreMemory {
		t.Fatalf("store.driver = %q, expected memory", cfg.Store.Driver)
	}
	if cfg.Moltin.BaseURL != "https://api.moltin.com" {
		t.Fatalf("moltin.base_url = %q", cfg.Moltin.BaseURL)
	}
	if cfg.Flows.PizzeriaSlug != "pizzeria-addresses" {
		t.Fatalf("flows.pizzeria_slug = %q", cfg.Flows.PizzeriaSlug)
	}
	if cfg.Flows.DeliverymanChatIDField != "pizzeria-addresses-deliveryman-telegram-chat-id" {
		t.Fatalf("flows.deliveryman_chat_id_field = %q", cfg.Flows.DeliverymanChatIDField)
	}
}

func TestNormalizeRequiresMoltinClientID(t *testing.T) {
	cfg := validConfig()
	cfg.Moltin.ClientID = ""
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "moltin client id") {
		t.Fatalf("expected moltin client id error, got %v", err)
	}
}

func TestNormalizeWebhookMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook = WebhookConfig{URL: "https://example.com/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize webhook config: %v", err)
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, expected alias to map to longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizePostgresStore(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for postgres store without connection params")
	}

	cfg = validConfig()
	cfg.Store = StoreConfig{Driver: "postgres", Host: "localhost", User: "bot", Name: "pizza"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize postgres store: %v", err)
	}
	if cfg.Store.Port != "5432" || cfg.Store.SSLMode != "disable" || cfg.Store.MaxConns != 4 {
		t.Fatalf("postgres defaults not applied: %+v", cfg.Store)
	}
}

func TestNormalizeRejectsUnknownStoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "redis"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}
