package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// StoreMemory keeps conversation state in process memory.
	StoreMemory = "memory"
	// StorePostgres persists conversation state in PostgreSQL.
	StorePostgres = "postgres"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TG_BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies Telegram webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// MoltinConfig holds commerce platform credentials.
type MoltinConfig struct {
	ClientID     string `yaml:"client_id" envconfig:"MOTLIN_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"MOTLIN_CLIENT_SECRET"`
	BaseURL      string `yaml:"base_url" envconfig:"MOTLIN_BASE_URL"`
}

// GeoConfig holds geocoder settings.
type GeoConfig struct {
	APIKey  string `yaml:"api_key" envconfig:"YANDEX_GEO_APIKEY"`
	BaseURL string `yaml:"base_url" envconfig:"YANDEX_GEO_BASE_URL"`
}

// PaymentsConfig holds invoice issuing settings.
type PaymentsConfig struct {
	ProviderToken string `yaml:"provider_token" envconfig:"BANK_TOKEN"`
	Currency      string `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
}

// FacebookConfig holds Messenger webhook settings.
type FacebookConfig struct {
	PageAccessToken string `yaml:"page_access_token" envconfig:"FB_PAGE_ACCESS_TOKEN"`
	VerifyToken     string `yaml:"verify_token" envconfig:"FB_VERIFY_TOKEN"`
	Listen          string `yaml:"listen" envconfig:"FB_LISTEN"`
	Port            int    `yaml:"port" envconfig:"FB_PORT"`
	MainCategoryID  string `yaml:"main_category_id" envconfig:"MAIN_CATEGORY_ID"`
}

// MenuConfig controls menu rendering.
type MenuConfig struct {
	ProductsPerPage    int    `yaml:"products_per_page" envconfig:"PRODUCTS_ON_PAGE"`
	LogoURL            string `yaml:"logo_url" envconfig:"PIZZA_LOGO_URL"`
	CategoriesImageURL string `yaml:"categories_image_url" envconfig:"PIZZA_CATEGORIES_URL"`
	CartImageURL       string `yaml:"cart_image_url" envconfig:"CART_IMAGE_URL"`
}

// FlowsConfig names the commerce flow schemas used for address storage.
type FlowsConfig struct {
	PizzeriaSlug           string `yaml:"pizzeria_slug" envconfig:"PIZZERIA_ADDRESSES_FLOW_SLUG"`
	CustomerSlug           string `yaml:"customer_slug" envconfig:"CUSTOMER_ADDRESSES_FLOW_SLUG"`
	CustomerIDField        string `yaml:"customer_id_field" envconfig:"CUSTOMER_ADDRESSES_CUSTOMER_ID_SLUG"`
	CustomerLongitudeField string `yaml:"customer_longitude_field" envconfig:"CUSTOMER_ADDRESSES_LONGITUDE_SLUG"`
	CustomerLatitudeField  string `yaml:"customer_latitude_field" envconfig:"CUSTOMER_ADDRESSES_LATITUDE_SLUG"`
	PizzeriaAddressField   string `yaml:"pizzeria_address_field" envconfig:"PIZZERIA_ADDRESSES_ADDRESS"`
	PizzeriaLongitudeField string `yaml:"pizzeria_longitude_field" envconfig:"PIZZERIA_ADDRESSES_LONGITUDE"`
	PizzeriaLatitudeField  string `yaml:"pizzeria_latitude_field" envconfig:"PIZZERIA_ADDRESSES_LATITUDE"`
	DeliverymanChatIDField string `yaml:"deliveryman_chat_id_field" envconfig:"PIZZERIA_ADDRESSES_DELIVERYMAN_TELEGRAM_CHAT_ID"`
}

// StoreConfig selects and configures the conversation state store.
type StoreConfig struct {
	Driver   string `yaml:"driver" envconfig:"STORE_DRIVER"`
	Host     string `yaml:"host" envconfig:"DB_HOST"`
	Port     string `yaml:"port" envconfig:"DB_PORT"`
	User     string `yaml:"user" envconfig:"DB_USER"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name     string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConns int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format  string `yaml:"format" envconfig:"LOG_FORMAT"`
	Dir     string `yaml:"dir" envconfig:"LOG_DIR"`
	File    string `yaml:"file" envconfig:"LOG_FILE"`
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// Config aggregates everything the bots need.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Moltin    MoltinConfig    `yaml:"moltin"`
	Geo       GeoConfig       `yaml:"geo"`
	Payments  PaymentsConfig  `yaml:"payments"`
	Facebook  FacebookConfig  `yaml:"facebook"`
	Menu      MenuConfig      `yaml:"menu"`
	Flows     FlowsConfig     `yaml:"flows"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
// The file is optional: with an empty path everything comes from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Moltin.ClientID == "" {
		return fmt.Errorf("moltin client id is required")
	}
	if cfg.Moltin.BaseURL == "" {
		cfg.Moltin.BaseURL = "https://api.moltin.com"
	}
	if cfg.Geo.BaseURL == "" {
		cfg.Geo.BaseURL = "https://geocode-maps.yandex.ru/1.x"
	}
	if cfg.Payments.Currency == "" {
		cfg.Payments.Currency = "RUB"
	}
	if cfg.Menu.ProductsPerPage <= 0 {
		cfg.Menu.ProductsPerPage = 8
	}

	normalizeFlows(&cfg.Flows)

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if driver == "" {
		driver = StoreMemory
	}
	switch driver {
	case StoreMemory:
	case StorePostgres:
		if cfg.Store.Host == "" || cfg.Store.Name == "" || cfg.Store.User == "" {
			return fmt.Errorf("store.host, store.name and store.user are required when store.driver is 'postgres'")
		}
		if cfg.Store.Port == "" {
			cfg.Store.Port = "5432"
		}
		if cfg.Store.SSLMode == "" {
			cfg.Store.SSLMode = "disable"
		}
		if cfg.Store.MaxConns <= 0 {
			cfg.Store.MaxConns = 4
		}
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: memory, postgres", cfg.Store.Driver)
	}
	cfg.Store.Driver = driver

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	return nil
}

func normalizeFlows(f *FlowsConfig) {
	def := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	def(&f.PizzeriaSlug, "pizzeria-addresses")
	def(&f.CustomerSlug, "customer-addresses")
	def(&f.CustomerIDField, "customer-addresses-customer-id")
	def(&f.CustomerLongitudeField, "customer-addresses-longitude")
	def(&f.CustomerLatitudeField, "customer-addresses-latitude")
	def(&f.PizzeriaAddressField, "pizzeria-addresses-address")
	def(&f.PizzeriaLongitudeField, "pizzeria-addresses-longitude")
	def(&f.PizzeriaLatitudeField, "pizzeria-addresses-latitude")
	def(&f.DeliverymanChatIDField, "pizzeria-addresses-deliveryman-telegram-chat-id")
}
