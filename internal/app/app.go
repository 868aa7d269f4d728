// Package app is the shared bootstrap pipeline: env, config, logger, store
// and the upstream clients used by every binary.
package app

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/database"
	"github.com/KirillYabl/TgPizzaBot/internal/geo"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
	"github.com/KirillYabl/TgPizzaBot/internal/store"
)

// Infra bundles everything a binary needs after bootstrap.
type Infra struct {
	Config   *config.Config
	Store    store.Store
	Commerce *moltin.Client
	Geocoder *geo.Geocoder
}

// LoadConfig reads .env when present, then the optional YAML file named by
// CONFIG_PATH, then the environment.
func LoadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(os.Getenv("CONFIG_PATH"))
}

// Bootstrap initializes the logger, the conversation store and the upstream
// clients.
func Bootstrap() (*Infra, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var st store.Store
	switch cfg.Store.Driver {
	case config.StorePostgres:
		if err := database.RunMigrations(cfg.Store); err != nil {
			return nil, err
		}
		db, err := database.Connect(cfg.Store)
		if err != nil {
			return nil, err
		}
		st = store.NewPostgres(db)
	default:
		st = store.NewMemory()
	}

	return &Infra{
		Config: cfg,
		Store:  st,
		Commerce: moltin.NewClient(moltin.Options{
			ClientID:     cfg.Moltin.ClientID,
			ClientSecret: cfg.Moltin.ClientSecret,
			BaseURL:      cfg.Moltin.BaseURL,
		}),
		Geocoder: geo.NewGeocoder(geo.GeocoderOptions{
			APIKey:  cfg.Geo.APIKey,
			BaseURL: cfg.Geo.BaseURL,
		}),
	}, nil
}

// Close releases the store and flushes log sinks.
func (i *Infra) Close() {
	if i.Store != nil {
		_ = i.Store.Close()
	}
	_ = logger.Shutdown()
}
