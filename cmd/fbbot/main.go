// Command fbbot runs the Facebook Messenger pizza ordering webhook.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KirillYabl/TgPizzaBot/internal/app"
	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/fb"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fbbot: %v", err)
	}
}

func run() error {
	infra, err := app.Bootstrap()
	if err != nil {
		return err
	}
	defer infra.Close()
	cfg := infra.Config

	client := fb.NewClient(fb.ClientOptions{PageAccessToken: cfg.Facebook.PageAccessToken})
	menu := fb.NewMenu(infra.Store, infra.Commerce, client, cfg.Menu, cfg.Facebook.MainCategoryID)

	machine := bot.NewMachine(bot.Options{
		Store:        infra.Store,
		Commerce:     infra.Commerce,
		Geocoder:     infra.Geocoder,
		Messenger:    fb.NewMessenger(client),
		Menu:         cfg.Menu,
		Flows:        cfg.Flows,
		Payments:     cfg.Payments,
		MenuRenderer: menu.Renderer(),
	})
	defer machine.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Warm the carousel cache so the first user never waits on the catalog.
	if err := menu.Refresh(ctx); err != nil {
		logger.Warn(ctx, "fb", "menu.warmup", slog.String("err", err.Error()))
	}

	webhook := fb.NewWebhook(machine, menu, cfg.Facebook.VerifyToken, cfg.Moltin.ClientSecret)
	return fb.Run(ctx, cfg.Facebook, webhook.Router())
}
