// Command bot runs the Telegram pizza ordering bot.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KirillYabl/TgPizzaBot/internal/app"
	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func run() error {
	infra, err := app.Bootstrap()
	if err != nil {
		return err
	}
	defer infra.Close()
	cfg := infra.Config

	tb, err := telegram.NewBot(cfg)
	if err != nil {
		return err
	}

	machine := bot.NewMachine(bot.Options{
		Store:     infra.Store,
		Commerce:  infra.Commerce,
		Geocoder:  infra.Geocoder,
		Messenger: telegram.NewMessenger(tb, cfg.Payments.ProviderToken),
		Menu:      cfg.Menu,
		Flows:     cfg.Flows,
		Payments:  cfg.Payments,
	})
	defer machine.Close()

	telegram.Route(tb, machine, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		tb.Stop()
	}()

	logger.Info(ctx, "tg", "ready")
	tb.Start()
	return nil
}
