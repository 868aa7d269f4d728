package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

// NewBot constructs a telebot instance from the configured run mode.
func NewBot(cfg *config.Config) (*tele.Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(cfg),
		Client: BuildHTTPClient(),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", err.Error())}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, slog.Int64("chat_id", c.Chat().ID))
			}
			logger.Error(context.Background(), "tg", "tg.handler", attrs...)
		},
	}
	return tele.NewBot(pref)
}

// Route attaches middleware and update handlers feeding the state machine.
func Route(tb *tele.Bot, machine *bot.Machine, cfg *config.Config) {
	tb.Use(RecoverMiddleware, LoggerMiddleware, RateLimitMiddleware(cfg.RateLimit))

	tb.Handle("/start", func(c tele.Context) error {
		machine.Dispatch(updateCtx(c), textEvent(c))
		return nil
	})

	tb.Handle(tele.OnText, func(c tele.Context) error {
		machine.Dispatch(updateCtx(c), textEvent(c))
		return nil
	})

	tb.Handle(tele.OnCallback, func(c tele.Context) error {
		ev := baseEvent(c)
		ev.Kind = bot.EventCallback
		ev.Text = strings.TrimSpace(strings.TrimPrefix(c.Callback().Data, "\f"))
		machine.Dispatch(updateCtx(c), ev)
		return c.Respond(&tele.CallbackResponse{})
	})

	tb.Handle(tele.OnLocation, func(c tele.Context) error {
		loc := c.Message().Location
		ev := baseEvent(c)
		ev.Kind = bot.EventLocation
		ev.Location = bot.Location{Lat: float64(loc.Lat), Lon: float64(loc.Lng)}
		machine.Dispatch(updateCtx(c), ev)
		return nil
	})

	// Pre-checkout confirms only invoices this process issued. A payload we
	// do not recognize means the cart context is gone, so the charge is
	// declined instead of fulfilled blindly.
	tb.Handle(tele.OnCheckout, func(c tele.Context) error {
		q := c.PreCheckoutQuery()
		chatID := strconv.FormatInt(q.Sender.ID, 10)
		order, ok := machine.PendingOrder(chatID)
		if !ok || order.Payload != q.Payload {
			logger.Warn(updateCtx(c), "tg", "checkout.reject",
				slog.String("chat_id", chatID),
			)
			return c.Accept("Заказ устарел, пожалуйста, соберите корзину заново: /start")
		}
		return c.Accept()
	})

	tb.Handle(tele.OnPayment, func(c tele.Context) error {
		ev := baseEvent(c)
		ev.Kind = bot.EventPayment
		machine.Dispatch(updateCtx(c), ev)
		return nil
	})
}

func baseEvent(c tele.Context) bot.Event {
	ev := bot.Event{}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = strconv.FormatInt(chat.ID, 10)
	}
	if user := c.Sender(); user != nil {
		ev.Username = user.Username
		if ev.ChatID == "" {
			ev.ChatID = strconv.FormatInt(user.ID, 10)
		}
	}
	return ev
}

func textEvent(c tele.Context) bot.Event {
	ev := baseEvent(c)
	ev.Kind = bot.EventText
	ev.Text = c.Text()
	return ev
}

func updateCtx(c tele.Context) context.Context {
	ctx := context.Background()
	if rid, ok := c.Get("rid").(string); ok && rid != "" {
		ctx = logger.WithRID(ctx, rid)
	}
	return ctx
}
