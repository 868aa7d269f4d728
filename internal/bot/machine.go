package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/store"
)

const apologyText = "Что-то пошло не так, попробуйте еще раз чуть позже"

// Options wires a Machine to its collaborators.
type Options struct {
	Store     store.Store
	Commerce  Commerce
	Geocoder  Geocoder
	Messenger Messenger
	Menu      config.MenuConfig
	Flows     config.FlowsConfig
	Payments  config.PaymentsConfig
	// MenuRenderer overrides the keyboard menu with a platform-specific
	// rendering, e.g. the Messenger carousel. Nil keeps the default.
	MenuRenderer func(ctx context.Context, chatID string, page int) error
}

// Machine drives one platform's conversations. Each front end owns its own
// Machine instance bound to that platform's Messenger.
type Machine struct {
	store      store.Store
	commerce   Commerce
	geocoder   Geocoder
	msgr       Messenger
	menu       config.MenuConfig
	flows      config.FlowsConfig
	payments   config.PaymentsConfig
	renderMenu func(ctx context.Context, chatID string, page int) error
	sessions   *Sessions
	followups  *FollowUps
}

// NewMachine constructs a conversation state machine.
func NewMachine(opts Options) *Machine {
	return &Machine{
		store:      opts.Store,
		commerce:   opts.Commerce,
		geocoder:   opts.Geocoder,
		msgr:       opts.Messenger,
		menu:       opts.Menu,
		flows:      opts.Flows,
		payments:   opts.Payments,
		renderMenu: opts.MenuRenderer,
		sessions:   NewSessions(),
		followups:  NewFollowUps(opts.Messenger),
	}
}

// Close disarms pending follow-up timers.
func (m *Machine) Close() {
	m.followups.Stop()
}

// PendingOrder returns the in-flight order for a chat, used by the
// pre-checkout hook to accept or reject a payment.
func (m *Machine) PendingOrder(chatID string) (Order, bool) {
	sess := m.sessions.Get(chatID)
	if sess.Order == nil {
		return Order{}, false
	}
	return *sess.Order, true
}

// Dispatch routes one incoming event through the current conversation state
// and persists the resulting state. Handler errors are reported to the user
// and leave the state unchanged.
func (m *Machine) Dispatch(ctx context.Context, ev Event) {
	ctx = logger.WithChatID(ctx, ev.ChatID)
	current := m.currentState(ctx, ev.ChatID)

	// /start always restarts the conversation, whatever the state. A restart
	// drops the checkout scratch data and disarms a pending follow-up.
	if ev.Kind == EventText && strings.TrimSpace(ev.Text) == "/start" {
		m.sessions.Reset(ev.ChatID)
		m.followups.Cancel(ev.ChatID)
		current = Start
	}

	next, err := m.handle(ctx, current, ev)
	if err != nil {
		logger.Error(ctx, "bot.fsm", "dispatch",
			slog.String("state", string(current)),
			slog.String("err", err.Error()),
		)
		if sendErr := m.msgr.SendText(ctx, ev.ChatID, apologyText, nil); sendErr != nil {
			logger.Error(ctx, "bot.fsm", "apology.send", slog.String("err", sendErr.Error()))
		}
		next = current
	}

	if next != current {
		logger.Debug(ctx, "bot.fsm", "transition",
			slog.String("from", string(current)),
			slog.String("to", string(next)),
		)
	}
	if err := m.store.SetState(ctx, ev.ChatID, string(next)); err != nil {
		logger.Error(ctx, "bot.fsm", "state.save", slog.String("err", err.Error()))
	}
}

func (m *Machine) currentState(ctx context.Context, chatID string) State {
	raw, err := m.store.State(ctx, chatID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn(ctx, "bot.fsm", "state.load", slog.String("err", err.Error()))
		}
		return Start
	}
	return ParseState(raw)
}

func (m *Machine) handle(ctx context.Context, current State, ev Event) (State, error) {
	switch current {
	case Start:
		return m.handleStart(ctx, ev)
	case HandleMenu:
		return m.handleMenu(ctx, ev)
	case HandleDescription:
		return m.handleDescription(ctx, ev)
	case HandleCart:
		return m.handleCart(ctx, ev)
	case WaitingEmail:
		return m.handleWaitingEmail(ctx, ev)
	case WaitingGeo:
		return m.handleWaitingGeo(ctx, ev)
	case WaitingDeliveryType:
		return m.handleWaitingDeliveryType(ctx, ev)
	case WaitingPayment:
		return m.handleWaitingPayment(ctx, ev)
	}
	return m.handleStart(ctx, ev)
}
