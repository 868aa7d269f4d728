package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

const followUpDelay = time.Hour

const followUpText = "Приятного аппетита! *место для рекламы*\n\n" +
	"*сообщение что делать если пицца не пришла*"

// FollowUps sends a delayed message after a paid order. One timer per chat,
// a newer order supersedes the previous timer.
type FollowUps struct {
	msgr  Messenger
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewFollowUps builds a scheduler with the standard one hour delay.
func NewFollowUps(msgr Messenger) *FollowUps {
	return &FollowUps{
		msgr:   msgr,
		delay:  followUpDelay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the follow-up timer for a chat.
func (f *FollowUps) Schedule(chatID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[chatID]; ok {
		t.Stop()
	}
	f.timers[chatID] = time.AfterFunc(f.delay, func() {
		f.fire(chatID)
	})
}

func (f *FollowUps) fire(chatID string) {
	f.mu.Lock()
	delete(f.timers, chatID)
	f.mu.Unlock()

	ctx := logger.WithChatID(context.Background(), chatID)
	if err := f.msgr.SendText(ctx, chatID, followUpText, nil); err != nil {
		logger.Error(ctx, "bot.fsm", "followup.send",
			slog.String("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "bot.fsm", "followup.sent", slog.String("chat_id", chatID))
}

// Cancel disarms the timer for a chat, if any.
func (f *FollowUps) Cancel(chatID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[chatID]; ok {
		t.Stop()
		delete(f.timers, chatID)
	}
}

// Stop disarms every timer. Used on shutdown.
func (f *FollowUps) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.timers {
		t.Stop()
		delete(f.timers, id)
	}
}
