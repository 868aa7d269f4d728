package fb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

// Webhook receives Messenger callbacks and commerce integration pings.
type Webhook struct {
	machine      *bot.Machine
	menu         *Menu
	verifyToken  string
	moltinSecret string
}

// NewWebhook wires the webhook to the state machine and the menu cache.
// moltinSecret authenticates catalog refresh calls from the commerce platform.
func NewWebhook(machine *bot.Machine, menu *Menu, verifyToken, moltinSecret string) *Webhook {
	return &Webhook{machine: machine, menu: menu, verifyToken: verifyToken, moltinSecret: moltinSecret}
}

// Router builds the gin engine with the verify handshake, the event intake
// and the catalog refresh hook.
func (w *Webhook) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", w.verify)
	r.POST("/", w.receive)
	r.POST("/moltin", w.refresh)
	return r
}

// verify answers the subscription handshake Facebook performs once when the
// webhook URL is registered.
func (w *Webhook) verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode != "subscribe" || token != w.verifyToken {
		logger.Warn(c.Request.Context(), "fb", "verify.reject", slog.String("mode", mode))
		c.String(http.StatusForbidden, "verification token mismatch")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

type inboundQuickReply struct {
	Payload string `json:"payload"`
}

type inboundMessage struct {
	Text       string             `json:"text"`
	QuickReply *inboundQuickReply `json:"quick_reply"`
}

type inboundPostback struct {
	Payload string `json:"payload"`
}

type envelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message  *inboundMessage  `json:"message"`
			Postback *inboundPostback `json:"postback"`
		} `json:"messaging"`
	} `json:"entry"`
}

func (w *Webhook) receive(c *gin.Context) {
	var env envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		logger.Warn(c.Request.Context(), "fb", "receive.parse", slog.String("err", err.Error()))
		c.String(http.StatusBadRequest, "bad envelope")
		return
	}
	if env.Object != "page" {
		c.String(http.StatusOK, "ok")
		return
	}

	ctx := c.Request.Context()
	for _, entry := range env.Entry {
		for _, msg := range entry.Messaging {
			ev, ok := normalize(msg.Sender.ID, msg.Message, msg.Postback)
			if !ok {
				continue
			}

			// Category switches stay inside the carousel and never touch
			// the conversation state.
			if ev.Kind == bot.EventCallback {
				if categoryID, isCategory := categoryFromPayload(ev.Text); isCategory {
					if err := w.menu.Send(ctx, ev.ChatID, categoryID); err != nil {
						logger.Error(ctx, "fb", "menu.send", slog.String("err", err.Error()))
					}
					continue
				}
			}

			w.machine.Dispatch(ctx, ev)
		}
	}
	c.String(http.StatusOK, "ok")
}

// refresh rebuilds the cached menu. The commerce platform calls it through
// the catalog integration whenever products or categories change; the
// integration payload carries the client secret, which gates the rebuild.
func (w *Webhook) refresh(c *gin.Context) {
	var body struct {
		Configuration struct {
			SecretKey string `json:"secret_key"`
		} `json:"configuration"`
	}
	if err := c.ShouldBindJSON(&body); err != nil ||
		w.moltinSecret == "" || body.Configuration.SecretKey != w.moltinSecret {
		logger.Warn(c.Request.Context(), "fb", "refresh.reject")
		c.String(http.StatusForbidden, "secret key mismatch")
		return
	}

	if err := w.menu.Refresh(c.Request.Context()); err != nil {
		logger.Error(c.Request.Context(), "fb", "menu.refresh", slog.String("err", err.Error()))
		c.String(http.StatusInternalServerError, "refresh failed")
		return
	}
	c.String(http.StatusOK, "ok")
}

func normalize(senderID string, message *inboundMessage, postback *inboundPostback) (bot.Event, bool) {
	ev := bot.Event{ChatID: ChatIDPrefix + senderID}
	switch {
	case postback != nil:
		ev.Kind = bot.EventCallback
		ev.Text = postback.Payload
	case message != nil && message.QuickReply != nil:
		ev.Kind = bot.EventCallback
		ev.Text = message.QuickReply.Payload
	case message != nil && message.Text != "":
		ev.Kind = bot.EventText
		ev.Text = message.Text
	default:
		return bot.Event{}, false
	}
	return ev, true
}

// Run serves the webhook until the context is cancelled.
func Run(ctx context.Context, cfg config.FacebookConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "fb", "webhook.listen", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
