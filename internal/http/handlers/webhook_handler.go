// Package handlers – webhook endpoint.
//
// Receives Evolution API event callbacks, normalizes messages.upsert events
// into bot messages, and dispatches them to the router. The gateway retries
// undelivered callbacks, so the handler answers 200 for everything it can
// parse and dedups message ids; only a malformed body gets a 4xx.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/paresiga/go-traffic-backend/internal/bot"
	"github.com/paresiga/go-traffic-backend/internal/http/middleware"
	"github.com/paresiga/go-traffic-backend/internal/store"
)

const eventMessagesUpsert = "messages.upsert"

// webhookEvent mirrors the subset of the Evolution callback payload we read.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
		} `json:"message"`
	} `json:"data"`
}

func (e *webhookEvent) text() string {
	if t := strings.TrimSpace(e.Data.Message.Conversation); t != "" {
		return t
	}
	return strings.TrimSpace(e.Data.Message.ExtendedTextMessage.Text)
}

func (e *webhookEvent) sender() string {
	if e.Data.PushName != "" {
		return e.Data.PushName
	}
	return "Usuário"
}

// WebhookHandler bridges gateway callbacks to the bot router.
type WebhookHandler struct {
	Router   *bot.Router
	Notifier bot.Notifier
	Store    *store.Store

	// GroupID is the only chat the bot listens to.
	GroupID string
}

// Handle is POST /webhook.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var ev webhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}

	// Ack everything below here: the gateway must not redeliver.
	defer ok(c, http.StatusOK, gin.H{"status": true})

	if ev.Event != eventMessagesUpsert || ev.Data.Key.FromMe {
		return
	}
	if ev.Data.Key.RemoteJid != h.GroupID {
		return
	}
	text := ev.text()
	if text == "" {
		return
	}
	if id := ev.Data.Key.ID; id != "" && !h.Store.MarkSeen(id) {
		middleware.LoggerFrom(c).Debug().Msg("duplicate webhook delivery dropped")
		return
	}

	reply := h.Router.HandleMessage(c.Request.Context(), bot.Message{
		Text:   text,
		Sender: ev.sender(),
	})
	if reply == "" {
		return
	}
	if err := h.Notifier.Notify(c.Request.Context(), h.GroupID, reply); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("reply delivery failed")
	}
}
