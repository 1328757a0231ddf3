package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/turnoslabs/turnosbot/internal/messaging"
	"github.com/turnoslabs/turnosbot/internal/observability/metrics"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// Dialogue is the conversation engine seen from the webhook.
type Dialogue interface {
	HandleMessage(ctx context.Context, phone, text string) string
}

// WebhookHandler receives WhatsApp Cloud API callbacks and replies through
// the conversation engine.
type WebhookHandler struct {
	verifyToken string
	dialogue    Dialogue
	sender      messaging.Sender
	logger      *logging.Logger
	metrics     *metrics.BotMetrics
}

func NewWebhookHandler(verifyToken string, dialogue Dialogue, sender messaging.Sender, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		dialogue:    dialogue,
		sender:      sender,
		logger:      logger,
	}
}

func (h *WebhookHandler) WithMetrics(m *metrics.BotMetrics) *WebhookHandler {
	h.metrics = m
	return h
}

// Verify answers Meta's webhook subscription handshake.
// GET /webhook
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")
	if token != h.verifyToken {
		h.logger.Error("webhook verification failed", "token", token)
		http.Error(w, "Token incorrecto", http.StatusForbidden)
		return
	}
	h.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// webhookEnvelope is the slice of the Cloud API callback we consume.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive processes inbound messages. Malformed or non-message payloads
// are acknowledged with 200 so Meta does not retry them forever.
// POST /webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Error("webhook decode failed", "error", err)
		h.metrics.ObserveInbound("message", "malformed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				if msg.From == "" || msg.Text.Body == "" {
					h.metrics.ObserveInbound("message", "skipped")
					continue
				}
				reply := h.dialogue.HandleMessage(r.Context(), msg.From, msg.Text.Body)
				if reply == "" {
					continue
				}
				if err := h.sender.Send(r.Context(), msg.From, reply); err != nil {
					h.logger.Error("reply send failed", "error", err, "phone", msg.From)
					h.metrics.ObserveInbound("message", "send_failed")
					continue
				}
				h.metrics.ObserveInbound("message", "ok")
			}
		}
	}

	h.metrics.ObserveWebhookLatency("message", time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
