package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/config"
	"github.com/dveiga/dealerflow/internal/metrics"
	"github.com/dveiga/dealerflow/internal/middleware"
	"github.com/dveiga/dealerflow/internal/service"
	"github.com/dveiga/dealerflow/internal/webhook"
)

// MessageProcessor handles inbound messages from the webhook channel.
type MessageProcessor interface {
	ProcessInboundMessage(ctx context.Context, msg service.InboundMessage) service.ProcessResult
}

// WebhookHandler handles the WhatsApp Cloud API webhook endpoints.
type WebhookHandler struct {
	processor   MessageProcessor
	verifyToken string
	appSecret   string
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// WebhookHandlerConfig holds configuration for WebhookHandler.
type WebhookHandlerConfig struct {
	Processor MessageProcessor
	WhatsApp  *config.WhatsAppConfig
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// NewWebhookHandler creates a new WebhookHandler with all required dependencies.
func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &WebhookHandler{
		processor:   cfg.Processor,
		verifyToken: cfg.WhatsApp.VerifyToken,
		appSecret:   cfg.WhatsApp.AppSecret,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// RegisterRoutes registers webhook routes on the router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook/whatsapp", h.HandleVerification)
	r.With(middleware.BodySizeLimiterWebhook()).Post("/webhook/whatsapp", h.HandleDelivery)
}

// HandleVerification answers the Cloud API subscription handshake: the
// hub.challenge is echoed back only when the verify token matches.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && challenge != "" {
		h.logger.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
	h.metrics.RecordWebhook("invalid_verification")
	w.WriteHeader(http.StatusForbidden)
}

// HandleDelivery processes an inbound webhook delivery. Per the Cloud
// API contract the platform always gets a 200 once the delivery is
// authentic; processing failures are logged and absorbed so the
// platform does not retry messages we already attempted.
func (h *WebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		h.metrics.RecordWebhook("malformed")
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.validSignature(r, body) {
		h.logger.Warn("webhook signature validation failed",
			zap.String("correlation_id", middleware.CorrelationID(r.Context())),
		)
		h.metrics.RecordWebhook("invalid_signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload webhook.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		h.metrics.RecordWebhook("malformed")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.metrics.RecordWebhook("ok")

	for _, msg := range payload.TextMessages() {
		result := h.processor.ProcessInboundMessage(r.Context(), service.InboundMessage{
			Phone:       msg.From,
			Body:        msg.Body,
			ProfileName: msg.ProfileName,
			MessageID:   msg.MessageID,
		})
		if !result.Success {
			h.logger.Error("message processing failed",
				zap.String("message_id", msg.MessageID),
				zap.String("error", result.Error),
			)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// validSignature checks the X-Hub-Signature-256 header against the
// configured app secret. With no secret configured validation is
// skipped.
func (h *WebhookHandler) validSignature(r *http.Request, body []byte) bool {
	if h.appSecret == "" {
		return true
	}

	header := r.Header.Get("X-Hub-Signature-256")
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, "sha256=")))
}
