// Package messaging sends outbound WhatsApp messages via the Cloud API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/config"
	apperrors "github.com/dveiga/dealerflow/internal/errors"
)

// Gateway abstracts the outbound message channel.
type Gateway interface {
	// Send delivers a text message to a phone number.
	Send(ctx context.Context, phone, text string) error
}

// WhatsAppGateway implements Gateway against the WhatsApp Cloud API.
type WhatsAppGateway struct {
	client        *http.Client
	apiURL        string
	accessToken   string
	phoneNumberID string
	logger        *zap.Logger
}

// NewWhatsAppGateway creates a gateway from WhatsApp configuration.
func NewWhatsAppGateway(cfg *config.WhatsAppConfig, logger *zap.Logger) *WhatsAppGateway {
	return &WhatsAppGateway{
		client:        &http.Client{Timeout: 15 * time.Second},
		apiURL:        cfg.APIURL,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		logger:        logger,
	}
}

// textMessageRequest is the Cloud API payload for a plain text message.
type textMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// Send delivers a text message through the Cloud API.
// Delivery is fire-and-forget at the business level: callers log and
// continue on failure, there is no retry here.
func (g *WhatsAppGateway) Send(ctx context.Context, phone, text string) error {
	const op = "messaging.Send"

	payload := textMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             textPayload{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternal(op, err)
	}

	url := fmt.Sprintf("%s/%s/messages", g.apiURL, g.phoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternal(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.NewGateway(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a bounded slice of the response for diagnostics.
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		g.logger.Warn("whatsapp send rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return apperrors.NewGateway(op,
			fmt.Errorf("whatsapp api returned status %d", resp.StatusCode))
	}

	g.logger.Debug("whatsapp message sent", zap.String("to", phone))
	return nil
}
