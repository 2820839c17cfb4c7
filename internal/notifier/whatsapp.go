package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const whatsAppAPIBase = "https://graph.facebook.com/v19.0"

// WhatsApp posts offers through the Cloud API with a bearer token. Image
// messages carry the text as caption; text-only falls back to a plain
// text message.
type WhatsApp struct {
	baseURL   string
	token     string
	phoneID   string
	recipient string
	client    *http.Client
}

func NewWhatsApp(token, phoneID, recipient string) *WhatsApp {
	return &WhatsApp{
		baseURL:   whatsAppAPIBase,
		token:     token,
		phoneID:   phoneID,
		recipient: recipient,
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

type whatsAppMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *whatsAppText  `json:"text,omitempty"`
	Image            *whatsAppImage `json:"image,omitempty"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

func (w *WhatsApp) Send(ctx context.Context, text, imageURL string) error {
	msg := whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               w.recipient,
	}
	if imageURL != "" {
		msg.Type = "image"
		msg.Image = &whatsAppImage{Link: imageURL, Caption: text}
	} else {
		msg.Type = "text"
		msg.Text = &whatsAppText{Body: text}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
