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

const telegramAPIBase = "https://api.telegram.org"

// Telegram posts offers to a chat through the Bot API. Messages with a
// thumbnail go out as sendPhoto with the text as caption.
type Telegram struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		baseURL:  telegramAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, text, imageURL string) error {
	if imageURL != "" {
		return t.post(ctx, "sendPhoto", map[string]any{
			"chat_id": t.chatID,
			"photo":   imageURL,
			"caption": text,
		})
	}
	return t.post(ctx, "sendMessage", map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": false,
	})
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) post(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s status %d: %s", method, resp.StatusCode, string(respBody))
	}

	var parsed telegramResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode telegram %s response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram %s rejected: %s", method, parsed.Description)
	}
	return nil
}
