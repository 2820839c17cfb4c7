package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- Fanout ---

type fakeDispatcher struct {
	name  string
	err   error
	calls int
}

func (f *fakeDispatcher) Name() string { return f.name }

func (f *fakeDispatcher) Send(_ context.Context, _, _ string) error {
	f.calls++
	return f.err
}

func TestFanout_AllSucceed(t *testing.T) {
	a := &fakeDispatcher{name: "a"}
	b := &fakeDispatcher{name: "b"}

	delivered, err := Fanout(context.Background(), []Dispatcher{a, b}, "msg", "")
	if err != nil {
		t.Fatalf("Fanout() error = %v", err)
	}
	if len(delivered) != 2 {
		t.Errorf("Expected 2 delivered channels, got %v", delivered)
	}
}

func TestFanout_OneFailureDoesNotStopOthers(t *testing.T) {
	a := &fakeDispatcher{name: "a", err: errors.New("token expired")}
	b := &fakeDispatcher{name: "b"}
	c := &fakeDispatcher{name: "c"}

	delivered, err := Fanout(context.Background(), []Dispatcher{a, b, c}, "msg", "")
	if err != nil {
		t.Fatalf("Fanout() should succeed when any channel delivers, got %v", err)
	}
	if b.calls != 1 || c.calls != 1 {
		t.Error("Channels after a failing one must still be attempted")
	}
	if len(delivered) != 2 || delivered[0] != "b" || delivered[1] != "c" {
		t.Errorf("Expected delivered [b c], got %v", delivered)
	}
}

func TestFanout_AllFail(t *testing.T) {
	a := &fakeDispatcher{name: "a", err: errors.New("boom")}
	b := &fakeDispatcher{name: "b", err: errors.New("bang")}

	_, err := Fanout(context.Background(), []Dispatcher{a, b}, "msg", "")
	if err == nil {
		t.Fatal("Fanout() should fail when every channel fails")
	}
	if !strings.Contains(err.Error(), "a:") || !strings.Contains(err.Error(), "b:") {
		t.Errorf("Error should name every failed channel, got %v", err)
	}
}

func TestFanout_NoChannels(t *testing.T) {
	if _, err := Fanout(context.Background(), nil, "msg", ""); err == nil {
		t.Error("Fanout() with no channels should fail")
	}
}

// --- Telegram ---

func newTestTelegram(serverURL string) *Telegram {
	return &Telegram{
		baseURL:  serverURL,
		botToken: "test-token",
		chatID:   "-100555",
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestTelegram_SendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("Invalid JSON payload: %v", err)
		}
		if payload["chat_id"] != "-100555" {
			t.Errorf("Expected chat_id -100555, got %v", payload["chat_id"])
		}
		if payload["text"] != "hello offer" {
			t.Errorf("Expected text 'hello offer', got %v", payload["text"])
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	if err := tg.Send(context.Background(), "hello offer", ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestTelegram_SendPhotoWithCaption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendPhoto" {
			t.Errorf("Expected sendPhoto for image messages, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)
		if payload["photo"] != "https://img/1.webp" {
			t.Errorf("Expected photo URL, got %v", payload["photo"])
		}
		if payload["caption"] != "offer text" {
			t.Errorf("Expected caption, got %v", payload["caption"])
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	if err := tg.Send(context.Background(), "offer text", "https://img/1.webp"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestTelegram_APIRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	err := tg.Send(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("Send() should surface ok=false responses")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Error should include API description, got %v", err)
	}
}

func TestTelegram_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	if err := tg.Send(context.Background(), "hello", ""); err == nil {
		t.Error("Send() should fail on non-2xx status")
	}
}

// --- WhatsApp ---

func newTestWhatsApp(serverURL string) *WhatsApp {
	return &WhatsApp{
		baseURL:   serverURL,
		token:     "wa-token",
		phoneID:   "12345",
		recipient: "5511999998888",
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestWhatsApp_SendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/messages" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer wa-token" {
			t.Errorf("Expected bearer token header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var msg whatsAppMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Fatalf("Invalid payload: %v", err)
		}
		if msg.MessagingProduct != "whatsapp" || msg.Type != "text" {
			t.Errorf("Unexpected payload shape: %+v", msg)
		}
		if msg.To != "5511999998888" {
			t.Errorf("Expected recipient, got %s", msg.To)
		}
		if msg.Text == nil || msg.Text.Body != "offer text" {
			t.Errorf("Expected text body, got %+v", msg.Text)
		}
		w.Write([]byte(`{"messages": [{"id": "wamid.1"}]}`))
	}))
	defer server.Close()

	wa := newTestWhatsApp(server.URL)
	if err := wa.Send(context.Background(), "offer text", ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestWhatsApp_SendImageWithCaption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg whatsAppMessage
		json.Unmarshal(body, &msg)
		if msg.Type != "image" {
			t.Errorf("Expected image message, got %s", msg.Type)
		}
		if msg.Image == nil || msg.Image.Link != "https://img/1.webp" || msg.Image.Caption != "offer text" {
			t.Errorf("Unexpected image payload: %+v", msg.Image)
		}
		if msg.Text != nil {
			t.Error("Image messages must not carry a text block")
		}
		w.Write([]byte(`{"messages": [{"id": "wamid.2"}]}`))
	}))
	defer server.Close()

	wa := newTestWhatsApp(server.URL)
	if err := wa.Send(context.Background(), "offer text", "https://img/1.webp"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestWhatsApp_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid token"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	wa := newTestWhatsApp(server.URL)
	err := wa.Send(context.Background(), "offer", "")
	if err == nil {
		t.Fatal("Send() should fail on non-2xx status")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("Error should include status code, got %v", err)
	}
}

// --- DryRun ---

func TestDryRun_NeverFails(t *testing.T) {
	d := DryRun{}
	if err := d.Send(context.Background(), "line1\nline2", "https://img"); err != nil {
		t.Errorf("DryRun.Send() error = %v", err)
	}
}
