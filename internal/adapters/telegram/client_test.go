package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

type recordedCall struct {
	method  string
	payload map[string]any
}

// botAPIServer эмулирует Bot API: записывает вызовы и отвечает заранее
// заданным статусом.
func botAPIServer(t *testing.T, status int, response string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		calls = append(calls, recordedCall{method: r.URL.Path, payload: payload})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	return server, &calls
}

func newClientForTest(t *testing.T, apiBase string) *TelegramAdapter {
	t.Helper()
	adapter, err := NewTelegramAdapter("test-token", "42", apiBase, 5*time.Second)
	if err != nil {
		t.Fatalf("NewTelegramAdapter: %v", err)
	}
	return adapter
}

func TestSendText(t *testing.T) {
	server, calls := botAPIServer(t, http.StatusOK, `{"ok":true}`)
	defer server.Close()

	adapter := newClientForTest(t, server.URL)
	err := adapter.SendText(context.Background(), "hello", port.SendOptions{DisableLinkPreview: true})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("got %d API calls, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.method != "/bottest-token/sendMessage" {
		t.Errorf("method path = %q", call.method)
	}
	if call.payload["chat_id"] != "42" || call.payload["text"] != "hello" {
		t.Errorf("payload = %v", call.payload)
	}
	if call.payload["disable_web_page_preview"] != true {
		t.Errorf("disable_web_page_preview not set: %v", call.payload)
	}
}

func TestSendTextThrottled(t *testing.T) {
	server, _ := botAPIServer(t, http.StatusTooManyRequests,
		`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":7}}`)
	defer server.Close()

	adapter := newClientForTest(t, server.URL)
	err := adapter.SendText(context.Background(), "hello", port.SendOptions{})
	if err == nil {
		t.Fatal("SendText succeeded, want throttling error")
	}
	if !errors.Is(err, port.ErrThrottled) {
		t.Fatalf("error %v does not match ErrThrottled", err)
	}

	var throttled *port.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("error %v is not a *ThrottledError", err)
	}
	if throttled.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", throttled.RetryAfter)
	}
}

func TestSendTextAPIError(t *testing.T) {
	server, _ := botAPIServer(t, http.StatusBadRequest,
		`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	defer server.Close()

	adapter := newClientForTest(t, server.URL)
	err := adapter.SendText(context.Background(), "hello", port.SendOptions{})
	if err == nil {
		t.Fatal("SendText succeeded, want API error")
	}
	if errors.Is(err, port.ErrThrottled) {
		t.Error("plain API error must not look like throttling")
	}
}

func TestSendPhotoGroup(t *testing.T) {
	server, calls := botAPIServer(t, http.StatusOK, `{"ok":true}`)
	defer server.Close()

	adapter := newClientForTest(t, server.URL)
	urls := []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"}
	if err := adapter.SendPhotoGroup(context.Background(), urls, "caption"); err != nil {
		t.Fatalf("SendPhotoGroup: %v", err)
	}

	call := (*calls)[0]
	if call.method != "/bottest-token/sendMediaGroup" {
		t.Errorf("method path = %q", call.method)
	}
	media, ok := call.payload["media"].([]any)
	if !ok || len(media) != 2 {
		t.Fatalf("media payload = %v, want 2 items", call.payload["media"])
	}
	first := media[0].(map[string]any)
	if first["type"] != "photo" || first["caption"] != "caption" {
		t.Errorf("first media item = %v, want photo with caption", first)
	}
	second := media[1].(map[string]any)
	if _, hasCaption := second["caption"]; hasCaption {
		t.Errorf("second media item carries a caption: %v", second)
	}
}

func TestSendPhotoGroupWithSingleImageFallsBackToSendPhoto(t *testing.T) {
	server, calls := botAPIServer(t, http.StatusOK, `{"ok":true}`)
	defer server.Close()

	adapter := newClientForTest(t, server.URL)
	if err := adapter.SendPhotoGroup(context.Background(), []string{"https://img.example.com/a.jpg"}, "c"); err != nil {
		t.Fatalf("SendPhotoGroup: %v", err)
	}
	if (*calls)[0].method != "/bottest-token/sendPhoto" {
		t.Errorf("method path = %q, want sendPhoto for a single image", (*calls)[0].method)
	}
}

func TestMaxTextLength(t *testing.T) {
	adapter := newClientForTest(t, "http://localhost:0")
	if got := adapter.MaxTextLength(); got != 4096 {
		t.Errorf("MaxTextLength = %d, want 4096", got)
	}
}

func TestNewTelegramAdapterValidation(t *testing.T) {
	if _, err := NewTelegramAdapter("", "42", "", 0); err == nil {
		t.Error("empty token accepted")
	}
	if _, err := NewTelegramAdapter("token", "", "", 0); err == nil {
		t.Error("empty chat id accepted")
	}
}
