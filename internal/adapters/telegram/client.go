package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// Жесткий потолок Bot API на длину текстового сообщения.
const maxMessageLength = 4096

// Нижняя граница темпа исходящих запросов к Bot API: не чаще одного
// сообщения в секунду на чат. Поверх нее диспетчер добавляет свои
// нарастающие паузы.
const requestsPerSecond = 1

// TelegramAdapter отправляет уведомления через Telegram Bot API.
// SDK не используется: нужны три метода API и точный доступ к полю
// retry_after в ответе 429, который клиентские обертки прячут.
type TelegramAdapter struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
	chatID     string
}

// NewTelegramAdapter создает клиент Bot API.
// apiBase переопределяется только в тестах; пустая строка дает боевой
// https://api.telegram.org.
func NewTelegramAdapter(botToken, chatID, apiBase string, timeout time.Duration) (*TelegramAdapter, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram adapter: bot token and chat id are required")
	}
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TelegramAdapter{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		apiBase:    apiBase + "/bot" + botToken,
		chatID:     chatID,
	}, nil
}

// MaxTextLength возвращает лимит длины одного сообщения.
func (a *TelegramAdapter) MaxTextLength() int {
	return maxMessageLength
}

// SendText отправляет текстовое сообщение в сконфигурированный чат.
func (a *TelegramAdapter) SendText(ctx context.Context, text string, opts port.SendOptions) error {
	payload := map[string]any{
		"chat_id": a.chatID,
		"text":    text,
	}
	if opts.ParseMode != "" {
		payload["parse_mode"] = opts.ParseMode
	}
	if opts.DisableLinkPreview {
		payload["disable_web_page_preview"] = true
	}
	return a.call(ctx, "sendMessage", payload)
}

// SendPhoto отправляет одно фото по URL с подписью.
func (a *TelegramAdapter) SendPhoto(ctx context.Context, photoURL, caption string) error {
	return a.call(ctx, "sendPhoto", map[string]any{
		"chat_id": a.chatID,
		"photo":   photoURL,
		"caption": caption,
	})
}

// SendPhotoGroup отправляет альбом фотографий; подпись несет только
// первый элемент, так ее показывает клиент Telegram.
func (a *TelegramAdapter) SendPhotoGroup(ctx context.Context, photoURLs []string, caption string) error {
	if len(photoURLs) == 0 {
		return nil
	}
	// Bot API принимает в альбоме от 2 до 10 элементов.
	if len(photoURLs) == 1 {
		return a.SendPhoto(ctx, photoURLs[0], caption)
	}
	if len(photoURLs) > 10 {
		photoURLs = photoURLs[:10]
	}

	media := make([]map[string]any, 0, len(photoURLs))
	for i, u := range photoURLs {
		item := map[string]any{"type": "photo", "media": u}
		if i == 0 && caption != "" {
			item["caption"] = caption
		}
		media = append(media, item)
	}
	return a.call(ctx, "sendMediaGroup", map[string]any{
		"chat_id": a.chatID,
		"media":   media,
	})
}

// apiResponse – общий конверт ответа Bot API; из него нужны только
// статус и параметр retry_after при троттлинге.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (a *TelegramAdapter) call(ctx context.Context, method string, payload map[string]any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram adapter: rate limiter wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram adapter: failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram adapter: failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram adapter: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram adapter: failed to read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram adapter: unreadable %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if parsed.OK {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || parsed.ErrorCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(parsed.Parameters.RetryAfter) * time.Second
		log.Printf("TelegramAdapter: throttled on %s, retry_after=%s\n", method, retryAfter)
		return &port.ThrottledError{RetryAfter: retryAfter}
	}
	return fmt.Errorf("telegram adapter: %s rejected (code %d): %s", method, parsed.ErrorCode, parsed.Description)
}
