package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

const linkButtonText = "Перейти к проекту"

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramNotifier returns a notifier for the bot identified by token.
// An empty apiURL uses DefaultTelegramAPI.
func NewTelegramNotifier(apiURL, token string, httpClient *http.Client, logger *slog.Logger) *TelegramNotifier {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramNotifier{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Deliver sends text as HTML with a single link button. A 429 response is
// retried once after the advertised retry_after.
func (t *TelegramNotifier) Deliver(ctx context.Context, chatID, text, link string) error {
	body, err := json.Marshal(buildMessage(chatID, text, link))
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	retryAfter, err := t.send(ctx, body)
	if err == nil {
		return nil
	}
	if retryAfter <= 0 {
		return err
	}

	t.logger.Warn("telegram rate limited, retrying", "chat_id", chatID, "retry_after", retryAfter.String())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryAfter):
	}

	if _, err := t.send(ctx, body); err != nil {
		return fmt.Errorf("telegram retry: %w", err)
	}
	return nil
}

// send posts one sendMessage call. It returns the retry delay when the API
// answered 429.
func (t *TelegramNotifier) send(ctx context.Context, body []byte) (time.Duration, error) {
	url := t.apiURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		return 0, fmt.Errorf("post to telegram: %w", redact(err, t.token))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var result telegramResponse
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode == http.StatusOK && result.OK {
		return 0, nil
	}

	apiErr := &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("telegram: %s", result.Description)}
	if resp.StatusCode == http.StatusTooManyRequests {
		secs := 1
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			secs = result.Parameters.RetryAfter
		}
		apiErr.RetryAfter = time.Duration(secs) * time.Second
		return apiErr.RetryAfter, apiErr
	}
	return 0, apiErr
}

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), secret, "<token>"))
}

// Bot API payload types.

type telegramMessage struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func buildMessage(chatID, text, link string) telegramMessage {
	msg := telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"}
	if link != "" {
		msg.ReplyMarkup = &inlineKeyboard{
			InlineKeyboard: [][]inlineButton{{{Text: linkButtonText, URL: link}}},
		}
	}
	return msg
}

// SendTestMessage renders a sample posting and delivers it to chatID to
// verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier, chatID string) error {
	lo, hi, cur := 5000.0, 15000.0, "₽"
	sample := model.Posting{
		ID:          "test-001",
		Source:      model.SourceKwork,
		Title:       "Тестовое уведомление",
		Description: "Интеграция работает: это сообщение отправлено командой notify test.",
		URL:         "https://kwork.ru/projects",
		Budget:      model.Budget{Minimum: &lo, Maximum: &hi, Currency: &cur},
	}
	return n.Deliver(ctx, chatID, Render(sample), sample.URL)
}
