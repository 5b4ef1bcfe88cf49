package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amishk599/gigradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTelegramNotifier_Deliver(t *testing.T) {
	var (
		path string
		msg  telegramMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &msg)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "123:abc", srv.Client(), discardLogger())
	if err := n.Deliver(context.Background(), "42", "<b>hi</b>", "https://kwork.ru/projects/9"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if msg.ChatID != "42" || msg.Text != "<b>hi</b>" || msg.ParseMode != "HTML" {
		t.Errorf("message = %+v", msg)
	}
	if msg.ReplyMarkup == nil || len(msg.ReplyMarkup.InlineKeyboard) != 1 {
		t.Fatalf("reply markup = %+v, want one button row", msg.ReplyMarkup)
	}
	btn := msg.ReplyMarkup.InlineKeyboard[0][0]
	if btn.Text != "Перейти к проекту" || btn.URL != "https://kwork.ru/projects/9" {
		t.Errorf("button = %+v", btn)
	}
}

func TestTelegramNotifier_NoLinkNoButton(t *testing.T) {
	msg := buildMessage("1", "text", "")
	if msg.ReplyMarkup != nil {
		t.Errorf("reply markup = %+v, want nil", msg.ReplyMarkup)
	}
}

func TestTelegramNotifier_RetriesOnce429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "t", srv.Client(), discardLogger())
	if err := n.Deliver(context.Background(), "42", "x", ""); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestTelegramNotifier_APIError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "t", srv.Client(), discardLogger())
	err := n.Deliver(context.Background(), "42", "x", "")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("Deliver = %v, want HTTPError 403", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want no retry on 403", got)
	}
}

func TestSendTestMessage(t *testing.T) {
	rec := &recordingNotifier{}
	if err := SendTestMessage(context.Background(), rec, "99"); err != nil {
		t.Fatalf("SendTestMessage: %v", err)
	}
	if rec.chatID != "99" || rec.link == "" || rec.text == "" {
		t.Errorf("delivery = %+v", rec)
	}
}

type recordingNotifier struct {
	chatID, text, link string
}

func (r *recordingNotifier) Deliver(_ context.Context, chatID, text, link string) error {
	r.chatID, r.text, r.link = chatID, text, link
	return nil
}
