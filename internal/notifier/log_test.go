package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogNotifier_Deliver(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Deliver(context.Background(), "42", "<b>Парсер</b>", "https://kwork.ru/projects/1"); err != nil {
		t.Fatalf("Deliver = %v, want nil", err)
	}
	out := buf.String()
	for _, want := range []string{"chat_id=42", "https://kwork.ru/projects/1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
