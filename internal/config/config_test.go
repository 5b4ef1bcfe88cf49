package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	path := writeConfig(t, `
poll_interval: 3m
sources:
  fl:
    window: 15m
  kwork:
    renderer: chrome
    chrome_path: /usr/bin/chromium
    pages: 2
    interval: 1m
  freelancer:
    enabled: false
dedup:
  backend: redis
  ttl: 10m
  redis_url: redis://localhost:6379/0
bus:
  backend: redis
  redis_url: redis://localhost:6379/0
recipients:
  static:
    - chat_id: "42"
      keywords: "Python, django ,"
      sources: [fl, Kwork]
    - chat_id: "43"
notification:
  type: telegram
  bot_token: ${TEST_BOT_TOKEN}
shutdown:
  grace: 3s
retry:
  max_retries: 0
admin:
  addr: ":8080"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 3*time.Minute {
		t.Errorf("PollInterval = %v, want 3m", cfg.PollInterval)
	}
	if got := cfg.Enabled(); len(got) != 2 || got[0] != model.SourceFL || got[1] != model.SourceKwork {
		t.Errorf("Enabled = %v, want [fl kwork]", got)
	}
	if fl := cfg.Sources.FL; fl.Window != 15*time.Minute || fl.Interval != 3*time.Minute {
		t.Errorf("fl = %+v, want 15m window inheriting 3m interval", fl)
	}
	k := cfg.Sources.Kwork
	if k.Renderer != RendererChrome || k.ChromePath != "/usr/bin/chromium" || k.Pages != 2 || k.Interval != time.Minute {
		t.Errorf("kwork = %+v", k)
	}
	if k.Window != 10*time.Minute {
		t.Errorf("kwork window = %v, want default 10m", k.Window)
	}
	if cfg.Dedup.Backend != BackendRedis || cfg.Dedup.TTL != 10*time.Minute {
		t.Errorf("dedup = %+v", cfg.Dedup)
	}
	if cfg.Notification.BotToken != "123:abc" {
		t.Errorf("BotToken = %q, want expanded env var", cfg.Notification.BotToken)
	}
	if cfg.Shutdown.Grace != 3*time.Second || cfg.Shutdown.KillTimeout != defaultKillTimeout {
		t.Errorf("shutdown = %+v", cfg.Shutdown)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0", cfg.Retry.MaxRetries)
	}
	if cfg.Admin.Addr != ":8080" {
		t.Errorf("admin addr = %q", cfg.Admin.Addr)
	}

	static := cfg.Recipients.Static
	if len(static) != 2 {
		t.Fatalf("static recipients = %d, want 2", len(static))
	}
	if strings.Join(static[0].Keywords, ",") != "python,django" {
		t.Errorf("keywords = %v", static[0].Keywords)
	}
	if !static[0].Wants(model.SourceKwork) || static[0].Wants(model.SourceFreelancer) {
		t.Errorf("sources = %v", static[0].Sources)
	}
	if !static[1].Wants(model.SourceFreelancer) {
		t.Error("recipient without sources should opt into all")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.PollInterval)
	}
	if len(cfg.Enabled()) != 3 {
		t.Errorf("Enabled = %v, want all sources", cfg.Enabled())
	}
	if cfg.Dedup.TTL != 360*time.Second || cfg.Dedup.Backend != BackendMemory {
		t.Errorf("dedup = %+v, want memory with 360s TTL", cfg.Dedup)
	}
	if cfg.Bus.Backend != BackendMemory || cfg.Bus.Buffer != defaultBusBuffer {
		t.Errorf("bus = %+v", cfg.Bus)
	}
	if cfg.Recipients.Backend != BackendStatic || cfg.Notification.Type != "log" {
		t.Errorf("recipients = %q notification = %q", cfg.Recipients.Backend, cfg.Notification.Type)
	}
	if cfg.Sources.Kwork.Renderer != RendererHTTP || cfg.Sources.Kwork.Pages != 1 {
		t.Errorf("kwork = %+v", cfg.Sources.Kwork)
	}
	if cfg.Retry.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"broken yaml", "poll_interval: [broken", "parse config"},
		{"bad duration", "poll_interval: soon", "poll_interval"},
		{"zero poll interval", "poll_interval: 0s", "poll_interval must be positive"},
		{"bad window", "sources:\n  fl:\n    window: -1m", "sources.fl.window"},
		{"no sources", "sources:\n  fl: {enabled: false}\n  kwork: {enabled: false}\n  freelancer: {enabled: false}", "at least one source"},
		{"unknown renderer", "sources:\n  kwork:\n    renderer: firefox", "renderer"},
		{"redis dedup without url", "dedup:\n  backend: redis", "dedup.redis_url"},
		{"unknown dedup backend", "dedup:\n  backend: etcd", "dedup.backend"},
		{"zero ttl", "dedup:\n  ttl: 0s", "dedup.ttl"},
		{"redis bus without url", "bus:\n  backend: redis", "bus.redis_url"},
		{"postgres without dsn", "recipients:\n  backend: postgres", "recipients.dsn"},
		{"telegram without token", "notification:\n  type: telegram", "bot_token"},
		{"unknown notifier", "notification:\n  type: slack", "notification.type"},
		{"recipient without chat", "recipients:\n  static:\n    - keywords: go", "chat_id"},
		{"recipient unknown source", "recipients:\n  static:\n    - chat_id: \"1\"\n      sources: [upwork]", "unknown source"},
		{"negative retries", "retry:\n  max_retries: -1", "max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
