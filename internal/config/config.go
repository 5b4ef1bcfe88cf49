package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/gigradar/internal/model"
)

// Backend names accepted in the dedup, bus and recipients sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendStatic   = "static"
)

// Renderer names for the Kwork listing page.
const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

const (
	defaultPollInterval = 5 * time.Minute
	defaultWindow       = 10 * time.Minute
	defaultDedupTTL     = 360 * time.Second
	defaultSQLitePath   = "gigradar.db"
	defaultBusBuffer    = 256
	defaultGrace        = 10 * time.Second
	defaultKillTimeout  = 5 * time.Second
	defaultRestartDelay = 5 * time.Second
	defaultMinDelay     = 10 * time.Second
	defaultMaxRetries   = 2
	defaultBaseDelay    = 5 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
	defaultKworkPages   = 1
	defaultPGMaxConns   = 4
)

// Config is the root configuration for gigradar.
type Config struct {
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	Sources      SourcesConfig
	Dedup        DedupConfig
	Bus          BusConfig
	Recipients   RecipientsConfig
	Notification NotificationConfig
	Shutdown     ShutdownConfig
	RateLimit    RateLimitConfig
	Retry        RetryConfig
	Admin        AdminConfig
}

// SourceConfig holds the settings every marketplace shares.
type SourceConfig struct {
	Enabled  bool
	URL      string        // empty means the adapter default
	Window   time.Duration // recency window passed to FetchRecent
	Interval time.Duration // poll cadence, defaults to poll_interval
}

// KworkConfig adds the page renderer settings.
type KworkConfig struct {
	SourceConfig
	Renderer   string // "http" or "chrome"
	ChromePath string
	Pages      int
}

// FreelancerConfig adds API credentials.
type FreelancerConfig struct {
	SourceConfig
	OAuthToken string
	SiteURL    string
}

// SourcesConfig groups per-marketplace settings.
type SourcesConfig struct {
	FL         SourceConfig
	Kwork      KworkConfig
	Freelancer FreelancerConfig
}

// DedupConfig selects the dedup store.
type DedupConfig struct {
	Backend    string
	TTL        time.Duration
	RedisURL   string
	SQLitePath string
}

// BusConfig selects the event bus.
type BusConfig struct {
	Backend  string
	RedisURL string
	Buffer   int
}

// RecipientsConfig selects the recipient store.
type RecipientsConfig struct {
	Backend  string
	DSN      string
	MaxConns int
	Seed     bool // upsert Static into Postgres on start
	Static   []model.Recipient
}

// NotificationConfig selects the notifier.
type NotificationConfig struct {
	Type     string // "log" or "telegram"
	BotToken string
	APIURL   string
}

// ShutdownConfig bounds the stop sequence.
type ShutdownConfig struct {
	Grace        time.Duration
	KillTimeout  time.Duration
	RestartDelay time.Duration
}

// RateLimitConfig controls the minimum gap between fetches of one source.
type RateLimitConfig struct {
	MinDelay time.Duration
}

// RetryConfig controls fetch retries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// AdminConfig enables the HTTP admin surface when Addr is set.
type AdminConfig struct {
	Addr string
}

// Enabled returns the enabled sources in stable order.
func (c *Config) Enabled() []model.Source {
	var out []model.Source
	for _, s := range model.Sources {
		if c.Source(s).Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Source returns the shared settings of s.
func (c *Config) Source(s model.Source) SourceConfig {
	switch s {
	case model.SourceFL:
		return c.Sources.FL
	case model.SourceKwork:
		return c.Sources.Kwork.SourceConfig
	case model.SourceFreelancer:
		return c.Sources.Freelancer.SourceConfig
	default:
		return SourceConfig{}
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	PollInterval string          `yaml:"poll_interval"`
	HTTPTimeout  string          `yaml:"http_timeout"`
	Sources      rawSources      `yaml:"sources"`
	Dedup        rawDedup        `yaml:"dedup"`
	Bus          rawBus          `yaml:"bus"`
	Recipients   rawRecipients   `yaml:"recipients"`
	Notification rawNotification `yaml:"notification"`
	Shutdown     rawShutdown     `yaml:"shutdown"`
	RateLimit    rawRateLimit    `yaml:"rate_limit"`
	Retry        rawRetry        `yaml:"retry"`
	Admin        rawAdmin        `yaml:"admin"`
}

type rawSource struct {
	Enabled    *bool  `yaml:"enabled"`
	URL        string `yaml:"url"`
	Window     string `yaml:"window"`
	Interval   string `yaml:"interval"`
	Renderer   string `yaml:"renderer"`
	ChromePath string `yaml:"chrome_path"`
	Pages      int    `yaml:"pages"`
	OAuthToken string `yaml:"oauth_token"`
	SiteURL    string `yaml:"site_url"`
}

type rawSources struct {
	FL         rawSource `yaml:"fl"`
	Kwork      rawSource `yaml:"kwork"`
	Freelancer rawSource `yaml:"freelancer"`
}

type rawDedup struct {
	Backend    string `yaml:"backend"`
	TTL        string `yaml:"ttl"`
	RedisURL   string `yaml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path"`
}

type rawBus struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
	Buffer   int    `yaml:"buffer"`
}

type rawRecipient struct {
	ChatID   string   `yaml:"chat_id"`
	Keywords string   `yaml:"keywords"`
	Sources  []string `yaml:"sources"`
}

type rawRecipients struct {
	Backend  string         `yaml:"backend"`
	DSN      string         `yaml:"dsn"`
	MaxConns int            `yaml:"max_conns"`
	Seed     bool           `yaml:"seed"`
	Static   []rawRecipient `yaml:"static"`
}

type rawNotification struct {
	Type     string `yaml:"type"`
	BotToken string `yaml:"bot_token"`
	APIURL   string `yaml:"api_url"`
}

type rawShutdown struct {
	Grace        string `yaml:"grace"`
	KillTimeout  string `yaml:"kill_timeout"`
	RestartDelay string `yaml:"restart_delay"`
}

type rawRateLimit struct {
	MinDelay string `yaml:"min_delay"`
}

type rawAdmin struct {
	Addr string `yaml:"addr"`
}

type rawRetry struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands ${ENV} references in data and builds a validated Config.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	p := &durationParser{}
	cfg := &Config{
		PollInterval: p.parse("poll_interval", raw.PollInterval, defaultPollInterval),
		HTTPTimeout:  p.parse("http_timeout", raw.HTTPTimeout, defaultHTTPTimeout),
	}

	cfg.Sources.FL = p.source("fl", raw.Sources.FL, cfg.PollInterval)
	cfg.Sources.Kwork = KworkConfig{
		SourceConfig: p.source("kwork", raw.Sources.Kwork, cfg.PollInterval),
		Renderer:     orDefault(raw.Sources.Kwork.Renderer, RendererHTTP),
		ChromePath:   raw.Sources.Kwork.ChromePath,
		Pages:        raw.Sources.Kwork.Pages,
	}
	if cfg.Sources.Kwork.Pages == 0 {
		cfg.Sources.Kwork.Pages = defaultKworkPages
	}
	cfg.Sources.Freelancer = FreelancerConfig{
		SourceConfig: p.source("freelancer", raw.Sources.Freelancer, cfg.PollInterval),
		OAuthToken:   raw.Sources.Freelancer.OAuthToken,
		SiteURL:      raw.Sources.Freelancer.SiteURL,
	}

	cfg.Dedup = DedupConfig{
		Backend:    orDefault(raw.Dedup.Backend, BackendMemory),
		TTL:        p.parse("dedup.ttl", raw.Dedup.TTL, defaultDedupTTL),
		RedisURL:   raw.Dedup.RedisURL,
		SQLitePath: orDefault(raw.Dedup.SQLitePath, defaultSQLitePath),
	}

	cfg.Bus = BusConfig{
		Backend:  orDefault(raw.Bus.Backend, BackendMemory),
		RedisURL: raw.Bus.RedisURL,
		Buffer:   raw.Bus.Buffer,
	}
	if cfg.Bus.Buffer == 0 {
		cfg.Bus.Buffer = defaultBusBuffer
	}

	cfg.Recipients = RecipientsConfig{
		Backend:  orDefault(raw.Recipients.Backend, BackendStatic),
		DSN:      raw.Recipients.DSN,
		MaxConns: raw.Recipients.MaxConns,
		Seed:     raw.Recipients.Seed,
	}
	if cfg.Recipients.MaxConns == 0 {
		cfg.Recipients.MaxConns = defaultPGMaxConns
	}
	for i, r := range raw.Recipients.Static {
		rec, err := r.recipient()
		if err != nil {
			return nil, fmt.Errorf("recipients.static[%d]: %w", i, err)
		}
		cfg.Recipients.Static = append(cfg.Recipients.Static, rec)
	}

	cfg.Notification = NotificationConfig{
		Type:     orDefault(raw.Notification.Type, "log"),
		BotToken: raw.Notification.BotToken,
		APIURL:   raw.Notification.APIURL,
	}

	cfg.Shutdown = ShutdownConfig{
		Grace:        p.parse("shutdown.grace", raw.Shutdown.Grace, defaultGrace),
		KillTimeout:  p.parse("shutdown.kill_timeout", raw.Shutdown.KillTimeout, defaultKillTimeout),
		RestartDelay: p.parse("shutdown.restart_delay", raw.Shutdown.RestartDelay, defaultRestartDelay),
	}
	cfg.RateLimit.MinDelay = p.parse("rate_limit.min_delay", raw.RateLimit.MinDelay, defaultMinDelay)

	cfg.Retry = RetryConfig{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  p.parse("retry.base_delay", raw.Retry.BaseDelay, defaultBaseDelay),
	}
	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}

	cfg.Admin.Addr = raw.Admin.Addr

	if p.err != nil {
		return nil, p.err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationParser keeps the first parse error so Parse can report it once.
type durationParser struct {
	err error
}

func (p *durationParser) parse(field, value string, def time.Duration) time.Duration {
	if value == "" || p.err != nil {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, value, err)
		return def
	}
	return d
}

func (p *durationParser) source(name string, raw rawSource, interval time.Duration) SourceConfig {
	enabled := true
	if raw.Enabled != nil {
		enabled = *raw.Enabled
	}
	return SourceConfig{
		Enabled:  enabled,
		URL:      raw.URL,
		Window:   p.parse("sources."+name+".window", raw.Window, defaultWindow),
		Interval: p.parse("sources."+name+".interval", raw.Interval, interval),
	}
}

func (r rawRecipient) recipient() (model.Recipient, error) {
	rec := model.Recipient{
		ChatID:   strings.TrimSpace(r.ChatID),
		Keywords: model.ParseKeywords(r.Keywords),
		Sources:  make(map[model.Source]bool),
	}
	if rec.ChatID == "" {
		return rec, errors.New("chat_id is required")
	}
	if len(r.Sources) == 0 {
		for _, s := range model.Sources {
			rec.Sources[s] = true
		}
		return rec, nil
	}
	for _, name := range r.Sources {
		s := model.Source(strings.ToLower(strings.TrimSpace(name)))
		if !s.Valid() {
			return rec, fmt.Errorf("unknown source %q", name)
		}
		rec.Sources[s] = true
	}
	return rec, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", cfg.PollInterval)
	}
	if len(cfg.Enabled()) == 0 {
		return errors.New("at least one source must be enabled")
	}
	for _, s := range cfg.Enabled() {
		sc := cfg.Source(s)
		if sc.Window <= 0 {
			return fmt.Errorf("sources.%s.window must be positive, got %v", s, sc.Window)
		}
		if sc.Interval <= 0 {
			return fmt.Errorf("sources.%s.interval must be positive, got %v", s, sc.Interval)
		}
	}
	switch cfg.Sources.Kwork.Renderer {
	case RendererHTTP, RendererChrome:
	default:
		return fmt.Errorf("sources.kwork.renderer must be %q or %q, got %q", RendererHTTP, RendererChrome, cfg.Sources.Kwork.Renderer)
	}
	if cfg.Sources.Kwork.Pages < 1 {
		return fmt.Errorf("sources.kwork.pages must be at least 1, got %d", cfg.Sources.Kwork.Pages)
	}

	if cfg.Dedup.TTL <= 0 {
		return fmt.Errorf("dedup.ttl must be positive, got %v", cfg.Dedup.TTL)
	}
	switch cfg.Dedup.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if cfg.Dedup.RedisURL == "" {
			return errors.New("dedup.redis_url is required when dedup.backend is \"redis\"")
		}
	default:
		return fmt.Errorf("dedup.backend must be memory, redis or sqlite, got %q", cfg.Dedup.Backend)
	}

	switch cfg.Bus.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Bus.RedisURL == "" {
			return errors.New("bus.redis_url is required when bus.backend is \"redis\"")
		}
	default:
		return fmt.Errorf("bus.backend must be memory or redis, got %q", cfg.Bus.Backend)
	}
	if cfg.Bus.Buffer < 0 {
		return fmt.Errorf("bus.buffer must not be negative, got %d", cfg.Bus.Buffer)
	}

	switch cfg.Recipients.Backend {
	case BackendStatic:
	case BackendPostgres:
		if cfg.Recipients.DSN == "" {
			return errors.New("recipients.dsn is required when recipients.backend is \"postgres\"")
		}
	default:
		return fmt.Errorf("recipients.backend must be static or postgres, got %q", cfg.Recipients.Backend)
	}

	switch cfg.Notification.Type {
	case "log":
	case "telegram":
		if cfg.Notification.BotToken == "" {
			return errors.New("notification.bot_token is required when type is \"telegram\"")
		}
	default:
		return fmt.Errorf("notification.type must be log or telegram, got %q", cfg.Notification.Type)
	}

	if cfg.Shutdown.Grace <= 0 || cfg.Shutdown.KillTimeout <= 0 {
		return errors.New("shutdown.grace and shutdown.kill_timeout must be positive")
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}
	return nil
}
