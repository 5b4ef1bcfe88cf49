package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/adapter"
	"github.com/amishk599/gigradar/internal/bus"
	"github.com/amishk599/gigradar/internal/config"
	"github.com/amishk599/gigradar/internal/dedup"
	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/notifier"
	"github.com/amishk599/gigradar/internal/poller"
	"github.com/amishk599/gigradar/internal/ratelimit"
	"github.com/amishk599/gigradar/internal/recipient"
	"github.com/amishk599/gigradar/internal/redisclient"
	"github.com/amishk599/gigradar/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "gigradar",
	Short: "Freelance project radar",
	Long:  "gigradar polls freelance marketplaces and forwards new projects to Telegram subscribers whose keywords match.",
	// Default to `start` so that `gigradar` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: GIGRADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > GIGRADAR_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("GIGRADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "telegram":
		logger.Info("using telegram notifier")
		return notifier.NewTelegramNotifier(cfg.Notification.APIURL, cfg.Notification.BotToken, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// createFetcher builds the bare adapter for source, without retry or rate limiting.
func createFetcher(cfg *config.Config, source model.Source, httpClient *http.Client, logger *slog.Logger) (model.PostingFetcher, bool) {
	sc := cfg.Source(source)
	switch source {
	case model.SourceFL:
		return adapter.NewFLAdapter(sc.URL, sc.Interval, httpClient, logger), true
	case model.SourceKwork:
		kc := cfg.Sources.Kwork
		var renderer adapter.PageRenderer = adapter.NewHTTPRenderer(httpClient)
		if kc.Renderer == config.RendererChrome {
			renderer = adapter.NewChromeRenderer(kc.ChromePath)
		}
		return adapter.NewKworkAdapter(sc.URL, kc.Pages, sc.Interval, renderer, logger), true
	case model.SourceFreelancer:
		fc := cfg.Sources.Freelancer
		return adapter.NewFreelancerAdapter(sc.URL, fc.SiteURL, fc.OAuthToken, sc.Interval, httpClient, logger), true
	default:
		logger.Warn("unsupported source, skipping", "source", string(source))
		return nil, false
	}
}

// buildPollers creates one poller per enabled source. Fetchers are wrapped
// with retry first, then a per-source rate limiter shared across pollers.
func buildPollers(cfg *config.Config, store model.DedupStore, publisher model.Publisher, httpClient *http.Client, logger *slog.Logger) []*poller.SourcePoller {
	limiter := ratelimit.NewSourceRateLimiter(cfg.RateLimit.MinDelay)
	logger.Info("rate limiter configured", "min_delay", cfg.RateLimit.MinDelay.String())

	var pollers []*poller.SourcePoller
	for _, source := range cfg.Enabled() {
		fetcher, ok := createFetcher(cfg, source, httpClient, logger)
		if !ok {
			continue
		}
		fetcher = retry.NewRetryFetcher(fetcher, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger)
		fetcher = ratelimit.NewRateLimitedFetcher(fetcher, limiter)

		sc := cfg.Source(source)
		pollers = append(pollers, poller.NewSourcePoller(fetcher, store, publisher, sc.Window, cfg.Dedup.TTL, logger))
		logger.Info("registered source", "source", string(source), "interval", sc.Interval.String(), "window", sc.Window.String())
	}
	return pollers
}

// redisPool hands out one client per URL so dedup and bus can share a connection.
type redisPool struct {
	clients map[string]*redis.Client
}

func newRedisPool() *redisPool {
	return &redisPool{clients: make(map[string]*redis.Client)}
}

func (p *redisPool) get(ctx context.Context, url string) (*redis.Client, error) {
	if c, ok := p.clients[url]; ok {
		return c, nil
	}
	c, err := redisclient.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	p.clients[url] = c
	return c, nil
}

func (p *redisPool) Close() {
	for _, c := range p.clients {
		c.Close()
	}
}

// sweepFunc purges expired keys from stores that do not expire them natively.
type sweepFunc func(ctx context.Context) (int64, error)

// openDedup returns the configured dedup store, its sweep func (nil for
// redis) and a cleanup func.
func openDedup(ctx context.Context, cfg *config.Config, pool *redisPool) (model.DedupStore, sweepFunc, func(), error) {
	switch cfg.Dedup.Backend {
	case config.BackendRedis:
		c, err := pool.get(ctx, cfg.Dedup.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("dedup: %w", err)
		}
		return dedup.NewRedisStore(c), nil, func() {}, nil
	case config.BackendSQLite:
		s, err := dedup.NewSQLiteStore(cfg.Dedup.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("dedup: %w", err)
		}
		return s, s.Sweep, func() { s.Close() }, nil
	default:
		s := dedup.NewMemoryStore()
		sweep := func(context.Context) (int64, error) { return int64(s.Sweep()), nil }
		return s, sweep, func() {}, nil
	}
}

func openBus(ctx context.Context, cfg *config.Config, pool *redisPool, logger *slog.Logger) (bus.Bus, error) {
	switch cfg.Bus.Backend {
	case config.BackendRedis:
		c, err := pool.get(ctx, cfg.Bus.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("bus: %w", err)
		}
		return bus.NewRedisBus(c, cfg.Bus.Buffer, logger), nil
	default:
		return bus.NewMemoryBus(cfg.Bus.Buffer, logger), nil
	}
}

// openRecipients returns the configured recipient store. With the postgres
// backend and seed enabled, static recipients are upserted first.
func openRecipients(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.RecipientStore, func(), error) {
	if cfg.Recipients.Backend != config.BackendPostgres {
		logger.Info("using static recipients", "count", len(cfg.Recipients.Static))
		return recipient.NewStaticStore(cfg.Recipients.Static), func() {}, nil
	}

	pg, err := recipient.OpenPostgres(ctx, cfg.Recipients.DSN, cfg.Recipients.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("recipients: %w", err)
	}
	if cfg.Recipients.Seed {
		for _, r := range cfg.Recipients.Static {
			if err := pg.Upsert(ctx, r); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("seeding recipient %s: %w", r.ChatID, err)
			}
		}
		logger.Info("seeded recipients", "count", len(cfg.Recipients.Static))
	}
	return pg, pg.Close, nil
}
