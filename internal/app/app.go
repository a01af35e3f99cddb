// Package app assembles the collector and its optional side channels from
// configuration. Both binaries start through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/coin-collector/internal/browser"
	"github.com/maltedev/coin-collector/internal/collector"
	"github.com/maltedev/coin-collector/internal/config"
	"github.com/maltedev/coin-collector/internal/database"
	"github.com/maltedev/coin-collector/internal/events"
	"github.com/maltedev/coin-collector/internal/runs"
)

func BrowserOptions(cfg *config.Config, logger *slog.Logger) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.Locale = cfg.Browser.Locale
	opts.TimezoneID = cfg.Browser.TimezoneID
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	opts.Logger = logger
	return opts
}

// Session is a launched browser with one page driving a collector.
type Session struct {
	Browser   *browser.Browser
	Page      *browser.Page
	Collector *collector.Collector
}

// Launch starts the browser and binds a collector to a fresh page. gate may
// be nil for unattended runs.
func Launch(cfg *config.Config, gate collector.Gate, logger *slog.Logger) (*Session, error) {
	b, err := browser.New(BrowserOptions(cfg, logger))
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, err
	}

	opts := collector.OptionsFromConfig(cfg)
	opts.Gate = gate
	opts.Logger = logger

	return &Session{
		Browser:   b,
		Page:      page,
		Collector: collector.New(collector.Bind[*browser.Element](page), opts),
	}, nil
}

func (s *Session) Close() error {
	return errors.Join(s.Page.Close(), s.Browser.Close())
}

// SideChannels are the optional event stream and run history sinks.
type SideChannels struct {
	Publisher events.Publisher
	Recorder  runs.Recorder
	closers   []io.Closer
	db        *database.DB
}

// OpenSideChannels connects to Redis and Postgres when they are configured.
// Either may be absent; the run itself never depends on them.
func OpenSideChannels(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*SideChannels, error) {
	sc := &SideChannels{Publisher: events.NopPublisher{}}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		publisher := events.NewStreamPublisher(client, cfg.Redis.Stream, logger)
		sc.Publisher = publisher
		sc.closers = append(sc.closers, publisher)
		logger.Info("publishing run events", "stream", cfg.Redis.Stream)
	}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			sc.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := database.NewRunRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			sc.Close()
			return nil, err
		}
		sc.db = db
		sc.Recorder = repo
		logger.Info("recording run history")
	}

	return sc, nil
}

func (sc *SideChannels) Close() error {
	var errs []error
	for _, c := range sc.closers {
		errs = append(errs, c.Close())
	}
	if sc.db != nil {
		sc.db.Close()
	}
	return errors.Join(errs...)
}
