package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rsilvagit/deptos/internal/archive"
	"github.com/rsilvagit/deptos/internal/browser"
	"github.com/rsilvagit/deptos/internal/cache"
	"github.com/rsilvagit/deptos/internal/config"
	"github.com/rsilvagit/deptos/internal/filter"
	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/output"
	"github.com/rsilvagit/deptos/internal/pipeline"
	"github.com/rsilvagit/deptos/internal/scraper"
	"github.com/rsilvagit/deptos/internal/store"
)

// app owns every long-lived dependency of one command invocation.
type app struct {
	cfg     *config.Config
	store   *store.FileStore
	users   *store.UserConfigs
	browser *browser.Manager
	cache   *cache.Cache
	archive *archive.PostgresArchive
	printer *output.ConsolePrinter
	runner  *pipeline.Runner
}

type appOptions struct {
	dryRun  bool
	sources []string
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{
		cfg:   cfg,
		store: store.New(cfg.DataDir),
		users: store.NewUserConfigs(cfg.DataDir, filter.Defaults()),
	}

	notifier, err := a.notifier(opts.dryRun)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Options{
		ProxyURL:      cfg.Scraping.ProxyURL,
		RatePerSecond: cfg.Scraping.RatePerSecond,
		MaxRetries:    cfg.Scraping.MaxRetries,
		Timeout:       cfg.Scraping.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	a.browser = browser.New(browser.Options{
		Headless:  cfg.Scraping.Headless,
		ExecPath:  cfg.Scraping.ChromePath,
		OpTimeout: cfg.Scraping.BrowserTimeout,
	})

	sources := opts.sources
	if len(sources) == 0 {
		sources = cfg.Scraping.Sources
	}
	scrapers, err := scraper.Select(scraper.Registry(client, a.browser, scraper.Options{
		PageDelay:             cfg.Scraping.PageDelay,
		PageTimeout:           cfg.Scraping.PageTimeout,
		InmobusquedaPublicado: cfg.Scraping.InmobusquedaPublicado,
	}), sources)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	popts := pipeline.Options{
		Pages:        cfg.PagesBySource(),
		PerSourceCap: cfg.Delivery.PerSourceCap,
		Quiet: pipeline.QuietHours{
			Start:    cfg.Delivery.QuietStart,
			End:      cfg.Delivery.QuietEnd,
			Location: loc,
		},
		Browser: a.browser,
	}

	if cfg.Redis.URL != "" {
		c, err := cache.New(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			slog.Warn("result cache disabled", "error", err)
		} else {
			a.cache = c
			popts.Cache = c
		}
	}
	if cfg.Postgres.DSN != "" && !opts.dryRun {
		arch, err := archive.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			slog.Warn("listing archive disabled", "error", err)
		} else {
			a.archive = arch
			popts.Archive = arch
		}
	}

	a.runner = pipeline.New(scrapers, a.store, a.users, notifier, popts)
	return a, nil
}

func (a *app) notifier(dryRun bool) (output.Notifier, error) {
	if dryRun {
		a.printer = output.NewConsolePrinter(os.Stdout)
		return a.printer, nil
	}
	if err := a.cfg.RequireNotifier(); err != nil {
		return nil, err
	}

	switch a.cfg.Notifier {
	case "discord":
		return output.NewDiscordNotifier(a.cfg.Discord.WebhookURL, a.cfg.Delivery.SendRetries, a.cfg.Delivery.SendRetryDelay), nil
	case "telegram":
		return output.NewTelegramNotifier(a.cfg.Telegram.Token, output.TelegramOptions{
			APIURL:     a.cfg.Telegram.APIURL,
			Attempts:   a.cfg.Delivery.SendRetries,
			RetryDelay: a.cfg.Delivery.SendRetryDelay,
		}), nil
	}
	return nil, fmt.Errorf("unknown notifier %q", a.cfg.Notifier)
}

// Close releases the browser and connections. The printer, if any, is
// flushed first.
func (a *app) Close() {
	if a.printer != nil {
		if err := a.printer.Flush(); err != nil {
			slog.Warn("printing deliveries", "error", err)
		}
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			slog.Warn("closing browser", "error", err)
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.archive != nil {
		a.archive.Close()
	}
}
