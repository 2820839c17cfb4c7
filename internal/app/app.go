// Package app wires the configured components into a runnable pipeline.
// Both binaries (the one-shot bot and the HTTP server) build the same
// processor; only how it is driven differs.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/affiliate"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/catalog"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/export"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/media"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/notifier"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/processor"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/seenstore"
)

// App holds the assembled pipeline and whatever needs closing at shutdown.
type App struct {
	Processor *processor.OfferProcessor
	closers   []func() error
}

// Close releases backend connections. Safe to call once.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}
}

// Build assembles the processor from configuration.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	seen, err := buildSeenStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	var resolver processor.LinkResolver
	switch {
	case cfg.LinkBuilderEnabled:
		resolver = affiliate.NewBrowserResolver(cfg.ChromeDebugURL, cfg.LinkBuilderTimeout)
		slog.Info("Using browser link builder", "debug_url", cfg.ChromeDebugURL)
	case cfg.AffiliateParam != "":
		resolver = affiliate.NewParamResolver(cfg.AffiliateParam)
	}

	dispatchers, err := buildDispatchers(cfg)
	if err != nil {
		return nil, err
	}

	var fetcher processor.MediaFetcher
	if cfg.DownloadImages {
		fetcher = media.NewFetcher(cfg.MediaDir)
	}

	a.Processor = processor.New(
		catalog.New(cfg),
		resolver,
		seen,
		dispatchers,
		export.NewCSV(cfg.ExportPath),
		fetcher,
		cfg,
	)
	return a, nil
}

func buildSeenStore(ctx context.Context, cfg *config.Config, a *App) (processor.SeenStore, error) {
	switch cfg.SeenBackend {
	case config.SeenBackendFirestore:
		store, err := seenstore.OpenFirestore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("open firestore seen store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return seenstore.OpenFile(cfg.SeenPath), nil
	}
}

func buildDispatchers(cfg *config.Config) ([]notifier.Dispatcher, error) {
	if cfg.DryRun {
		slog.Info("Dry run enabled, nothing will be dispatched")
		return []notifier.Dispatcher{notifier.DryRun{}}, nil
	}

	var dispatchers []notifier.Dispatcher
	if cfg.TelegramBotToken != "" {
		dispatchers = append(dispatchers, notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WhatsAppToken != "" {
		dispatchers = append(dispatchers, notifier.NewWhatsApp(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.WhatsAppRecipient))
	}
	if len(dispatchers) == 0 {
		return nil, fmt.Errorf("no dispatch channel configured")
	}
	return dispatchers, nil
}
