package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// SeenBackend selects where the seen-set is persisted.
type SeenBackend string

const (
	SeenBackendFile      SeenBackend = "file"
	SeenBackendFirestore SeenBackend = "firestore"
)

type Config struct {
	// Search
	Query         string
	Categories    []string
	SearchLimit   int
	SiteID        string
	CatalogURL    string
	SearchPageURL string

	// Selection
	MinDiscountPct    float64
	OfficialStoreOnly bool
	FreeShippingOnly  bool
	TopN              int

	// Seen-set persistence
	SeenBackend SeenBackend
	SeenPath    string
	ProjectID   string

	// Affiliate link resolution
	AffiliateParam     string
	LinkBuilderEnabled bool
	ChromeDebugURL     string
	LinkBuilderTimeout time.Duration

	// Dispatch
	DryRun            bool
	TelegramBotToken  string
	TelegramChatID    string
	WhatsAppToken     string
	WhatsAppPhoneID   string
	WhatsAppRecipient string

	// Export / media
	ExportPath     string
	MediaDir       string
	DownloadImages bool

	// Scheduling / server
	RunInterval time.Duration
	Port        string
}

func Load() (*Config, error) {
	cfg := &Config{
		Query:         os.Getenv("ML_QUERY"),
		SiteID:        getEnvDefault("ML_SITE_ID", "MLB"),
		CatalogURL:    getEnvDefault("ML_API_BASE", "https://api.mercadolibre.com"),
		SearchPageURL: getEnvDefault("ML_SEARCH_PAGE_BASE", "https://lista.mercadolivre.com.br"),
	}

	for _, c := range strings.Split(os.Getenv("ML_CATEGORIES"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cfg.Categories = append(cfg.Categories, c)
		}
	}
	if cfg.Query == "" && len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("set ML_QUERY or ML_CATEGORIES (e.g. ML_CATEGORIES=MLB1051,MLB1648)")
	}

	var err error
	if cfg.SearchLimit, err = intEnv("SEARCH_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.TopN, err = intEnv("TOP_N", 3); err != nil {
		return nil, err
	}
	if cfg.MinDiscountPct, err = floatEnv("MIN_DISCOUNT_PCT", 20); err != nil {
		return nil, err
	}
	cfg.OfficialStoreOnly = boolEnv("OFFICIAL_STORE_ONLY", false)
	cfg.FreeShippingOnly = boolEnv("FREE_SHIPPING_ONLY", false)
	cfg.DryRun = boolEnv("DRY_RUN", false)
	cfg.DownloadImages = boolEnv("DOWNLOAD_IMAGES", false)

	cfg.SeenPath = getEnvDefault("SEEN_PATH", "data/seen.json")
	cfg.ExportPath = getEnvDefault("EXPORT_PATH", "data/exports/offers.csv")
	cfg.MediaDir = getEnvDefault("MEDIA_DIR", "data/media")

	switch backend := getEnvDefault("SEEN_BACKEND", "file"); backend {
	case "file":
		cfg.SeenBackend = SeenBackendFile
	case "firestore":
		cfg.SeenBackend = SeenBackendFirestore
		cfg.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("SEEN_BACKEND=firestore requires GOOGLE_CLOUD_PROJECT")
		}
	default:
		return nil, fmt.Errorf("invalid SEEN_BACKEND %q: use 'file' or 'firestore'", backend)
	}

	cfg.AffiliateParam = os.Getenv("AFFILIATE_PARAM")
	cfg.LinkBuilderEnabled = boolEnv("LINK_BUILDER_ENABLED", false)
	cfg.ChromeDebugURL = getEnvDefault("CHROME_DEBUG_URL", "http://127.0.0.1:9222")
	if cfg.LinkBuilderTimeout, err = durationEnv("LINK_BUILDER_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.AffiliateParam == "" && !cfg.LinkBuilderEnabled {
		slog.Warn("No AFFILIATE_PARAM and link builder disabled, raw permalinks will be posted")
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.WhatsAppToken = os.Getenv("WHATS_TOKEN")
	cfg.WhatsAppPhoneID = os.Getenv("WHATS_PHONE_NUMBER_ID")
	cfg.WhatsAppRecipient = os.Getenv("WHATS_DESTINO")

	if (cfg.TelegramBotToken == "") != (cfg.TelegramChatID == "") {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	whatsComplete := cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneID != "" && cfg.WhatsAppRecipient != ""
	whatsPartial := cfg.WhatsAppToken != "" || cfg.WhatsAppPhoneID != "" || cfg.WhatsAppRecipient != ""
	if whatsPartial && !whatsComplete {
		return nil, fmt.Errorf("WHATS_TOKEN, WHATS_PHONE_NUMBER_ID and WHATS_DESTINO must be set together")
	}
	if !cfg.DryRun && cfg.TelegramBotToken == "" && !whatsComplete {
		return nil, fmt.Errorf("no dispatch channel configured: set Telegram or WhatsApp credentials, or DRY_RUN=true")
	}

	if cfg.RunInterval, err = durationEnv("RUN_INTERVAL", 0); err != nil {
		return nil, err
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		slog.Info("Defaulting to port", "port", cfg.Port)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func boolEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
