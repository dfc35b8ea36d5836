// Package config loads the application configuration from a YAML file,
// DEPTOS_ environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rsilvagit/deptos/internal/model"
)

// ErrMissingToken is returned when the selected notifier has no credential.
var ErrMissingToken = errors.New("config: notifier credential not set")

// Config is the full application configuration.
type Config struct {
	DataDir  string   `mapstructure:"data_dir"`
	Notifier string   `mapstructure:"notifier"`
	Telegram Telegram `mapstructure:"telegram"`
	Discord  Discord  `mapstructure:"discord"`
	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	Scraping Scraping `mapstructure:"scraping"`
	Delivery Delivery `mapstructure:"delivery"`
	API      API      `mapstructure:"api"`
}

type Telegram struct {
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

type Discord struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// Redis enables the result cache when URL is set.
type Redis struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// Postgres enables the listing archive when DSN is set.
type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type Scraping struct {
	Sources        []string       `mapstructure:"sources"`
	Pages          map[string]int `mapstructure:"pages"`
	PageDelay      time.Duration  `mapstructure:"page_delay"`
	PageTimeout    time.Duration  `mapstructure:"page_timeout"`
	MaxRetries     int            `mapstructure:"max_retries"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	RatePerSecond  float64        `mapstructure:"rate_per_second"`
	BrowserTimeout time.Duration  `mapstructure:"browser_timeout"`
	Headless       bool           `mapstructure:"headless"`
	ChromePath     string         `mapstructure:"chrome_path"`
	ProxyURL       string         `mapstructure:"proxy_url"`
	// InmobusquedaPublicado is passed as the site's publicado query value.
	InmobusquedaPublicado string `mapstructure:"inmobusqueda_publicado"`
}

type Delivery struct {
	PerSourceCap   int           `mapstructure:"per_source_cap"`
	QuietStart     int           `mapstructure:"quiet_start"`
	QuietEnd       int           `mapstructure:"quiet_end"`
	Timezone       string        `mapstructure:"timezone"`
	SendRetries    int           `mapstructure:"send_retries"`
	SendRetryDelay time.Duration `mapstructure:"send_retry_delay"`
}

type API struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to v for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("notifier", "telegram")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("postgres.dsn", "")

	v.SetDefault("scraping.sources", []string{"argenprop", "zonaprop", "mercadolibre", "inmobusqueda"})
	// One key per source, so a file or env var that sets a single source
	// does not drop the others.
	v.SetDefault("scraping.pages.argenprop", 5)
	v.SetDefault("scraping.pages.zonaprop", 1)
	v.SetDefault("scraping.pages.mercadolibre", 3)
	v.SetDefault("scraping.pages.inmobusqueda", 1)
	v.SetDefault("scraping.page_delay", 2*time.Second)
	v.SetDefault("scraping.page_timeout", 30*time.Second)
	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.request_timeout", 15*time.Second)
	v.SetDefault("scraping.rate_per_second", 0.5)
	v.SetDefault("scraping.browser_timeout", 5*time.Minute)
	v.SetDefault("scraping.headless", true)
	v.SetDefault("scraping.chrome_path", "")
	v.SetDefault("scraping.proxy_url", "")
	v.SetDefault("scraping.inmobusqueda_publicado", "5")

	v.SetDefault("delivery.per_source_cap", 2)
	v.SetDefault("delivery.quiet_start", 0)
	v.SetDefault("delivery.quiet_end", 8)
	v.SetDefault("delivery.timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("delivery.send_retries", 3)
	v.SetDefault("delivery.send_retry_delay", 2*time.Second)

	v.SetDefault("api.addr", ":8080")
}

// BindEnv maps DEPTOS_<KEY> variables onto keys, and accepts the bare names
// used by existing deployments for credentials.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("DEPTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bare := map[string]string{
		"telegram.token":      "TELEGRAM_BOT_TOKEN",
		"redis.url":           "REDIS_URL",
		"postgres.dsn":        "DATABASE_URL",
		"discord.webhook_url": "DISCORD_WEBHOOK_URL",
	}
	for key, name := range bare {
		prefixed := "DEPTOS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return fmt.Errorf("config: binding %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that do not depend on the chosen notifier.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is empty")
	}
	for _, name := range c.Scraping.Sources {
		if _, ok := model.ParseSource(name); !ok {
			return fmt.Errorf("config: unknown source %q", name)
		}
	}
	for name, n := range c.Scraping.Pages {
		if _, ok := model.ParseSource(name); !ok {
			return fmt.Errorf("config: pages for unknown source %q", name)
		}
		if n < 1 {
			return fmt.Errorf("config: pages for %s must be at least 1, got %d", name, n)
		}
	}
	if c.Scraping.RatePerSecond <= 0 {
		return fmt.Errorf("config: rate_per_second must be positive, got %v", c.Scraping.RatePerSecond)
	}
	if c.Delivery.PerSourceCap < 1 {
		return fmt.Errorf("config: per_source_cap must be at least 1, got %d", c.Delivery.PerSourceCap)
	}
	if !validHour(c.Delivery.QuietStart) || !validHour(c.Delivery.QuietEnd) {
		return fmt.Errorf("config: quiet hours must be within 0-23, got %d-%d",
			c.Delivery.QuietStart, c.Delivery.QuietEnd)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Notifier {
	case "telegram", "discord":
	default:
		return fmt.Errorf("config: unknown notifier %q", c.Notifier)
	}
	return nil
}

// RequireNotifier reports ErrMissingToken when the selected notifier cannot
// send. Dry runs skip it.
func (c *Config) RequireNotifier() error {
	switch {
	case c.Notifier == "telegram" && c.Telegram.Token == "":
		return fmt.Errorf("%w: set TELEGRAM_BOT_TOKEN or telegram.token", ErrMissingToken)
	case c.Notifier == "discord" && c.Discord.WebhookURL == "":
		return fmt.Errorf("%w: set DISCORD_WEBHOOK_URL or discord.webhook_url", ErrMissingToken)
	}
	return nil
}

// Location is the timezone quiet hours are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Delivery.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Delivery.Timezone, err)
	}
	return loc, nil
}

// PagesBySource converts the pages table to sources.
func (c *Config) PagesBySource() map[model.Source]int {
	out := make(map[model.Source]int, len(c.Scraping.Pages))
	for name, n := range c.Scraping.Pages {
		if src, ok := model.ParseSource(name); ok {
			out[src] = n
		}
	}
	return out
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
