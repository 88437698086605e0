package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Site    SiteConfig    `yaml:"site"`
	Poll    PollConfig    `yaml:"poll"`
	Notify  NotifyConfig  `yaml:"notify"`
	Update  UpdateConfig  `yaml:"update"`
}

type ServerConfig struct {
	Addr string     `yaml:"addr"`
	Cors CorsConfig `yaml:"cors"`
}

type CorsConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
	// SecretKey is a base64-encoded 32-byte key; when set, secret credential
	// fields are sealed with AES-GCM before they hit disk.
	SecretKey string `yaml:"secretKey"`
}

// SiteConfig tunes how the browser drives the reservation site.
type SiteConfig struct {
	URL              string `yaml:"url"`
	Headful          bool   `yaml:"headful"`
	NavTimeoutMs     int    `yaml:"navTimeoutMs"`
	StepTimeoutMs    int    `yaml:"stepTimeoutMs"`
	SettleMs         int    `yaml:"settleMs"`
	ConfirmSettleMs  int    `yaml:"confirmSettleMs"`
	CalendarMaxPages int    `yaml:"calendarMaxPages"`
}

func (c SiteConfig) NavTimeout() time.Duration {
	if c.NavTimeoutMs <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

func (c SiteConfig) StepTimeout() time.Duration {
	if c.StepTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.StepTimeoutMs) * time.Millisecond
}

// Settle is the fixed pause after navigation/clicks so client-side rendering
// can catch up beyond network completion.
func (c SiteConfig) Settle() time.Duration {
	if c.SettleMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.SettleMs) * time.Millisecond
}

// ConfirmSettle is the longer pause after submitting the booking form.
func (c SiteConfig) ConfirmSettle() time.Duration {
	if c.ConfirmSettleMs <= 0 {
		return 4 * time.Second
	}
	return time.Duration(c.ConfirmSettleMs) * time.Millisecond
}

func (c SiteConfig) MaxCalendarPages() int {
	if c.CalendarMaxPages <= 0 {
		return 12
	}
	return c.CalendarMaxPages
}

type PollConfig struct {
	MinIntervalMs     int `yaml:"minIntervalMs"`
	MaxIntervalMs     int `yaml:"maxIntervalMs"`
	DefaultIntervalMs int `yaml:"defaultIntervalMs"`
	AttemptTimeoutMs  int `yaml:"attemptTimeoutMs"`
}

func (c PollConfig) MinInterval() time.Duration {
	if c.MinIntervalMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

func (c PollConfig) MaxInterval() time.Duration {
	if c.MaxIntervalMs <= 0 {
		return time.Hour
	}
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

func (c PollConfig) DefaultInterval() time.Duration {
	if c.DefaultIntervalMs <= 0 {
		return time.Minute
	}
	return time.Duration(c.DefaultIntervalMs) * time.Millisecond
}

// AttemptTimeout caps one whole attempt so a wedged page cannot stall the
// loop indefinitely.
func (c PollConfig) AttemptTimeout() time.Duration {
	if c.AttemptTimeoutMs <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(c.AttemptTimeoutMs) * time.Millisecond
}

// ClampInterval bounds a requested poll interval to the configured range.
// intervalMs <= 0 selects the default.
func (c PollConfig) ClampInterval(intervalMs int) time.Duration {
	if intervalMs <= 0 {
		return c.DefaultInterval()
	}
	d := time.Duration(intervalMs) * time.Millisecond
	if d < c.MinInterval() {
		return c.MinInterval()
	}
	if d > c.MaxInterval() {
		return c.MaxInterval()
	}
	return d
}

type NotifyConfig struct {
	QueueSize int `yaml:"queueSize"`
}

func (c NotifyConfig) Queue() int {
	if c.QueueSize <= 0 {
		return 32
	}
	return c.QueueSize
}

type UpdateConfig struct {
	ManifestURL string `yaml:"manifestURL"`
	TimeoutMs   int    `yaml:"timeoutMs"`
}

func (c UpdateConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/alta_parking.db"
	}
	if c.Site.URL == "" {
		c.Site.URL = "https://reserve.altaparking.com"
	}
	if c.Update.ManifestURL == "" {
		c.Update.ManifestURL = "https://clawdshartavenger.github.io/alta-parking-app/latest.json"
	}
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Site.URL == "" {
		return errors.New("site.url is required")
	}
	if c.Poll.MinIntervalMs > 0 && c.Poll.MaxIntervalMs > 0 && c.Poll.MinIntervalMs > c.Poll.MaxIntervalMs {
		return errors.New("poll.minIntervalMs must not exceed poll.maxIntervalMs")
	}
	return nil
}
