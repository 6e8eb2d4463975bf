// Package config loads the metasearch configuration from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/metasearch/internal/fingerprint"
	"github.com/FranksOps/metasearch/internal/serp"
)

// EnvPrefix prefixes every environment override, e.g. METASEARCH_CACHE_TTL.
const EnvPrefix = "METASEARCH"

// ErrNoProviders is returned when no search provider is configured.
var ErrNoProviders = errors.New("config: at least one provider is required")

// Config is the full configuration surface.
type Config struct {
	Providers              []string      `mapstructure:"providers"`
	PerProviderResultCount int           `mapstructure:"per_provider_result_count"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	DescriptionMaxLength   int           `mapstructure:"description_max_length"`
	DescriptionBlocks      int           `mapstructure:"description_blocks"`
	// ClientIdentification is the User-Agent. Empty rotates through built-in browser strings.
	ClientIdentification   string        `mapstructure:"client_identification"`
	Fingerprint            string        `mapstructure:"fingerprint"`
	Proxies                []string      `mapstructure:"proxies"`
	ProvidersRatePerSecond float64       `mapstructure:"providers_rate_per_second"`

	Cache   CacheConfig   `mapstructure:"cache"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Engines EnginesConfig `mapstructure:"engines"`
	Journal JournalConfig `mapstructure:"journal"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type EnrichConfig struct {
	Concurrency   int  `mapstructure:"concurrency"`
	RespectRobots bool `mapstructure:"respect_robots"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

type EnginesConfig struct {
	Google     GoogleConfig  `mapstructure:"google"`
	Yandex     YandexConfig  `mapstructure:"yandex"`
	DuckDuckGo BaseURLConfig `mapstructure:"duckduckgo"`
	SearXNG    BaseURLConfig `mapstructure:"searxng"`
}

type GoogleConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

type YandexConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Region  string `mapstructure:"region"`
}

type BaseURLConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type JournalConfig struct {
	// Backend is none, sqlite, postgres, json or csv.
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Journal backends.
const (
	JournalNone     = "none"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
	JournalJSON     = "json"
	JournalCSV      = "csv"
)

// SetDefaults registers every key with its default, which also makes each key
// reachable through the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("providers", []string{serp.NameGoogle, serp.NameYandex})
	v.SetDefault("per_provider_result_count", 5)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("description_max_length", 300)
	v.SetDefault("description_blocks", 3)
	v.SetDefault("client_identification", "")
	v.SetDefault("fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("proxies", []string{})
	v.SetDefault("providers_rate_per_second", 0.0)

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("enrich.concurrency", 0)
	v.SetDefault("enrich.respect_robots", false)
	v.SetDefault("breaker.max_failures", serp.DefaultMaxFailures)
	v.SetDefault("breaker.cooldown", serp.DefaultCooldown)

	v.SetDefault("engines.google.base_url", "")
	v.SetDefault("engines.google.language", "ru")
	v.SetDefault("engines.yandex.base_url", "")
	v.SetDefault("engines.yandex.region", "213")
	v.SetDefault("engines.duckduckgo.base_url", "")
	v.SetDefault("engines.searxng.base_url", "")

	v.SetDefault("journal.backend", JournalNone)
	v.SetDefault("journal.dsn", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration into a validated Config. file may be empty, in which
// case metasearch.yaml is looked up in the working directory and
// $HOME/.config/metasearch; a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("metasearch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/metasearch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	var providers []string
	for _, p := range c.Providers {
		// Environment values arrive as one comma separated string.
		for _, name := range strings.Split(p, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				providers = append(providers, name)
			}
		}
	}
	c.Providers = providers
	c.Journal.Backend = strings.ToLower(strings.TrimSpace(c.Journal.Backend))
	if c.Journal.Backend == "" {
		c.Journal.Backend = JournalNone
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, ErrNoProviders)
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if !slices.Contains(serp.Names(), p) {
			errs = append(errs, fmt.Errorf("%w: %q (known: %s)", serp.ErrUnknownProvider, p, strings.Join(serp.Names(), ", ")))
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("provider %q listed twice", p))
		}
		seen[p] = true
	}
	if seen[serp.NameSearXNG] && c.Engines.SearXNG.BaseURL == "" {
		errs = append(errs, fmt.Errorf("engines.searxng.base_url is required when searxng is enabled"))
	}

	if c.PerProviderResultCount < 1 {
		errs = append(errs, fmt.Errorf("per_provider_result_count must be at least 1, got %d", c.PerProviderResultCount))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.DescriptionMaxLength < 1 {
		errs = append(errs, fmt.Errorf("description_max_length must be at least 1, got %d", c.DescriptionMaxLength))
	}
	if c.DescriptionBlocks < 1 {
		errs = append(errs, fmt.Errorf("description_blocks must be at least 1, got %d", c.DescriptionBlocks))
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if c.ProvidersRatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("providers_rate_per_second cannot be negative"))
	}
	if c.Cache.Size < 1 {
		errs = append(errs, fmt.Errorf("cache.size must be at least 1, got %d", c.Cache.Size))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Enrich.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("enrich.concurrency cannot be negative"))
	}

	switch c.Journal.Backend {
	case JournalNone:
	case JournalSQLite, JournalPostgres, JournalJSON, JournalCSV:
		if c.Journal.DSN == "" {
			errs = append(errs, fmt.Errorf("journal.dsn is required for the %s journal", c.Journal.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal.backend %q", c.Journal.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
