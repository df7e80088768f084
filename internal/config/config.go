// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs. It is built once at process
// start and handed to each pipeline's constructor; nothing reads ambient
// global state after Load returns.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Resolve   ResolveConfig   `mapstructure:"resolve"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP endpoint (health + metrics).
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DBConfig controls access to the Postgres link store.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	LinksTable  string `mapstructure:"links_table"`
	BadTable    string `mapstructure:"bad_table"`
	PrefixTable string `mapstructure:"prefix_table"`
}

// GitHubConfig configures the source-listing provider.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	TokenFile      string        `mapstructure:"token_file"`
	BaseURL        string        `mapstructure:"base_url"`
	PerPage        int           `mapstructure:"per_page"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DiscoveryConfig governs the discovery pipeline.
type DiscoveryConfig struct {
	QueueDepth int `mapstructure:"queue_depth"`
}

// ResolveConfig governs the resolution pipeline.
type ResolveConfig struct {
	Workers          int           `mapstructure:"workers"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	CheckpointPath   string        `mapstructure:"checkpoint_path"`
	InputFile        string        `mapstructure:"input_file"`
	RateLimitPause   time.Duration `mapstructure:"rate_limit_pause"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOOGLROT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("db.links_table", "links")
	v.SetDefault("db.bad_table", "bad_links")
	v.SetDefault("db.prefix_table", "prefixes")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.per_page", 100)
	v.SetDefault("github.max_retries", 3)
	v.SetDefault("github.backoff_initial", "250ms")
	v.SetDefault("github.backoff_max", "30s")
	v.SetDefault("github.request_timeout", "30s")
	v.SetDefault("discovery.queue_depth", 1000)
	v.SetDefault("resolve.workers", 50)
	v.SetDefault("resolve.timeout", "6s")
	v.SetDefault("resolve.user_agent", "savethewebproject/googlrot (+github.com/saveweb)")
	v.SetDefault("resolve.checkpoint_path", "googl_urls.db")
	v.SetDefault("resolve.input_file", "googl_urls.github.txt")
	v.SetDefault("resolve.rate_limit_pause", "3s")
	v.SetDefault("resolve.progress_interval", "1s")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	if c.Discovery.QueueDepth <= 0 {
		return fmt.Errorf("discovery.queue_depth must be > 0")
	}
	if c.Resolve.Workers <= 0 {
		return fmt.Errorf("resolve.workers must be > 0")
	}
	if c.Resolve.Timeout <= 0 {
		return fmt.Errorf("resolve.timeout must be > 0")
	}
	if c.GitHub.MaxRetries < 0 {
		return fmt.Errorf("github.max_retries must be >= 0")
	}
	return nil
}

// GitHubToken resolves the API token: the inline value wins, otherwise the
// token file is read and trimmed (the deployment convention is a
// GH_TOKEN.env file next to the binary).
func (c Config) GitHubToken() (string, error) {
	if c.GitHub.Token != "" {
		return c.GitHub.Token, nil
	}
	if c.GitHub.TokenFile == "" {
		return "", nil
	}
	raw, err := os.ReadFile(c.GitHub.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
