package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	Anthropic Anthropic `mapstructure:"anthropic"`
	LinkedIn  LinkedIn  `mapstructure:"linkedin"`
	Cron      Cron      `mapstructure:"cron"`
	Database  Database  `mapstructure:"database"`
	Redis     Redis     `mapstructure:"redis"`
	Server    Server    `mapstructure:"server"`
	Resolver  Resolver  `mapstructure:"resolver"`
	Cache     Cache     `mapstructure:"cache"`
	Logging   Logging   `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Anthropic holds the LLM configuration used for generation
type Anthropic struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LinkedIn holds OAuth and publishing configuration
type LinkedIn struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURI  string        `mapstructure:"redirect_uri"`
	AuthURL      string        `mapstructure:"auth_url"`
	TokenURL     string        `mapstructure:"token_url"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	APIVersion   string        `mapstructure:"api_version"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ClaimTTL     time.Duration `mapstructure:"claim_ttl"`
}

// Configured reports whether the OAuth flow can be started.
func (l LinkedIn) Configured() bool {
	return l.ClientID != "" && l.RedirectURI != ""
}

// Cron holds configuration for the scheduled publish sweep
type Cron struct {
	Secret   string        `mapstructure:"secret"`
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// Database holds PostgreSQL configuration
type Database struct {
	ConnectionString string        `mapstructure:"connection_string"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
}

// Redis holds the optional Redis configuration used for the sweep lease
type Redis struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORS          `mapstructure:"cors"`
}

// CORS holds CORS configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Resolver holds source resolution configuration
type Resolver struct {
	UserAgent      string        `mapstructure:"user_agent"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// Cache holds the page cache configuration
type Cache struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	PageTTL   string `mapstructure:"page_ttl"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".studio")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset drops the cached configuration so the next Load reads sources again.
func Reset() {
	globalConfig = nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.data_dir", ".studio")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout", "120s")

	v.SetDefault("linkedin.auth_url", "https://www.linkedin.com/oauth/v2/authorization")
	v.SetDefault("linkedin.token_url", "https://www.linkedin.com/oauth/v2/accessToken")
	v.SetDefault("linkedin.api_base_url", "https://api.linkedin.com")
	v.SetDefault("linkedin.api_version", "202401")
	v.SetDefault("linkedin.timeout", "30s")
	v.SetDefault("linkedin.claim_ttl", "5m")

	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.schedule", "*/5 * * * *")
	v.SetDefault("cron.lease_ttl", "2m")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.key_prefix", "studio:")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.request_timeout", "170s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.enabled", false)

	v.SetDefault("resolver.user_agent", "Mozilla/5.0 (compatible; CefundBot/1.0)")
	v.SetDefault("resolver.max_concurrency", 8)
	v.SetDefault("resolver.fetch_timeout", "15s")
	v.SetDefault("resolver.max_body_bytes", 5<<20)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.directory", ".studio/cache")
	v.SetDefault("cache.page_ttl", "1h")

	v.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "anthropic.api_key", []string{
		"ANTHROPIC_API_KEY",
		"CLAUDE_API_KEY",
	})

	bindEnvKeys(v, "linkedin.client_id", []string{"LINKEDIN_CLIENT_ID"})
	bindEnvKeys(v, "linkedin.client_secret", []string{"LINKEDIN_CLIENT_SECRET"})
	bindEnvKeys(v, "linkedin.redirect_uri", []string{"LINKEDIN_REDIRECT_URI"})

	bindEnvKeys(v, "cron.secret", []string{"CRON_SECRET"})

	bindEnvKeys(v, "database.connection_string", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	bindEnvKeys(v, "redis.url", []string{
		"REDIS_URL",
	})

	bindEnvKeys(v, "server.port", []string{"PORT"})

	bindEnvKeys(v, "app.debug", []string{
		"DEBUG",
		"STUDIO_DEBUG",
	})

	bindEnvKeys(v, "logging.level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Cache.Directory != "" {
		config.Cache.Directory = expandPath(config.Cache.Directory)
	}

	if config.Cache.PageTTL != "" {
		if _, err := time.ParseDuration(config.Cache.PageTTL); err != nil {
			return fmt.Errorf("invalid duration for cache.page_ttl: %s", config.Cache.PageTTL)
		}
	}

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are usable. Missing
// credentials are reported per request, not here.
func validateConfig(config *Config) error {
	var errors []string

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port must be between 1 and 65535, got %d", config.Server.Port))
	}

	if config.Resolver.MaxConcurrency < 1 {
		errors = append(errors, "resolver.max_concurrency must be at least 1")
	}

	if config.Anthropic.MaxTokens < 1 {
		errors = append(errors, "anthropic.max_tokens must be positive")
	}

	timeouts := map[string]time.Duration{
		"anthropic.timeout":      config.Anthropic.Timeout,
		"linkedin.timeout":       config.LinkedIn.Timeout,
		"resolver.fetch_timeout": config.Resolver.FetchTimeout,
	}
	for key, d := range timeouts {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be a positive duration", key))
		}
	}

	if config.LinkedIn.ClientID != "" && config.LinkedIn.ClientSecret == "" {
		errors = append(errors, "linkedin.client_secret is required when linkedin.client_id is set. Set LINKEDIN_CLIENT_SECRET")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// TTL returns the parsed page cache TTL, zero when unset.
func (c Cache) TTL() time.Duration {
	d, _ := time.ParseDuration(c.PageTTL)
	return d
}
