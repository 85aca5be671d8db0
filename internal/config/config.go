package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	pkgconfig "github.com/anime-shed/image-quality-engine/pkg/config"
)

// EnvPrefix namespaces every environment variable, e.g. INSPECTOR_PORT.
const EnvPrefix = "INSPECTOR"

// Config is the process-level configuration. Quality profiles live in
// pkg/config; this only says how the process runs.
type Config struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ImageFetchTimeout  time.Duration `mapstructure:"image_fetch_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`

	DefaultProfile string `mapstructure:"default_profile"`
	ProfilesFile   string `mapstructure:"profiles_file"`

	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`

	RemoteSources      bool   `mapstructure:"remote_sources"`
	AzureAccountName   string `mapstructure:"azure_account_name"`
	AzureAccountKey    string `mapstructure:"azure_account_key"`
	AzureConnectString string `mapstructure:"azure_connection_string"`

	QueueFile string `mapstructure:"queue_file"`
	LogLevel  string `mapstructure:"log_level"`
	Debug     bool   `mapstructure:"debug"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureConfigured reports whether blob references can be served.
func (c *Config) AzureConfigured() bool {
	return c.AzureConnectString != "" || (c.AzureAccountName != "" && c.AzureAccountKey != "")
}

// SetDefaults registers every key with its default so env binding and
// Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("image_fetch_timeout", 15*time.Second)
	v.SetDefault("max_request_body_size", 60*1024*1024) // 60MB, above the largest profile limit

	v.SetDefault("default_profile", pkgconfig.ProfileDefault)
	v.SetDefault("profiles_file", "")

	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_size", 512)
	v.SetDefault("cache_ttl", 10*time.Minute)

	v.SetDefault("remote_sources", true)
	v.SetDefault("azure_account_name", "")
	v.SetDefault("azure_account_key", "")
	v.SetDefault("azure_connection_string", "")

	v.SetDefault("queue_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
}

// New returns a viper instance bound to INSPECTOR_* variables with defaults set.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and an optional config file, then decodes
// and validates the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	return Load(New(), "")
}

func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max_request_body_size must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.CacheEnabled && c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be > 0 when the cache is enabled (got %d)", c.CacheSize)
	}
	if c.AzureAccountName != "" && c.AzureAccountKey == "" {
		return errors.New("azure_account_key is required with azure_account_name")
	}
	return nil
}
