package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix          = "CATALOG"
	insecureJWTSecret  = "change-me-catalog-secret"
	defaultConfigPath  = "config.yaml"
	configPathVariable = "CONFIG_PATH"
)

// Config holds all configuration for the catalog server and its clients.
type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Mongo       MongoConfig   `mapstructure:"mongo"`
	Redis       RedisConfig   `mapstructure:"redis"`
	NATS        NATSConfig    `mapstructure:"nats"`
	MinIO       MinIOConfig   `mapstructure:"minio"`
	JWT         JWTConfig     `mapstructure:"jwt"`
	SMTP        SMTPConfig    `mapstructure:"smtp"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Log         LogConfig     `mapstructure:"log"`
	Client      ClientConfig  `mapstructure:"client"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether seller notifications should be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type MetricsConfig struct {
	Port string `mapstructure:"port"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClientConfig configures the engine side: how to reach the catalog service and
// where to keep local state.
type ClientConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MutationTimeout time.Duration `mapstructure:"mutation_timeout"`
	StatePath       string        `mapstructure:"state_path"`
	StateBackend    string        `mapstructure:"state_backend"`
	Token           string        `mapstructure:"token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "catalog-service")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_upload_bytes", int64(10<<20))

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "campus_marketplace")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "minioadmin")
	v.SetDefault("minio.secret_key", "minioadmin")
	v.SetDefault("minio.bucket", "listing-images")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("jwt.secret", insecureJWTSecret)
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")

	v.SetDefault("metrics.port", "9095")
	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.fetch_timeout", 10*time.Second)
	v.SetDefault("client.mutation_timeout", 10*time.Second)
	v.SetDefault("client.state_path", "catalog-state.db")
	v.SetDefault("client.state_backend", "sqlite")
	v.SetDefault("client.token", "")
}

// Load reads .env (if present), then the YAML file named by CONFIG_PATH (config.yaml by
// default, optional), then CATALOG_* environment variables, e.g. CATALOG_MONGO_URI.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(configPathVariable)
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit config file path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo.database is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Client.StateBackend != "sqlite" && c.Client.StateBackend != "redis" {
		return fmt.Errorf("client.state_backend must be sqlite or redis, got %q", c.Client.StateBackend)
	}
	if c.Client.FetchTimeout <= 0 || c.Client.MutationTimeout <= 0 {
		return errors.New("client timeouts must be positive")
	}
	return nil
}

// InsecureJWTSecret reports whether the signing secret is still the built-in default.
func (c *Config) InsecureJWTSecret() bool {
	return c.JWT.Secret == insecureJWTSecret
}
