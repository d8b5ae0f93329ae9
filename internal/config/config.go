package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Alturino/storefront/internal/log"
)

type Application struct {
	Env       string `mapstructure:"env"        json:"env"`
	Host      string `mapstructure:"host"       json:"host"`
	SecretKey string `mapstructure:"secret_key" json:"-"`
	Port      int    `mapstructure:"port"       json:"port"`
}

type Database struct {
	Name           string `mapstructure:"name"            json:"name"`
	Host           string `mapstructure:"host"            json:"host"`
	MigrationPath  string `mapstructure:"migration_path"  json:"migration_path"`
	Password       string `mapstructure:"password"        json:"-"`
	Username       string `mapstructure:"username"        json:"username"`
	MaxConnections int32  `mapstructure:"max_connections" json:"max_connections"`
	MinConnections int32  `mapstructure:"min_connections" json:"min_connections"`
	Port           uint16 `mapstructure:"port"            json:"port"`
}

type Cache struct {
	Host        string        `mapstructure:"host"         json:"host"`
	Password    string        `mapstructure:"password"     json:"-"`
	Database    int           `mapstructure:"database"     json:"database"`
	Port        uint16        `mapstructure:"port"         json:"port"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" json:"snapshot_ttl"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Notification struct {
	URL     string        `mapstructure:"url"     json:"url"`
	ApiKey  string        `mapstructure:"api_key" json:"-"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	Breaker Breaker       `mapstructure:"breaker" json:"breaker"`
}

type Breaker struct {
	MaxRequests         uint32        `mapstructure:"max_requests"         json:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"             json:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"              json:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" json:"consecutive_failures"`
}

type Checkout struct {
	TotalPolicy           string `mapstructure:"total_policy"            json:"total_policy"`
	TaxRate               string `mapstructure:"tax_rate"                json:"tax_rate"`
	ShippingFee           string `mapstructure:"shipping_fee"            json:"shipping_fee"`
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold" json:"free_shipping_threshold"`
}

type Broker struct {
	Kind  string `mapstructure:"kind"  json:"kind"`
	URL   string `mapstructure:"url"   json:"-"`
	Queue string `mapstructure:"queue" json:"queue"`
}

type Config struct {
	Application  `mapstructure:"application"  json:"application"`
	Database     `mapstructure:"db"           json:"db"`
	Cache        `mapstructure:"cache"        json:"cache"`
	Otel         `mapstructure:"otel"         json:"otel"`
	Notification `mapstructure:"notification" json:"notification"`
	Checkout     `mapstructure:"checkout"     json:"checkout"`
	Broker       `mapstructure:"broker"       json:"broker"`
}

var (
	once   sync.Once
	config *Config
)

func InitConfig(c context.Context, filename string) *Config {
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "main InitConfig").
			Str(log.KeyProcess, "init config").
			Str("filename", filename).
			Logger()

		logger.Info().Msg("loading config")
		cfg, err := Load(filename, "./env")
		if err != nil {
			err = fmt.Errorf("failed loading config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger.Info().Any(log.KeyConfig, cfg).Msg("loaded config")
	})
	return config
}

// Load reads <filename>.yaml from the given paths. Environment variables
// override file values, e.g. NOTIFICATION_API_KEY for notification.api_key.
func Load(filename string, paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("application.env", "production")
	v.SetDefault("application.host", "0.0.0.0")
	v.SetDefault("application.port", 8080)
	v.SetDefault("db.migration_path", "file://migrations")
	v.SetDefault("db.max_connections", 10)
	v.SetDefault("db.min_connections", 2)
	v.SetDefault("cache.snapshot_ttl", time.Hour)
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.breaker.max_requests", 1)
	v.SetDefault("notification.breaker.interval", time.Minute)
	v.SetDefault("notification.breaker.timeout", 30*time.Second)
	v.SetDefault("notification.breaker.consecutive_failures", 5)
	v.SetDefault("checkout.total_policy", "subtotal")
	v.SetDefault("checkout.tax_rate", "0.075")
	v.SetDefault("checkout.shipping_fee", "2500")
	v.SetDefault("checkout.free_shipping_threshold", "50000")
	v.SetDefault("broker.kind", "redis")
	v.SetDefault("broker.queue", "admin_notifications")

	cfg := Config{}
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed reading config with error=%w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed unmarshaling config with error=%w", err)
	}
	return cfg, nil
}
