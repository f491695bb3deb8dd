package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "LABSTORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv            = "LABSTORE_APP_ENV"
	EnvPort              = "LABSTORE_APP_PORT"
	EnvTaxRate           = "LABSTORE_TAX_RATE_PERCENT"
	EnvFreeShipping      = "LABSTORE_FREE_SHIPPING_THRESHOLD"
	EnvFlatShipping      = "LABSTORE_FLAT_SHIPPING_COST"
	EnvStoreDriver       = "LABSTORE_STORE_DRIVER"
	EnvDBDSN             = "LABSTORE_DB_DSN"
	EnvRedisURL          = "LABSTORE_REDIS_URL"
	EnvOrderNumbering    = "LABSTORE_ORDER_NUMBERING"
	EnvOrderNoteMode     = "LABSTORE_ORDER_NOTE_MODE"
	EnvStrictTransitions = "LABSTORE_ORDER_STRICT_TRANSITIONS"
	EnvNotifySink        = "LABSTORE_NOTIFY_SINK"
	EnvGCPProjectID      = "LABSTORE_GCP_PROJECT_ID"
	EnvQuotesTopic       = "LABSTORE_PUBSUB_QUOTES_TOPIC"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	NumberingPositional = "positional"
	NumberingCounter    = "counter"

	NoteModeReplace = "replace"
	NoteModeAppend  = "append"

	NotifySinkLog    = "log"
	NotifySinkPubSub = "pubsub"
)

type Config struct {
	App           AppConfig
	Pricing       PricingConfig
	Quote         QuoteConfig
	Orders        OrdersConfig
	Store         StoreConfig
	DB            DBConfig
	Redis         RedisConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LABSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"LABSTORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LABSTORE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LABSTORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LABSTORE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LABSTORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// PricingConfig holds the single global pricing policy.
type PricingConfig struct {
	TaxRatePercent        int64 `envconfig:"LABSTORE_TAX_RATE_PERCENT" default:"18"`
	FreeShippingThreshold int64 `envconfig:"LABSTORE_FREE_SHIPPING_THRESHOLD" default:"100000"`
	FlatShippingCost      int64 `envconfig:"LABSTORE_FLAT_SHIPPING_COST" default:"15000"`
}

type QuoteConfig struct {
	ValidityDays int    `envconfig:"LABSTORE_QUOTE_VALIDITY_DAYS" default:"30"`
	Prefix       string `envconfig:"LABSTORE_QUOTE_PREFIX" default:"DEV"`
}

type OrdersConfig struct {
	Prefix            string `envconfig:"LABSTORE_ORDER_PREFIX" default:"CMD"`
	StrictTransitions bool   `envconfig:"LABSTORE_ORDER_STRICT_TRANSITIONS" default:"false"`
	NoteMode          string `envconfig:"LABSTORE_ORDER_NOTE_MODE" default:"replace"`
	Numbering         string `envconfig:"LABSTORE_ORDER_NUMBERING" default:"positional"`
	DefaultCountry    string `envconfig:"LABSTORE_DEFAULT_COUNTRY" default:"Sénégal"`
	StandardDays      int    `envconfig:"LABSTORE_SHIPPING_STANDARD_DAYS" default:"5"`
	ExpressDays       int    `envconfig:"LABSTORE_SHIPPING_EXPRESS_DAYS" default:"2"`
	PickupDays        int    `envconfig:"LABSTORE_SHIPPING_PICKUP_DAYS" default:"1"`
}

type StoreConfig struct {
	Driver      string `envconfig:"LABSTORE_STORE_DRIVER" default:"memory"`
	AutoMigrate bool   `envconfig:"LABSTORE_AUTO_MIGRATE" default:"false"`
}

// Persistent reports whether orders live in a SQL database.
func (s StoreConfig) Persistent() bool {
	return s.Driver == StoreDriverSQLite || s.Driver == StoreDriverPostgres
}

type DBConfig struct {
	DSN string `envconfig:"LABSTORE_DB_DSN"`

	MaxOpenConns    int           `envconfig:"LABSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LABSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LABSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LABSTORE_REDIS_URL"`
	PoolSize     int           `envconfig:"LABSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LABSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LABSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type NotificationsConfig struct {
	QueueSize      int           `envconfig:"LABSTORE_NOTIFY_QUEUE_SIZE" default:"64"`
	Workers        int           `envconfig:"LABSTORE_NOTIFY_WORKERS" default:"2"`
	Sink           string        `envconfig:"LABSTORE_NOTIFY_SINK" default:"log"`
	PublishTimeout time.Duration `envconfig:"LABSTORE_NOTIFY_PUBLISH_TIMEOUT" default:"15s"`
	GCPProjectID   string        `envconfig:"LABSTORE_GCP_PROJECT_ID"`
	QuotesTopic    string        `envconfig:"LABSTORE_PUBSUB_QUOTES_TOPIC" default:"labstore-quotes"`
}

func (c *Config) validate() error {
	if c.Pricing.TaxRatePercent < 0 || c.Pricing.TaxRatePercent > 100 {
		return fmt.Errorf("%s must be between 0 and 100", EnvTaxRate)
	}
	if c.Pricing.FreeShippingThreshold < 0 {
		return fmt.Errorf("%s must not be negative", EnvFreeShipping)
	}
	if c.Pricing.FlatShippingCost < 0 {
		return fmt.Errorf("%s must not be negative", EnvFlatShipping)
	}

	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite, StoreDriverPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvStoreDriver, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%s must be one of memory, sqlite, postgres (got %q)", EnvStoreDriver, c.Store.Driver)
	}

	switch c.Orders.Numbering {
	case NumberingPositional:
	case NumberingCounter:
		if !c.Redis.Enabled() {
			return fmt.Errorf("%s is required when %s=%s", EnvRedisURL, EnvOrderNumbering, NumberingCounter)
		}
	default:
		return fmt.Errorf("%s must be positional or counter (got %q)", EnvOrderNumbering, c.Orders.Numbering)
	}

	switch c.Orders.NoteMode {
	case NoteModeReplace, NoteModeAppend:
	default:
		return fmt.Errorf("%s must be replace or append (got %q)", EnvOrderNoteMode, c.Orders.NoteMode)
	}

	switch c.Notifications.Sink {
	case NotifySinkLog:
	case NotifySinkPubSub:
		missing := []string{}
		if strings.TrimSpace(c.Notifications.GCPProjectID) == "" {
			missing = append(missing, EnvGCPProjectID)
		}
		if strings.TrimSpace(c.Notifications.QuotesTopic) == "" {
			missing = append(missing, EnvQuotesTopic)
		}
		if len(missing) > 0 {
			return fmt.Errorf("%s required when %s=%s", strings.Join(missing, ", "), EnvNotifySink, NotifySinkPubSub)
		}
	default:
		return fmt.Errorf("%s must be log or pubsub (got %q)", EnvNotifySink, c.Notifications.Sink)
	}
	return nil
}
