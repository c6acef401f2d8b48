package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

type Config struct {
	Port          string `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	LogLevel      string `mapstructure:"log_level"`

	StoreBackend string `mapstructure:"store_backend"`
	DatabaseURL  string `mapstructure:"database_url"`
	MongoURI     string `mapstructure:"mongodb_uri"`
	MongoDBName  string `mapstructure:"mongodb_db_name"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`

	SyncEndpoint string `mapstructure:"sync_endpoint"`
	SyncToken    string `mapstructure:"sync_token"`
	SyncSchedule string `mapstructure:"sync_schedule"`

	TaxRatePercent    float64 `mapstructure:"tax_rate_percent"`
	LowStockThreshold int     `mapstructure:"low_stock_threshold"`
	StoreName         string  `mapstructure:"store_name"`
	StoreAddress      string  `mapstructure:"store_address"`
	StorePhone        string  `mapstructure:"store_phone"`
	ReceiptNotes      string  `mapstructure:"receipt_notes"`

	AuthSecret            string `mapstructure:"auth_secret"`
	AccessTokenTTLMinutes int    `mapstructure:"access_token_ttl_minutes"`
	ManagerPIN            string `mapstructure:"manager_pin"`
	AdminPassword         string `mapstructure:"admin_password"`
	CashierPassword       string `mapstructure:"cashier_password"`
}

// Load reads .env (if present), an optional YAML file named by CONFIG_FILE,
// and the process environment, in increasing order of precedence.
func Load() (Config, error) {
	// A missing .env file is fine; configuration may come from the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:5173")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_backend", "")
	v.SetDefault("database_url", "")
	v.SetDefault("mongodb_uri", "")
	v.SetDefault("mongodb_db_name", "electronkasir")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "electronkasir.events")
	v.SetDefault("sync_endpoint", "")
	v.SetDefault("sync_token", "")
	v.SetDefault("sync_schedule", "@every 5m")
	v.SetDefault("tax_rate_percent", 11.0)
	v.SetDefault("low_stock_threshold", 5)
	v.SetDefault("store_name", "ElectronKasir")
	v.SetDefault("store_address", "")
	v.SetDefault("store_phone", "")
	v.SetDefault("receipt_notes", "")
	v.SetDefault("auth_secret", "")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("manager_pin", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("cashier_password", "")

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.LowStockThreshold < 0 {
		cfg.LowStockThreshold = 5
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at wiring time.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must be provided")
	}
	if c.TaxRatePercent < 0 || c.TaxRatePercent > 100 {
		return fmt.Errorf("TAX_RATE_PERCENT must be between 0 and 100")
	}
	switch c.Backend() {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be provided for the postgres backend")
		}
	case BackendMongoDB:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI must be provided for the mongodb backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// Backend resolves the record store, defaulting to postgres when
// DATABASE_URL is set and to memory otherwise.
func (c Config) Backend() string {
	if c.StoreBackend != "" {
		return c.StoreBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendMemory
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
