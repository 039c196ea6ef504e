package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ORDERETL"

// Database drivers understood by pkg/db.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported_database_driver")
	ErrMissingDSN        = errors.New("database_dsn_required")
)

// File is the optional path of a YAML config file. Empty means defaults, .env and environment only.
type File string

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Report    ReportConfig    `mapstructure:"report"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
}

type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// SourcesConfig holds the default input paths. CLI flags override them per run.
type SourcesConfig struct {
	Customers string `mapstructure:"customers"`
	Orders    string `mapstructure:"orders"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format (node_exporter textfile collector).
	Textfile string `mapstructure:"textfile"`
}

type ReportConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	TopSpendersDays  int  `mapstructure:"top_spenders_days"`
	TopSpendersLimit int  `mapstructure:"top_spenders_limit"`
}

type SnowflakeConfig struct {
	Node int64 `mapstructure:"node"`
}

// Load reads configuration from defaults, an optional .env file, an optional config file and ORDERETL_* variables.
func Load(file File) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(string(file)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
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

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return ErrMissingDSN
	}
	return nil
}

// Dialect returns the normalized driver name.
func (c DatabaseConfig) Dialect() string {
	return strings.ToLower(strings.TrimSpace(c.Driver))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "orderetl.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.slow_threshold", 500*time.Millisecond)
	v.SetDefault("sources.customers", "sampledata/customers.csv")
	v.SetDefault("sources.orders", "sampledata/orders.xml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.top_spenders_days", 30)
	v.SetDefault("report.top_spenders_limit", 5)
	v.SetDefault("snowflake.node", 1)
}
