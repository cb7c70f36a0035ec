package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Scrape   ScrapeConfig   `yaml:"scrape" envconfig:"SCRAPE"`
	Geocode  GeocodeConfig  `yaml:"geocode" envconfig:"GEOCODE"`
	Schedule ScheduleConfig `yaml:"schedule" envconfig:"SCHEDULE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/harvester.log"`
}

// StoreConfig contains persistence configuration
type StoreConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"data/harvester.db"`
}

// ScrapeConfig contains harvest-run defaults applied when a trigger
// does not override them.
type ScrapeConfig struct {
	Sources          []string      `yaml:"sources" envconfig:"SOURCES" default:"holidaygogogo,amitravel,tripcarte"`
	TimeoutPerSource time.Duration `yaml:"timeout_per_source" envconfig:"TIMEOUT_PER_SOURCE" default:"10m"`
	RetryAttempts    int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS" default:"2"`
	BatchSize        int           `yaml:"batch_size" envconfig:"BATCH_SIZE" default:"50"`
	RequestDelay     time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"1500ms"`
	SnapshotGrace    time.Duration `yaml:"snapshot_grace" envconfig:"SNAPSHOT_GRACE" default:"30s"`
	FeedURLs         map[string]string `yaml:"feed_urls" envconfig:"FEED_URLS"`
}

// GeocodeConfig contains geocode resolution configuration
type GeocodeConfig struct {
	EndpointURL      string        `yaml:"endpoint_url" envconfig:"ENDPOINT_URL" default:"https://nominatim.openstreetmap.org/search"`
	RequestDelay     time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"1500ms"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"10s"`
	QualityFloor     int           `yaml:"quality_floor" envconfig:"QUALITY_FLOOR" default:"20"`
	GoodEnoughScore  int           `yaml:"good_enough_score" envconfig:"GOOD_ENOUGH_SCORE" default:"60"`
	ImproveThreshold int           `yaml:"improve_threshold" envconfig:"IMPROVE_THRESHOLD" default:"15"`
}

// ScheduleConfig contains cron scheduling configuration
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	CronExpr string `yaml:"cron_expr" envconfig:"CRON_EXPR" default:"0 3 * * *"`
}

// Load loads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	if err := envconfig.Process("TRIPHARVEST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func getConfigFilePath() string {
	if p := os.Getenv("TRIPHARVEST_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Scrape.Sources) == 0 {
		return fmt.Errorf("at least one scrape source must be configured")
	}
	for _, s := range c.Scrape.Sources {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("scrape source names cannot be blank")
		}
	}
	if c.Geocode.QualityFloor < 0 || c.Geocode.QualityFloor > 100 {
		return fmt.Errorf("geocode quality floor must be within [0,100], got %d", c.Geocode.QualityFloor)
	}
	if c.Scrape.RequestDelay < 0 || c.Geocode.RequestDelay < 0 {
		return fmt.Errorf("request delays cannot be negative")
	}
	return nil
}
