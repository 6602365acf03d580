package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Source   SourceConfig   `yaml:"source" envconfig:"SOURCE"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Sheets   SheetsConfig   `yaml:"sheets" envconfig:"SHEETS"`
}

// ServerConfig contains HTTP server configuration. Only the port is part of
// the external contract; everything else is an internal default.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"true"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	PDFDir    string `yaml:"pdf_dir" envconfig:"PDF_DIR" default:"data/pdfs"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/output"`
	CacheFile string `yaml:"cache_file" envconfig:"CACHE_FILE" default:"data/fetch_cache.json"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// SourceConfig describes the press-release listing site the link source
// walks for candidate documents.
type SourceConfig struct {
	BasePageURL string        `yaml:"base_page_url" envconfig:"BASE_PAGE_URL" default:"https://fada.in/press-release-list.php?page="`
	BaseSiteURL string        `yaml:"base_site_url" envconfig:"BASE_SITE_URL" default:"https://fada.in/"`
	MaxPages    int           `yaml:"max_pages" envconfig:"MAX_PAGES" default:"10"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	UserAgent   string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
}

// PipelineConfig carries the internal pipeline tunables. None of these are
// part of the external contract.
type PipelineConfig struct {
	DownloadConcurrency int           `yaml:"download_concurrency" envconfig:"DOWNLOAD_CONCURRENCY" default:"5"`
	MaxAttempts         int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
	BackoffBase         time.Duration `yaml:"backoff_base" envconfig:"BACKOFF_BASE" default:"2s"`
	BackoffCap          time.Duration `yaml:"backoff_cap" envconfig:"BACKOFF_CAP" default:"30s"`
	SessionTimeout      time.Duration `yaml:"session_timeout" envconfig:"SESSION_TIMEOUT" default:"30m"`
	SessionRetention    time.Duration `yaml:"session_retention" envconfig:"SESSION_RETENTION" default:"1h"`
}

// SheetsConfig enables the optional Google Sheets mirror of the master
// workbook. Disabled unless a credentials file is supplied.
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
}

// Load loads configuration from environment variables and an optional
// config file (FADA_CONFIG_FILE or ./config.yaml).
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FADA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv("FADA_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs overlays environment values on top of file values.
// Environment wins where both are set.
func mergeConfigs(file, env Config) Config {
	merged := file

	if env.Server.Port != 0 {
		merged.Server.Port = env.Server.Port
	}
	if env.Logging.Level != "" {
		merged.Logging.Level = env.Logging.Level
	}
	if env.Logging.Output != "" {
		merged.Logging.Output = env.Logging.Output
	}
	if env.Paths.DataDir != "" {
		merged.Paths = env.Paths
	}
	if env.Source.BasePageURL != "" {
		merged.Source = env.Source
	}
	if env.Pipeline.DownloadConcurrency != 0 {
		merged.Pipeline = env.Pipeline
	}
	if env.Sheets.CredentialsFile != "" {
		merged.Sheets = env.Sheets
	}
	return merged
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.DownloadConcurrency < 1 {
		return fmt.Errorf("download concurrency must be at least 1, got %d", c.Pipeline.DownloadConcurrency)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Source.MaxPages < 1 {
		return fmt.Errorf("source max pages must be at least 1, got %d", c.Source.MaxPages)
	}
	if c.Sheets.Enabled && c.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets mirror enabled but no credentials file configured")
	}
	return nil
}
