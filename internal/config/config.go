package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "config.yaml"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logger      LoggerConfig      `yaml:"logger"`
	Storage     StorageConfig     `yaml:"storage"`
	Upload      UploadConfig      `yaml:"upload"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Auth        AuthConfig        `yaml:"auth"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	Prefork     bool     `yaml:"prefork"`
	BodyLimitMB int      `yaml:"body_limit_mb"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StorageConfig controls where jobs keep their files and how long they live.
type StorageConfig struct {
	BaseDir       string        `yaml:"base_dir"`
	PurgeDelay    time.Duration `yaml:"purge_delay"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type UploadConfig struct {
	MaxFileMB     int      `yaml:"max_file_mb"`
	MaxBatchFiles int      `yaml:"max_batch_files"`
	AllowedTypes  []string `yaml:"allowed_types"`
}

// PipelineConfig configures the renderer adapters.
type PipelineConfig struct {
	StageTimeout        time.Duration `yaml:"stage_timeout"`
	OfficeBinary        string        `yaml:"office_binary"`
	ChromePath          string        `yaml:"chrome_path"`
	ChromeNoSandbox     bool          `yaml:"chrome_no_sandbox"`
	ChromePoolSize      int           `yaml:"chrome_pool_size"`
	UserDataDir         string        `yaml:"user_data_dir"`
	BrowserAutoDownload bool          `yaml:"browser_auto_download"`
}

type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	RedisHost   string        `yaml:"redis_host"`
	PDFCacheDB  int           `yaml:"pdf_cache_db"`
	RateLimitDB int           `yaml:"rate_limit_db"`
	TTL         time.Duration `yaml:"ttl"`
}

// RateLimiterConfig limits anonymous clients. A zero UserLimit disables it.
type RateLimiterConfig struct {
	UserLimit int           `yaml:"user_limit"`
	Interval  time.Duration `yaml:"interval"`
}

type AuthConfig struct {
	Postgres       PostgresConfig `yaml:"postgres"`
	ReloadInterval time.Duration  `yaml:"reload_interval"`
}

// PostgresConfig locates the API token table. An empty Host disables token auth.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DefaultAllowedTypes is the upload MIME allow-list.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/msword",
	"text/html",
	"text/plain",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/png",
}

// Default returns the configuration used for any value the file leaves unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "",
			Port:        ":3002",
			BodyLimitMB: 520,
			CORSOrigins: []string{
				"https://novenutility123.netlify.app",
				"https://novenutility.netlify.app",
				"http://localhost:3000",
				"http://localhost:3001",
				"http://localhost:3002",
			},
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Storage: StorageConfig{
			BaseDir:       ".",
			PurgeDelay:    5 * time.Second,
			SweepInterval: 30 * time.Minute,
			MaxAge:        time.Hour,
		},
		Upload: UploadConfig{
			MaxFileMB:     50,
			MaxBatchFiles: 10,
			AllowedTypes:  append([]string(nil), DefaultAllowedTypes...),
		},
		Pipeline: PipelineConfig{
			StageTimeout: 60 * time.Second,
			OfficeBinary: "soffice",
		},
		Cache: CacheConfig{
			PDFCacheDB:  1,
			RateLimitDB: 0,
			TTL:         time.Hour,
		},
		RateLimiter: RateLimiterConfig{
			Interval: time.Minute,
		},
		Auth: AuthConfig{
			ReloadInterval: time.Minute,
		},
	}
}

// Load reads the file named by CONFIG_PATH, or DefaultPath.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path on top of Default. A missing file yields the
// defaults. Unreadable, malformed or invalid configuration panics: the service must
// not start half-configured.
func LoadFrom(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.Pipeline.ChromePath == "" {
		cfg.Pipeline.ChromePath = v
	}
	if v := os.Getenv("SOFFICE_BIN"); v != "" {
		cfg.Pipeline.OfficeBinary = v
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	switch {
	case c.Storage.PurgeDelay < 0:
		return errors.New("storage.purge_delay must not be negative")
	case c.Storage.SweepInterval <= 0:
		return errors.New("storage.sweep_interval must be positive")
	case c.Storage.MaxAge <= 0:
		return errors.New("storage.max_age must be positive")
	case c.Upload.MaxFileMB <= 0:
		return errors.New("upload.max_file_mb must be positive")
	case c.Upload.MaxBatchFiles <= 0:
		return errors.New("upload.max_batch_files must be positive")
	case len(c.Upload.AllowedTypes) == 0:
		return errors.New("upload.allowed_types must not be empty")
	case c.Pipeline.StageTimeout <= 0:
		return errors.New("pipeline.stage_timeout must be positive")
	case c.Pipeline.ChromePoolSize < 0:
		return errors.New("pipeline.chrome_pool_size must not be negative")
	case c.RateLimiter.UserLimit < 0:
		return errors.New("rate_limiter.user_limit must not be negative")
	case c.RateLimiter.UserLimit > 0 && c.RateLimiter.Interval <= 0:
		return errors.New("rate_limiter.interval must be positive")
	case c.Auth.Postgres.Host != "" && c.Auth.ReloadInterval <= 0:
		return errors.New("auth.reload_interval must be positive")
	}
	return nil
}

// MaxFileBytes is the per-file upload limit.
func (c Config) MaxFileBytes() int64 {
	return int64(c.Upload.MaxFileMB) << 20
}

// Dir returns the absolute path of one of the storage directories.
func (c StorageConfig) Dir(name string) string {
	base := c.BaseDir
	if base == "" {
		base = "."
	}
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return filepath.Join(base, name)
}
