// Package config provides configuration management for fetcharr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8090
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultCatalogTimeout    = 10 * time.Second
	defaultSubtitleTimeout   = 25 * time.Second
	defaultProbeTimeout      = 30 * time.Second
	defaultLaunchGracePeriod = time.Second
	defaultSignatureWindow   = 60 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Storage   StorageConfig   `mapstructure:"storage"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Subtitles SubtitlesConfig `mapstructure:"subtitles"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CatalogConfig holds the connection and signing parameters for the
// external catalog service.
type CatalogConfig struct {
	// BaseURL is the catalog's root endpoint, e.g. "http://192.168.3.71:8000".
	BaseURL string `mapstructure:"base_url"`

	// Referrer identifies this service in the X-Referrer header.
	Referrer string `mapstructure:"referrer"`

	// SigningKey is the base64-encoded Fernet key shared with the catalog.
	SigningKey string `mapstructure:"signing_key"`

	// SharedSecret is the secret embedded inside each signature token.
	SharedSecret string `mapstructure:"shared_secret"`

	// AllowedReferrers is the allow-list applied when verifying inbound
	// signatures (catalog side of the mutual-auth scheme).
	AllowedReferrers []string `mapstructure:"allowed_referrers"`

	// Timeout bounds every catalog request.
	Timeout time.Duration `mapstructure:"timeout"`

	// SignatureWindow is the accepted clock skew for signature timestamps.
	SignatureWindow time.Duration `mapstructure:"signature_window"`
}

// StorageConfig holds the filesystem layout for pipeline artifacts.
type StorageConfig struct {
	// BaseDir is the storage root; downloads, subtitles, and progress
	// records live in subdirectories underneath it.
	BaseDir     string `mapstructure:"base_dir"`
	DownloadDir string `mapstructure:"download_dir"`
	SubtitleDir string `mapstructure:"subtitle_dir"`
	ProgressDir string `mapstructure:"progress_dir"`
}

// FFmpegConfig holds external tool configuration.
type FFmpegConfig struct {
	// BinaryPath is the ffmpeg binary (empty = "ffmpeg" from PATH).
	BinaryPath string `mapstructure:"binary_path"`
	// ProbePath is the ffprobe binary (empty = "ffprobe" from PATH).
	ProbePath string `mapstructure:"probe_path"`
	// ProbeTimeout bounds a single source inspection.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// SubtitlesConfig holds subtitle download configuration.
type SubtitlesConfig struct {
	// Timeout bounds one subtitle GET.
	Timeout time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds job dispatch configuration.
type PipelineConfig struct {
	// LaunchGracePeriod is how long an entry point waits for a worker to
	// fail fast before acknowledging the request as started.
	LaunchGracePeriod time.Duration `mapstructure:"launch_grace_period"`

	// StorageReportSchedule is the cron expression for the periodic
	// storage usage report (empty disables it).
	StorageReportSchedule string `mapstructure:"storage_report_schedule"`
}

// LanguagesConfig maps subtitle language codes onto the display names
// embedded in subtitle stream metadata.
type LanguagesConfig struct {
	// File optionally points at a YAML file with a codes table; entries
	// from the file override Table.
	File string `mapstructure:"file"`

	// Table is the inline code-to-display-name mapping.
	Table map[string]string `mapstructure:"table"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with FETCHARR_, using underscores for nesting.
// Example: FETCHARR_SERVER_PORT=8090.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fetcharr")
		v.AddConfigPath("$HOME/.fetcharr")
	}

	v.SetEnvPrefix("FETCHARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Languages.loadFile(); err != nil {
		return nil, fmt.Errorf("loading language table: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Catalog defaults
	v.SetDefault("catalog.base_url", "http://127.0.0.1:8000")
	v.SetDefault("catalog.referrer", "MediaEngine")
	v.SetDefault("catalog.allowed_referrers", []string{"MediaEngine"})
	v.SetDefault("catalog.timeout", defaultCatalogTimeout)
	v.SetDefault("catalog.signature_window", defaultSignatureWindow)

	// Storage defaults
	v.SetDefault("storage.base_dir", "./storage")
	v.SetDefault("storage.download_dir", "downloads")
	v.SetDefault("storage.subtitle_dir", "subtitles")
	v.SetDefault("storage.progress_dir", "progress")

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Subtitles defaults
	v.SetDefault("subtitles.timeout", defaultSubtitleTimeout)

	// Pipeline defaults
	v.SetDefault("pipeline.launch_grace_period", defaultLaunchGracePeriod)
	v.SetDefault("pipeline.storage_report_schedule", "0 * * * *")

	// Languages defaults
	v.SetDefault("languages.table", map[string]string{
		"en": "English",
		"ru": "Русские",
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Catalog.Referrer == "" {
		return fmt.Errorf("catalog.referrer is required")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.Subtitles.Timeout <= 0 {
		return fmt.Errorf("subtitles.timeout must be positive")
	}
	if c.FFmpeg.ProbeTimeout <= 0 {
		return fmt.Errorf("ffmpeg.probe_timeout must be positive")
	}
	if c.Pipeline.LaunchGracePeriod <= 0 {
		return fmt.Errorf("pipeline.launch_grace_period must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DownloadPath returns the full path to the download directory.
func (c *StorageConfig) DownloadPath() string {
	return filepath.Join(c.BaseDir, c.DownloadDir)
}

// SubtitlePath returns the full path to the subtitle directory.
func (c *StorageConfig) SubtitlePath() string {
	return filepath.Join(c.BaseDir, c.SubtitleDir)
}

// ProgressPath returns the full path to the progress directory.
func (c *StorageConfig) ProgressPath() string {
	return filepath.Join(c.BaseDir, c.ProgressDir)
}

// DisplayName resolves a subtitle language code to its display name.
// Unknown codes fall back to the code itself.
func (c *LanguagesConfig) DisplayName(code string) string {
	if name, ok := c.Table[code]; ok {
		return name
	}
	return code
}
