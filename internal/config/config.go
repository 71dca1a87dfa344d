package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "YTSCAN"

// Config holds all application configuration.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	YouTube YouTubeConfig `mapstructure:"youtube"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScanConfig holds the defaults for a channel scan.
type ScanConfig struct {
	ContentType         string        `mapstructure:"content_type"`
	ScanLimit           int           `mapstructure:"scan_limit"`
	MinViews            int64         `mapstructure:"min_views"`
	MaxResults          int           `mapstructure:"max_results"`
	PopularFirst        bool          `mapstructure:"popular_first"`
	EarlyStop           bool          `mapstructure:"early_stop"`
	StreakTolerance     int           `mapstructure:"streak_tolerance"`
	Language            string        `mapstructure:"language"`
	AllowAuto           bool          `mapstructure:"allow_auto"`
	TranscriptMode      string        `mapstructure:"transcript_mode"`
	IncludeErrorDetails bool          `mapstructure:"include_error_details"`
	DetailDelay         time.Duration `mapstructure:"detail_delay"`
	ListingDelay        time.Duration `mapstructure:"listing_delay"`
}

// YouTubeConfig holds credentials and tooling for YouTube access.
type YouTubeConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APIBaseURL  string `mapstructure:"api_base_url"`
	CookiesPath string `mapstructure:"cookies"`
	JSRuntime   string `mapstructure:"js_runtime"`
	Proxy       string `mapstructure:"proxy"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LoadDotEnv exports variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := strings.TrimSpace(configPath)
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional unprefixed names are honored after the prefixed ones.
	_ = v.BindEnv("youtube.api_key", EnvPrefix+"_YOUTUBE_API_KEY", "YT_API_KEY", "YOUTUBE_API_KEY")
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// SearchPaths lists the config files tried when no path is given.
func SearchPaths() []string {
	paths := []string{"ytscan.yaml", "ytscan.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "yt-channel-scan", "config.yaml"))
	}
	return paths
}

func findConfigFile() string {
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.content_type", "shorts")
	v.SetDefault("scan.scan_limit", 600)
	v.SetDefault("scan.min_views", 300000)
	v.SetDefault("scan.max_results", 150)
	v.SetDefault("scan.popular_first", true)
	v.SetDefault("scan.early_stop", true)
	v.SetDefault("scan.streak_tolerance", 10)
	v.SetDefault("scan.language", "en")
	v.SetDefault("scan.allow_auto", true)
	v.SetDefault("scan.transcript_mode", "auto")
	v.SetDefault("scan.include_error_details", true)
	v.SetDefault("scan.detail_delay", 250*time.Millisecond)
	v.SetDefault("scan.listing_delay", 120*time.Millisecond)

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.api_base_url", "")
	v.SetDefault("youtube.cookies", "")
	v.SetDefault("youtube.js_runtime", "")
	v.SetDefault("youtube.proxy", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini-transcribe")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.format", "csv")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}
