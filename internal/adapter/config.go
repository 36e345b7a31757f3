package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	User    UserConfig    `mapstructure:"user"`
	Player  PlayerConfig  `mapstructure:"player"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig holds the reading backend connection settings
type BackendConfig struct {
	URL               string        `mapstructure:"url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Retries           int           `mapstructure:"retries"`
}

// UserConfig holds the signed-in identity (issued by the auth provider)
type UserConfig struct {
	ID    string `mapstructure:"id"`
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
}

// PlayerConfig holds audio player configuration
type PlayerConfig struct {
	Command      string        `mapstructure:"command"`       // empty = auto-detect, "none" = silent clock
	Args         []string      `mapstructure:"args"`
	StartFlag    string        `mapstructure:"start_flag"`    // e.g., "--start=" or "-ss "
	TickInterval time.Duration `mapstructure:"tick_interval"` // time update cadence
}

// ReaderConfig holds reading preferences
type ReaderConfig struct {
	Voice         string  `mapstructure:"voice"`
	Rate          int     `mapstructure:"rate"`
	Pitch         int     `mapstructure:"pitch"`
	ScrollMargin  int     `mapstructure:"scroll_margin"` // lines kept between the highlight and the pane edge
	ScrollRatio   float64 `mapstructure:"scroll_ratio"`  // smooth scroll step fraction
	SummaryLength int     `mapstructure:"summary_sentences"`
	DemoText      string  `mapstructure:"demo_text"`
}

// CacheConfig holds local cache settings
type CacheConfig struct {
	SynthesisTTL time.Duration `mapstructure:"synthesis_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultDemoText is read when the user asks for a demo document
const DefaultDemoText = `Artificial Intelligence (AI) is intelligence demonstrated by machines, as opposed to the natural intelligence displayed by humans or animals. Leading AI textbooks define the field as the study of "intelligent agents": any system that perceives its environment and takes actions that maximize its chance of achieving its goals. Some popular accounts use the term "artificial intelligence" to describe machines that mimic "cognitive" functions that humans associate with the human mind, such as "learning" and "problem solving".`

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:               "http://localhost:8000",
			Timeout:           120 * time.Second,
			RequestsPerSecond: 5,
			Retries:           2,
		},
		Player: PlayerConfig{
			Command:      "",
			Args:         []string{},
			TickInterval: 250 * time.Millisecond,
		},
		Reader: ReaderConfig{
			Voice:         "en-US-AriaNeural",
			ScrollMargin:  3,
			ScrollRatio:   0.35,
			SummaryLength: 5,
			DemoText:      DefaultDemoText,
		},
		Cache: CacheConfig{
			SynthesisTTL: time.Hour,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lector", "lector.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lector", "lector.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lector")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lector")
	}
}

// LoadConfig loads configuration from .env, the config file and environment
func LoadConfig() (*Config, error) {
	// A missing .env is fine; values may come from the real environment.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides, e.g. LECTOR_BACKEND_URL
	viper.SetEnvPrefix("LECTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv("backend.url", "user.id", "user.email", "user.name", "player.command", "logging.level")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// bindEnv registers keys that have no file value so AutomaticEnv sees them
// during Unmarshal.
func bindEnv(keys ...string) {
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	viper.Set("backend.url", cfg.Backend.URL)
	viper.Set("backend.timeout", cfg.Backend.Timeout.String())
	viper.Set("backend.requests_per_second", cfg.Backend.RequestsPerSecond)
	viper.Set("backend.retries", cfg.Backend.Retries)

	viper.Set("user.id", cfg.User.ID)
	viper.Set("user.email", cfg.User.Email)
	viper.Set("user.name", cfg.User.Name)

	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)
	viper.Set("player.start_flag", cfg.Player.StartFlag)
	viper.Set("player.tick_interval", cfg.Player.TickInterval.String())

	viper.Set("reader.voice", cfg.Reader.Voice)
	viper.Set("reader.rate", cfg.Reader.Rate)
	viper.Set("reader.pitch", cfg.Reader.Pitch)
	viper.Set("reader.scroll_margin", cfg.Reader.ScrollMargin)
	viper.Set("reader.scroll_ratio", cfg.Reader.ScrollRatio)
	viper.Set("reader.summary_sentences", cfg.Reader.SummaryLength)

	viper.Set("cache.synthesis_ttl", cfg.Cache.SynthesisTTL.String())

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	return writeConfig()
}

// ClearUserConfig removes the signed-in identity while preserving other settings
func ClearUserConfig() error {
	viper.Set("user.id", "")
	viper.Set("user.email", "")
	viper.Set("user.name", "")
	return writeConfig()
}

func writeConfig() error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if a backend URL and a user identity are set
func (c *Config) IsConfigured() bool {
	return c.Backend.URL != "" && c.User.ID != ""
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "lector", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lector", "cache")
	}
}

// ClearCache removes all cached data
func ClearCache() error {
	cachePath := defaultCachePath()
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the cache directory path
func GetCachePath() string {
	return defaultCachePath()
}
