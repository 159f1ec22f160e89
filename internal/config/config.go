package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete sb configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	// User is the account imports act on behalf of when --user is not given
	User   string       `mapstructure:"user"`
	Import ImportConfig `mapstructure:"import"`
	Log    LogConfig    `mapstructure:"log"`
	UI     UIConfig     `mapstructure:"ui"`
}

// DatabaseConfig locates the SQLite store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig controls the importer
type ImportConfig struct {
	// DefaultType is the point type applied when a node has no TYPE property
	DefaultType string `mapstructure:"default_type"`
	// ShiftOffset is the first-phase lift used when shifting units up
	ShiftOffset int `mapstructure:"shift_offset"`
	// TodoKeywords are extra TODO keywords recognised by the outline parser,
	// on top of the delivery state names found in the store
	TodoKeywords []string `mapstructure:"todo_keywords"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// UIConfig controls terminal output
type UIConfig struct {
	// Color is "auto", "always" or "never"
	Color string `mapstructure:"color"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(DataDir(), "syllabooster.db"),
		},
		Import: ImportConfig{
			DefaultType: "theory",
			ShiftOffset: 10000,
		},
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		UI: UIConfig{
			Color: "auto",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("database.path", defaults.Database.Path)
	viper.SetDefault("user", defaults.User)

	viper.SetDefault("import.default_type", defaults.Import.DefaultType)
	viper.SetDefault("import.shift_offset", defaults.Import.ShiftOffset)
	viper.SetDefault("import.todo_keywords", defaults.Import.TodoKeywords)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	viper.SetDefault("log.max_backups", defaults.Log.MaxBackups)

	viper.SetDefault("ui.color", defaults.UI.Color)
}

// Init points viper at the config file and the SB_ environment. An explicit
// cfgFile wins over the search path. A missing config file is not an error.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("syllabooster")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if strings.TrimSpace(c.Import.DefaultType) == "" {
		errs = append(errs, fmt.Errorf("import.default_type is required"))
	}
	if c.Import.ShiftOffset < 0 {
		errs = append(errs, fmt.Errorf("import.shift_offset must not be negative (got %d)", c.Import.ShiftOffset))
	}
	switch c.UI.Color {
	case "", "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("ui.color must be auto, always or never (got %q)", c.UI.Color))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb and log.max_backups must not be negative"))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "syllabooster")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syllabooster"
	}
	return filepath.Join(home, ".config", "syllabooster")
}

// DataDir returns the directory holding the default database
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "syllabooster")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syllabooster"
	}
	return filepath.Join(home, ".local", "share", "syllabooster")
}
