// Package config resolves runtime settings from defaults, an optional
// todoapp.yaml, a .env file, TODOAPP_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"todoapp/store"
)

const (
	configName = "todoapp"
	envPrefix  = "TODOAPP"
)

// Config holds the settings shared by the CLI and the TUI.
type Config struct {
	DataDir  string `mapstructure:"data_dir" validate:"required"`
	Backend  string `mapstructure:"backend" validate:"required,oneof=file sqlite memory"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFile  string `mapstructure:"log_file"`
}

// LogPath returns where the TUI writes its log.
func (c Config) LogPath() string {
	if c.LogFile == "" {
		return filepath.Join(c.DataDir, "todoapp.log")
	}
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

var validate = validator.New()

// Validate checks field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultDataDir is the per-user directory holding persisted state.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "todoapp")
	}
	return ".todoapp"
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config path. Empty searches the working
	// directory and the default data directory for todoapp.yaml.
	ConfigFile string
	// EnvFile is a dotenv file to load. Missing files are ignored.
	EnvFile string
	// Flags are bound by their names with dashes mapped to underscores.
	Flags *pflag.FlagSet
}

// Load resolves configuration in the usual viper precedence:
// flags, environment, config file, defaults.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("backend", store.BackendFile)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDataDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for _, name := range []string{"data-dir", "backend", "log-level", "log-file"} {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = expandHome(strings.TrimSpace(cfg.DataDir))
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
