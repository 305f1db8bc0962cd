package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables the app reads,
// e.g. FLASHDECK_API_KEY becomes the api_key setting.
const envPrefix = "FLASHDECK_"

// Config holds everything the app needs to run. Sources are layered:
// defaults, then the yaml file, then environment, then flags.
type Config struct {
	Addr          string  `koanf:"addr" validate:"required"`
	DBPath        string  `koanf:"db_path" validate:"required"`
	ReposDir      string  `koanf:"repos_dir" validate:"required"`
	Password      string  `koanf:"password"`
	APIKey        string  `koanf:"api_key"`
	SpendingLimit float64 `koanf:"spending_limit" validate:"gte=0"`
	SyncMinutes   int     `koanf:"sync_minutes" validate:"gte=0"`
}

func defaults() Config {
	return Config{
		Addr:          ":8080",
		DBPath:        "flashdeck.db",
		ReposDir:      "repos",
		SpendingLimit: 10.0,
		SyncMinutes:   60,
	}
}

// Load builds the configuration from the yaml file at path, the FLASHDECK_*
// environment, and the parsed flag set, and validates the result. When
// required is false the file may be absent (the default path is optional);
// a missing required path, i.e. one the user asked for, is an error.
func Load(path string, required bool, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !required:
			// The default config file is optional.
		default:
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		// Flag names use dashes (--db-path); settings use underscores.
		if err := k.Load(posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, interface{}) {
			return strings.ReplaceAll(key, "-", "_"), value
		}), nil); err != nil {
			return Config{}, fmt.Errorf("loading flags: %w", err)
		}
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
