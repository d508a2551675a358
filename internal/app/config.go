package app

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/itechstro/lime/internal/cryptosuite"
)

// Config holds runtime wiring options for building the app, loaded from a
// config file, environment (LIME_ prefix), and flags via LoadConfig.
type Config struct {
	Home     string // config directory, e.g. $HOME/.lime
	RelayURL string // relay base URL, e.g. http://127.0.0.1:8080
	Curve    cryptosuite.CurveID
	LogLevel string
	LogFormat string

	HTTP *http.Client // optional; defaults to http.DefaultClient

	// The remaining fields mirror spec.md §6's configuration table.
	OPKBatchSize            int
	OPKServerLowLimit       int
	SignedPreKeyLifetime    time.Duration
	SignedPreKeyGrace       time.Duration
	MaxMessageSkipPerChain  int
	MaxCachedChains         int
	SessionDrainingGrace    time.Duration
}

// defaults mirrors spec.md §6's configuration table.
func defaults() Config {
	return Config{
		Home:                   "$HOME/.lime",
		RelayURL:               "http://127.0.0.1:8080",
		Curve:                  cryptosuite.Curve255,
		LogLevel:               "info",
		LogFormat:              "console",
		OPKBatchSize:           100,
		OPKServerLowLimit:      80,
		SignedPreKeyLifetime:   7 * 24 * time.Hour,
		SignedPreKeyGrace:      14 * 24 * time.Hour,
		MaxMessageSkipPerChain: 1024,
		MaxCachedChains:        5,
		SessionDrainingGrace:   24 * time.Hour,
	}
}

// LoadConfig reads configFile (if non-empty) plus LIME_-prefixed
// environment variables into a Config, layered over spec.md §6's defaults.
// A missing configFile is not an error; unset values keep their default.
func LoadConfig(configFile string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetEnvPrefix("LIME")
	v.AutomaticEnv()
	v.SetDefault("home", cfg.Home)
	v.SetDefault("relay_url", cfg.RelayURL)
	v.SetDefault("curve", "curve255")
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("opk_batch_size", cfg.OPKBatchSize)
	v.SetDefault("opk_server_low_limit", cfg.OPKServerLowLimit)
	v.SetDefault("spk_lifetime", cfg.SignedPreKeyLifetime)
	v.SetDefault("spk_grace", cfg.SignedPreKeyGrace)
	v.SetDefault("max_message_skip_per_chain", cfg.MaxMessageSkipPerChain)
	v.SetDefault("max_cached_chains", cfg.MaxCachedChains)
	v.SetDefault("session_draining_grace", cfg.SessionDrainingGrace)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	cfg.Home = v.GetString("home")
	cfg.RelayURL = v.GetString("relay_url")
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFormat = v.GetString("log_format")
	cfg.OPKBatchSize = v.GetInt("opk_batch_size")
	cfg.OPKServerLowLimit = v.GetInt("opk_server_low_limit")
	cfg.SignedPreKeyLifetime = v.GetDuration("spk_lifetime")
	cfg.SignedPreKeyGrace = v.GetDuration("spk_grace")
	cfg.MaxMessageSkipPerChain = v.GetInt("max_message_skip_per_chain")
	cfg.MaxCachedChains = v.GetInt("max_cached_chains")
	cfg.SessionDrainingGrace = v.GetDuration("session_draining_grace")

	switch v.GetString("curve") {
	case "curve448":
		cfg.Curve = cryptosuite.Curve448
	default:
		cfg.Curve = cryptosuite.Curve255
	}

	return cfg, nil
}
