// Package config loads the application configuration of the rtassist
// command from a yaml file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codewandler/rtassist"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "RTASSIST"

	DefaultStoreDSN    = "file:rtassist.db?cache=shared"
	DefaultMetricsAddr = ":9464"
)

// Config stores all configuration of the application.
type Config struct {
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Store    StoreConfig    `mapstructure:"store"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// RealtimeConfig configures the realtime session.
type RealtimeConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Voice    string `mapstructure:"voice"`
	Language string `mapstructure:"language"`
	// Transcription is the model transcribing user speech.
	Transcription string        `mapstructure:"transcription_model"`
	Instructions  string        `mapstructure:"instructions"`
	Temperature   float64       `mapstructure:"temperature"`
	Speed         float64       `mapstructure:"speed"`
	SampleRate    int           `mapstructure:"sample_rate"`
	LatencyMS     int           `mapstructure:"latency_ms"`
	Handshake     time.Duration `mapstructure:"handshake_timeout"`
}

type StoreConfig struct {
	DSN  string `mapstructure:"dsn"`
	Seed bool   `mapstructure:"seed"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration from path, or from ./rtassist.yaml when path
// is empty. A missing default file is not an error. Environment variables
// override file values, e.g. RTASSIST_REALTIME_VOICE.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("rtassist")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Realtime.APIKey == "" {
		for _, name := range []string{rtassist.ApiKeyEnvVarNameShort, rtassist.ApiKeyEnvVarNameLong} {
			if key := os.Getenv(name); key != "" {
				cfg.Realtime.APIKey = key
				break
			}
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("realtime.url", rtassist.DefaultURL)
	v.SetDefault("realtime.api_key", "")
	v.SetDefault("realtime.model", rtassist.DefaultModel)
	v.SetDefault("realtime.voice", "coral")
	v.SetDefault("realtime.language", "en")
	v.SetDefault("realtime.transcription_model", "whisper-1")
	v.SetDefault("realtime.instructions", DefaultInstructions)
	v.SetDefault("realtime.temperature", 0.7)
	v.SetDefault("realtime.speed", 1.0)
	v.SetDefault("realtime.sample_rate", 24_000)
	v.SetDefault("realtime.latency_ms", 200)
	v.SetDefault("realtime.handshake_timeout", "10s")

	v.SetDefault("store.dsn", DefaultStoreDSN)
	v.SetDefault("store.seed", true)

	v.SetDefault("metrics.addr", DefaultMetricsAddr)

	v.SetDefault("log.level", "info")
}

// SessionOptions maps the realtime section onto session options.
func (c *Config) SessionOptions() []rtassist.Option {
	r := c.Realtime
	opts := []rtassist.Option{
		rtassist.WithURL(r.URL),
		rtassist.WithModel(r.Model),
		rtassist.WithVoice(r.Voice),
		rtassist.WithLanguage(r.Language),
		rtassist.WithTranscriptionModel(r.Transcription),
		rtassist.WithInstruction(r.Instructions),
		rtassist.WithTemperature(r.Temperature),
		rtassist.WithSpeed(r.Speed),
		rtassist.WithSampleRate(r.SampleRate),
		rtassist.WithLatency(r.LatencyMS),
	}
	if r.APIKey != "" {
		opts = append(opts, rtassist.WithKey(r.APIKey))
	}
	if r.Handshake > 0 {
		opts = append(opts, rtassist.WithHandshakeTimeout(r.Handshake))
	}
	return opts
}

// Level parses the log level, falling back to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
