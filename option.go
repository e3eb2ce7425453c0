package rtassist

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/codewandler/rtassist/metrics"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2025-06-03"
)

type sessionConfig struct {
	url                string
	model              string
	apiKey             string
	instruction        string
	language           string
	voice              string
	transcriptionModel string
	temperature        float64
	speed              float64
	sampleRate         int
	latencyMS          int
	handshakeTimeout   time.Duration
	historyLimit       int
	logger             *slog.Logger
	metrics            *metrics.Collector
}

func (c *sessionConfig) latency() time.Duration {
	return time.Duration(c.latencyMS) * time.Millisecond
}

func (c *sessionConfig) validate() error {
	if c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	if c.sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.sampleRate)
	}
	if c.latencyMS <= 0 {
		return fmt.Errorf("invalid latency: %dms", c.latencyMS)
	}
	return nil
}

// endpoint is the websocket address with the model query set.
func (c *sessionConfig) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type Option func(*sessionConfig)

func WithURL(u string) Option {
	return func(config *sessionConfig) {
		config.url = u
	}
}

func WithVoice(voice string) Option {
	return func(config *sessionConfig) {
		config.voice = voice
	}
}

func WithSpeed(speed float64) Option {
	return func(config *sessionConfig) {
		config.speed = speed
	}
}

// WithSampleRate sets the rate of audio exchanged with the local device.
func WithSampleRate(sr int) Option {
	return func(config *sessionConfig) {
		config.sampleRate = sr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionConfig) {
		o.logger = logger
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *sessionConfig) {
		o.metrics = c
	}
}

func WithTemperature(temperature float64) Option {
	return func(o *sessionConfig) {
		o.temperature = temperature
	}
}

func WithModel(model string) Option {
	return func(o *sessionConfig) {
		o.model = model
	}
}

func WithTranscriptionModel(model string) Option {
	return func(o *sessionConfig) {
		o.transcriptionModel = model
	}
}

func WithKey(apiKey string) Option {
	return func(o *sessionConfig) {
		o.apiKey = apiKey
	}
}

func WithEnvKey(vars ...string) Option {
	return func(o *sessionConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				o.apiKey = k
				return
			}
		}
	}
}

// WithHandshakeTimeout bounds the wait for session.created and
// session.updated during Connect.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *sessionConfig) {
		o.handshakeTimeout = d
	}
}

// WithHistoryLimit caps the number of finalized items kept by the
// conversation.
func WithHistoryLimit(n int) Option {
	return func(o *sessionConfig) {
		o.historyLimit = n
	}
}

func WithOptions(opts ...Option) Option {
	return func(o *sessionConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() Option {
	return WithOptions(
		WithURL(DefaultURL),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithLanguage("en"),
		WithVoice("coral"),
		WithInstruction("You are a helpcenter agent and help the user."),
		WithTemperature(0.7),
		WithSampleRate(24_000),
		WithLatency(200),
		WithSpeed(1.3),
		WithModel(DefaultModel),
		WithTranscriptionModel("whisper-1"),
		WithHandshakeTimeout(10*time.Second),
		WithHistoryLimit(100),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
	)
}

func WithLanguage(language string) Option {
	return func(o *sessionConfig) {
		o.language = language
	}
}

func WithInstruction(instruction string) Option {
	return func(o *sessionConfig) {
		o.instruction = instruction
	}
}

// WithLatency sets the latency in milliseconds.
func WithLatency(latencyMS int) Option {
	return func(o *sessionConfig) {
		o.latencyMS = latencyMS
	}
}
