package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview assistant service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service, used when building download links.
	// Optional; if unset, links are relative.
	PublicURL string `envconfig:"PUBLIC_URL" default:""`

	// Comma separated list of origins allowed to call the API from a browser
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Deepgram STT configuration. The key is optional at load time; a missing
	// key surfaces as a configuration error when a session starts.
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramLiveURL  string `envconfig:"DEEPGRAM_LIVE_URL" default:"wss://api.deepgram.com/v1/listen"`
	DeepgramBatchURL string `envconfig:"DEEPGRAM_BATCH_URL" default:"https://api.deepgram.com"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en-US"`

	// Gemini evaluation configuration
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Capture and streaming configuration
	SampleRate          int `envconfig:"SAMPLE_RATE" default:"16000"`          // Target capture sample rate in Hz
	ChunkIntervalMs     int `envconfig:"CHUNK_INTERVAL_MS" default:"250"`      // Encoder flush interval
	AudioBufferSize     int `envconfig:"AUDIO_BUFFER_SIZE" default:"262144"`   // Capture ring buffer size in bytes
	KeepAliveIntervalMs int `envconfig:"KEEPALIVE_INTERVAL_MS" default:"8000"` // Idle time before a KeepAlive is sent
	CloseWaitMs         int `envconfig:"CLOSE_WAIT_MS" default:"1500"`         // Time to wait for final results on stop
	CaptureTimeoutSec   int `envconfig:"CAPTURE_TIMEOUT" default:"0"`          // 0 waits for the permission prompt indefinitely

	// Batch transcription configuration
	MinBatchAudioSeconds float64 `envconfig:"MIN_BATCH_AUDIO_SECONDS" default:"1.0"`
	BatchBytesPerSecond  int     `envconfig:"BATCH_BYTES_PER_SECOND" default:"3000"` // Heuristic for compressed uploads
	MaxUploadBytes       int64   `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
	RequestTimeout       int     `envconfig:"REQUEST_TIMEOUT" default:"60"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.ChunkIntervalMs <= 0 {
		return fmt.Errorf("CHUNK_INTERVAL_MS must be positive, got %d", c.ChunkIntervalMs)
	}
	if c.AudioBufferSize < 2 {
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be at least 2, got %d", c.AudioBufferSize)
	}
	if c.MinBatchAudioSeconds < 0 {
		return fmt.Errorf("MIN_BATCH_AUDIO_SECONDS must not be negative")
	}
	if c.BatchBytesPerSecond <= 0 {
		return fmt.Errorf("BATCH_BYTES_PER_SECOND must be positive, got %d", c.BatchBytesPerSecond)
	}
	return nil
}

// ChunkInterval returns the encoder flush interval
func (c *Config) ChunkInterval() time.Duration {
	return time.Duration(c.ChunkIntervalMs) * time.Millisecond
}

// KeepAliveInterval returns the idle time after which a KeepAlive is sent
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalMs) * time.Millisecond
}

// CloseWait returns how long a stopping session waits for trailing results
func (c *Config) CloseWait() time.Duration {
	return time.Duration(c.CloseWaitMs) * time.Millisecond
}

// CaptureTimeout returns the permission prompt timeout, zero meaning none
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSec) * time.Second
}

// MinBatchDuration returns the shortest clip accepted for batch transcription
func (c *Config) MinBatchDuration() time.Duration {
	return time.Duration(c.MinBatchAudioSeconds * float64(time.Second))
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
