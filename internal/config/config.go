// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds core service settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	// MaxImageBytes bounds the decoded size of a single frame or source
	// image accepted over the protocol.
	MaxImageBytes int64
}

// VisionConfig holds vision collaborator settings.
type VisionConfig struct {
	Provider       string // "remote" or "mock"
	Endpoint       string
	AuthToken      string
	RequestTimeout time.Duration
	// MinInliers and MinConfidence gate whether an alignment is trusted.
	MinInliers    int
	MinConfidence float64
}

// SpeechConfig holds speech bridge settings.
type SpeechConfig struct {
	Provider     string // "google" or "mock"
	LanguageCode string
	SampleRateHz int
}

// ChirpConfig holds the proximity feedback mapping parameters.
type ChirpConfig struct {
	MinFreq     float64
	MaxFreq     float64
	Sigma       float64
	MaxDistance float64
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicStep   string
	TopicSpeech string
	Principal   string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsPort string
}

// Configuration is the root configuration for the service.
type Configuration struct {
	Service       ServiceConfig
	Vision        VisionConfig
	Speech        SpeechConfig
	Chirp         ChirpConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// Load reads configuration from the environment, falling back to defaults
// for missing or unparseable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-watvision")

	cfg := &Configuration{
		Service: ServiceConfig{
			Principal:     principal,
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			MaxImageBytes: envOrDefaultInt64("MAX_IMAGE_BYTES", 8*1024*1024),
		},
		Vision: VisionConfig{
			Provider:       envOrDefault("VISION_PROVIDER", "mock"),
			Endpoint:       envOrDefault("VISION_ENDPOINT", "http://localhost:9090"),
			AuthToken:      envOrDefault("VISION_AUTH_TOKEN", ""),
			RequestTimeout: envOrDefaultDuration("VISION_REQUEST_TIMEOUT", 10*time.Second),
			MinInliers:     envOrDefaultInt("VISION_MIN_INLIERS", 8),
			MinConfidence:  envOrDefaultFloat("VISION_MIN_CONFIDENCE", 0.25),
		},
		Speech: SpeechConfig{
			Provider:     envOrDefault("SPEECH_PROVIDER", "mock"),
			LanguageCode: envOrDefault("SPEECH_LANGUAGE_CODE", "en-US"),
			SampleRateHz: envOrDefaultInt("SPEECH_SAMPLE_RATE_HZ", 24000),
		},
		Chirp: ChirpConfig{
			MinFreq:     envOrDefaultFloat("CHIRP_MIN_FREQ", 200),
			MaxFreq:     envOrDefaultFloat("CHIRP_MAX_FREQ", 2000),
			Sigma:       envOrDefaultFloat("CHIRP_SIGMA", 60),
			MaxDistance: envOrDefaultFloat("CHIRP_MAX_DISTANCE", 200),
		},
		Kafka: KafkaConfig{
			Enabled:     envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:     envOrDefaultList("KAFKA_BROKERS", nil),
			TopicStep:   envOrDefault("KAFKA_TOPIC_STEP", "assist.step"),
			TopicSpeech: envOrDefault("KAFKA_TOPIC_SPEECH", "assist.speech"),
			Principal:   envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsPort: envOrDefault("METRICS_PORT", "9091"),
		},
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
