// Package config builds runtime configuration from the environment so main
// stays lean. Engine thresholds are deployment tunables, never recompiled
// constants: operators adjust quota and match sensitivity per deployment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for engine tunables. Threshold defaults mirror the verification
// backend this engine replaced.
const (
	DefaultMaxDailyAttempts         = 10
	DefaultAdherenceNotifyThreshold = 10
	DefaultAdherenceDegradingFloor  = 7
	DefaultMatchThreshold           = 0.65
	DefaultTextScoreMinThreshold    = 0.25
	DefaultMaxReferenceImages       = 5
	DefaultScoringTimeout           = 30 * time.Second
	DefaultStateRetryLimit          = 5
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Engine captures the tunables of the signal evaluation pipeline.
type Engine struct {
	// MaxDailyAttempts caps verification attempts per (subject, medicine, day).
	MaxDailyAttempts int
	// AdherenceNotifyThreshold is the consecutive-failure count that opens an
	// ADHERENCE alert.
	AdherenceNotifyThreshold int
	// AdherenceDegradingFloor is the consecutive-failure count at which the
	// status snapshot reports DEGRADING. Bookkeeping only; no alert.
	AdherenceDegradingFloor int
	// MatchThreshold is the similarity cutoff for approving an attempt.
	MatchThreshold float64
	// TextScoreMinThreshold gates approval when the scorer reports a text
	// similarity score.
	TextScoreMinThreshold float64
	// MaxReferenceImages bounds how many stored reference images are scored
	// per attempt.
	MaxReferenceImages int
	// StateRetryLimit bounds optimistic-lock retries before the engine reports
	// itself unavailable.
	StateRetryLimit int
}

// Scoring configures the external image-similarity service client.
// Unlike the backing stores, which fall back to in-memory
// implementations, the scorer has no substitute: BaseURL is the one
// setting that must be provided.
type Scoring struct {
	BaseURL string
	Timeout time.Duration
}

// Postgres configures the durable signal/alert stores. Empty URL selects the
// in-memory stores.
type Postgres struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis configures the fan-out pub/sub bridge. Empty URL disables the bridge
// and fan-out stays in-process.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the alert journal publisher. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is the top-level runtime configuration.
type Config struct {
	Server   Server
	Engine   Engine
	Scoring  Scoring
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// FromEnv builds a Config from environment variables. A .env file in the
// working directory is loaded first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr: envString("CARESIGNAL_ADDR", ":8080"),
		},
		Engine: Engine{
			MaxDailyAttempts:         envInt("MAX_DAILY_ATTEMPTS", DefaultMaxDailyAttempts),
			AdherenceNotifyThreshold: envInt("ADHERENCE_NOTIFY_THRESHOLD", DefaultAdherenceNotifyThreshold),
			AdherenceDegradingFloor:  envInt("ADHERENCE_DEGRADING_FLOOR", DefaultAdherenceDegradingFloor),
			MatchThreshold:           envFloat("MATCH_THRESHOLD", DefaultMatchThreshold),
			TextScoreMinThreshold:    envFloat("TEXT_SCORE_MIN_THRESHOLD", DefaultTextScoreMinThreshold),
			MaxReferenceImages:       envInt("MAX_REFERENCE_IMAGES", DefaultMaxReferenceImages),
			StateRetryLimit:          envInt("STATE_RETRY_LIMIT", DefaultStateRetryLimit),
		},
		Scoring: Scoring{
			BaseURL: os.Getenv("SCORING_BASE_URL"),
			Timeout: envDuration("SCORING_TIMEOUT", DefaultScoringTimeout),
		},
		Postgres: Postgres{
			URL:          os.Getenv("POSTGRES_URL"),
			MaxOpenConns: envInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_ALERT_TOPIC", "caresignal.alerts"),
		},
	}
}

// Validate reports settings that have no workable fallback. Stores and
// brokers degrade to in-process implementations when unset; the
// similarity scorer does not.
func (c Config) Validate() error {
	if c.Scoring.BaseURL == "" {
		return errors.New("SCORING_BASE_URL is required: photo verification depends on the similarity scorer")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
