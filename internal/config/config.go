// Package config loads feedback-hub settings from the environment.
//
// Every variable has a default. Values that are present but malformed, and
// combinations that cannot work, are reported together by Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists browser origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
}

// LLMConfig points at an OpenAI-compatible chat-completions gateway.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// StorageConfig configures the S3-compatible bucket that holds uploads.
// Uploads are disabled when Endpoint is empty.
type StorageConfig struct {
	Endpoint      string // host[:port], no scheme
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// Enabled reports whether object storage was configured.
func (s StorageConfig) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// Config is the full runtime configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DBPath         string
	UploadMaxBytes int64

	LLM     LLMConfig
	Storage StorageConfig

	RateRPS   float64
	RateBurst int
	// RateGenerationCost is charged for requests that call the LLM.
	RateGenerationCost int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// Load reads the environment, applies defaults and validates the result.
// The returned error joins every problem found.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(e.str("GIN_MODE", "release")),

		LogLevel:       logLevel(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath:         e.str("DB_PATH", "feedback.db"),
		UploadMaxBytes: int64(e.int("UPLOAD_MAX_BYTES", 20<<20)),

		LLM: LLMConfig{
			APIKey:  e.str("LLM_API_KEY", ""),
			BaseURL: e.str("LLM_BASE_URL", "https://ai.gateway.lovable.dev/v1"),
			Model:   e.str("LLM_MODEL", "google/gemini-2.5-flash"),
			Timeout: e.dur("LLM_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:      e.str("S3_ENDPOINT", ""),
			AccessKey:     e.str("S3_ACCESS_KEY", ""),
			SecretKey:     e.str("S3_SECRET_KEY", ""),
			Bucket:        e.str("S3_BUCKET", "project-files"),
			Region:        e.str("S3_REGION", "us-east-1"),
			UseSSL:        e.bool("S3_USE_SSL", false),
			PublicBaseURL: e.str("S3_PUBLIC_BASE_URL", ""),
		},

		RateRPS:            e.float("RATE_RPS", 5),
		RateBurst:          e.int("RATE_BURST", 10),
		RateGenerationCost: e.int("RATE_GENERATION_COST", 3),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "feedback-hub"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(!blank(c.Port), "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(!blank(c.DBPath), "DB_PATH must not be empty")
	check(c.UploadMaxBytes > 0, "UPLOAD_MAX_BYTES must be > 0")
	check(!blank(c.LLM.BaseURL), "LLM_BASE_URL must not be empty")
	check(!blank(c.LLM.Model), "LLM_MODEL must not be empty")
	check(c.LLM.Timeout > 0, "LLM_TIMEOUT must be positive")
	check(c.LLM.Timeout < c.WriteTimeout, "LLM_TIMEOUT must be shorter than WRITE_TIMEOUT")
	if c.Storage.Enabled() {
		check(!blank(c.Storage.AccessKey) && !blank(c.Storage.SecretKey),
			"S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
		check(!blank(c.Storage.Bucket), "S3_BUCKET must not be empty")
	}
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.RateGenerationCost >= 1, "RATE_GENERATION_COST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed variables and remembers the ones that failed to parse.
type env struct {
	errs []error
}

func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *env) bad(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid %s", k, v, want))
}

func (e *env) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(k, v, "integer")
		return def
	}
	return n
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(k, v, "number")
		return def
	}
	return f
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(k, v, "boolean")
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad(k, v, "duration")
		return def
	}
	return d
}

func ginMode(s string) string {
	switch s = strings.ToLower(s); s {
	case "debug", "release", "test":
		return s
	}
	return "release"
}

func logLevel(s string) string {
	if s = strings.ToLower(s); s == "warning" {
		return "warn"
	}
	return s
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
