package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Binary roles accepted by Validate.
const (
	RoleAPI    = "api"
	RoleWorker = "worker"
)

type Config struct {
	DatabaseURL     string
	RedisURL        string
	TemporalAddress string
	TaskQueue       string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	// Intelligence provider (any OpenAI-compatible endpoint).
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Incident source (Tavily-compatible search API).
	SearchBaseURL string
	SearchAPIKey  string

	DispatchWebhookURL string
	DispatchTemplate   string

	ArchiveBucket    string
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string

	// ReleaseViaTemporal makes the API route approvals through the worker's
	// release workflow instead of dispatching in process.
	ReleaseViaTemporal bool

	RegistryFile string
	HospitalName string
	HospitalLat  float64
	HospitalLng  float64

	// ScanAddress anchors the category queries; empty uses the default city.
	ScanAddress string
	// ScanSources limits the category queries to these source tags.
	ScanSources         []string
	ScanRadiusKm        float64
	ScanInterval        time.Duration
	EnableAutoScan      bool
	DedupTTL            time.Duration
	QueryCacheTTL       time.Duration
	AlertTopN           int
	MaxIncidentsPerScan int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TaskQueue:       getEnv("TEMPORAL_TASK_QUEUE", "warroom-tasks"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8000"),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServiceName:     getEnv("SERVICE_NAME", "warroom"),

		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTimeout: getDuration("LLM_TIMEOUT", 30*time.Second),

		SearchBaseURL: getEnv("SEARCH_BASE_URL", "https://api.tavily.com"),
		SearchAPIKey:  getEnv("SEARCH_API_KEY", ""),

		DispatchWebhookURL: getEnv("DISPATCH_WEBHOOK_URL", ""),
		DispatchTemplate:   getEnv("DISPATCH_TEMPLATE", "generic"),

		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveEndpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveRegion:    getEnv("ARCHIVE_REGION", "us-east-1"),
		ArchiveAccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),

		ReleaseViaTemporal: getBool("RELEASE_VIA_TEMPORAL", false),

		RegistryFile: getEnv("REGISTRY_FILE", ""),
		HospitalName: getEnv("HOSPITAL_NAME", "City General Hospital"),
		HospitalLat:  getFloat("HOSPITAL_LAT", 28.6139),
		HospitalLng:  getFloat("HOSPITAL_LNG", 77.2090),

		ScanAddress:         getEnv("SCAN_ADDRESS", ""),
		ScanSources:         getList("SCAN_SOURCES"),
		ScanRadiusKm:        getFloat("SCAN_RADIUS_KM", 15),
		ScanInterval:        getDuration("SCAN_INTERVAL", 60*time.Second),
		EnableAutoScan:      getBool("ENABLE_AUTO_SCAN", true),
		DedupTTL:            getDuration("DEDUP_TTL", 24*time.Hour),
		QueryCacheTTL:       getDuration("QUERY_CACHE_TTL", 5*time.Minute),
		AlertTopN:           getInt("ALERT_TOP_N", 3),
		MaxIncidentsPerScan: getInt("MAX_INCIDENTS_PER_SCAN", 10),
	}

	return cfg, nil
}

// Validate checks that the fields required by the given binary role are set.
func (c *Config) Validate(role string) error {
	var errs []error

	switch role {
	case RoleAPI:
		if c.HTTPListenAddr == "" {
			errs = append(errs, errors.New("HTTP_LISTEN_ADDR is required"))
		}
		if c.ScanInterval <= 0 {
			errs = append(errs, errors.New("SCAN_INTERVAL must be positive"))
		}
		if c.ReleaseViaTemporal && c.TemporalAddress == "" {
			errs = append(errs, errors.New("TEMPORAL_ADDRESS is required when RELEASE_VIA_TEMPORAL is set"))
		}
	case RoleWorker:
		if c.TemporalAddress == "" {
			errs = append(errs, errors.New("TEMPORAL_ADDRESS is required"))
		}
		if c.TaskQueue == "" {
			errs = append(errs, errors.New("TEMPORAL_TASK_QUEUE is required"))
		}
		if c.ScanInterval <= 0 {
			errs = append(errs, errors.New("SCAN_INTERVAL must be positive"))
		}
	default:
		errs = append(errs, errors.New("unknown role "+role))
	}

	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		errs = append(errs, errors.New("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set"))
	}
	if c.DispatchTemplate != "generic" && c.DispatchTemplate != "slack" {
		errs = append(errs, errors.New("DISPATCH_TEMPLATE must be generic or slack"))
	}
	if c.AlertTopN < 0 {
		errs = append(errs, errors.New("ALERT_TOP_N must not be negative"))
	}
	if c.ScanRadiusKm <= 0 {
		errs = append(errs, errors.New("SCAN_RADIUS_KM must be positive"))
	}

	return errors.Join(errs...)
}

var placeholderKeys = map[string]bool{
	"":                   true,
	"demo":               true,
	"changeme":           true,
	"tvly-your-key-here": true,
	"your-api-key":       true,
}

// SearchEnabled reports whether a real search API key is configured. When it
// is false the scanner uses the built-in demo source.
func (c *Config) SearchEnabled() bool {
	return !placeholderKeys[strings.TrimSpace(c.SearchAPIKey)]
}

// LLMEnabled reports whether an intelligence provider key is configured.
func (c *Config) LLMEnabled() bool {
	return !placeholderKeys[strings.TrimSpace(c.LLMAPIKey)]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
