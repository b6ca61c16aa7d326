package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyDatabaseURL(t *testing.T) {
	// Config loads without a database; the API then runs with store fallbacks.
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "", cfg.DatabaseURL)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"TEMPORAL_ADDRESS", "HTTP_LISTEN_ADDR", "LOG_LEVEL", "SCAN_RADIUS_KM",
		"SCAN_INTERVAL", "ENABLE_AUTO_SCAN", "DEDUP_TTL", "QUERY_CACHE_TTL", "ALERT_TOP_N",
		"MAX_INCIDENTS_PER_SCAN", "DISPATCH_TEMPLATE", "TEMPORAL_TASK_QUEUE", "RELEASE_VIA_TEMPORAL"} {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:7233", cfg.TemporalAddress)
	assert.Equal(t, ":8000", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15.0, cfg.ScanRadiusKm)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)
	assert.True(t, cfg.EnableAutoScan)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL)
	assert.Equal(t, 5*time.Minute, cfg.QueryCacheTTL)
	assert.Equal(t, 3, cfg.AlertTopN)
	assert.Equal(t, 10, cfg.MaxIncidentsPerScan)
	assert.Equal(t, "generic", cfg.DispatchTemplate)
	assert.Equal(t, "warroom-tasks", cfg.TaskQueue)
	assert.False(t, cfg.ReleaseViaTemporal)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://core:5432/warroom")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TEMPORAL_ADDRESS", "temporal.example.com:7233")
	t.Setenv("HTTP_LISTEN_ADDR", ":7071")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SCAN_INTERVAL", "2m")
	t.Setenv("ENABLE_AUTO_SCAN", "false")
	t.Setenv("ALERT_TOP_N", "2")
	t.Setenv("HOSPITAL_LAT", "19.07")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://core:5432/warroom", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalAddress)
	assert.Equal(t, ":7071", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.ScanInterval)
	assert.False(t, cfg.EnableAutoScan)
	assert.Equal(t, 2, cfg.AlertTopN)
	assert.Equal(t, 19.07, cfg.HospitalLat)
}

func TestLoad_ScanSources(t *testing.T) {
	t.Setenv("SCAN_SOURCES", "news, emergency,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"news", "emergency"}, cfg.ScanSources)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("ALERT_TOP_N", "three")
	t.Setenv("SCAN_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.AlertTopN)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)
}

func TestValidate_API_MissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate(RoleAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_LISTEN_ADDR")
	assert.Contains(t, err.Error(), "SCAN_INTERVAL")
	assert.Contains(t, err.Error(), "DISPATCH_TEMPLATE")
}

func TestValidate_Worker_MissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate(RoleWorker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_ADDRESS")
}

func TestValidate_UnknownRole(t *testing.T) {
	err := validConfig().Validate("node-agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestValidate_TLS_MismatchedCertKey(t *testing.T) {
	cfg := validConfig()
	cfg.TemporalTLSCert = "/path/to/cert.pem"
	err := cfg.Validate(RoleWorker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate(RoleAPI))
	assert.NoError(t, cfg.Validate(RoleWorker))
}

func TestSearchEnabled(t *testing.T) {
	cfg := &Config{SearchAPIKey: "tvly-your-key-here"}
	assert.False(t, cfg.SearchEnabled())

	cfg.SearchAPIKey = "demo"
	assert.False(t, cfg.SearchEnabled())

	cfg.SearchAPIKey = "tvly-abc123"
	assert.True(t, cfg.SearchEnabled())
}

func validConfig() *Config {
	return &Config{
		TemporalAddress:  "localhost:7233",
		TaskQueue:        "warroom-tasks",
		HTTPListenAddr:   ":8000",
		DispatchTemplate: "generic",
		ScanInterval:     time.Minute,
		ScanRadiusKm:     15,
		AlertTopN:        3,
	}
}
