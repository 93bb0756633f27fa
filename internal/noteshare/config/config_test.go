package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_NAME", "DEBUG", "LOG_LEVEL", "LOG_FILE", "API_HOST", "API_PORT", "PORT", "API_CORS_ORIGINS",
	"STORE_DRIVER", "STORE_URL", "REDIS_URL", "DATABASE_URL", "NOTE_RETENTION", "SWEEP_INTERVAL",
	"SECRET_BYTES", "BCRYPT_COST", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_TIMEOUT", "ENABLE_METRICS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("CONFIG_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "noteshare", cfg.App.Name)
	assert.Equal(t, 5001, cfg.API.Port)
	assert.Equal(t, []string{"*"}, cfg.API.CORSOrigins)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.Retention)
	assert.Equal(t, 9, cfg.Security.SecretBytes)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.Equal(t, "gemini-flash-latest", cfg.Gemini.Model)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Empty(t, cfg.Gemini.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := os.Getenv("CONFIG_DIR")
	yamlDoc := `
app:
  name: vault
api:
  port: 7000
  cors_origins:
    - https://a.example
    - https://b.example
store:
  driver: sqlite
  url: /tmp/notes.db
  retention: 3600
security:
  bcrypt_cost: 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.yaml"), []byte(yamlDoc), 0644))

	cfg := Load()
	assert.Equal(t, "vault", cfg.App.Name)
	assert.Equal(t, 7000, cfg.API.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, time.Hour, cfg.Store.Retention)
	assert.Equal(t, 12, cfg.Security.BcryptCost)

	t.Setenv("API_PORT", "7100")
	t.Setenv("NOTE_RETENTION", "30m")
	t.Setenv("API_CORS_ORIGINS", "https://c.example, https://d.example")
	cfg = Load()
	assert.Equal(t, 7100, cfg.API.Port)
	assert.Equal(t, 30*time.Minute, cfg.Store.Retention)
	assert.Equal(t, []string{"https://c.example", "https://d.example"}, cfg.API.CORSOrigins)
}

func TestLoadPortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8088")
	assert.Equal(t, 8088, Load().API.Port)

	t.Setenv("API_PORT", "9000")
	assert.Equal(t, 9000, Load().API.Port)
}

func TestDriverInferredFromURL(t *testing.T) {
	cases := map[string]string{
		"":                           DriverMemory,
		"redis://localhost:6379/0":   DriverRedis,
		"rediss://cache:6380":        DriverRedis,
		"/var/lib/notes.db":          DriverSQLite,
		"file:notes.db?cache=shared": DriverSQLite,
		"sqlite://data/notes.db":     DriverSQLite,
		":memory:":                   DriverSQLite,
	}
	for url, want := range cases {
		clearEnv(t)
		t.Setenv("STORE_URL", url)
		cfg := Load()
		assert.Equal(t, want, cfg.Store.Driver, url)
		assert.NoError(t, cfg.Validate(), url)
	}

	for _, url := range []string{"postgres://u:p@db:5432/notes", "mongodb://u:p@mongo:27017/notes"} {
		clearEnv(t)
		t.Setenv("DATABASE_URL", url)
		cfg := Load()
		assert.Empty(t, cfg.Store.Driver, url)
		err := cfg.Validate()
		require.Error(t, err, url)
		assert.Contains(t, err.Error(), "unsupported store URL scheme")
		assert.NotContains(t, err.Error(), "u:p@")
	}

	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://r:6379")
	cfg := Load()
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://r:6379", cfg.Store.URL)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	cfg.Store.Driver = "mongo"
	require.Error(t, cfg.Validate())

	cfg.Store.Driver = DriverRedis
	cfg.Store.URL = ""
	require.Error(t, cfg.Validate())

	cfg.Store.URL = "redis://localhost:6379"
	require.NoError(t, cfg.Validate())

	cfg.Store.Retention = 0
	require.Error(t, cfg.Validate())
}

func TestValidateStoreURLMatchesDriver(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	cfg.Store.Driver = DriverSQLite
	cfg.Store.URL = "postgres://u:p@db:5432/notes"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store URL scheme \"postgres\"")

	cfg.Store.URL = "redis://localhost:6379"
	require.Error(t, cfg.Validate())

	cfg.Store.URL = "data/notes.db"
	require.NoError(t, cfg.Validate())
}

func TestValidateGeminiTimeoutBelowAPITimeout(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	cfg.API.Timeout = 30
	cfg.Gemini.Timeout = 30 * time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini timeout")

	cfg.Gemini.Timeout = 29 * time.Second
	require.NoError(t, cfg.Validate())
}

func TestDebugForcesDebugLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	cfg := Load()
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "warn", cfg.LogLevel())

	t.Setenv("DEBUG", "true")
	cfg = Load()
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "debug", cfg.LogLevel())
}
