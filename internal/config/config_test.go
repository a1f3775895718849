package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
debug: true
server:
  host: "0.0.0.0"
  port: 8060
database:
  host: "localhost"
  port: 5432
  user: "portfolio"
  password: "secret"
  dbname: "portfolio"
redis:
  enabled: true
  address: "redis:6379"
  stream: "custom-events"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 8060, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, "custom-events", cfg.Redis.Stream)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: "localhost"
  user: "user"
  dbname: "db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultSyncDays, cfg.Sync.DefaultDays)
	assert.Equal(t, defaultSyncSchedule, cfg.Sync.Schedule)
	assert.Equal(t, defaultRecomputeQueue, cfg.Recompute.QueueSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "host=localhost port=5432 user=user password= dbname=db sslmode=disable", cfg.Database.DSN())
}

func TestLoad_DatabaseURLOverridesFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/portfolio?sslmode=require")
	path := writeConfig(t, "server:\n  port: 8060\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/portfolio?sslmode=require", cfg.Database.DSN())
	assert.Equal(t, cfg.Database.DSN(), cfg.Database.MigrateURL())
}

func TestLoad_ProxyAndCredentialsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portfolio")
	t.Setenv("USE_PROXY", "true")
	t.Setenv("PROXY_URL", "http://proxy:3128")
	t.Setenv("GA_CREDENTIALS", `{"type":"service_account"}`)

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.True(t, cfg.Proxy.UseProxy)
	assert.Equal(t, "http://proxy:3128", cfg.Proxy.URL)

	creds, err := cfg.Analytics.Credentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(creds))
}

func TestAnalyticsCredentials_FileFallback(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(keyPath, []byte(`{"client_email":"svc@example.iam"}`), 0o600))

	a := AnalyticsConfig{CredentialsFile: keyPath}
	creds, err := a.Credentials()
	require.NoError(t, err)
	assert.Contains(t, string(creds), "svc@example.iam")

	_, err = (&AnalyticsConfig{}).Credentials()
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestMigrateURL_EscapesCredentials(t *testing.T) {
	t.Parallel()

	d := DatabaseConfig{Host: "db", Port: 5432, User: "svc", Password: "p@ss:word", DBName: "portfolio", SSLMode: "disable"}
	assert.Equal(t, "postgres://svc:p%40ss%3Aword@db:5432/portfolio?sslmode=disable", d.MigrateURL())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Database: DatabaseConfig{Host: "localhost", User: "u", DBName: "db"}}
		setDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"url replaces fields", func(c *Config) { c.Database.Host = ""; c.Database.URL = "postgres://x/y" }, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"sync days too large", func(c *Config) { c.Sync.DefaultDays = 400 }, "sync.default_days"},
		{"bad cron when enabled", func(c *Config) { c.Sync.ScheduleEnabled = true; c.Sync.Schedule = "every day" }, "sync.schedule"},
		{"bad cron ignored when disabled", func(c *Config) { c.Sync.Schedule = "every day" }, ""},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }, "redis.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
