package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfigFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "numbers-service", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, 10*time.Second, cfg.Database.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "token", cfg.JWT.CookieName)
	assert.Equal(t, "NGN", cfg.BudPay.Currency)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.ExpirySpec)
	assert.False(t, cfg.Scheduler.ReleaseExpiredReservations)
	assert.True(t, cfg.Monitoring.MetricsEnabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowOrigins)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoadConfigFrom_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
app:
  port: 9090
  env: staging
jwt:
  secret: from-file
  expiresin: 720h
scheduler:
  reminderspec: "30 8 * * *"
  lockttl: 2m
`)
	t.Setenv("PORT", "7070")
	t.Setenv("MONGO_URI", "mongodb://db:27017/?replicaSet=rs0")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100123")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port, "env wins over the file")
	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 720*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "mongodb://db:27017/?replicaSet=rs0", cfg.Database.URI)
	assert.Equal(t, "30 8 * * *", cfg.Scheduler.ReminderSpec)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.LockTTL)
	assert.Equal(t, int64(-100123), cfg.Telegram.AdminChatID)
}

func TestLoadConfigFrom_MalformedFile(t *testing.T) {
	dir := writeConfig(t, "app: [unclosed")
	_, err := LoadConfigFrom(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "development"},
			Database: DatabaseConfig{URI: "mongodb://localhost"},
			JWT:      JWTConfig{Secret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret"},
		{"missing database uri", func(c *Config) { c.Database.URI = "" }, "database.uri"},
		{"production needs gateway key", func(c *Config) { c.App.Env = "Production" }, "budpay.secretkey"},
		{"production with gateway key", func(c *Config) {
			c.App.Env = "production"
			c.BudPay.SecretKey = "sk_live"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
