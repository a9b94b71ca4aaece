package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret   = "this-is-a-very-long-jwt-secret-for-testing-32+"
	testGuestSecret = "another-very-long-guest-cookie-secret-32+chars"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", testJWTSecret)
	t.Setenv("GUEST_TOKEN_SECRET", testGuestSecret)
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EnvDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50051, cfg.Server.GRPCPort)
	assert.Equal(t, "postergenius", cfg.Mongo.DBName)
	assert.False(t, cfg.Mongo.Transactions)
	assert.Equal(t, "pg_guest", cfg.Guest.CookieName)
	assert.Equal(t, 720*time.Hour, cfg.Guest.CookieTTL)
	assert.Equal(t, 10*time.Second, cfg.Cart.MergeLockWindow)
	assert.Equal(t, 99, cfg.Cart.MaxQuantity)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.BrokerList())
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  port: 9090
mongo:
  uri: "mongodb://mongo:27017/?replicaSet=rs0"
  transactions: true
auth:
  jwt_secret: "`+testJWTSecret+`"
guest:
  token_secret: "`+testGuestSecret+`"
  cookie_name: "pg_guest_dev"
cart:
  merge_lock_window: "30s"
cors:
  allowed_origins: "https://postergenius.ca, https://www.postergenius.ca"
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Mongo.Transactions)
	assert.Equal(t, "pg_guest_dev", cfg.Guest.CookieName)
	assert.Equal(t, 30*time.Second, cfg.Cart.MergeLockWindow)
	assert.Equal(t, []string{"https://postergenius.ca", "https://www.postergenius.ca"}, cfg.CORS.Origins())
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("GUEST_TOKEN_SECRET", testGuestSecret)

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Auth:  AuthConfig{JWTSecret: testJWTSecret},
			Guest: GuestConfig{TokenSecret: testGuestSecret, CookieTTL: time.Hour},
			Cart:  CartConfig{MaxQuantity: 10, MergeLockWindow: 5 * time.Second, RateLimit: 60},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"short guest secret", func(c *Config) { c.Guest.TokenSecret = "short" }, "token_secret"},
		{"shared secret", func(c *Config) { c.Guest.TokenSecret = c.Auth.JWTSecret }, "must differ"},
		{"zero cookie ttl", func(c *Config) { c.Guest.CookieTTL = 0 }, "cookie_ttl"},
		{"zero max quantity", func(c *Config) { c.Cart.MaxQuantity = 0 }, "max_quantity"},
		{"short merge window", func(c *Config) { c.Cart.MergeLockWindow = time.Millisecond }, "merge_lock_window"},
		{"zero rate limit", func(c *Config) { c.Cart.RateLimit = 0 }, "rate_limit"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
