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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
app:
  name: slotify
  base_url: https://book.example.com
database:
  path: /tmp/slotify.db
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 10.0, cfg.API.RateLimit.RPS)
	assert.Equal(t, 20, cfg.API.RateLimit.Burst)
	assert.Equal(t, 15*time.Second, cfg.Payments.RequestTimeout)
	assert.Equal(t, "USD", cfg.Payments.Currency)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Worker.InitialDelay)
	assert.Equal(t, time.Minute, cfg.Worker.MaxDelay)
	assert.Equal(t, 2.0, cfg.Worker.BackoffFactor)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/data/app.db")
	t.Setenv("TEST_API_KEY", "key-from-env")

	cfg, err := Load(writeConfig(t, `
app:
  base_url: https://book.example.com
database:
  path: ${TEST_DB_PATH}
api:
  auth:
    enabled: true
    api_keys:
      - key: ${TEST_API_KEY}
        name: admin
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/app.db", cfg.Database.Path)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "key-from-env", cfg.API.Auth.APIKeys[0].Key)
}

func TestLoad_FullDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  name: slotify
  environment: production
  base_url: https://book.example.com
database:
  path: /data/slotify.db
redis:
  address: localhost:6379
  db: 2
api:
  port: 9000
  rate_limit:
    rps: 50
    burst: 100
payments:
  request_timeout: 20s
  currency: ILS
worker:
  max_retries: 3
  initial_delay: 5s
exports:
  path: /data/exports
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 50.0, cfg.API.RateLimit.RPS)
	assert.Equal(t, 20*time.Second, cfg.Payments.RequestTimeout)
	assert.Equal(t, "ILS", cfg.Payments.Currency)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Worker.InitialDelay)
	assert.Equal(t, "/data/exports", cfg.Exports.Path)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing database path",
			yaml:    "app:\n  base_url: https://x.example.com\n",
			wantErr: "database path is required",
		},
		{
			name:    "missing base url",
			yaml:    "database:\n  path: /tmp/x.db\n",
			wantErr: "base_url is required",
		},
		{
			name: "telegram enabled without token",
			yaml: minimalConfig + `
telegram:
  enabled: true
`,
			wantErr: "telegram bot token is required",
		},
		{
			name: "auth enabled without keys",
			yaml: minimalConfig + `
api:
  auth:
    enabled: true
`,
			wantErr: "no api keys configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "app: [not: closed"))
	assert.Error(t, err)
}
